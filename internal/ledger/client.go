// Package ledger provides an HTTP client for the remote Luna ledger node.
package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/luna-coin/luna-wallet/internal/log"
)

// ErrUnavailable is returned when the remote node cannot be reached or
// produced no usable answer on any endpoint.
var ErrUnavailable = errors.New("ledger unavailable")

// subBatchSize is the sub-range size used when a large range request fails.
const subBatchSize = 100

// SubmitError is returned when the node rejects a submitted transaction.
type SubmitError struct {
	Status int
	Body   string
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("transaction rejected: status %d: %s", e.Status, e.Body)
}

// Client is an HTTP client for the remote ledger node. All calls block
// for at most the configured timeout; callers run them off the UI thread.
type Client struct {
	base string
	http *http.Client
}

// New creates a client targeting the given node base URL.
func New(baseURL string) *Client {
	return NewWithTimeout(baseURL, 10*time.Second)
}

// NewWithTimeout creates a client with a custom HTTP timeout.
func NewWithTimeout(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base: baseURL,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// Health reports whether the node is reachable.
func (c *Client) Health() bool {
	resp, err := c.http.Get(c.base + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// LatestBlock fetches the most recent block.
func (c *Client) LatestBlock() (*Block, error) {
	var blk Block
	if err := c.getJSON("/blockchain/latest", &blk); err != nil {
		return nil, err
	}
	return &blk, nil
}

// Height returns the current chain height (index of the latest block).
// It prefers the latest-block endpoint; on failure it falls back to
// downloading the full chain and counting. Returns ErrUnavailable when
// neither path produced an answer.
func (c *Client) Height() (uint64, error) {
	blk, err := c.LatestBlock()
	if err == nil {
		return blk.Index, nil
	}

	// Expensive fallback; callers must not hit this in tight loops.
	log.Ledger.Warn().Err(err).Msg("Latest-block endpoint failed, counting full chain")
	chain, err := c.FullChain()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(chain) == 0 {
		return 0, fmt.Errorf("%w: empty chain", ErrUnavailable)
	}
	return uint64(len(chain) - 1), nil
}

// BlockRange fetches blocks with index in [start, end]. On failure it
// retries in fixed sub-ranges, collecting partial results; the final
// resort is downloading the full chain and filtering. Callers must
// handle partial (including empty) results.
func (c *Client) BlockRange(start, end uint64) ([]Block, error) {
	if start > end {
		return nil, nil
	}

	blocks, err := c.rangeRequest(start, end)
	if err == nil {
		return blocks, nil
	}
	log.Ledger.Debug().Err(err).
		Uint64("start", start).
		Uint64("end", end).
		Msg("Range request failed, retrying in sub-batches")

	var collected []Block
	for bs := start; bs <= end; bs += subBatchSize {
		be := bs + subBatchSize - 1
		if be > end {
			be = end
		}
		batch, err := c.rangeRequest(bs, be)
		if err != nil {
			log.Ledger.Debug().Err(err).
				Uint64("start", bs).
				Uint64("end", be).
				Msg("Sub-batch failed, skipping")
			continue
		}
		collected = append(collected, batch...)
	}
	if len(collected) > 0 {
		return collected, nil
	}

	// Range endpoint looks entirely unavailable; filter the full chain.
	chain, err := c.FullChain()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	for _, blk := range chain {
		if blk.Index >= start && blk.Index <= end {
			collected = append(collected, blk)
		}
	}
	return collected, nil
}

// FullChain downloads the entire blockchain. Expensive fallback only.
func (c *Client) FullChain() ([]Block, error) {
	var chain []Block
	if err := c.getJSON("/blockchain", &chain); err != nil {
		return nil, err
	}
	return chain, nil
}

// Mempool fetches the node's current unconfirmed transactions.
func (c *Client) Mempool() ([]Transaction, error) {
	var txs []Transaction
	if err := c.getJSON("/mempool", &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// Submit broadcasts a signed transaction to the node's mempool.
// Only HTTP 201 counts as accepted; any other response is a *SubmitError.
func (c *Client) Submit(tx *Transaction) error {
	body, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}

	resp, err := c.http.Post(c.base+"/mempool/add", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &SubmitError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	return nil
}

func (c *Client) rangeRequest(start, end uint64) ([]Block, error) {
	var blocks []Block
	path := fmt.Sprintf("/blockchain/range?start=%d&end=%d", start, end)
	if err := c.getJSON(path, &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

func (c *Client) getJSON(path string, result interface{}) error {
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

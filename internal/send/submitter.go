// Package send builds, signs and broadcasts outgoing transfers.
package send

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/luna-coin/luna-wallet/internal/ledger"
	"github.com/luna-coin/luna-wallet/internal/log"
	"github.com/luna-coin/luna-wallet/internal/wallet"
	"github.com/luna-coin/luna-wallet/pkg/crypto"
)

// Broadcaster submits a signed transaction to the node mempool.
type Broadcaster interface {
	Submit(tx *ledger.Transaction) error
}

// Rescanner refreshes wallet state from the chain before a send
// commits to a balance figure.
type Rescanner interface {
	Scan(force bool) bool
}

// Watcher marks broadcast hashes so the mempool monitor does not
// double-process our own sends.
type Watcher interface {
	Watch(hash string)
}

// Config tunes the send flow.
type Config struct {
	// Fee is the flat network fee added to every transfer.
	Fee float64
	// DuplicateWindow rejects a second identical send (same source,
	// destination and amount) within this span.
	DuplicateWindow time.Duration
}

// DefaultConfig returns the standard send parameters.
func DefaultConfig() Config {
	return Config{
		Fee:             0.00001,
		DuplicateWindow: 5 * time.Minute,
	}
}

// ErrDuplicateSend rejects a send identical to a recent pending one.
var ErrDuplicateSend = errors.New("identical transfer already pending")

// InsufficientFundsError carries both sides of a failed balance check.
type InsufficientFundsError struct {
	Available float64
	Required  float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available %s, required %s including fee",
		formatAmount(e.Available), formatAmount(e.Required))
}

// Submitter performs user-initiated sends from the primary wallet.
type Submitter struct {
	broadcaster Broadcaster
	store       *wallet.Store
	rescan      Rescanner
	watcher     Watcher
	events      wallet.Events
	cfg         Config
}

// New creates a submitter. rescan and watcher may be nil in tests.
func New(b Broadcaster, s *wallet.Store, rescan Rescanner, watcher Watcher, events wallet.Events, cfg Config) *Submitter {
	if cfg.Fee == 0 && cfg.DuplicateWindow == 0 {
		cfg = DefaultConfig()
	}
	return &Submitter{
		broadcaster: b,
		store:       s,
		rescan:      rescan,
		watcher:     watcher,
		events:      events,
		cfg:         cfg,
	}
}

// Send transfers amount from the primary wallet to the given address.
// Wallet state mutates only after the node accepts the broadcast; any
// earlier failure leaves balances and pending lists untouched.
func (s *Submitter) Send(to string, amount float64, memo string) (*wallet.TransactionRecord, error) {
	rec, err := s.send(to, amount, memo)
	if err != nil {
		s.events.Error(err.Error())
		return nil, err
	}
	return rec, nil
}

func (s *Submitter) send(to string, amount float64, memo string) (*wallet.TransactionRecord, error) {
	if !s.store.Unlocked() {
		return nil, wallet.ErrLocked
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return nil, fmt.Errorf("destination address is required")
	}
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	// Fold in anything confirmed since the last scan so the balance
	// check runs against current state.
	if s.rescan != nil {
		s.rescan.Scan(false)
	}

	primary, ok := s.store.Primary()
	if !ok {
		return nil, fmt.Errorf("no wallet available")
	}
	from := primary.Address
	if wallet.SameAddress(from, to) {
		return nil, fmt.Errorf("cannot send to the sending wallet")
	}

	required := amount + s.cfg.Fee
	if primary.Available < required {
		return nil, &InsufficientFundsError{Available: primary.Available, Required: required}
	}
	if s.duplicatePending(from, to, amount) {
		return nil, ErrDuplicateSend
	}

	now := time.Now()
	ts := float64(now.Unix())
	nonce := now.UnixMilli()

	signingBytes := []byte(strings.Join([]string{
		from,
		to,
		formatAmount(amount),
		strconv.FormatFloat(ts, 'f', -1, 64),
		strconv.FormatInt(nonce, 10),
	}, "|"))
	digest := crypto.Hash(signingBytes)
	sig, _, err := s.store.Sign(from, digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	hash := crypto.HashHex(append(signingBytes, sig...))

	// The balance may have moved while signing; check once more
	// before anything leaves this process.
	if fresh, ok := s.store.Primary(); !ok || fresh.Available < required {
		avail := 0.0
		if ok {
			avail = fresh.Available
		}
		return nil, &InsufficientFundsError{Available: avail, Required: required}
	}

	tx := &ledger.Transaction{
		Hash:      hash,
		Type:      wallet.TypeTransfer,
		From:      from,
		To:        to,
		Amount:    amount,
		Fee:       s.cfg.Fee,
		Nonce:     nonce,
		Timestamp: ts,
		Memo:      memo,
		Signature: hex.EncodeToString(sig),
	}
	if err := s.broadcaster.Submit(tx); err != nil {
		return nil, fmt.Errorf("broadcast failed: %w", err)
	}

	// Accepted: commit local state.
	s.store.AddPending(wallet.PendingEntry{
		Hash:      hash,
		From:      from,
		To:        to,
		Amount:    amount,
		Status:    wallet.StatusPending,
		Timestamp: ts,
	})
	s.store.Reserve(from, amount)
	rec := wallet.TransactionRecord{
		Hash:      hash,
		Type:      wallet.TypeTransfer,
		From:      from,
		To:        to,
		Amount:    amount,
		Fee:       s.cfg.Fee,
		Timestamp: ts,
		Status:    wallet.StatusPending,
		Memo:      memo,
	}
	s.store.AddTransaction(from, rec)
	if s.watcher != nil {
		s.watcher.Watch(hash)
	}
	if err := s.store.Save(); err != nil {
		log.Wallet.Warn().Err(err).Msg("Persisting send state failed")
	}
	s.events.BalanceChanged()

	log.Wallet.Info().
		Str("hash", hash).
		Str("to", to).
		Float64("amount", amount).
		Msg("Transaction broadcast")
	return &rec, nil
}

// duplicatePending reports whether an identical transfer is already
// pending inside the duplicate window.
func (s *Submitter) duplicatePending(from, to string, amount float64) bool {
	cutoff := float64(time.Now().Add(-s.cfg.DuplicateWindow).Unix())
	for _, p := range s.store.PendingEntries() {
		if p.Status != wallet.StatusPending {
			continue
		}
		if p.Timestamp < cutoff {
			continue
		}
		if wallet.SameAddress(p.From, from) && wallet.SameAddress(p.To, to) && p.Amount == amount {
			return true
		}
	}
	return false
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Package scan folds confirmed blockchain history into wallet state.
// Scans are incremental and checkpointed: blocks already folded into a
// balance are never re-read, and a periodic full scan rebuilds
// everything from genesis as a consistency backstop.
package scan

import (
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/luna-coin/luna-wallet/internal/cache"
	"github.com/luna-coin/luna-wallet/internal/ledger"
	"github.com/luna-coin/luna-wallet/internal/log"
	"github.com/luna-coin/luna-wallet/internal/wallet"
)

// Ledger is the slice of the node client the engine needs.
type Ledger interface {
	Height() (uint64, error)
	BlockRange(start, end uint64) ([]ledger.Block, error)
}

// Config tunes scanning behavior.
type Config struct {
	// BatchSize is how many blocks are fetched and folded per batch.
	BatchSize uint64
	// MaxBlocksPerScan caps a single scan pass; catching up a long gap
	// takes several passes instead of one unbounded fetch.
	MaxBlocksPerScan uint64
	// FullScanInterval is how often a scan is promoted to a full
	// rebuild from genesis.
	FullScanInterval time.Duration
	// BatchDelay spaces batches out to keep node load polite.
	BatchDelay time.Duration
}

// DefaultConfig returns the standard scanning parameters.
func DefaultConfig() Config {
	return Config{
		BatchSize:        50,
		MaxBlocksPerScan: 500,
		FullScanInterval: time.Hour,
		BatchDelay:       50 * time.Millisecond,
	}
}

// Engine scans the chain for transactions involving owned addresses.
// The cache is optional; without it every batch goes to the network.
type Engine struct {
	ledger  Ledger
	cache   *cache.Store
	store   *wallet.Store
	events  wallet.Events
	cfg     Config
	running atomic.Bool
}

// New creates a scan engine. events must not be nil; pass
// wallet.NopEvents{} when nothing subscribes.
func New(l Ledger, c *cache.Store, s *wallet.Store, events wallet.Events, cfg Config) *Engine {
	if cfg.BatchSize == 0 {
		cfg = DefaultConfig()
	}
	return &Engine{ledger: l, cache: c, store: s, events: events, cfg: cfg}
}

// Scan walks new blocks for every owned address and updates balances,
// histories and checkpoints. force promotes the pass to a full rescan.
// Returns whether the scan ran to completion. Errors are reported
// through the events surface; Scan itself never panics outward.
func (e *Engine) Scan(force bool) bool {
	if !e.running.CompareAndSwap(false, true) {
		log.Scan.Debug().Msg("Scan already in progress, skipping")
		return false
	}
	defer e.running.Store(false)

	if !e.store.Unlocked() {
		return false
	}

	height, err := e.ledger.Height()
	if err != nil {
		log.Scan.Warn().Err(err).Msg("Cannot determine chain height")
		e.events.Error(fmt.Sprintf("scan failed: %v", err))
		return false
	}

	now := float64(time.Now().Unix())
	fullScan := force || now-e.store.LastFullScan() > e.cfg.FullScanInterval.Seconds()
	scanType := wallet.ScanIncremental
	if fullScan {
		scanType = wallet.ScanFull
	}

	addrs := e.store.Addresses()
	log.Scan.Info().
		Int("wallets", len(addrs)).
		Uint64("height", height).
		Str("type", scanType).
		Msg("Scan started")

	for i, addr := range addrs {
		percent := i * 100 / max(len(addrs), 1)
		e.events.SyncProgress(percent, fmt.Sprintf("Scanning wallet %d of %d", i+1, len(addrs)))
		e.scanAddress(addr, height, fullScan)
	}

	if fullScan {
		e.store.SetLastFullScan(now)
	}
	if err := e.store.Save(); err != nil {
		// The scan itself succeeded; state will be rebuilt next run.
		log.Scan.Warn().Err(err).Msg("Persisting scan state failed")
	}

	e.events.SyncProgress(100, "Scan complete")
	e.events.SyncComplete()
	return true
}

func (e *Engine) scanAddress(addr string, height uint64, fullScan bool) {
	var start uint64
	if !fullScan {
		if cp, ok := e.store.Checkpoint(addr); ok && cp.LastScannedHeight > 0 {
			start = cp.LastScannedHeight + 1
		}
	}
	if start > height {
		// Checkpoint already at the tip; only refresh pending state.
		e.foldMempool(addr)
		return
	}
	end := height
	if limit := start + e.cfg.MaxBlocksPerScan - 1; end > limit {
		end = limit
	}

	scanType := wallet.ScanIncremental
	if fullScan {
		scanType = wallet.ScanFull
	}

	known := e.knownHashes(addr)
	received := 0
	scannedThrough := int64(start) - 1
	for bs := start; bs <= end; bs += e.cfg.BatchSize {
		be := bs + e.cfg.BatchSize - 1
		if be > end {
			be = end
		}
		blocks, err := e.fetchBatch(bs, be)
		if err != nil {
			log.Scan.Warn().Err(err).
				Uint64("start", bs).
				Uint64("end", be).
				Str("address", addr).
				Msg("Batch fetch failed, stopping at last good height")
			break
		}
		received += e.foldBlocks(addr, blocks, known)
		scannedThrough = int64(be)
		if e.cfg.BatchDelay > 0 && be < end {
			time.Sleep(e.cfg.BatchDelay)
		}
	}

	if received > 0 {
		e.events.TransactionReceived()
	}
	old, now, err := e.store.RecomputeBalance(addr)
	if err != nil {
		// Wallet removed while scanning; nothing left to do.
		return
	}
	if old != now {
		e.events.BalanceChanged()
	}

	if scannedThrough >= 0 {
		e.store.SetCheckpoint(addr, uint64(scannedThrough), scanType)
	}

	e.foldMempool(addr)
}

// fetchBatch serves blocks cache-first and writes network results back.
func (e *Engine) fetchBatch(start, end uint64) ([]ledger.Block, error) {
	if e.cache == nil {
		return e.ledger.BlockRange(start, end)
	}

	found, missing := e.cache.Blocks(start, end)
	if len(missing) == 0 {
		return found, nil
	}

	fetched, err := e.ledger.BlockRange(missing[0], missing[len(missing)-1])
	if err != nil {
		return nil, err
	}
	if err := e.cache.SaveBlocks(fetched); err != nil {
		log.Scan.Debug().Err(err).Msg("Block cache write failed")
	}

	byHeight := make(map[uint64]ledger.Block, len(found)+len(fetched))
	for _, blk := range found {
		byHeight[blk.Index] = blk
	}
	for _, blk := range fetched {
		byHeight[blk.Index] = blk
	}
	merged := make([]ledger.Block, 0, len(byHeight))
	for _, blk := range byHeight {
		merged = append(merged, blk)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Index < merged[j].Index })
	return merged, nil
}

// foldBlocks records transactions involving addr and returns how many
// incoming movements were newly added.
func (e *Engine) foldBlocks(addr string, blocks []ledger.Block, known map[string]bool) int {
	received := 0
	for bi := range blocks {
		blk := &blocks[bi]
		h := blk.Index

		// Block rewards are not carried as mempool transactions, so a
		// deterministic local hash keeps them idempotent across scans.
		if blk.Reward > 0 && wallet.SameAddress(blk.Miner, addr) {
			hash := fmt.Sprintf("reward_%d_%s", blk.Index, blk.Miner)
			if !known[hash] {
				height := h
				added := e.store.AddTransaction(addr, wallet.TransactionRecord{
					Hash:        hash,
					Type:        wallet.TypeReward,
					From:        wallet.NetworkSender,
					To:          blk.Miner,
					Amount:      blk.Reward,
					Timestamp:   blk.Timestamp,
					BlockHeight: &height,
					Status:      wallet.StatusConfirmed,
				})
				if added {
					known[hash] = true
					received++
				}
			}
		}

		for ti := range blk.Transactions {
			tx := &blk.Transactions[ti]
			from, to := tx.FromAddress(), tx.ToAddress()
			incoming := wallet.SameAddress(to, addr)
			outgoing := wallet.SameAddress(from, addr)
			if !incoming && !outgoing {
				continue
			}
			if tx.Hash == "" {
				continue
			}
			height := h
			if known[tx.Hash] {
				// First seen in the mempool; the block arrival promotes
				// the existing pending record.
				e.store.MarkTransaction(addr, tx.Hash, wallet.StatusConfirmed, &height)
				continue
			}
			txType := tx.Type
			if txType == "" {
				txType = wallet.TypeTransfer
			}
			added := e.store.AddTransaction(addr, wallet.TransactionRecord{
				Hash:        tx.Hash,
				Type:        txType,
				From:        from,
				To:          to,
				Amount:      tx.Amount,
				Fee:         tx.Fee,
				Timestamp:   tx.Timestamp,
				BlockHeight: &height,
				Status:      wallet.StatusConfirmed,
				Memo:        tx.Memo,
			})
			if added {
				known[tx.Hash] = true
				if incoming {
					received++
				}
			}
		}
	}
	return received
}

// foldMempool surfaces cached unconfirmed transactions as pending
// records so balances reflect in-flight movements between polls.
func (e *Engine) foldMempool(addr string) {
	if e.cache == nil {
		return
	}
	for _, entry := range e.cache.MempoolForAddress(addr) {
		tx := entry.Tx
		if tx.Hash == "" {
			continue
		}
		txType := tx.Type
		if txType == "" {
			txType = wallet.TypeTransfer
		}
		e.store.AddTransaction(addr, wallet.TransactionRecord{
			Hash:      tx.Hash,
			Type:      txType,
			From:      tx.FromAddress(),
			To:        tx.ToAddress(),
			Amount:    tx.Amount,
			Fee:       tx.Fee,
			Timestamp: tx.Timestamp,
			Status:    wallet.StatusPending,
			Memo:      tx.Memo,
		})
	}
}

func (e *Engine) knownHashes(addr string) map[string]bool {
	known := make(map[string]bool)
	txs, err := e.store.Transactions(addr)
	if err != nil {
		return known
	}
	for i := range txs {
		known[txs[i].Hash] = true
	}
	return known
}

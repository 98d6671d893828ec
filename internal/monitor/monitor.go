// Package monitor polls the node mempool for movements involving owned
// addresses and reconciles outgoing sends against confirmed blocks.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/luna-coin/luna-wallet/internal/cache"
	"github.com/luna-coin/luna-wallet/internal/ledger"
	"github.com/luna-coin/luna-wallet/internal/log"
	"github.com/luna-coin/luna-wallet/internal/wallet"
)

// Ledger is the slice of the node client the monitor needs.
type Ledger interface {
	Height() (uint64, error)
	BlockRange(start, end uint64) ([]ledger.Block, error)
	Mempool() ([]ledger.Transaction, error)
}

// Config tunes polling and reconciliation behavior.
type Config struct {
	// PollInterval is the base tick of the monitor loop.
	PollInterval time.Duration
	// FetchEveryN fetches the mempool on every Nth tick.
	FetchEveryN int
	// PurgeEveryN purges stale cache entries on every Nth tick.
	PurgeEveryN int
	// CacheMaxAge is how long mempool entries stay cached.
	CacheMaxAge time.Duration
	// ConfirmLookback is how many recent blocks are checked when
	// reconciling pending sends.
	ConfirmLookback uint64
	// PendingTimeout fails pending sends not confirmed in time.
	PendingTimeout time.Duration
	// ErrorBackoff pauses fetching after a poll failure.
	ErrorBackoff time.Duration
}

// DefaultConfig returns the standard monitor parameters.
func DefaultConfig() Config {
	return Config{
		PollInterval:    2 * time.Second,
		FetchEveryN:     5,
		PurgeEveryN:     50,
		CacheMaxAge:     2 * time.Hour,
		ConfirmLookback: 20,
		PendingTimeout:  time.Hour,
		ErrorBackoff:    10 * time.Second,
	}
}

// Monitor watches the mempool while the store is unlocked. One
// goroutine runs the loop; Watch may be called from others.
type Monitor struct {
	ledger Ledger
	cache  *cache.Store
	store  *wallet.Store
	events wallet.Events
	cfg    Config

	mu      sync.Mutex
	watched map[string]bool
}

// New creates a mempool monitor. The cache is optional.
func New(l Ledger, c *cache.Store, s *wallet.Store, events wallet.Events, cfg Config) *Monitor {
	def := DefaultConfig()
	if cfg.PollInterval == 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.FetchEveryN == 0 {
		cfg.FetchEveryN = def.FetchEveryN
	}
	if cfg.PurgeEveryN == 0 {
		cfg.PurgeEveryN = def.PurgeEveryN
	}
	if cfg.CacheMaxAge == 0 {
		cfg.CacheMaxAge = def.CacheMaxAge
	}
	if cfg.ConfirmLookback == 0 {
		cfg.ConfirmLookback = def.ConfirmLookback
	}
	if cfg.PendingTimeout == 0 {
		cfg.PendingTimeout = def.PendingTimeout
	}
	if cfg.ErrorBackoff == 0 {
		cfg.ErrorBackoff = def.ErrorBackoff
	}
	return &Monitor{
		ledger:  l,
		cache:   c,
		store:   s,
		events:  events,
		cfg:     cfg,
		watched: make(map[string]bool),
	}
}

// Run polls until ctx is canceled. Single poll failures back off and
// never end the loop.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	log.Mempool.Info().Dur("interval", m.cfg.PollInterval).Msg("Mempool monitor started")

	tick := 0
	var backoffUntil time.Time
	for {
		select {
		case <-ctx.Done():
			log.Mempool.Info().Msg("Mempool monitor stopped")
			return
		case <-ticker.C:
		}
		tick++

		if tick%m.cfg.FetchEveryN == 0 && time.Now().After(backoffUntil) {
			if err := m.poll(); err != nil {
				log.Mempool.Warn().Err(err).Msg("Mempool poll failed, backing off")
				backoffUntil = time.Now().Add(m.cfg.ErrorBackoff)
			}
		}
		if m.cache != nil && tick%m.cfg.PurgeEveryN == 0 {
			m.cache.PurgeMempool(m.cfg.CacheMaxAge)
		}
	}
}

// Watch marks a transaction hash as already handled, so the next
// mempool fetch does not double-process a send this wallet made.
func (m *Monitor) Watch(hash string) {
	m.mu.Lock()
	m.watched[hash] = true
	m.mu.Unlock()
}

func (m *Monitor) isWatched(hash string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watched[hash]
}

func (m *Monitor) poll() error {
	if !m.store.Unlocked() {
		return nil
	}
	txs, err := m.ledger.Mempool()
	if err != nil {
		return err
	}
	m.processMempool(txs)
	return nil
}

// processMempool inspects mempool transactions for owned addresses,
// records pending movements and reserves outgoing amounts.
func (m *Monitor) processMempool(txs []ledger.Transaction) {
	addrs := m.store.Addresses()
	if len(addrs) == 0 {
		return
	}

	received := false
	changed := false
	for i := range txs {
		tx := &txs[i]
		if tx.Hash == "" || m.isWatched(tx.Hash) {
			continue
		}

		from, to := tx.FromAddress(), tx.ToAddress()
		var owned string
		outgoing := false
		for _, addr := range addrs {
			if wallet.SameAddress(from, addr) {
				owned, outgoing = addr, true
				break
			}
			if wallet.SameAddress(to, addr) {
				owned = addr
			}
		}
		if owned == "" {
			continue
		}
		m.Watch(tx.Hash)

		if m.cache != nil {
			if err := m.cache.SaveMempoolTx(*tx, owned); err != nil {
				log.Mempool.Debug().Err(err).Str("hash", tx.Hash).Msg("Mempool cache write failed")
			}
		}

		ts := tx.Timestamp
		if ts == 0 {
			ts = float64(time.Now().Unix())
		}
		txType := tx.Type
		if txType == "" {
			txType = wallet.TypeTransfer
		}
		rec := wallet.TransactionRecord{
			Hash:      tx.Hash,
			Type:      txType,
			From:      from,
			To:        to,
			Amount:    tx.Amount,
			Fee:       tx.Fee,
			Timestamp: ts,
			Status:    wallet.StatusPending,
			Memo:      tx.Memo,
		}

		if outgoing {
			added := m.store.AddPending(wallet.PendingEntry{
				Hash:      tx.Hash,
				From:      from,
				To:        to,
				Amount:    tx.Amount,
				Status:    wallet.StatusPending,
				Timestamp: ts,
			})
			if added {
				m.store.Reserve(owned, tx.Amount)
				changed = true
			}
			m.store.AddTransaction(owned, rec)
			log.Mempool.Info().Str("hash", tx.Hash).Float64("amount", tx.Amount).
				Msg("Outgoing transaction observed in mempool")
		} else {
			if m.store.AddTransaction(owned, rec) {
				received = true
			}
			log.Mempool.Info().Str("hash", tx.Hash).Float64("amount", tx.Amount).
				Msg("Incoming transaction observed in mempool")
		}
	}

	if received {
		m.events.TransactionReceived()
	}
	if received || changed {
		m.events.BalanceChanged()
	}
}

// ReconcilePending settles outstanding sends: hashes found in the last
// ConfirmLookback blocks are confirmed and their reservations
// released; entries older than PendingTimeout are failed and released.
func (m *Monitor) ReconcilePending() {
	pending := m.store.PendingEntries()
	outstanding := 0
	for _, p := range pending {
		if p.Status == wallet.StatusPending {
			outstanding++
		}
	}
	if outstanding == 0 {
		return
	}

	confirmed := m.confirmedHashes()
	now := float64(time.Now().Unix())
	changed := false

	for _, p := range pending {
		if p.Status != wallet.StatusPending {
			continue
		}
		switch {
		case confirmed[p.Hash] != nil:
			blk := confirmed[p.Hash]
			m.store.SetPendingStatus(p.Hash, wallet.StatusConfirmed)
			m.store.MarkTransaction(p.From, p.Hash, wallet.StatusConfirmed, blk)
			m.store.Release(p.From, p.Amount)
			changed = true
			log.Mempool.Info().Str("hash", p.Hash).Msg("Pending send confirmed")
		case now-p.Timestamp > m.cfg.PendingTimeout.Seconds():
			m.store.SetPendingStatus(p.Hash, wallet.StatusFailed)
			m.store.MarkTransaction(p.From, p.Hash, wallet.StatusFailed, nil)
			m.store.Release(p.From, p.Amount)
			changed = true
			log.Mempool.Warn().Str("hash", p.Hash).
				Msg("Pending send timed out, releasing reservation")
		}
	}

	if changed {
		if err := m.store.Save(); err != nil {
			log.Mempool.Warn().Err(err).Msg("Persisting pending state failed")
		}
		m.events.BalanceChanged()
	}
}

// confirmedHashes maps transaction hashes found in the last
// ConfirmLookback blocks to their block height.
func (m *Monitor) confirmedHashes() map[string]*uint64 {
	hashes := make(map[string]*uint64)

	height, err := m.ledger.Height()
	if err != nil {
		log.Mempool.Debug().Err(err).Msg("Height unavailable for reconciliation")
		return hashes
	}
	var start uint64
	if height+1 > m.cfg.ConfirmLookback {
		start = height + 1 - m.cfg.ConfirmLookback
	}

	blocks := m.recentBlocks(start, height)
	for bi := range blocks {
		blk := &blocks[bi]
		for ti := range blk.Transactions {
			h := blk.Index
			hashes[blk.Transactions[ti].Hash] = &h
		}
	}
	return hashes
}

// recentBlocks serves the reconciliation window cache-first.
func (m *Monitor) recentBlocks(start, end uint64) []ledger.Block {
	if m.cache != nil {
		found, missing := m.cache.Blocks(start, end)
		if len(missing) == 0 {
			return found
		}
	}
	blocks, err := m.ledger.BlockRange(start, end)
	if err != nil {
		log.Mempool.Debug().Err(err).Msg("Recent blocks unavailable for reconciliation")
		return nil
	}
	if m.cache != nil {
		m.cache.SaveBlocks(blocks)
	}
	return blocks
}

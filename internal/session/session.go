// Package session wires the wallet components together and runs their
// background loops. GUI and CLI frontends talk to a Session only.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luna-coin/luna-wallet/config"
	"github.com/luna-coin/luna-wallet/internal/cache"
	"github.com/luna-coin/luna-wallet/internal/ledger"
	"github.com/luna-coin/luna-wallet/internal/log"
	"github.com/luna-coin/luna-wallet/internal/monitor"
	"github.com/luna-coin/luna-wallet/internal/scan"
	"github.com/luna-coin/luna-wallet/internal/send"
	"github.com/luna-coin/luna-wallet/internal/storage"
	"github.com/luna-coin/luna-wallet/internal/wallet"
)

// fullScanEvery promotes every Nth auto-scan to a forced full scan.
const fullScanEvery = 120

// Session owns the ledger client, wallet store, scan engine, mempool
// monitor and submitter, plus the goroutines driving them.
type Session struct {
	cfg    *config.Config
	events wallet.Events

	db        storage.DB
	cache     *cache.Store
	client    *ledger.Client
	store     *wallet.Store
	engine    *scan.Engine
	monitor   *monitor.Monitor
	submitter *send.Submitter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	monitorMu     sync.Mutex
	monitorCancel context.CancelFunc
	monitorWG     sync.WaitGroup

	scanCount atomic.Uint64
}

// New builds a session from config. events must not be nil; pass
// wallet.NopEvents{} for headless use.
func New(cfg *config.Config, events wallet.Events) (*Session, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	var db storage.DB
	if cfg.Cache.Enabled {
		if cfg.Cache.InMemory {
			db = storage.NewMemory()
		} else {
			bdb, err := storage.NewBadger(cfg.CacheDir())
			if err != nil {
				return nil, fmt.Errorf("open cache: %w", err)
			}
			db = bdb
		}
	}
	var cs *cache.Store
	if db != nil {
		cs = cache.New(db)
	}

	client := ledger.NewWithTimeout(cfg.Node.URL, cfg.Node.Timeout)
	store := wallet.NewStore(cfg.WalletDir())

	engine := scan.New(client, cs, store, events, scan.Config{
		BatchSize:        cfg.Scan.BatchSize,
		MaxBlocksPerScan: cfg.Scan.MaxBlocksPerScan,
		FullScanInterval: cfg.Scan.FullScanInterval,
		BatchDelay:       cfg.Scan.BatchDelay,
	})
	mon := monitor.New(client, cs, store, events, monitor.Config{
		PollInterval:    cfg.Mempool.PollInterval,
		FetchEveryN:     cfg.Mempool.FetchEveryN,
		PurgeEveryN:     cfg.Mempool.PurgeEveryN,
		CacheMaxAge:     cfg.Mempool.CacheMaxAge,
		ConfirmLookback: cfg.Mempool.ConfirmLookback,
		PendingTimeout:  cfg.Mempool.PendingTimeout,
		ErrorBackoff:    cfg.Mempool.ErrorBackoff,
	})
	sub := send.New(client, store, engine, mon, events, send.Config{
		Fee:             config.TransferFee,
		DuplicateWindow: 5 * time.Minute,
	})

	return &Session{
		cfg:       cfg,
		events:    events,
		db:        db,
		cache:     cs,
		client:    client,
		store:     store,
		engine:    engine,
		monitor:   mon,
		submitter: sub,
	}, nil
}

// Start launches the auto-scan loop. Scanning only happens while the
// store is unlocked.
func (s *Session) Start() {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runScanLoop()
	}()

	log.Session.Info().
		Str("node", s.cfg.Node.URL).
		Dur("scan_interval", s.cfg.Scan.Interval).
		Msg("Session started")
}

// Stop shuts everything down: monitor first, then the scan loop, then
// the cache database.
func (s *Session) Stop() {
	s.stopMonitor()
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	if s.store.Unlocked() {
		if err := s.store.Save(); err != nil {
			log.Session.Warn().Err(err).Msg("Final save failed")
		}
		s.store.Lock()
	}
	if s.db != nil {
		s.db.Close()
	}
	log.Session.Info().Msg("Session stopped")
}

func (s *Session) runScanLoop() {
	ticker := time.NewTicker(s.cfg.Scan.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
		if !s.store.Unlocked() {
			continue
		}
		n := s.scanCount.Add(1)
		force := n%fullScanEvery == 0
		s.engine.Scan(force)
		s.monitor.ReconcilePending()
	}
}

// Initialize creates a fresh encrypted store with one wallet and
// starts the mempool monitor.
func (s *Session) Initialize(password, label string) (mnemonic, address string, err error) {
	mnemonic, address, err = s.store.Initialize(password, label)
	if err != nil {
		return "", "", err
	}
	s.startMonitor()
	return mnemonic, address, nil
}

// Unlock opens the store and starts the mempool monitor.
func (s *Session) Unlock(password string) error {
	if err := s.store.Unlock(password); err != nil {
		return err
	}
	s.startMonitor()
	return nil
}

// Lock stops the mempool monitor, persists and clears secrets. The
// monitor goroutine is fully stopped before key material goes away.
func (s *Session) Lock() {
	s.stopMonitor()
	if s.store.Unlocked() {
		if err := s.store.Save(); err != nil {
			log.Session.Warn().Err(err).Msg("Save before lock failed")
		}
	}
	s.store.Lock()
}

func (s *Session) startMonitor() {
	s.monitorMu.Lock()
	defer s.monitorMu.Unlock()

	if s.monitorCancel != nil {
		return
	}
	parent := s.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	s.monitorCancel = cancel
	s.monitorWG.Add(1)
	go func() {
		defer s.monitorWG.Done()
		s.monitor.Run(ctx)
	}()
}

func (s *Session) stopMonitor() {
	s.monitorMu.Lock()
	defer s.monitorMu.Unlock()

	if s.monitorCancel == nil {
		return
	}
	s.monitorCancel()
	s.monitorWG.Wait()
	s.monitorCancel = nil
}

// Exists reports whether an initialized wallet store is on disk.
func (s *Session) Exists() bool { return s.store.Exists() }

// Unlocked reports whether the store is currently open.
func (s *Session) Unlocked() bool { return s.store.Unlocked() }

// CreateWallet derives a new wallet and returns it with its mnemonic.
func (s *Session) CreateWallet(label string) (wallet.Info, string, error) {
	return s.store.Create(label)
}

// ImportWallet adds a wallet from a hex private key.
func (s *Session) ImportWallet(privHex, label string) (wallet.Info, error) {
	return s.store.Import(privHex, label)
}

// ExportWallet returns the hex private key for an address.
func (s *Session) ExportWallet(address string) (string, error) {
	return s.store.Export(address)
}

// Send transfers amount from the primary wallet.
func (s *Session) Send(to string, amount float64, memo string) (*wallet.TransactionRecord, error) {
	return s.submitter.Send(to, amount, memo)
}

// ScanNow runs a scan immediately and reconciles pending sends.
func (s *Session) ScanNow(force bool) bool {
	ok := s.engine.Scan(force)
	s.monitor.ReconcilePending()
	return ok
}

// WalletInfo returns secret-free snapshots of all wallets.
func (s *Session) WalletInfo() []wallet.Info {
	return s.store.Wallets()
}

// History returns a wallet's transaction records, newest first.
func (s *Session) History(address string) ([]wallet.TransactionRecord, error) {
	txs, err := s.store.Transactions(address)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Timestamp > txs[j].Timestamp
	})
	return txs, nil
}

// PendingEntries returns the outstanding send list.
func (s *Session) PendingEntries() []wallet.PendingEntry {
	return s.store.PendingEntries()
}

// Mempool fetches the node's current unconfirmed transactions.
func (s *Session) Mempool() ([]ledger.Transaction, error) {
	return s.client.Mempool()
}

// Height returns the current chain height from the node.
func (s *Session) Height() (uint64, error) {
	return s.client.Height()
}

// TestConnection reports whether the configured node is reachable.
func (s *Session) TestConnection() bool {
	return s.client.Health()
}

package scan

import (
	"errors"
	"fmt"
	"testing"

	"github.com/luna-coin/luna-wallet/internal/cache"
	"github.com/luna-coin/luna-wallet/internal/ledger"
	"github.com/luna-coin/luna-wallet/internal/storage"
	"github.com/luna-coin/luna-wallet/internal/wallet"
)

type fakeLedger struct {
	chain      []ledger.Block
	heightErr  error
	rangeCalls int
}

func (f *fakeLedger) Height() (uint64, error) {
	if f.heightErr != nil {
		return 0, f.heightErr
	}
	if len(f.chain) == 0 {
		return 0, nil
	}
	return f.chain[len(f.chain)-1].Index, nil
}

func (f *fakeLedger) BlockRange(start, end uint64) ([]ledger.Block, error) {
	f.rangeCalls++
	var out []ledger.Block
	for _, blk := range f.chain {
		if blk.Index >= start && blk.Index <= end {
			out = append(out, blk)
		}
	}
	return out, nil
}

type recEvents struct {
	balanceChanged int
	txReceived     int
	syncComplete   int
	errors         []string
	progress       []int
}

func (r *recEvents) BalanceChanged()      { r.balanceChanged++ }
func (r *recEvents) TransactionReceived() { r.txReceived++ }
func (r *recEvents) SyncProgress(p int, _ string) {
	r.progress = append(r.progress, p)
}
func (r *recEvents) SyncComplete()    { r.syncComplete++ }
func (r *recEvents) Error(msg string) { r.errors = append(r.errors, msg) }

func testStore(t *testing.T) (*wallet.Store, string) {
	t.Helper()
	s := wallet.NewStore(t.TempDir())
	_, addr, err := s.Initialize("pw", "Test")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return s, addr
}

// buildChain creates a chain where the wallet mines block 1 and
// receives a transfer in block 3.
func buildChain(addr string, length int) []ledger.Block {
	chain := make([]ledger.Block, length)
	for i := range chain {
		chain[i] = ledger.Block{
			Index:     uint64(i),
			Hash:      fmt.Sprintf("blk%d", i),
			Timestamp: float64(1700000000 + i*60),
			Miner:     "LUN_somebody_else",
			Reward:    10,
		}
	}
	if length > 1 {
		chain[1].Miner = addr
	}
	if length > 3 {
		chain[3].Transactions = []ledger.Transaction{
			{Hash: "in1", Sender: "LUN_other", Receiver: addr, Amount: 2.5, Timestamp: chain[3].Timestamp},
			{Hash: "unrelated", Sender: "LUN_x", Receiver: "LUN_y", Amount: 9},
		}
	}
	return chain
}

func quickConfig() Config {
	cfg := DefaultConfig()
	cfg.BatchDelay = 0
	return cfg
}

func TestScanFoldsRewardsAndTransfers(t *testing.T) {
	store, addr := testStore(t)
	fl := &fakeLedger{chain: buildChain(addr, 5)}
	ev := &recEvents{}
	eng := New(fl, nil, store, ev, quickConfig())

	if !eng.Scan(false) {
		t.Fatal("Scan returned false")
	}

	txs, err := store.Transactions(addr)
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("got %d records, want 2 (reward + incoming): %+v", len(txs), txs)
	}

	wantReward := fmt.Sprintf("reward_1_%s", addr)
	var sawReward, sawIncoming bool
	for _, tx := range txs {
		switch tx.Hash {
		case wantReward:
			sawReward = true
			if tx.Type != wallet.TypeReward || tx.From != wallet.NetworkSender {
				t.Errorf("reward record wrong: %+v", tx)
			}
		case "in1":
			sawIncoming = true
			if tx.Status != wallet.StatusConfirmed || tx.BlockHeight == nil || *tx.BlockHeight != 3 {
				t.Errorf("incoming record wrong: %+v", tx)
			}
		}
	}
	if !sawReward || !sawIncoming {
		t.Errorf("missing records: reward=%v incoming=%v", sawReward, sawIncoming)
	}

	info := store.Wallets()[0]
	if info.Balance != 12.5 {
		t.Errorf("balance = %v, want 12.5", info.Balance)
	}
	if ev.balanceChanged == 0 || ev.txReceived == 0 || ev.syncComplete != 1 {
		t.Errorf("events: %+v", ev)
	}
}

func TestScanIsIdempotent(t *testing.T) {
	store, addr := testStore(t)
	fl := &fakeLedger{chain: buildChain(addr, 5)}
	eng := New(fl, nil, store, wallet.NopEvents{}, quickConfig())

	eng.Scan(false)
	first, _ := store.Transactions(addr)
	balance := store.Wallets()[0].Balance

	// A forced full scan re-reads everything but must add nothing.
	eng.Scan(true)
	second, _ := store.Transactions(addr)
	if len(second) != len(first) {
		t.Errorf("record count changed on rescan: %d -> %d", len(first), len(second))
	}
	if got := store.Wallets()[0].Balance; got != balance {
		t.Errorf("balance changed on rescan: %v -> %v", balance, got)
	}
}

func TestScanAdvancesCheckpoint(t *testing.T) {
	store, addr := testStore(t)
	fl := &fakeLedger{chain: buildChain(addr, 5)}
	eng := New(fl, nil, store, wallet.NopEvents{}, quickConfig())

	eng.Scan(false)
	cp, ok := store.Checkpoint(addr)
	if !ok || cp.LastScannedHeight != 4 {
		t.Fatalf("checkpoint = %+v, ok=%v, want height 4", cp, ok)
	}

	// Nothing new: the next incremental scan fetches no ranges.
	calls := fl.rangeCalls
	eng.Scan(false)
	if fl.rangeCalls != calls {
		t.Errorf("rangeCalls grew from %d to %d with no new blocks", calls, fl.rangeCalls)
	}

	// Chain grows; only the gap is fetched.
	fl.chain = buildChain(addr, 8)
	eng.Scan(false)
	cp, _ = store.Checkpoint(addr)
	if cp.LastScannedHeight != 7 {
		t.Errorf("checkpoint = %d, want 7", cp.LastScannedHeight)
	}
}

func TestScanCapsBlocksPerPass(t *testing.T) {
	store, addr := testStore(t)
	fl := &fakeLedger{chain: buildChain(addr, 1200)}
	cfg := quickConfig()
	eng := New(fl, nil, store, wallet.NopEvents{}, cfg)

	eng.Scan(false)
	cp, _ := store.Checkpoint(addr)
	if cp.LastScannedHeight != cfg.MaxBlocksPerScan-1 {
		t.Fatalf("first pass checkpoint = %d, want %d", cp.LastScannedHeight, cfg.MaxBlocksPerScan-1)
	}

	eng.Scan(false)
	cp, _ = store.Checkpoint(addr)
	if cp.LastScannedHeight != 2*cfg.MaxBlocksPerScan-1 {
		t.Fatalf("second pass checkpoint = %d, want %d", cp.LastScannedHeight, 2*cfg.MaxBlocksPerScan-1)
	}

	eng.Scan(false)
	cp, _ = store.Checkpoint(addr)
	if cp.LastScannedHeight != 1199 {
		t.Fatalf("third pass checkpoint = %d, want 1199 (tip)", cp.LastScannedHeight)
	}
}

func TestScanReportsHeightFailure(t *testing.T) {
	store, _ := testStore(t)
	fl := &fakeLedger{heightErr: errors.New("node down")}
	ev := &recEvents{}
	eng := New(fl, nil, store, ev, quickConfig())

	if eng.Scan(false) {
		t.Error("Scan should fail when height is unavailable")
	}
	if len(ev.errors) != 1 {
		t.Errorf("errors = %v, want one", ev.errors)
	}
}

func TestScanLockedStore(t *testing.T) {
	store, _ := testStore(t)
	store.Lock()
	eng := New(&fakeLedger{}, nil, store, wallet.NopEvents{}, quickConfig())
	if eng.Scan(false) {
		t.Error("Scan on locked store should return false")
	}
}

func TestScanUsesCache(t *testing.T) {
	store, addr := testStore(t)
	cs := cache.New(storage.NewMemory())
	fl := &fakeLedger{chain: buildChain(addr, 5)}
	eng := New(fl, cs, store, wallet.NopEvents{}, quickConfig())

	eng.Scan(false)
	networkCalls := fl.rangeCalls
	if networkCalls == 0 {
		t.Fatal("first scan should hit the network")
	}
	if cs.HighestHeight() != 4 {
		t.Errorf("cache HighestHeight = %d, want 4", cs.HighestHeight())
	}

	// A forced full rescan is served entirely from the cache.
	eng.Scan(true)
	if fl.rangeCalls != networkCalls {
		t.Errorf("full rescan hit the network: %d -> %d calls", networkCalls, fl.rangeCalls)
	}
}

func TestScanConfirmsMempoolFirstTransfer(t *testing.T) {
	store, addr := testStore(t)
	fl := &fakeLedger{chain: buildChain(addr, 5)}
	eng := New(fl, nil, store, wallet.NopEvents{}, quickConfig())

	// The mempool monitor saw the incoming transfer before any block did.
	store.AddTransaction(addr, wallet.TransactionRecord{
		Hash:      "in1",
		Type:      wallet.TypeTransfer,
		From:      "LUN_other",
		To:        addr,
		Amount:    2.5,
		Timestamp: 1700000180,
		Status:    wallet.StatusPending,
	})

	eng.Scan(false)

	txs, _ := store.Transactions(addr)
	count := 0
	for _, tx := range txs {
		if tx.Hash != "in1" {
			continue
		}
		count++
		if tx.Status != wallet.StatusConfirmed {
			t.Errorf("status = %q, want confirmed after block arrival", tx.Status)
		}
		if tx.BlockHeight == nil || *tx.BlockHeight != 3 {
			t.Errorf("block height = %v, want 3", tx.BlockHeight)
		}
	}
	if count != 1 {
		t.Fatalf("got %d records for in1, want exactly 1", count)
	}
	if got := store.Wallets()[0].Balance; got != 12.5 {
		t.Errorf("balance = %v, want 12.5", got)
	}
}

func TestScanFoldsCachedMempool(t *testing.T) {
	store, addr := testStore(t)
	cs := cache.New(storage.NewMemory())
	cs.SaveMempoolTx(ledger.Transaction{
		Hash: "pend1", Sender: "LUN_other", Receiver: addr, Amount: 1.25,
	}, addr)

	fl := &fakeLedger{chain: buildChain(addr, 2)}
	eng := New(fl, cs, store, wallet.NopEvents{}, quickConfig())
	eng.Scan(false)

	txs, _ := store.Transactions(addr)
	var found *wallet.TransactionRecord
	for i := range txs {
		if txs[i].Hash == "pend1" {
			found = &txs[i]
		}
	}
	if found == nil {
		t.Fatal("cached mempool tx not folded in")
	}
	if found.Status != wallet.StatusPending {
		t.Errorf("status = %q, want pending", found.Status)
	}
}

package send

import (
	"errors"
	"testing"

	"github.com/luna-coin/luna-wallet/internal/ledger"
	"github.com/luna-coin/luna-wallet/internal/wallet"
)

type fakeBroadcaster struct {
	submitted []*ledger.Transaction
	err       error
}

func (f *fakeBroadcaster) Submit(tx *ledger.Transaction) error {
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, tx)
	return nil
}

type fakeWatcher struct {
	hashes []string
}

func (f *fakeWatcher) Watch(hash string) { f.hashes = append(f.hashes, hash) }

// fundedStore returns an unlocked store whose primary wallet has a
// confirmed balance of 10.
func fundedStore(t *testing.T) (*wallet.Store, string) {
	t.Helper()
	s := wallet.NewStore(t.TempDir())
	_, addr, err := s.Initialize("pw", "Test")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	h := uint64(1)
	s.AddTransaction(addr, wallet.TransactionRecord{
		Hash: "seed", Type: wallet.TypeReward, From: wallet.NetworkSender, To: addr,
		Amount: 10, Status: wallet.StatusConfirmed, BlockHeight: &h,
	})
	if _, _, err := s.RecomputeBalance(addr); err != nil {
		t.Fatalf("RecomputeBalance: %v", err)
	}
	return s, addr
}

func newSubmitter(t *testing.T) (*Submitter, *fakeBroadcaster, *fakeWatcher, *wallet.Store, string) {
	t.Helper()
	store, addr := fundedStore(t)
	b := &fakeBroadcaster{}
	w := &fakeWatcher{}
	sub := New(b, store, nil, w, wallet.NopEvents{}, DefaultConfig())
	return sub, b, w, store, addr
}

func TestSend(t *testing.T) {
	sub, b, w, store, addr := newSubmitter(t)

	rec, err := sub.Send("LUN_dest", 2.5, "coffee")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if rec.Hash == "" || rec.Status != wallet.StatusPending {
		t.Errorf("record = %+v", rec)
	}

	if len(b.submitted) != 1 {
		t.Fatalf("submitted %d transactions, want 1", len(b.submitted))
	}
	tx := b.submitted[0]
	if tx.From != addr || tx.To != "LUN_dest" || tx.Amount != 2.5 {
		t.Errorf("broadcast tx wrong: %+v", tx)
	}
	if tx.Fee != DefaultConfig().Fee {
		t.Errorf("fee = %v, want %v", tx.Fee, DefaultConfig().Fee)
	}
	if tx.Signature == "" || tx.Nonce == 0 {
		t.Errorf("tx missing signature or nonce: %+v", tx)
	}

	if got := store.Wallets()[0].PendingSend; got != 2.5 {
		t.Errorf("PendingSend = %v, want 2.5", got)
	}
	if len(store.PendingEntries()) != 1 {
		t.Errorf("pending entries = %d, want 1", len(store.PendingEntries()))
	}
	if len(w.hashes) != 1 || w.hashes[0] != rec.Hash {
		t.Errorf("watched hashes = %v", w.hashes)
	}
	txs, _ := store.Transactions(addr)
	if len(txs) != 2 {
		t.Errorf("history length = %d, want 2 (seed + send)", len(txs))
	}
}

func TestSend_InsufficientIncludingFee(t *testing.T) {
	sub, b, _, _, _ := newSubmitter(t)

	// Balance is exactly 10; amount 10 fails because the fee tips it over.
	_, err := sub.Send("LUN_dest", 10, "")
	var ife *InsufficientFundsError
	if !errors.As(err, &ife) {
		t.Fatalf("err = %v, want *InsufficientFundsError", err)
	}
	if ife.Available != 10 || ife.Required != 10.00001 {
		t.Errorf("error figures = %+v", ife)
	}
	if len(b.submitted) != 0 {
		t.Error("nothing should have been broadcast")
	}
}

func TestSend_DuplicateWindow(t *testing.T) {
	sub, _, _, _, _ := newSubmitter(t)

	if _, err := sub.Send("LUN_dest", 1, ""); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	_, err := sub.Send("LUN_dest", 1, "")
	if !errors.Is(err, ErrDuplicateSend) {
		t.Errorf("second identical Send err = %v, want ErrDuplicateSend", err)
	}

	// A different amount is a different transfer.
	if _, err := sub.Send("LUN_dest", 1.5, ""); err != nil {
		t.Errorf("different-amount Send: %v", err)
	}
}

func TestSend_BroadcastRejectionLeavesStateAlone(t *testing.T) {
	sub, b, _, store, addr := newSubmitter(t)
	b.err = &ledger.SubmitError{Status: 400, Body: "bad tx"}

	_, err := sub.Send("LUN_dest", 1, "")
	if err == nil {
		t.Fatal("Send should fail when broadcast is rejected")
	}

	if got := store.Wallets()[0].PendingSend; got != 0 {
		t.Errorf("PendingSend = %v, want 0", got)
	}
	if len(store.PendingEntries()) != 0 {
		t.Errorf("pending entries = %d, want 0", len(store.PendingEntries()))
	}
	txs, _ := store.Transactions(addr)
	if len(txs) != 1 {
		t.Errorf("history length = %d, want 1 (seed only)", len(txs))
	}
}

func TestSend_Validation(t *testing.T) {
	sub, _, _, store, addr := newSubmitter(t)

	if _, err := sub.Send("", 1, ""); err == nil {
		t.Error("empty destination should fail")
	}
	if _, err := sub.Send("LUN_dest", 0, ""); err == nil {
		t.Error("zero amount should fail")
	}
	if _, err := sub.Send("LUN_dest", -2, ""); err == nil {
		t.Error("negative amount should fail")
	}
	if _, err := sub.Send(addr, 1, ""); err == nil {
		t.Error("self-send should fail")
	}

	store.Lock()
	if _, err := sub.Send("LUN_dest", 1, ""); !errors.Is(err, wallet.ErrLocked) {
		t.Errorf("locked store err = %v, want ErrLocked", err)
	}
}

// Package wallet holds the wallet data model and the encrypted store
// that owns it: addresses and key material, confirmed transaction
// history, pending sends and per-address scan checkpoints.
package wallet

import "strings"

// Transaction types.
const (
	TypeTransfer = "transfer"
	TypeReward   = "reward"
)

// Transaction statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// NetworkSender is the synthetic sender recorded for block rewards.
const NetworkSender = "network"

// TransactionRecord is one confirmed or pending movement against a
// wallet. Records are appended and never deleted; only Status and
// BlockHeight flip once the network settles the transaction.
type TransactionRecord struct {
	Hash        string  `json:"hash"`
	Type        string  `json:"type"`
	From        string  `json:"from"`
	To          string  `json:"to"`
	Amount      float64 `json:"amount"`
	Fee         float64 `json:"fee"`
	Timestamp   float64 `json:"timestamp"`
	BlockHeight *uint64 `json:"block_height,omitempty"`
	Status      string  `json:"status"`
	Memo        string  `json:"memo,omitempty"`
}

// PendingEntry tracks an outgoing send awaiting confirmation. Entries
// are global across wallets and reconciled against recent blocks.
type PendingEntry struct {
	Hash      string  `json:"hash"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Amount    float64 `json:"amount"`
	Status    string  `json:"status"`
	Timestamp float64 `json:"timestamp"`
}

// ScanCheckpoint records how far a wallet address has been scanned.
type ScanCheckpoint struct {
	LastScannedHeight uint64  `json:"last_scanned_height"`
	LastScanTime      float64 `json:"last_scan_time"`
	ScanType          string  `json:"scan_type"`
}

// Scan types recorded in checkpoints.
const (
	ScanFull        = "full"
	ScanIncremental = "incremental"
)

// Wallet is one controlled address with its history and balances.
// Amounts are in ledger units. PrivateKey is hex of the 32-byte
// secp256k1 scalar and is present only while the store is unlocked.
type Wallet struct {
	Address      string              `json:"address"`
	Label        string              `json:"label"`
	PublicKey    string              `json:"public_key"`
	PrivateKey   string              `json:"private_key,omitempty"`
	Balance      float64             `json:"balance"`
	PendingSend  float64             `json:"pending_send"`
	Transactions []TransactionRecord `json:"transactions"`
	CreatedAt    float64             `json:"created_at"`
}

// Available is the amount offered for a new send: confirmed balance
// minus what is already reserved against unconfirmed outgoing sends.
func (w *Wallet) Available() float64 {
	avail := w.Balance - w.PendingSend
	if avail < 0 {
		return 0
	}
	return avail
}

// HasTransaction reports whether a record with the given hash exists.
func (w *Wallet) HasTransaction(hash string) bool {
	for i := range w.Transactions {
		if w.Transactions[i].Hash == hash {
			return true
		}
	}
	return false
}

// addTransaction appends rec unless its hash is already present.
// Reports whether the record was added.
func (w *Wallet) addTransaction(rec TransactionRecord) bool {
	if w.HasTransaction(rec.Hash) {
		return false
	}
	w.Transactions = append(w.Transactions, rec)
	return true
}

// confirmedBalance replays the full confirmed history: rewards and
// incoming transfers add, outgoing transfers subtract amount plus fee.
// A negative result is clamped to zero; the caller decides how loudly.
func (w *Wallet) confirmedBalance() (balance float64, clamped bool) {
	for i := range w.Transactions {
		rec := &w.Transactions[i]
		if rec.Status != StatusConfirmed {
			continue
		}
		switch {
		case rec.Type == TypeReward && SameAddress(rec.To, w.Address):
			balance += rec.Amount
		case SameAddress(rec.From, w.Address):
			balance -= rec.Amount + rec.Fee
		case SameAddress(rec.To, w.Address):
			balance += rec.Amount
		}
	}
	if balance < 0 {
		return 0, true
	}
	return balance, false
}

// SameAddress compares two addresses case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}

// Info is a secret-free snapshot of a wallet for display layers.
type Info struct {
	Address     string  `json:"address"`
	Label       string  `json:"label"`
	PublicKey   string  `json:"public_key"`
	Balance     float64 `json:"balance"`
	PendingSend float64 `json:"pending_send"`
	Available   float64 `json:"available"`
	TxCount     int     `json:"tx_count"`
	CreatedAt   float64 `json:"created_at"`
}

func (w *Wallet) info() Info {
	return Info{
		Address:     w.Address,
		Label:       w.Label,
		PublicKey:   w.PublicKey,
		Balance:     w.Balance,
		PendingSend: w.PendingSend,
		Available:   w.Available(),
		TxCount:     len(w.Transactions),
		CreatedAt:   w.CreatedAt,
	}
}

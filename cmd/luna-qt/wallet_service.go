package main

import (
	"fmt"

	"github.com/luna-coin/luna-wallet/internal/session"
	"github.com/luna-coin/luna-wallet/internal/wallet"
)

// WalletService exposes wallet operations to the frontend. Everything
// proxies through the session; no key material crosses this boundary
// except explicit exports.
type WalletService struct {
	app *App
}

// StatusInfo describes the store state for the frontend shell.
type StatusInfo struct {
	Initialized bool `json:"initialized"`
	Unlocked    bool `json:"unlocked"`
	Wallets     int  `json:"wallets"`
}

// InitResult is returned after first-time setup.
type InitResult struct {
	Mnemonic string `json:"mnemonic"`
	Address  string `json:"address"`
}

// CreateResult is returned after creating an additional wallet.
type CreateResult struct {
	Wallet   wallet.Info `json:"wallet"`
	Mnemonic string      `json:"mnemonic"`
}

// SendRequest holds the parameters for sending a transaction.
type SendRequest struct {
	ToAddress string `json:"to_address"`
	Amount    string `json:"amount"`
	Memo      string `json:"memo"`
}

// SendResult is returned after a transaction is accepted.
type SendResult struct {
	TxHash string `json:"tx_hash"`
}

// Status reports whether the store exists and is unlocked.
func (s *WalletService) Status() StatusInfo {
	sess := s.app.session
	if sess == nil {
		return StatusInfo{}
	}
	return StatusInfo{
		Initialized: sess.Exists(),
		Unlocked:    sess.Unlocked(),
		Wallets:     len(sess.WalletInfo()),
	}
}

// Initialize creates the encrypted store with its first wallet.
func (s *WalletService) Initialize(password, label string) (*InitResult, error) {
	sess, err := s.session()
	if err != nil {
		return nil, err
	}
	mnemonic, addr, err := sess.Initialize(password, label)
	if err != nil {
		return nil, err
	}
	return &InitResult{Mnemonic: mnemonic, Address: addr}, nil
}

// Unlock opens the store with the given password.
func (s *WalletService) Unlock(password string) error {
	sess, err := s.session()
	if err != nil {
		return err
	}
	return sess.Unlock(password)
}

// Lock closes the store and wipes secrets.
func (s *WalletService) Lock() error {
	sess, err := s.session()
	if err != nil {
		return err
	}
	sess.Lock()
	return nil
}

// Wallets returns secret-free snapshots of all wallets.
func (s *WalletService) Wallets() ([]wallet.Info, error) {
	sess, err := s.session()
	if err != nil {
		return nil, err
	}
	return sess.WalletInfo(), nil
}

// Create derives an additional wallet.
func (s *WalletService) Create(label string) (*CreateResult, error) {
	sess, err := s.session()
	if err != nil {
		return nil, err
	}
	info, mnemonic, err := sess.CreateWallet(label)
	if err != nil {
		return nil, err
	}
	return &CreateResult{Wallet: info, Mnemonic: mnemonic}, nil
}

// Import adds a wallet from a hex private key.
func (s *WalletService) Import(privHex, label string) (*wallet.Info, error) {
	sess, err := s.session()
	if err != nil {
		return nil, err
	}
	info, err := sess.ImportWallet(privHex, label)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// Export returns the hex private key for an address.
func (s *WalletService) Export(address string) (string, error) {
	sess, err := s.session()
	if err != nil {
		return "", err
	}
	return sess.ExportWallet(address)
}

// Send transfers funds from the primary wallet.
func (s *WalletService) Send(req SendRequest) (*SendResult, error) {
	sess, err := s.session()
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	rec, err := sess.Send(req.ToAddress, amount, req.Memo)
	if err != nil {
		return nil, err
	}
	return &SendResult{TxHash: rec.Hash}, nil
}

// History returns a wallet's transaction records, newest first.
func (s *WalletService) History(address string) ([]wallet.TransactionRecord, error) {
	sess, err := s.session()
	if err != nil {
		return nil, err
	}
	return sess.History(address)
}

// ScanNow triggers an immediate scan; force rescans from genesis.
func (s *WalletService) ScanNow(force bool) (bool, error) {
	sess, err := s.session()
	if err != nil {
		return false, err
	}
	return sess.ScanNow(force), nil
}

func (s *WalletService) session() (*session.Session, error) {
	if s.app.session == nil {
		return nil, fmt.Errorf("session not ready")
	}
	return s.app.session, nil
}

package wallet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// On-disk names under the store directory.
const (
	walletFileName    = "wallet.dat"
	pendingFileName   = "pending.json"
	scanStateFileName = "scan-state.json"
)

// walletFile is the plaintext layout inside the encrypted wallet.dat.
type walletFile struct {
	Version int       `json:"version"`
	Wallets []*Wallet `json:"wallets"`
}

type pendingFile struct {
	Pending []*PendingEntry `json:"pending"`
}

type scanStateFile struct {
	Wallets      map[string]*ScanCheckpoint `json:"wallets"`
	LastFullScan float64                    `json:"last_full_scan"`
}

func (s *Store) walletPath() string    { return filepath.Join(s.dir, walletFileName) }
func (s *Store) pendingPath() string   { return filepath.Join(s.dir, pendingFileName) }
func (s *Store) scanStatePath() string { return filepath.Join(s.dir, scanStateFileName) }

// saveLocked persists everything. Caller holds the write lock.
func (s *Store) saveLocked() error {
	if !s.unlocked {
		return ErrLocked
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("create wallet dir: %w", err)
	}

	plain, err := json.Marshal(&walletFile{Version: 1, Wallets: s.wallets})
	if err != nil {
		return fmt.Errorf("marshal wallets: %w", err)
	}
	encrypted, err := Encrypt(plain, s.password, DefaultParams())
	for i := range plain {
		plain[i] = 0
	}
	if err != nil {
		return fmt.Errorf("encrypt wallets: %w", err)
	}
	if err := writeFileAtomic(s.walletPath(), encrypted, 0600); err != nil {
		return fmt.Errorf("write wallet file: %w", err)
	}

	if err := s.savePendingLocked(); err != nil {
		return err
	}
	return s.saveScanStateLocked()
}

func (s *Store) savePendingLocked() error {
	data, err := json.MarshalIndent(&pendingFile{Pending: s.pending}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pending: %w", err)
	}
	if err := writeFileAtomic(s.pendingPath(), data, 0600); err != nil {
		return fmt.Errorf("write pending file: %w", err)
	}
	return nil
}

func (s *Store) saveScanStateLocked() error {
	state := scanStateFile{
		Wallets:      s.checkpoints,
		LastFullScan: s.lastFullScan,
	}
	data, err := json.MarshalIndent(&state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal scan state: %w", err)
	}
	if err := writeFileAtomic(s.scanStatePath(), data, 0600); err != nil {
		return fmt.Errorf("write scan state: %w", err)
	}
	return nil
}

func (s *Store) loadWallets(password []byte) ([]*Wallet, error) {
	encrypted, err := os.ReadFile(s.walletPath())
	if err != nil {
		return nil, fmt.Errorf("read wallet file: %w", err)
	}
	plain, err := Decrypt(encrypted, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPassword, err)
	}
	defer func() {
		for i := range plain {
			plain[i] = 0
		}
	}()

	var wf walletFile
	if err := json.Unmarshal(plain, &wf); err != nil {
		return nil, fmt.Errorf("parse wallet file: %w", err)
	}
	if wf.Version != 1 {
		return nil, fmt.Errorf("unsupported wallet file version: %d", wf.Version)
	}
	for _, w := range wf.Wallets {
		if w.Transactions == nil {
			w.Transactions = []TransactionRecord{}
		}
	}
	return wf.Wallets, nil
}

func (s *Store) loadPending() error {
	data, err := os.ReadFile(s.pendingPath())
	if os.IsNotExist(err) {
		s.pending = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("read pending file: %w", err)
	}
	var pf pendingFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("parse pending file: %w", err)
	}
	s.pending = pf.Pending
	return nil
}

func (s *Store) loadScanState() error {
	data, err := os.ReadFile(s.scanStatePath())
	if os.IsNotExist(err) {
		s.checkpoints = make(map[string]*ScanCheckpoint)
		s.lastFullScan = 0
		return nil
	}
	if err != nil {
		return fmt.Errorf("read scan state: %w", err)
	}
	var sf scanStateFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("parse scan state: %w", err)
	}
	s.checkpoints = make(map[string]*ScanCheckpoint, len(sf.Wallets))
	for addr, cp := range sf.Wallets {
		s.checkpoints[strings.ToLower(addr)] = cp
	}
	s.lastFullScan = sf.LastFullScan
	return nil
}

// writeFileAtomic writes data to a temp file in the target directory
// and renames it into place, so readers never observe a partial file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

package wallet

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/luna-coin/luna-wallet/internal/log"
)

// Sentinel errors for lifecycle misuse.
var (
	ErrLocked         = errors.New("wallet store is locked")
	ErrAlreadyExists  = errors.New("wallet store already initialized")
	ErrNotInitialized = errors.New("wallet store not initialized")
	ErrBadPassword    = errors.New("invalid password")
	ErrUnknownAddress = errors.New("unknown wallet address")
)

// Store owns every wallet and its secrets. All state lives behind one
// RWMutex; the scan engine, mempool monitor and submitter all mutate
// through it. Secrets exist in memory only between Unlock and Lock.
type Store struct {
	mu  sync.RWMutex
	dir string

	unlocked bool
	password []byte
	keys     map[string]*KeyPair // lowercased address -> key pair

	wallets      []*Wallet
	pending      []*PendingEntry
	checkpoints  map[string]*ScanCheckpoint // lowercased address
	lastFullScan float64
}

// NewStore creates a store persisting under dir. Call Initialize for a
// fresh store or Unlock for an existing one before anything else.
func NewStore(dir string) *Store {
	return &Store{
		dir:         dir,
		keys:        make(map[string]*KeyPair),
		checkpoints: make(map[string]*ScanCheckpoint),
	}
}

// Exists reports whether an initialized wallet file is present on disk.
func (s *Store) Exists() bool {
	return fileExists(s.walletPath())
}

// Unlocked reports whether secrets are currently loaded.
func (s *Store) Unlocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unlocked
}

// Initialize creates the encrypted store with one wallet and returns
// its mnemonic for the user to back up. Fails if a store exists.
func (s *Store) Initialize(password, label string) (mnemonic string, addr string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Exists() {
		return "", "", ErrAlreadyExists
	}
	if password == "" {
		return "", "", fmt.Errorf("password must not be empty")
	}

	mnemonic, err = GenerateMnemonic()
	if err != nil {
		return "", "", err
	}
	kp, err := KeyFromMnemonic(mnemonic, "")
	if err != nil {
		return "", "", err
	}

	s.unlocked = true
	s.password = []byte(password)
	s.addWalletLocked(kp, label)

	if err := s.saveLocked(); err != nil {
		s.lockLocked()
		return "", "", err
	}
	log.Wallet.Info().Str("address", kp.Address).Msg("Wallet store initialized")
	return mnemonic, kp.Address, nil
}

// Unlock decrypts the store and loads wallets, pending sends and scan
// checkpoints into memory.
func (s *Store) Unlock(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Exists() {
		return ErrNotInitialized
	}
	if s.unlocked {
		return nil
	}

	wallets, err := s.loadWallets([]byte(password))
	if err != nil {
		return err
	}

	keys := make(map[string]*KeyPair, len(wallets))
	for _, w := range wallets {
		if w.PrivateKey == "" {
			continue
		}
		kp, err := KeyFromHex(w.PrivateKey)
		if err != nil {
			return fmt.Errorf("restore key for %s: %w", w.Address, err)
		}
		// The stored address carries the original random suffix;
		// keep it rather than the rederived one.
		kp.Address = w.Address
		keys[strings.ToLower(w.Address)] = kp
	}

	s.wallets = wallets
	s.keys = keys
	s.password = []byte(password)
	s.unlocked = true

	if err := s.loadPending(); err != nil {
		log.Wallet.Warn().Err(err).Msg("Pending list unreadable, starting empty")
		s.pending = nil
	}
	if err := s.loadScanState(); err != nil {
		log.Wallet.Warn().Err(err).Msg("Scan state unreadable, full rescan will follow")
		s.checkpoints = make(map[string]*ScanCheckpoint)
		s.lastFullScan = 0
	}

	log.Wallet.Info().Int("wallets", len(wallets)).Msg("Wallet store unlocked")
	return nil
}

// Lock zeroes key material and drops all in-memory wallet state.
func (s *Store) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockLocked()
}

func (s *Store) lockLocked() {
	for _, kp := range s.keys {
		kp.Zero()
	}
	for i := range s.password {
		s.password[i] = 0
	}
	s.keys = make(map[string]*KeyPair)
	s.password = nil
	s.wallets = nil
	s.pending = nil
	s.checkpoints = make(map[string]*ScanCheckpoint)
	s.lastFullScan = 0
	s.unlocked = false
	log.Wallet.Debug().Msg("Wallet store locked")
}

// Save persists the encrypted wallet list, pending sends and scan
// state. Each file is replaced atomically.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// Create derives a fresh wallet from a new mnemonic and persists it.
func (s *Store) Create(label string) (Info, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.unlocked {
		return Info{}, "", ErrLocked
	}
	mnemonic, err := GenerateMnemonic()
	if err != nil {
		return Info{}, "", err
	}
	kp, err := KeyFromMnemonic(mnemonic, "")
	if err != nil {
		return Info{}, "", err
	}
	w := s.addWalletLocked(kp, label)
	if err := s.saveLocked(); err != nil {
		return Info{}, "", err
	}
	log.Wallet.Info().Str("address", w.Address).Str("label", label).Msg("Wallet created")
	return w.info(), mnemonic, nil
}

// Import adds a wallet from a hex private key and persists it.
// Importing a key already present returns the existing wallet.
func (s *Store) Import(privHex, label string) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.unlocked {
		return Info{}, ErrLocked
	}
	kp, err := KeyFromHex(strings.TrimSpace(privHex))
	if err != nil {
		return Info{}, err
	}
	for _, w := range s.wallets {
		if w.PublicKey == kp.PublicKeyHex() {
			return w.info(), nil
		}
	}
	w := s.addWalletLocked(kp, label)
	if err := s.saveLocked(); err != nil {
		return Info{}, err
	}
	log.Wallet.Info().Str("address", w.Address).Msg("Wallet imported")
	return w.info(), nil
}

// Export returns the hex private key for an address.
func (s *Store) Export(address string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.unlocked {
		return "", ErrLocked
	}
	kp, ok := s.keys[strings.ToLower(address)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAddress, address)
	}
	return kp.PrivateKeyHex(), nil
}

// Sign produces a Schnorr signature over digest with the key of
// address, returning the signature and the hex public key. Secrets
// never leave the store.
func (s *Store) Sign(address string, digest []byte) (sig []byte, pubHex string, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.unlocked {
		return nil, "", ErrLocked
	}
	kp, ok := s.keys[strings.ToLower(address)]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownAddress, address)
	}
	sig, err = kp.Sign(digest)
	if err != nil {
		return nil, "", err
	}
	return sig, kp.PublicKeyHex(), nil
}

// Wallets returns secret-free snapshots of all wallets.
func (s *Store) Wallets() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]Info, 0, len(s.wallets))
	for _, w := range s.wallets {
		infos = append(infos, w.info())
	}
	return infos
}

// Primary returns the first wallet, the default for sends.
func (s *Store) Primary() (Info, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.wallets) == 0 {
		return Info{}, false
	}
	return s.wallets[0].info(), true
}

// Addresses returns all owned addresses, lowercased.
func (s *Store) Addresses() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addrs := make([]string, 0, len(s.wallets))
	for _, w := range s.wallets {
		addrs = append(addrs, strings.ToLower(w.Address))
	}
	return addrs
}

// Transactions returns a copy of the transaction list for an address.
func (s *Store) Transactions(address string) ([]TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w := s.findLocked(address)
	if w == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAddress, address)
	}
	out := make([]TransactionRecord, len(w.Transactions))
	copy(out, w.Transactions)
	return out, nil
}

// AddTransaction appends rec to the wallet's history unless the hash
// is already present. Reports whether the record was added.
func (s *Store) AddTransaction(address string, rec TransactionRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.findLocked(address)
	if w == nil {
		return false
	}
	return w.addTransaction(rec)
}

// MarkTransaction flips the status (and optionally block height) of an
// existing record. Reports whether a record was updated.
func (s *Store) MarkTransaction(address, hash, status string, height *uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.findLocked(address)
	if w == nil {
		return false
	}
	for i := range w.Transactions {
		if w.Transactions[i].Hash != hash {
			continue
		}
		w.Transactions[i].Status = status
		if height != nil {
			w.Transactions[i].BlockHeight = height
		}
		return true
	}
	return false
}

// RecomputeBalance replays the wallet's confirmed history and stores
// the result. Returns the old and new balances; a negative result is
// clamped to zero with a warning.
func (s *Store) RecomputeBalance(address string) (old, now float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.findLocked(address)
	if w == nil {
		return 0, 0, fmt.Errorf("%w: %s", ErrUnknownAddress, address)
	}
	old = w.Balance
	balance, clamped := w.confirmedBalance()
	if clamped {
		log.Wallet.Warn().
			Str("address", w.Address).
			Msg("Computed balance was negative, clamping to zero")
	}
	w.Balance = balance
	return old, balance, nil
}

// Reserve adds amount to the wallet's pending-send reservation.
func (s *Store) Reserve(address string, amount float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w := s.findLocked(address); w != nil {
		w.PendingSend += amount
	}
}

// Release subtracts amount from the pending-send reservation,
// flooring at zero.
func (s *Store) Release(address string, amount float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w := s.findLocked(address); w != nil {
		w.PendingSend -= amount
		if w.PendingSend < 0 {
			w.PendingSend = 0
		}
	}
}

// AddPending records an outgoing send awaiting confirmation, deduped
// by hash. Reports whether the entry was added.
func (s *Store) AddPending(entry PendingEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.pending {
		if p.Hash == entry.Hash {
			return false
		}
	}
	e := entry
	s.pending = append(s.pending, &e)
	return true
}

// PendingEntries returns a copy of the pending send list.
func (s *Store) PendingEntries() []PendingEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]PendingEntry, 0, len(s.pending))
	for _, p := range s.pending {
		out = append(out, *p)
	}
	return out
}

// SetPendingStatus updates the status of a pending entry by hash.
func (s *Store) SetPendingStatus(hash, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.pending {
		if p.Hash == hash {
			p.Status = status
			return true
		}
	}
	return false
}

// Checkpoint returns the scan checkpoint for an address, if any.
func (s *Store) Checkpoint(address string) (ScanCheckpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.checkpoints[strings.ToLower(address)]
	if !ok {
		return ScanCheckpoint{}, false
	}
	return *cp, true
}

// SetCheckpoint records that address has been scanned through height.
func (s *Store) SetCheckpoint(address string, height uint64, scanType string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkpoints[strings.ToLower(address)] = &ScanCheckpoint{
		LastScannedHeight: height,
		LastScanTime:      float64(time.Now().Unix()),
		ScanType:          scanType,
	}
}

// LastFullScan returns the unix time of the last completed full scan.
func (s *Store) LastFullScan() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFullScan
}

// SetLastFullScan records the unix time of a completed full scan.
func (s *Store) SetLastFullScan(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFullScan = t
}

func (s *Store) findLocked(address string) *Wallet {
	for _, w := range s.wallets {
		if SameAddress(w.Address, address) {
			return w
		}
	}
	return nil
}

func (s *Store) addWalletLocked(kp *KeyPair, label string) *Wallet {
	w := &Wallet{
		Address:      kp.Address,
		Label:        label,
		PublicKey:    kp.PublicKeyHex(),
		PrivateKey:   kp.PrivateKeyHex(),
		Transactions: []TransactionRecord{},
		CreatedAt:    float64(time.Now().Unix()),
	}
	s.wallets = append(s.wallets, w)
	s.keys[strings.ToLower(w.Address)] = kp
	return w
}

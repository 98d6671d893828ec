// Package cache persists scanned blocks and recently seen mempool
// transactions so rescans avoid refetching history from the node.
package cache

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/luna-coin/luna-wallet/internal/ledger"
	"github.com/luna-coin/luna-wallet/internal/log"
	"github.com/luna-coin/luna-wallet/internal/storage"
)

// MempoolEntry is a cached unconfirmed transaction together with the
// wallet address it involves and when it was first seen.
type MempoolEntry struct {
	Tx       ledger.Transaction `json:"tx"`
	Address  string             `json:"address"`
	CachedAt float64            `json:"cached_at"`
}

// Store caches blocks by height and mempool transactions by hash on a
// shared key-value database. Blocks and mempool entries live in
// separate key namespaces.
type Store struct {
	db      storage.DB
	blocks  *storage.PrefixDB
	mempool *storage.PrefixDB
}

// New creates a cache store over db. The caller owns db's lifecycle.
func New(db storage.DB) *Store {
	return &Store{
		db:      db,
		blocks:  storage.NewPrefixDB(db, []byte("blk/")),
		mempool: storage.NewPrefixDB(db, []byte("mp/")),
	}
}

// heightKey encodes a block height big-endian so keys sort by height.
func heightKey(height uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, height)
	return key
}

// SaveBlock stores a block keyed by its height.
func (s *Store) SaveBlock(blk *ledger.Block) error {
	data, err := json.Marshal(blk)
	if err != nil {
		return fmt.Errorf("marshal block %d: %w", blk.Index, err)
	}
	if err := s.blocks.Put(heightKey(blk.Index), data); err != nil {
		return fmt.Errorf("cache block %d: %w", blk.Index, err)
	}
	return nil
}

// SaveBlocks stores a batch of blocks. Stops at the first error.
func (s *Store) SaveBlocks(blocks []ledger.Block) error {
	for i := range blocks {
		if err := s.SaveBlock(&blocks[i]); err != nil {
			return err
		}
	}
	return nil
}

// Block retrieves a cached block by height.
func (s *Store) Block(height uint64) (*ledger.Block, bool) {
	data, err := s.blocks.Get(heightKey(height))
	if err != nil {
		return nil, false
	}
	var blk ledger.Block
	if err := json.Unmarshal(data, &blk); err != nil {
		log.Cache.Warn().Err(err).Uint64("height", height).Msg("Corrupt cached block, dropping")
		s.blocks.Delete(heightKey(height))
		return nil, false
	}
	return &blk, true
}

// Blocks returns cached blocks for heights in [start, end] along with
// the heights that were not found, in ascending order.
func (s *Store) Blocks(start, end uint64) ([]ledger.Block, []uint64) {
	var found []ledger.Block
	var missing []uint64
	for h := start; h <= end; h++ {
		blk, ok := s.Block(h)
		if !ok {
			missing = append(missing, h)
			continue
		}
		found = append(found, *blk)
	}
	return found, missing
}

// HighestHeight returns the highest cached block height, or -1 when
// the cache holds no blocks.
func (s *Store) HighestHeight() int64 {
	highest := int64(-1)
	s.blocks.ForEach(nil, func(key, _ []byte) error {
		if len(key) != 8 {
			return nil
		}
		h := int64(binary.BigEndian.Uint64(key))
		if h > highest {
			highest = h
		}
		return nil
	})
	return highest
}

// SaveMempoolTx caches an unconfirmed transaction involving address.
// Re-saving an already cached hash refreshes the entry but keeps the
// original first-seen time.
func (s *Store) SaveMempoolTx(tx ledger.Transaction, address string) error {
	if tx.Hash == "" {
		return fmt.Errorf("mempool transaction has no hash")
	}
	cachedAt := float64(time.Now().Unix())
	if prev, ok := s.MempoolTx(tx.Hash); ok {
		cachedAt = prev.CachedAt
	}
	entry := MempoolEntry{Tx: tx, Address: address, CachedAt: cachedAt}
	data, err := json.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("marshal mempool entry: %w", err)
	}
	if err := s.mempool.Put([]byte(tx.Hash), data); err != nil {
		return fmt.Errorf("cache mempool tx %s: %w", tx.Hash, err)
	}
	return nil
}

// MempoolTx retrieves a cached mempool entry by transaction hash.
func (s *Store) MempoolTx(hash string) (*MempoolEntry, bool) {
	data, err := s.mempool.Get([]byte(hash))
	if err != nil {
		return nil, false
	}
	var entry MempoolEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	return &entry, true
}

// MempoolForAddress returns cached mempool entries involving address.
// Address comparison is case-insensitive.
func (s *Store) MempoolForAddress(address string) []MempoolEntry {
	var entries []MempoolEntry
	s.mempool.ForEach(nil, func(_, value []byte) error {
		var entry MempoolEntry
		if err := json.Unmarshal(value, &entry); err != nil {
			return nil
		}
		if strings.EqualFold(entry.Address, address) {
			entries = append(entries, entry)
		}
		return nil
	})
	return entries
}

// DeleteMempoolTx removes a cached mempool entry.
func (s *Store) DeleteMempoolTx(hash string) error {
	return s.mempool.Delete([]byte(hash))
}

// PurgeMempool removes cached mempool entries older than maxAge and
// returns how many were dropped.
func (s *Store) PurgeMempool(maxAge time.Duration) int {
	cutoff := float64(time.Now().Add(-maxAge).Unix())
	var stale []string
	s.mempool.ForEach(nil, func(key, value []byte) error {
		var entry MempoolEntry
		if err := json.Unmarshal(value, &entry); err != nil {
			stale = append(stale, string(key))
			return nil
		}
		if entry.CachedAt < cutoff {
			stale = append(stale, string(key))
		}
		return nil
	})
	for _, hash := range stale {
		s.mempool.Delete([]byte(hash))
	}
	if len(stale) > 0 {
		log.Cache.Debug().Int("purged", len(stale)).Msg("Purged stale mempool entries")
	}
	return len(stale)
}

// Clear drops all cached blocks and mempool entries.
func (s *Store) Clear() error {
	if err := s.blocks.DeleteAll(); err != nil {
		return fmt.Errorf("clear block cache: %w", err)
	}
	if err := s.mempool.DeleteAll(); err != nil {
		return fmt.Errorf("clear mempool cache: %w", err)
	}
	return nil
}

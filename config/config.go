// Package config handles application configuration.
//
// All settings here are client-side and operational: which node to talk
// to, how aggressively to scan, where wallet files live. Nothing in this
// package affects the remote ledger's rules.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Coin symbol and fixed transfer fee, matching the remote ledger.
const (
	Symbol = "LUN"

	// TransferFee is the flat fee charged on every outgoing transfer,
	// in ledger units.
	TransferFee = 0.00001
)

// Config holds client runtime configuration.
type Config struct {
	// Core
	DataDir string `conf:"datadir"`

	// Remote node
	Node NodeConfig

	// Blockchain scanning
	Scan ScanConfig

	// Mempool monitoring
	Mempool MempoolConfig

	// Local block/mempool cache
	Cache CacheConfig

	// Logging
	Log LogConfig
}

// NodeConfig holds settings for the remote ledger node.
type NodeConfig struct {
	URL     string        `conf:"node.url"`
	Timeout time.Duration `conf:"node.timeout"`
}

// ScanConfig holds blockchain scan tuning.
type ScanConfig struct {
	// Interval is the auto-scan period for the background loop.
	Interval time.Duration `conf:"scan.interval"`

	// BatchSize is the number of blocks fetched per network request.
	BatchSize uint64 `conf:"scan.batch"`

	// MaxBlocksPerScan caps the blocks processed per wallet per
	// invocation; the remainder is picked up on the next tick.
	MaxBlocksPerScan uint64 `conf:"scan.maxblocks"`

	// FullScanInterval forces a from-genesis rescan this often.
	FullScanInterval time.Duration `conf:"scan.fullinterval"`

	// BatchDelay is the pause between network batches.
	BatchDelay time.Duration `conf:"scan.batchdelay"`
}

// MempoolConfig holds mempool monitor tuning.
type MempoolConfig struct {
	PollInterval time.Duration `conf:"mempool.poll"`

	// FetchEveryN: fetch the remote mempool every Nth poll tick.
	FetchEveryN int `conf:"mempool.fetchevery"`

	// PurgeEveryN: purge stale cached mempool entries every Nth tick.
	PurgeEveryN int `conf:"mempool.purgeevery"`

	// CacheMaxAge is the age after which cached mempool entries are purged.
	CacheMaxAge time.Duration `conf:"mempool.cachemaxage"`

	// PendingTimeout marks an unconfirmed outgoing send as failed.
	PendingTimeout time.Duration `conf:"mempool.pendingtimeout"`

	// ConfirmLookback is how many recent blocks to check when
	// reconciling pending sends against confirmed history.
	ConfirmLookback uint64 `conf:"mempool.lookback"`

	// ErrorBackoff is the extra sleep after a failed poll.
	ErrorBackoff time.Duration `conf:"mempool.backoff"`
}

// CacheConfig holds local cache settings.
type CacheConfig struct {
	Enabled bool `conf:"cache.enabled"`

	// InMemory uses a non-persistent cache (tests, diagnostics).
	InMemory bool `conf:"cache.inmemory"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.luna-wallet
//	macOS:   ~/Library/Application Support/LunaWallet
//	Windows: %APPDATA%\LunaWallet
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".luna-wallet"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "LunaWallet")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "LunaWallet")
		}
		return filepath.Join(home, "AppData", "Roaming", "LunaWallet")
	default:
		return filepath.Join(home, ".luna-wallet")
	}
}

// WalletDir returns the wallet storage directory.
func (c *Config) WalletDir() string {
	return filepath.Join(c.DataDir, "wallet")
}

// CacheDir returns the local block cache directory.
func (c *Config) CacheDir() string {
	return filepath.Join(c.DataDir, "cache")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "luna-wallet.conf")
}

package config

import (
	"fmt"
	"net/url"
)

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir must not be empty")
	}

	u, err := url.Parse(cfg.Node.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("node.url %q is not a valid URL", cfg.Node.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("node.url scheme must be http or https")
	}
	if cfg.Node.Timeout <= 0 {
		return fmt.Errorf("node.timeout must be positive")
	}

	if cfg.Scan.BatchSize == 0 {
		return fmt.Errorf("scan.batch must be at least 1")
	}
	if cfg.Scan.MaxBlocksPerScan == 0 {
		return fmt.Errorf("scan.maxblocks must be at least 1")
	}
	if cfg.Scan.MaxBlocksPerScan < cfg.Scan.BatchSize {
		return fmt.Errorf("scan.maxblocks must be >= scan.batch")
	}
	if cfg.Scan.Interval <= 0 || cfg.Scan.FullScanInterval <= 0 {
		return fmt.Errorf("scan intervals must be positive")
	}

	if cfg.Mempool.PollInterval <= 0 {
		return fmt.Errorf("mempool.poll must be positive")
	}
	if cfg.Mempool.FetchEveryN < 1 || cfg.Mempool.PurgeEveryN < 1 {
		return fmt.Errorf("mempool.fetchevery and mempool.purgeevery must be at least 1")
	}
	if cfg.Mempool.ConfirmLookback == 0 {
		return fmt.Errorf("mempool.lookback must be at least 1")
	}
	if cfg.Mempool.PendingTimeout <= 0 || cfg.Mempool.CacheMaxAge <= 0 {
		return fmt.Errorf("mempool timeouts must be positive")
	}

	return nil
}

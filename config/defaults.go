package config

import "time"

// Default returns the default client configuration.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Node: NodeConfig{
			URL:     "https://bank.linglin.art",
			Timeout: 10 * time.Second,
		},
		Scan: ScanConfig{
			Interval:         30 * time.Second,
			BatchSize:        50,
			MaxBlocksPerScan: 500,
			FullScanInterval: time.Hour,
			BatchDelay:       50 * time.Millisecond,
		},
		Mempool: MempoolConfig{
			PollInterval:    2 * time.Second,
			FetchEveryN:     5,
			PurgeEveryN:     50,
			CacheMaxAge:     2 * time.Hour,
			PendingTimeout:  time.Hour,
			ConfirmLookback: 20,
			ErrorBackoff:    10 * time.Second,
		},
		Cache: CacheConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads client configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key = value
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a client config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	// Core
	case "datadir":
		cfg.DataDir = value

	// Node
	case "node.url", "node":
		cfg.Node.URL = value
	case "node.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Node.Timeout = d

	// Scan
	case "scan.interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Scan.Interval = d
	case "scan.batch":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Scan.BatchSize = n
	case "scan.maxblocks":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Scan.MaxBlocksPerScan = n
	case "scan.fullinterval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Scan.FullScanInterval = d
	case "scan.batchdelay":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Scan.BatchDelay = d

	// Mempool
	case "mempool.poll":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Mempool.PollInterval = d
	case "mempool.fetchevery":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Mempool.FetchEveryN = n
	case "mempool.purgeevery":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Mempool.PurgeEveryN = n
	case "mempool.cachemaxage":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Mempool.CacheMaxAge = d
	case "mempool.pendingtimeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Mempool.PendingTimeout = d
	case "mempool.lookback":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Mempool.ConfirmLookback = n
	case "mempool.backoff":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Mempool.ErrorBackoff = d

	// Cache
	case "cache.enabled", "cache":
		cfg.Cache.Enabled = parseBool(value)
	case "cache.inmemory":
		cfg.Cache.InMemory = parseBool(value)

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		return fmt.Errorf("unknown config key")
	}
	return nil
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

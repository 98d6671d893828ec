package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadFileAndApply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "luna-wallet.conf")
	content := `
# test config
node.url = http://127.0.0.1:5000
node.timeout = 5s
scan.maxblocks = 200
scan.batch = 25
mempool.fetchevery = 3
cache.inmemory = true
log.level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	cfg := Default()
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}

	if cfg.Node.URL != "http://127.0.0.1:5000" {
		t.Errorf("node.url = %q", cfg.Node.URL)
	}
	if cfg.Node.Timeout != 5*time.Second {
		t.Errorf("node.timeout = %v", cfg.Node.Timeout)
	}
	if cfg.Scan.MaxBlocksPerScan != 200 || cfg.Scan.BatchSize != 25 {
		t.Errorf("scan tuning = %d/%d", cfg.Scan.MaxBlocksPerScan, cfg.Scan.BatchSize)
	}
	if cfg.Mempool.FetchEveryN != 3 {
		t.Errorf("mempool.fetchevery = %d", cfg.Mempool.FetchEveryN)
	}
	if !cfg.Cache.InMemory {
		t.Error("cache.inmemory not applied")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q (quotes not stripped?)", cfg.Log.Level)
	}

	if err := Validate(cfg); err != nil {
		t.Fatalf("applied config invalid: %v", err)
	}
}

func TestLoadFileMissingIsEmpty(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "nope.conf"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("expected empty map, got %d entries", len(values))
	}
}

func TestApplyUnknownKey(t *testing.T) {
	cfg := Default()
	err := ApplyFileConfig(cfg, map[string]string{"bogus.key": "1"})
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestValidateRejectsBadURL(t *testing.T) {
	cfg := Default()
	cfg.Node.URL = "not a url"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for bad node.url")
	}
}

func TestValidateRejectsBatchLargerThanCap(t *testing.T) {
	cfg := Default()
	cfg.Scan.BatchSize = 1000
	cfg.Scan.MaxBlocksPerScan = 100
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error when batch > maxblocks")
	}
}

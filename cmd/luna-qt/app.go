package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/luna-coin/luna-wallet/config"
	"github.com/luna-coin/luna-wallet/internal/log"
	"github.com/luna-coin/luna-wallet/internal/session"
)

// qtSettings is the persistent configuration written to qt-settings.json.
type qtSettings struct {
	NodeURL string `json:"node_url"`
	DataDir string `json:"data_dir"`
}

// App manages application lifecycle, settings and the wallet session.
type App struct {
	ctx     context.Context
	nodeURL string
	dataDir string

	session *session.Session
	wallet  *WalletService
	network *NetworkService
}

// NewApp creates the application with default settings.
func NewApp() *App {
	cfg := config.Default()
	app := &App{
		nodeURL: cfg.Node.URL,
		dataDir: cfg.DataDir,
	}
	app.wallet = &WalletService{app: app}
	app.network = &NetworkService{app: app}
	app.loadSettings()
	return app
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	if err := a.openSession(); err != nil {
		log.Session.Error().Err(err).Msg("Session startup failed")
	}
}

func (a *App) shutdown(_ context.Context) {
	if a.session != nil {
		a.session.Stop()
	}
}

// openSession (re)builds the session from the current settings.
func (a *App) openSession() error {
	if a.session != nil {
		a.session.Stop()
		a.session = nil
	}

	cfg := config.Default()
	cfg.DataDir = a.dataDir
	cfg.Node.URL = a.nodeURL
	if values, err := config.LoadFile(cfg.ConfigFile()); err == nil {
		if err := config.ApplyFileConfig(cfg, values); err != nil {
			log.Session.Warn().Err(err).Msg("Config file ignored")
		}
	}

	sess, err := session.New(cfg, &frontendEvents{app: a})
	if err != nil {
		return err
	}
	sess.Start()
	a.session = sess
	return nil
}

// settingsPath returns the path to qt-settings.json.
func (a *App) settingsPath() string {
	return filepath.Join(a.dataDir, "qt-settings.json")
}

func (a *App) loadSettings() {
	data, err := os.ReadFile(a.settingsPath())
	if err != nil {
		return // first launch or missing file, use defaults
	}
	var s qtSettings
	if err := json.Unmarshal(data, &s); err != nil {
		return
	}
	if s.NodeURL != "" {
		a.nodeURL = s.NodeURL
	}
	if s.DataDir != "" {
		a.dataDir = s.DataDir
	}
}

func (a *App) saveSettings() {
	s := qtSettings{
		NodeURL: a.nodeURL,
		DataDir: a.dataDir,
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return
	}
	_ = os.MkdirAll(filepath.Dir(a.settingsPath()), 0700)
	_ = os.WriteFile(a.settingsPath(), data, 0600)
}

// GetNodeURL returns the configured node endpoint.
func (a *App) GetNodeURL() string {
	return a.nodeURL
}

// SetNodeURL updates the node endpoint and reconnects the session.
func (a *App) SetNodeURL(url string) error {
	a.nodeURL = url
	a.saveSettings()
	return a.openSession()
}

// GetDataDir returns the current data directory.
func (a *App) GetDataDir() string {
	return a.dataDir
}

// SetDataDir updates the data directory and reopens the session there.
func (a *App) SetDataDir(dir string) error {
	a.dataDir = dir
	a.saveSettings()
	return a.openSession()
}

// TestConnection checks whether the configured node is reachable.
func (a *App) TestConnection() bool {
	if a.session == nil {
		return false
	}
	return a.session.TestConnection()
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - shared wiring for CLI commands: config, storage, controller.
package cli

import (
	"fmt"
	"sync"

	"queryquant/internal/chat"
	"queryquant/internal/config"
	"queryquant/internal/router"
	"queryquant/internal/storage"
)

// App bundles the state every command needs: the loaded configuration,
// the open store, and the typed stores layered on top of it.
type App struct {
	Config   *config.Config
	Store    storage.Store
	Sessions *storage.SessionStore
	Stats    *storage.StatsStore

	// cfgMu guards Config against swaps by the config watcher.
	cfgMu sync.RWMutex
}

// OpenApp loads configuration and opens the configured storage backend.
// The caller owns the returned App and must Close it.
func OpenApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return OpenAppWith(cfg)
}

// OpenAppWith opens the storage backend named by an already-loaded config.
func OpenAppWith(cfg *config.Config) (*App, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return &App{
		Config:   cfg,
		Store:    store,
		Sessions: storage.NewSessionStore(store),
		Stats:    storage.NewStatsStore(store),
	}, nil
}

// openStore selects the backend from config. The memory backend exists
// for tests and throwaway runs; nothing written to it survives exit.
func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "", "sqlite":
		if cfg.Storage.Path != "" {
			return storage.NewSQLiteStoreWithPath(cfg.Storage.Path)
		}
		return storage.NewSQLiteStore()
	case "file":
		if cfg.Storage.Path != "" {
			return storage.NewFileStoreWithDir(cfg.Storage.Path)
		}
		return storage.NewFileStore()
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// Close releases the underlying store.
func (a *App) Close() error {
	if a == nil || a.Store == nil {
		return nil
	}
	return a.Store.Close()
}

// WatchConfig starts a watcher on the config file so edits made while an
// interactive session runs apply to the next request without a restart.
// The returned stop function is safe to call even when watching could
// not be set up.
func (a *App) WatchConfig() func() {
	path, err := config.ConfigPath()
	if err != nil {
		return func() {}
	}
	w, err := config.NewWatcher(path, func(cfg *config.Config) {
		a.cfgMu.Lock()
		a.Config = cfg
		a.cfgMu.Unlock()
	})
	if err != nil {
		return func() {}
	}
	if err := w.Watch(); err != nil {
		w.Close()
		return func() {}
	}
	return func() { w.Close() }
}

// Controller builds a chat controller that re-reads provider settings
// from the app config on every request.
func (a *App) Controller() *chat.Controller {
	return chat.NewController(a.Sessions, a.Stats, a.ChatSettings)
}

// ChatSettings translates the active provider section into the
// controller's per-request settings. Reading under the lock picks up
// configs swapped in by the watcher.
func (a *App) ChatSettings() chat.Settings {
	a.cfgMu.RLock()
	cfg := a.Config
	a.cfgMu.RUnlock()
	apiKey, model, baseURL := cfg.ActiveProvider()

	p, err := router.Parse(cfg.Provider)
	if err != nil {
		p = router.ProviderGemini
	}
	return chat.Settings{
		Provider:     p,
		APIKey:       apiKey,
		Model:        model,
		BaseURL:      baseURL,
		SystemPrompt: cfg.SystemPrompt,
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "gemini", cfg.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Anthropic.Model)
	assert.Equal(t, "deepseek-chat", cfg.DeepSeek.Model)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "Kore", cfg.Speech.Voice)
	assert.Equal(t, "dark", cfg.UI.Theme)
	assert.True(t, cfg.UI.Markdown)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromPathMissingFile(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Provider, cfg.Provider)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Provider = "anthropic"
	cfg.SystemPrompt = "be terse"
	cfg.Anthropic.APIKey = "sk-ant-test"
	cfg.Custom.Endpoint = "http://localhost:11434/v1"
	cfg.Custom.Model = "llama3"
	cfg.Storage.Backend = "file"
	cfg.UI.Markdown = false

	require.NoError(t, SaveTOML(cfg, path))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", loaded.Provider)
	assert.Equal(t, "be terse", loaded.SystemPrompt)
	assert.Equal(t, "sk-ant-test", loaded.Anthropic.APIKey)
	assert.Equal(t, "http://localhost:11434/v1", loaded.Custom.Endpoint)
	assert.Equal(t, "llama3", loaded.Custom.Model)
	assert.Equal(t, "file", loaded.Storage.Backend)
	assert.False(t, loaded.UI.Markdown)
}

func TestSaveTOMLPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not enforced on windows")
	}

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSaveTOMLHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# QueryQuant configuration file"))
}

func TestLoadFixesInsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not enforced on windows")
	}

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveTOML(Default(), path))
	require.NoError(t, os.Chmod(path, 0644))

	_, err := LoadFromPath(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("QUERYQUANT_PROVIDER", "deepseek")
	t.Setenv("QUERYQUANT_DEEPSEEK_KEY", "env-key")
	t.Setenv("QUERYQUANT_CUSTOM_ENDPOINT", "http://10.0.0.5:8080/v1")
	t.Setenv("QUERYQUANT_STORAGE", "memory")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "deepseek", cfg.Provider)
	assert.Equal(t, "env-key", cfg.DeepSeek.APIKey)
	assert.Equal(t, "http://10.0.0.5:8080/v1", cfg.Custom.Endpoint)
	assert.Equal(t, "memory", cfg.Storage.Backend)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad provider",
			mutate:  func(c *Config) { c.Provider = "bard" },
			wantErr: "provider",
		},
		{
			name:    "custom without endpoint",
			mutate:  func(c *Config) { c.Provider = "custom" },
			wantErr: "custom.endpoint",
		},
		{
			name:    "bad endpoint URL",
			mutate:  func(c *Config) { c.Custom.Endpoint = "not a url" },
			wantErr: "custom.endpoint",
		},
		{
			name:    "bad storage backend",
			mutate:  func(c *Config) { c.Storage.Backend = "redis" },
			wantErr: "storage.backend",
		},
		{
			name:    "bad theme",
			mutate:  func(c *Config) { c.UI.Theme = "neon" },
			wantErr: "ui.theme",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateCollectsMultipleErrors(t *testing.T) {
	cfg := Default()
	cfg.Provider = "bard"
	cfg.Storage.Backend = "redis"

	err := cfg.Validate()
	require.Error(t, err)

	var verrs ValidateErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 2)
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("provider", "openai"))
	assert.Equal(t, "openai", cfg.Provider)

	require.NoError(t, cfg.Set("gemini.api_key", "abc123"))
	assert.Equal(t, "abc123", cfg.Gemini.APIKey)

	require.NoError(t, cfg.Set("openai.model", "gpt-4o"))
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)

	require.NoError(t, cfg.Set("ui.markdown", "false"))
	assert.False(t, cfg.UI.Markdown)

	val, err := cfg.Get("gemini.api_key")
	require.NoError(t, err)
	assert.Equal(t, "abc123", val)

	val, err = cfg.Get("storage.backend")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", val)
}

func TestGetSetUnknownField(t *testing.T) {
	cfg := Default()

	_, err := cfg.Get("nonsense.field")
	assert.Error(t, err)

	err = cfg.Set("gemini.nonsense", "x")
	assert.Error(t, err)
}

func TestGetAllKeysResolve(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		_, err := cfg.Get(key)
		assert.NoError(t, err, "key %q should resolve", key)
	}
}

func TestActiveProvider(t *testing.T) {
	cfg := Default()
	cfg.Provider = "custom"
	cfg.Custom.Endpoint = "http://localhost:8080/v1"
	cfg.Custom.APIKey = "k"
	cfg.Custom.Model = "m"

	key, model, base := cfg.ActiveProvider()
	assert.Equal(t, "k", key)
	assert.Equal(t, "m", model)
	assert.Equal(t, "http://localhost:8080/v1", base)

	cfg.Provider = "gemini"
	cfg.Gemini.APIKey = "gk"
	key, model, base = cfg.ActiveProvider()
	assert.Equal(t, "gk", key)
	assert.Equal(t, "gemini-2.5-flash", model)
	assert.Empty(t, base)
}

func TestRedactedStringHidesKeys(t *testing.T) {
	cfg := Default()
	cfg.Gemini.APIKey = "super-secret-key"

	out := cfg.RedactedString()
	assert.NotContains(t, out, "super-secret-key")
	assert.Contains(t, out, "[set, length=16]")
}

func TestGlobalSingleton(t *testing.T) {
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	cfg := Default()
	cfg.Provider = "openai"
	SetGlobal(cfg)

	assert.Equal(t, "openai", Global().Provider)
}

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	require.NoError(t, SaveTOML(cfg, path))

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(c *Config) {
		select {
		case reloaded <- c:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch())

	cfg.Provider = "deepseek"
	require.NoError(t, SaveTOML(cfg, path))

	select {
	case got := <-reloaded:
		assert.Equal(t, "deepseek", got.Provider)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload config")
	}
}

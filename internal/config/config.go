// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for
// QueryQuant.
//
// Configuration lives in ~/.queryquant/config.toml with sensible
// defaults, QUERYQUANT_* environment variable overrides, and validation.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete QueryQuant configuration.
type Config struct {
	// Provider is the active chat backend: "gemini", "openai",
	// "anthropic", "deepseek", or "custom".
	Provider string `toml:"provider"`

	// SystemPrompt is prepended to every conversation.
	SystemPrompt string `toml:"system_prompt"`

	// Per-provider credentials and model selection.
	Gemini    ProviderConfig `toml:"gemini"`
	OpenAI    ProviderConfig `toml:"openai"`
	Anthropic ProviderConfig `toml:"anthropic"`
	DeepSeek  ProviderConfig `toml:"deepseek"`
	Custom    CustomConfig   `toml:"custom"`

	// Storage configuration.
	Storage StorageConfig `toml:"storage"`

	// Speech configuration.
	Speech SpeechConfig `toml:"speech"`

	// UI configuration.
	UI UIConfig `toml:"ui"`
}

// ProviderConfig holds one hosted provider's credentials.
type ProviderConfig struct {
	// APIKey authenticates requests to the provider.
	APIKey string `toml:"api_key"`
	// Model overrides the provider's default model when set.
	Model string `toml:"model"`
}

// CustomConfig holds the user-supplied OpenAI-compatible endpoint.
type CustomConfig struct {
	// Endpoint is the base URL, including any /v1 prefix.
	Endpoint string `toml:"endpoint"`
	// APIKey is optional; local servers often run without one.
	APIKey string `toml:"api_key"`
	// Model names the served model. Required when the provider is active.
	Model string `toml:"model"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is "sqlite" (default) or "file".
	Backend string `toml:"backend"`
	// Path overrides the default database or directory location.
	Path string `toml:"path"`
}

// SpeechConfig controls read-aloud synthesis.
type SpeechConfig struct {
	// Voice is the prebuilt voice name.
	Voice string `toml:"voice"`
	// Model is the TTS model identifier.
	Model string `toml:"model"`
	// Player is the external audio player command. Empty means autodetect.
	Player string `toml:"player"`
}

// UIConfig contains terminal UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme"`
	// Markdown renders model replies through the terminal markdown
	// renderer when true.
	Markdown bool `toml:"markdown"`
	// CompactMode uses a more compact layout.
	CompactMode bool `toml:"compact_mode"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Provider:     "gemini",
		SystemPrompt: "",

		Gemini:    ProviderConfig{Model: "gemini-2.5-flash"},
		OpenAI:    ProviderConfig{Model: "gpt-4o-mini"},
		Anthropic: ProviderConfig{Model: "claude-sonnet-4-20250514"},
		DeepSeek:  ProviderConfig{Model: "deepseek-chat"},
		Custom:    CustomConfig{},

		Storage: StorageConfig{
			Backend: "sqlite",
		},

		Speech: SpeechConfig{
			Voice: "Kore",
			Model: "gemini-2.5-flash-preview-tts",
		},

		UI: UIConfig{
			Theme:    "dark",
			Markdown: true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the QueryQuant configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".queryquant"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only) to protect API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load loads configuration from the config file, falling back to
// defaults, then applies environment overrides and validation.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file path. A missing
// file yields defaults, not an error.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, statErr := os.Stat(path); statErr == nil {
		// SECURITY: Check and fix file permissions if needed
		if err := ensureSecurePermissions(path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
		}
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	// SECURITY: Ensure permissions are correct even if file already existed
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# QueryQuant configuration file")
	fmt.Fprintln(file, "# Generated by queryquant - edit with care")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// DEFAULTS / VALIDATION
// =============================================================================

// SetDefaults fills in any missing values with defaults.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Provider == "" {
		c.Provider = defaults.Provider
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = defaults.Gemini.Model
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = defaults.OpenAI.Model
	}
	if c.Anthropic.Model == "" {
		c.Anthropic.Model = defaults.Anthropic.Model
	}
	if c.DeepSeek.Model == "" {
		c.DeepSeek.Model = defaults.DeepSeek.Model
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaults.Storage.Backend
	}
	if c.Speech.Voice == "" {
		c.Speech.Voice = defaults.Speech.Voice
	}
	if c.Speech.Model == "" {
		c.Speech.Model = defaults.Speech.Model
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	validProviders := map[string]bool{
		"gemini": true, "openai": true, "anthropic": true,
		"deepseek": true, "custom": true,
	}
	if !validProviders[strings.ToLower(c.Provider)] {
		errs = append(errs, ValidationError{
			Field:   "provider",
			Message: fmt.Sprintf("invalid provider '%s', must be one of: gemini, openai, anthropic, deepseek, custom", c.Provider),
		})
	}

	if c.Custom.Endpoint != "" {
		if u, err := url.Parse(c.Custom.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "custom.endpoint",
				Message: fmt.Sprintf("invalid URL '%s'", c.Custom.Endpoint),
			})
		}
	}
	if strings.ToLower(c.Provider) == "custom" && c.Custom.Endpoint == "" {
		errs = append(errs, ValidationError{
			Field:   "custom.endpoint",
			Message: "required when provider is 'custom'",
		})
	}

	validBackends := map[string]bool{"sqlite": true, "file": true, "memory": true}
	if !validBackends[strings.ToLower(c.Storage.Backend)] {
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: sqlite, file, memory", c.Storage.Backend),
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - QUERYQUANT_PROVIDER: overrides provider
//   - QUERYQUANT_SYSTEM_PROMPT: overrides system_prompt
//   - QUERYQUANT_GEMINI_KEY, QUERYQUANT_OPENAI_KEY,
//     QUERYQUANT_ANTHROPIC_KEY, QUERYQUANT_DEEPSEEK_KEY: provider API keys
//   - QUERYQUANT_CUSTOM_ENDPOINT, QUERYQUANT_CUSTOM_KEY,
//     QUERYQUANT_CUSTOM_MODEL: custom endpoint settings
//   - QUERYQUANT_STORAGE: overrides storage.backend
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("QUERYQUANT_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv("QUERYQUANT_SYSTEM_PROMPT"); v != "" {
		c.SystemPrompt = v
	}
	if v := os.Getenv("QUERYQUANT_GEMINI_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv("QUERYQUANT_OPENAI_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv("QUERYQUANT_ANTHROPIC_KEY"); v != "" {
		c.Anthropic.APIKey = v
	}
	if v := os.Getenv("QUERYQUANT_DEEPSEEK_KEY"); v != "" {
		c.DeepSeek.APIKey = v
	}
	if v := os.Getenv("QUERYQUANT_CUSTOM_ENDPOINT"); v != "" {
		c.Custom.Endpoint = v
	}
	if v := os.Getenv("QUERYQUANT_CUSTOM_KEY"); v != "" {
		c.Custom.APIKey = v
	}
	if v := os.Getenv("QUERYQUANT_CUSTOM_MODEL"); v != "" {
		c.Custom.Model = v
	}
	if v := os.Getenv("QUERYQUANT_STORAGE"); v != "" {
		c.Storage.Backend = v
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "gemini.model").
func (c *Config) Get(key string) (interface{}, error) {
	parts := strings.Split(key, ".")
	if len(parts) == 0 {
		return nil, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return nil, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			return field.Interface(), nil
		}
		if field.Kind() == reflect.Struct {
			v = field
		} else {
			return nil, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
	}
	return nil, fmt.Errorf("invalid key: %s", key)
}

// Set sets a configuration value using dot notation (e.g., "gemini.api_key").
func (c *Config) Set(key string, value interface{}) error {
	parts := strings.Split(key, ".")
	if len(parts) == 0 {
		return errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			if !field.CanSet() {
				return fmt.Errorf("cannot set field: %s", key)
			}
			return setFieldValue(field, value)
		}
		if field.Kind() == reflect.Struct {
			v = field
		} else {
			return fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
	}
	return fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	// Struct names that don't follow plain initial-capitalization.
	switch strings.ToLower(name) {
	case "openai":
		return "OpenAI"
	case "deepseek":
		return "DeepSeek"
	case "api_key", "apikey":
		return "APIKey"
	case "ui":
		return "UI"
	}

	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})
	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal := strVal == "1" || strings.ToLower(strVal) == "true" || strings.ToLower(strVal) == "yes"
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"provider",
		"system_prompt",
		"gemini.api_key",
		"gemini.model",
		"openai.api_key",
		"openai.model",
		"anthropic.api_key",
		"anthropic.model",
		"deepseek.api_key",
		"deepseek.model",
		"custom.endpoint",
		"custom.api_key",
		"custom.model",
		"storage.backend",
		"storage.path",
		"speech.voice",
		"speech.model",
		"speech.player",
		"ui.theme",
		"ui.markdown",
		"ui.compact_mode",
	}
}

// ActiveProvider returns the active provider section's key, model, and
// base URL.
func (c *Config) ActiveProvider() (apiKey, model, baseURL string) {
	switch strings.ToLower(c.Provider) {
	case "openai":
		return c.OpenAI.APIKey, c.OpenAI.Model, ""
	case "anthropic":
		return c.Anthropic.APIKey, c.Anthropic.Model, ""
	case "deepseek":
		return c.DeepSeek.APIKey, c.DeepSeek.Model, ""
	case "custom":
		return c.Custom.APIKey, c.Custom.Model, c.Custom.Endpoint
	default:
		return c.Gemini.APIKey, c.Gemini.Model, ""
	}
}

// RedactedString returns the config as a display string with API keys
// masked.
func (c *Config) RedactedString() string {
	safe := *c
	safe.Gemini.APIKey = maskKey(safe.Gemini.APIKey)
	safe.OpenAI.APIKey = maskKey(safe.OpenAI.APIKey)
	safe.Anthropic.APIKey = maskKey(safe.Anthropic.APIKey)
	safe.DeepSeek.APIKey = maskKey(safe.DeepSeek.APIKey)
	safe.Custom.APIKey = maskKey(safe.Custom.APIKey)

	var sb strings.Builder
	encoder := toml.NewEncoder(&sb)
	if err := encoder.Encode(safe); err != nil {
		return fmt.Sprintf("error encoding config: %v", err)
	}
	return sb.String()
}

// maskKey hides an API key for display.
// SECURITY: Never expose key fragments.
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	return fmt.Sprintf("[set, length=%d]", len(key))
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe. A config installed
// via SetGlobal before the first access is kept, not reloaded over.
func Global() *Config {
	globalConfigOnce.Do(func() {
		globalConfigMu.Lock()
		defer globalConfigMu.Unlock()
		if globalConfig != nil {
			return
		}
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}

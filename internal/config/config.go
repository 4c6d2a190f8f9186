// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for lingua.
//
// Supports TOML configuration with sensible defaults, environment variable
// overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.lingua/config.toml
//   - Built-in defaults
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/language"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete lingua configuration.
type Config struct {
	// Chat settings
	Chat ChatConfig `toml:"chat"`

	// Completion service configuration
	Completion CompletionConfig `toml:"completion"`

	// Translation overlay configuration
	Translation TranslationConfig `toml:"translation"`

	// Daily quota configuration
	Quota QuotaConfig `toml:"quota"`

	// Durable storage configuration
	Storage StorageConfig `toml:"storage"`

	// Logging configuration
	Log LogConfig `toml:"log"`
}

// ChatConfig identifies the user and their learning context.
type ChatConfig struct {
	// UserID is the identifier sent with every request. If not set, it is
	// derived from the system username.
	UserID string `toml:"user_id"`
	// Language is the learning language as a BCP 47 tag (e.g., "es", "ja").
	Language string `toml:"language"`
	// LearningLevel is forwarded to the completion service
	// (e.g., "beginner", "intermediate", "advanced").
	LearningLevel string `toml:"learning_level"`
}

// CompletionConfig contains the streaming completion service settings.
type CompletionConfig struct {
	// BaseURL is the URL of the completion service.
	BaseURL string `toml:"base_url"`
	// TimeoutSecs is the per-request timeout in seconds.
	TimeoutSecs int `toml:"timeout_secs"`
}

// TranslationConfig contains the best-effort translation overlay settings.
type TranslationConfig struct {
	// Enabled toggles the overlay. Translation never blocks a send; when the
	// translation service is unavailable, messages simply carry no overlay.
	Enabled bool `toml:"enabled"`
	// BaseURL is the URL of the translation service.
	BaseURL string `toml:"base_url"`
	// TargetLanguage is the language translations are rendered in, usually
	// the user's native language (a BCP 47 tag).
	TargetLanguage string `toml:"target_language"`
	// TimeoutSecs is the per-request timeout in seconds.
	TimeoutSecs int `toml:"timeout_secs"`
	// RequestsPerSecond throttles outbound translation calls.
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// QuotaConfig contains the daily message allowance settings.
type QuotaConfig struct {
	// DailyLimit is the number of sends allowed per user per UTC day.
	DailyLimit int `toml:"daily_limit"`
}

// StorageConfig contains durable session storage settings.
type StorageConfig struct {
	// Backend selects the key-value backend: "file" or "sqlite".
	Backend string `toml:"backend"`
	// Dir is the storage directory (file backend) or the directory holding
	// the database file (sqlite backend). Empty means ~/.lingua.
	Dir string `toml:"dir"`
	// MaxSessions is the retention target after eviction.
	MaxSessions int `toml:"max_sessions"`
	// MaxBytes caps total stored bytes; writes past it trigger eviction.
	MaxBytes int64 `toml:"max_bytes"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is the minimum level: "debug", "info", "warn", "error".
	Level string `toml:"level"`
	// JSON switches the handler to JSON output.
	JSON bool `toml:"json"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Chat: ChatConfig{
			Language:      "es",
			LearningLevel: "beginner",
		},
		Completion: CompletionConfig{
			BaseURL:     "http://127.0.0.1:8787",
			TimeoutSecs: 30,
		},
		Translation: TranslationConfig{
			Enabled:           true,
			BaseURL:           "http://127.0.0.1:8788",
			TargetLanguage:    "en",
			TimeoutSecs:       10,
			RequestsPerSecond: 5,
		},
		Quota: QuotaConfig{
			DailyLimit: 50,
		},
		Storage: StorageConfig{
			Backend:     "file",
			MaxSessions: 10,
			MaxBytes:    1 << 20,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ConfigDir returns the lingua configuration directory (~/.lingua).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".lingua"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file, falling back to defaults
// when none exists. Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to decode config file: %w", err)
			}
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SetDefaults fills in derivable fields that may be absent from the file.
func (c *Config) SetDefaults() {
	if c.Chat.UserID == "" {
		c.Chat.UserID = systemUserID()
	}
	if c.Storage.Dir == "" {
		if dir, err := ConfigDir(); err == nil {
			c.Storage.Dir = filepath.Join(dir, "storage")
		}
	}
	if c.Storage.MaxSessions <= 0 {
		c.Storage.MaxSessions = 10
	}
	if c.Storage.MaxBytes <= 0 {
		c.Storage.MaxBytes = 1 << 20
	}
	if c.Completion.TimeoutSecs <= 0 {
		c.Completion.TimeoutSecs = 30
	}
	if c.Translation.TimeoutSecs <= 0 {
		c.Translation.TimeoutSecs = 10
	}
	if c.Translation.RequestsPerSecond <= 0 {
		c.Translation.RequestsPerSecond = 5
	}
	if c.Quota.DailyLimit <= 0 {
		c.Quota.DailyLimit = 50
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// systemUserID derives a user identifier from the environment.
func systemUserID() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	if u := os.Getenv("USERNAME"); u != "" {
		return u
	}
	return "default"
}

// CompletionTimeout returns the completion timeout as a duration.
func (c *Config) CompletionTimeout() time.Duration {
	return time.Duration(c.Completion.TimeoutSecs) * time.Second
}

// TranslationTimeout returns the translation timeout as a duration.
func (c *Config) TranslationTimeout() time.Duration {
	return time.Duration(c.Translation.TimeoutSecs) * time.Second
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - LINGUA_USER_ID: overrides chat.user_id
//   - LINGUA_LANGUAGE: overrides chat.language
//   - LINGUA_LEVEL: overrides chat.learning_level
//   - LINGUA_COMPLETION_URL: overrides completion.base_url
//   - LINGUA_TRANSLATION_URL: overrides translation.base_url
//   - LINGUA_TRANSLATE: set to "1" or "true"/"0" or "false" to toggle overlay
//   - LINGUA_TARGET_LANGUAGE: overrides translation.target_language
//   - LINGUA_DAILY_LIMIT: overrides quota.daily_limit
//   - LINGUA_STORAGE_BACKEND: overrides storage.backend
//   - LINGUA_STORAGE_DIR: overrides storage.dir
//   - LINGUA_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	if userID := os.Getenv("LINGUA_USER_ID"); userID != "" {
		c.Chat.UserID = userID
	}
	if lang := os.Getenv("LINGUA_LANGUAGE"); lang != "" {
		c.Chat.Language = lang
	}
	if level := os.Getenv("LINGUA_LEVEL"); level != "" {
		c.Chat.LearningLevel = level
	}
	if u := os.Getenv("LINGUA_COMPLETION_URL"); u != "" {
		c.Completion.BaseURL = u
	}
	if u := os.Getenv("LINGUA_TRANSLATION_URL"); u != "" {
		c.Translation.BaseURL = u
	}
	if v := os.Getenv("LINGUA_TRANSLATE"); v != "" {
		c.Translation.Enabled = v == "1" || strings.ToLower(v) == "true"
	}
	if lang := os.Getenv("LINGUA_TARGET_LANGUAGE"); lang != "" {
		c.Translation.TargetLanguage = lang
	}
	if v := os.Getenv("LINGUA_DAILY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Quota.DailyLimit = n
		}
	}
	if backend := os.Getenv("LINGUA_STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}
	if dir := os.Getenv("LINGUA_STORAGE_DIR"); dir != "" {
		c.Storage.Dir = dir
	}
	if level := os.Getenv("LINGUA_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes a single invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors aggregates all validation failures.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if _, err := language.Parse(c.Chat.Language); err != nil {
		errs = append(errs, ValidationError{
			Field:   "chat.language",
			Message: fmt.Sprintf("invalid language tag '%s': %v", c.Chat.Language, err),
		})
	}

	validLevels := map[string]bool{"beginner": true, "intermediate": true, "advanced": true}
	if !validLevels[strings.ToLower(c.Chat.LearningLevel)] {
		errs = append(errs, ValidationError{
			Field:   "chat.learning_level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: beginner, intermediate, advanced", c.Chat.LearningLevel),
		})
	}

	if _, err := url.Parse(c.Completion.BaseURL); err != nil || c.Completion.BaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "completion.base_url",
			Message: fmt.Sprintf("invalid URL '%s'", c.Completion.BaseURL),
		})
	}

	if c.Translation.Enabled {
		if _, err := url.Parse(c.Translation.BaseURL); err != nil || c.Translation.BaseURL == "" {
			errs = append(errs, ValidationError{
				Field:   "translation.base_url",
				Message: fmt.Sprintf("invalid URL '%s'", c.Translation.BaseURL),
			})
		}
		if _, err := language.Parse(c.Translation.TargetLanguage); err != nil {
			errs = append(errs, ValidationError{
				Field:   "translation.target_language",
				Message: fmt.Sprintf("invalid language tag '%s': %v", c.Translation.TargetLanguage, err),
			})
		}
	}

	validBackends := map[string]bool{"file": true, "sqlite": true}
	if !validBackends[strings.ToLower(c.Storage.Backend)] {
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: file, sqlite", c.Storage.Backend),
		})
	}

	validLevelsLog := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevelsLog[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

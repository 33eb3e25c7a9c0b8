// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete portal-tui configuration.
type Config struct {
	Portal  PortalConfig  `toml:"portal"`
	UI      UIConfig      `toml:"ui"`
	Storage StorageConfig `toml:"storage"`
}

// PortalConfig identifies the backend and the signed-in student.
type PortalConfig struct {
	// BaseURL is the portal backend root, e.g. https://portal.example.edu
	BaseURL string `toml:"base_url"`
	// UserID is the student's id as known to the portal.
	UserID string `toml:"user_id"`
	// ModuleID selects the default module to chat in.
	ModuleID string `toml:"module_id"`
	// AgentID selects a marketplace agent instead of a module.
	// Mutually exclusive with ModuleID at send time.
	AgentID string `toml:"agent_id"`
}

// UIConfig controls rendering.
type UIConfig struct {
	// Theme is "auto", "dark", or "light".
	Theme string `toml:"theme"`
	// Markdown renders finalized assistant replies through glamour.
	Markdown bool `toml:"markdown"`
	// SidebarWidth is the chat list width in columns.
	SidebarWidth int `toml:"sidebar_width"`
}

// StorageConfig controls local state files.
type StorageConfig struct {
	// SpendLogPath overrides where observed charges are snapshotted.
	// Empty uses ~/.portal-tui/spend.json; "off" disables the log.
	SpendLogPath string `toml:"spend_log_path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		UI: UIConfig{
			Theme:        "auto",
			Markdown:     true,
			SidebarWidth: 28,
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns ~/.portal-tui, creating nothing.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".portal-tui"), nil
}

// ConfigPath returns the TOML config file location.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// SpendLogPath resolves the spend log location from the config, or ""
// when disabled.
func (c *Config) SpendLogPath() (string, error) {
	switch c.Storage.SpendLogPath {
	case "off":
		return "", nil
	case "":
		dir, err := ConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "spend.json"), nil
	default:
		return c.Storage.SpendLogPath, nil
	}
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads the config file if present, applies environment
// overrides, and validates. A missing file is not an error; defaults
// plus environment apply.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath is Load against an explicit file, used by tests and
// the --config flag.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, statErr := os.Stat(path); statErr == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides layers PORTAL_TUI_* variables over file values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("PORTAL_TUI_BASE_URL"); v != "" {
		c.Portal.BaseURL = v
	}
	if v := os.Getenv("PORTAL_TUI_USER_ID"); v != "" {
		c.Portal.UserID = v
	}
	if v := os.Getenv("PORTAL_TUI_MODULE_ID"); v != "" {
		c.Portal.ModuleID = v
	}
	if v := os.Getenv("PORTAL_TUI_AGENT_ID"); v != "" {
		c.Portal.AgentID = v
	}
	if v := os.Getenv("PORTAL_TUI_THEME"); v != "" {
		c.UI.Theme = v
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	var errs []error

	if c.Portal.BaseURL != "" {
		u, err := url.Parse(c.Portal.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("portal.base_url %q is not an absolute URL", c.Portal.BaseURL))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, fmt.Errorf("portal.base_url scheme %q not supported", u.Scheme))
		}
	}

	switch strings.ToLower(c.UI.Theme) {
	case "", "auto", "dark", "light":
	default:
		errs = append(errs, fmt.Errorf("ui.theme %q must be auto, dark, or light", c.UI.Theme))
	}

	if c.UI.SidebarWidth < 0 {
		errs = append(errs, fmt.Errorf("ui.sidebar_width must not be negative"))
	}

	return errors.Join(errs...)
}

// Save writes the config to its default location with owner-only
// permissions.
func Save(cfg *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return SaveToPath(cfg, filepath.Join(dir, "config.toml"))
}

// SaveToPath writes the config as TOML to an explicit file.
func SaveToPath(cfg *Config, path string) error {
	// SECURITY: owner read/write only; the file can name a user id.
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer file.Close()

	fmt.Fprintln(file, "# portal-tui configuration file")
	fmt.Fprintln(file, "")

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// =============================================================================
// SINGLETON (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the process-wide configuration, loading it on first
// access. A load failure falls back to defaults with a warning.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
			cfg.ApplyEnvOverrides()
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal replaces the process-wide configuration.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
	globalConfigOnce.Do(func() {})
}

// ReloadGlobal re-reads the config from disk.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

// ModeConfig describes one operating mode of the scheduling board
// (contractor, resident, portal).
type ModeConfig struct {
	// BaseURL is the API base for this mode, e.g.
	// "https://ops.example.com/api/contractor". The schedule endpoints
	// hang off this base.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// PortalID is the resolved portal identifier. Required for the
	// "portal" mode; ignored for the others.
	PortalID string `yaml:"portal_id,omitempty" json:"portal_id,omitempty"`

	// Zooms optionally overrides the mode's built-in zoom allow-list
	// (values: 15m, 1h, day, week, month).
	Zooms []string `yaml:"zooms,omitempty" json:"zooms,omitempty"`

	// InitialZoom optionally overrides the mode's built-in initial zoom.
	InitialZoom string `yaml:"initial_zoom,omitempty" json:"initial_zoom,omitempty"`
}

// ScheduleBase returns the base URL schedule requests are issued against,
// with the portal segment resolved. Portal mode without a portal id is a
// configuration error: there is no sensible base to guess.
func (m ModeConfig) ScheduleBase(mode string) (string, error) {
	if m.BaseURL == "" {
		return "", fmt.Errorf("mode %q has no base_url configured", mode)
	}
	base := strings.TrimRight(m.BaseURL, "/")
	if mode == "portal" {
		if m.PortalID == "" {
			return "", fmt.Errorf("mode %q requires portal_id before endpoints can be called", mode)
		}
		base = base + "/portals/" + m.PortalID
	}
	return base, nil
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the board API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used for range snapping (e.g. "UTC",
	// "America/Chicago").
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart controls which weekday the week zoom snaps to. Supported
	// values:
	//   - "monday" (default)
	//   - "sunday"
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used to re-fetch the current range periodically. Empty disables the
	// background refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LogLevel sets the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Mode selects which operating mode this instance serves.
	Mode string `yaml:"mode" json:"mode"`

	// Modes configures the per-mode API bases and zoom allow-lists.
	Modes map[string]ModeConfig `yaml:"modes" json:"modes"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "UTC",
		WeekStart:   "monday",
		RefreshCron: "*/15 * * * *",
		LogLevel:    "info",
		Mode:        "contractor",
		Modes:       map[string]ModeConfig{},
		BasicAuth:   nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	// WeekStart default & validation.
	switch c.WeekStart {
	case "monday", "sunday":
		// ok
	case "":
		c.WeekStart = "monday"
	default:
		// Unknown value; fall back to monday to avoid surprising snapping.
		c.WeekStart = "monday"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Mode == "" {
		c.Mode = "contractor"
	}
	if c.Modes == nil {
		c.Modes = map[string]ModeConfig{}
	}
}

// Location resolves the configured timezone, falling back to UTC if it
// cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WeekStartWeekday maps the week_start setting to a time.Weekday.
func (c *Config) WeekStartWeekday() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// ActiveMode returns the configured mode name and its ModeConfig.
func (c *Config) ActiveMode() (string, ModeConfig, error) {
	mc, ok := c.Modes[c.Mode]
	if !ok {
		return "", ModeConfig{}, fmt.Errorf("mode %q is not configured under modes:", c.Mode)
	}
	return c.Mode, mc, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".opsboard-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Set permissions to 0600 on temp file before rename.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	// Rename over the target path.
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

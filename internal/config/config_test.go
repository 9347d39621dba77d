package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("first run creates a default config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sub", "config.yaml")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
		assert.Equal(t, "monday", cfg.WeekStart)
		assert.Equal(t, "contractor", cfg.Mode)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("partial config gets normalized", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("week_start: friday\nmode: resident\n"), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "monday", cfg.WeekStart, "unknown week_start falls back")
		assert.Equal(t, "resident", cfg.Mode)
		assert.NotNil(t, cfg.Modes)
	})

	t.Run("empty path is rejected", func(t *testing.T) {
		_, err := Load("")
		require.Error(t, err)
	})
}

func TestScheduleBase(t *testing.T) {
	t.Run("plain mode uses base url as-is", func(t *testing.T) {
		base, err := ModeConfig{BaseURL: "https://ops.example.com/api/contractor/"}.ScheduleBase("contractor")
		require.NoError(t, err)
		assert.Equal(t, "https://ops.example.com/api/contractor", base)
	})

	t.Run("portal mode requires a portal id", func(t *testing.T) {
		_, err := ModeConfig{BaseURL: "https://ops.example.com/api/portal"}.ScheduleBase("portal")
		require.Error(t, err)
	})

	t.Run("portal id is appended to the base", func(t *testing.T) {
		base, err := ModeConfig{
			BaseURL:  "https://ops.example.com/api/portal",
			PortalID: "p-17",
		}.ScheduleBase("portal")
		require.NoError(t, err)
		assert.Equal(t, "https://ops.example.com/api/portal/portals/p-17", base)
	})

	t.Run("missing base url is a config error", func(t *testing.T) {
		_, err := ModeConfig{}.ScheduleBase("resident")
		require.Error(t, err)
	})
}

func TestWeekStartWeekday(t *testing.T) {
	assert.Equal(t, time.Monday, (&Config{WeekStart: "monday"}).WeekStartWeekday())
	assert.Equal(t, time.Sunday, (&Config{WeekStart: "sunday"}).WeekStartWeekday())
}

func TestActiveMode(t *testing.T) {
	cfg := &Config{
		Mode: "resident",
		Modes: map[string]ModeConfig{
			"resident": {BaseURL: "https://ops.example.com/api/resident"},
		},
	}
	mode, mc, err := cfg.ActiveMode()
	require.NoError(t, err)
	assert.Equal(t, "resident", mode)
	assert.Equal(t, "https://ops.example.com/api/resident", mc.BaseURL)

	cfg.Mode = "portal"
	_, _, err = cfg.ActiveMode()
	require.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults fill missing keys", func(t *testing.T) {
		dir := t.TempDir()
		content := "database:\n  dsn: test.db\nlogger:\n  level: debug\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(content), 0o600))

		cfg, err := LoadConfig(dir)
		require.NoError(t, err)

		assert.Equal(t, "test.db", cfg.Database.DSN)
		assert.Equal(t, "debug", cfg.Logger.Level)
		assert.Equal(t, "console", cfg.Logger.Format)
		assert.Equal(t, 30, cfg.Analytics.CalmarMinDays)
		assert.Equal(t, 4, cfg.Recompute.Workers)
		assert.Equal(t, 200*time.Millisecond, cfg.Recompute.RetryBackoff())
		assert.Equal(t, 300, cfg.Goals.SweepInterval)
	})

	t.Run("File values override defaults", func(t *testing.T) {
		dir := t.TempDir()
		content := "analytics:\n  calmar_min_days: 60\nrecompute:\n  workers: 1\nserver:\n  port: 9000\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(content), 0o600))

		cfg, err := LoadConfig(dir)
		require.NoError(t, err)

		assert.Equal(t, 60, cfg.Analytics.CalmarMinDays)
		assert.Equal(t, 1, cfg.Recompute.Workers)
		assert.Equal(t, 9000, cfg.Server.Port)
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := LoadConfig(t.TempDir())
		assert.Error(t, err)
	})
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("full config", func(t *testing.T) {
		path := writeConfig(t, `
app:
  env: dev
postgres:
  dsn: "postgres://localhost/wellness"
ledger:
  warn_threshold_days: 10
  scan_interval: 6h
  substitutions:
    brain: [pulse]
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "dev", cfg.App.Env)
		assert.Equal(t, 10, cfg.Ledger.WarnThresholdDays)
		assert.Equal(t, 6*time.Hour, cfg.Ledger.ScanInterval)
		assert.Equal(t, []string{"pulse"}, cfg.Ledger.Substitutions["brain"])
	})

	t.Run("ledger defaults", func(t *testing.T) {
		path := writeConfig(t, `
app:
  env: prod
postgres:
  dsn: "postgres://localhost/wellness"
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, 7, cfg.Ledger.WarnThresholdDays)
		assert.Equal(t, 24*time.Hour, cfg.Ledger.ScanInterval)
		assert.Equal(t, 5*time.Second, cfg.Telegram.SendTimeout)
		assert.Empty(t, cfg.Ledger.Substitutions)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

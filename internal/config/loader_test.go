package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8780", cfg.Server.Address())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "local", cfg.Embeddings.Provider)
	assert.Equal(t, 384, cfg.Embeddings.Dimension)
	assert.Equal(t, 5*time.Second, cfg.Embeddings.Timeout)
	assert.True(t, cfg.Redaction.Enabled)
	assert.NotEmpty(t, cfg.Redaction.Rules)
	assert.Equal(t, 5, cfg.Audit.MaxAppendRetries)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9999
logging:
  level: debug
  format: console
embeddings:
  provider: local
  dimension: 128
keys:
  - tenant_id: demo
    actor_id: bootstrap
    role: admin
    key: ik_bootstrap_secret
`, 0o600)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 128, cfg.Embeddings.Dimension)
	require.Len(t, cfg.Keys, 1)
	assert.Equal(t, "demo", cfg.Keys[0].TenantID)
	assert.Equal(t, "admin", cfg.Keys[0].Role)
}

func TestLoadRejectsWorldReadableFile(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 9999\n", 0o644)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permissions")
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8780, cfg.Server.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("INCIDENTD_SERVER_PORT", "7070")
	t.Setenv("INCIDENTD_LOGGING_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadValidation(t *testing.T) {
	t.Run("invalid seed key role", func(t *testing.T) {
		path := writeConfigFile(t, `
keys:
  - tenant_id: demo
    actor_id: a
    role: superuser
    key: ik_x
`, 0o600)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid role")
	})

	t.Run("seed key missing fields", func(t *testing.T) {
		path := writeConfigFile(t, `
keys:
  - tenant_id: demo
    role: admin
`, 0o600)
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("tei without base url", func(t *testing.T) {
		path := writeConfigFile(t, `
embeddings:
  provider: tei
`, 0o600)
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfigFile(t, "server: [unclosed", 0o600)
		_, err := Load(path)
		assert.Error(t, err)
	})
}

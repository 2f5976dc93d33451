package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultDataDir(), cfg.Database.Dir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "INBOX", cfg.Fetch.Folder)
	assert.Equal(t, 100, cfg.Fetch.Limit)
	assert.Equal(t, 7, cfg.Fetch.SinceDays)
	assert.Equal(t, 300, cfg.Fetch.IntervalSec)
	assert.Equal(t, "993", cfg.IMAP.Port)
	assert.True(t, cfg.IMAP.TLS)
	assert.Equal(t, "587", cfg.SMTP.Port)
	assert.False(t, cfg.SMTP.TLS)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  dir: /tmp/postale-test
log:
  level: debug
fetch:
  folder: Archive
  limit: 5
smtp:
  host: mail.example.com
  tls: true
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/postale-test", cfg.Database.Dir)
	assert.Equal(t, filepath.Join("/tmp/postale-test", DatabaseFile), cfg.DatabasePath())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "Archive", cfg.Fetch.Folder)
	assert.Equal(t, 5, cfg.Fetch.Limit)
	assert.Equal(t, 7, cfg.Fetch.SinceDays)
	assert.Equal(t, "mail.example.com", cfg.SMTP.Host)
	assert.True(t, cfg.SMTP.TLS)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("POSTALE_DATABASE_DIR", "/tmp/from-env")
	t.Setenv("POSTALE_FETCH_LIMIT", "12")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/from-env", cfg.Database.Dir)
	assert.Equal(t, 12, cfg.Fetch.Limit)
}

func TestLoadConfigRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: [unterminated"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfigThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	cfg.Database.Dir = "/srv/mail"
	cfg.Fetch.Limit = 42

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/mail", loaded.Database.Dir)
	assert.Equal(t, 42, loaded.Fetch.Limit)
	assert.Equal(t, "INBOX", loaded.Fetch.Folder)
}

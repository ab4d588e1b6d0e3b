package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glorpus-work/modshare/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, int64(1)<<30, cfg.Transfer.MaxUploadSize)
	assert.Equal(t, 2, cfg.Resolver.NameWeight)
	assert.Equal(t, 2, cfg.Resolver.AuthorWeight)
	assert.Equal(t, 1, cfg.Resolver.VersionWeight)
	assert.Equal(t, 1, cfg.Resolver.LookupFailurePenalty)
	assert.Equal(t, "info", cfg.Settings.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Transfer.MaxUploadSize, cfg.Transfer.MaxUploadSize)
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	_, err := LoadConfig("")
	assert.ErrorIs(t, err, errors.ErrEmptyConfigPath)
}

func TestLoadConfig_ParsesAndFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
relay:
  url: https://relay.example.com
  account_id: acct-123
transfer:
  max_upload_size: 1048576
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://relay.example.com", cfg.Relay.URL)
	assert.Equal(t, "acct-123", cfg.Relay.AccountID)
	assert.Equal(t, int64(1048576), cfg.Transfer.MaxUploadSize)
	// Unset sections fall back to defaults.
	assert.Equal(t, 2, cfg.Resolver.NameWeight)
	assert.Equal(t, DefaultHTTPTimeout, cfg.Settings.HTTPTimeout)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("relay: [not: valid"), 0o644))

	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, errors.ErrConfigParse)
}

func TestValidate_BadRelayURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Relay.URL = "ftp://nope"
	assert.ErrorIs(t, cfg.Validate(), errors.ErrConfigValidation)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Relay.URL = "http://localhost:8080"
	cfg.Settings.HTTPTimeout = 30 * time.Second
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Relay.URL, loaded.Relay.URL)
	assert.Equal(t, 30*time.Second, loaded.Settings.HTTPTimeout)
}

func TestSetValueGetValue(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.SetValue("relay.url", "https://relay.example.com"))
	require.NoError(t, cfg.SetValue("transfer.max_upload_size", "1048576"))
	require.NoError(t, cfg.SetValue("settings.http_timeout", "30s"))
	require.NoError(t, cfg.SetValue("resolver.author_weight", "3"))

	assert.Equal(t, int64(1048576), cfg.Transfer.MaxUploadSize)
	assert.Equal(t, 30*time.Second, cfg.Settings.HTTPTimeout)
	assert.Equal(t, 3, cfg.Resolver.AuthorWeight)

	value, err := cfg.GetValue("relay.url")
	require.NoError(t, err)
	assert.Equal(t, "https://relay.example.com", value)

	assert.ErrorIs(t, cfg.SetValue("transfer.max_upload_size", "lots"), errors.ErrConfigValidation)
	assert.ErrorIs(t, cfg.SetValue("nope", "x"), errors.ErrConfigValidation)
	_, err = cfg.GetValue("nope")
	assert.ErrorIs(t, err, errors.ErrConfigValidation)
}

func TestSetValue_RevalidatesConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.ErrorIs(t, cfg.SetValue("relay.url", "ftp://nope"), errors.ErrConfigValidation)
}

func TestGetCacheDir_Override(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Settings.CacheDir = "/tmp/custom-cache"
	dir, err := cfg.GetCacheDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom-cache", dir)
}

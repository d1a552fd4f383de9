package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfg, err := Load(filepath.Join(dir, "does-not-exist.toml"))
	require.NoError(t, err)

	assert.Equal(t, uint64(30), cfg.PollIntervalSec)
	assert.Equal(t, uint32(3), cfg.RetryCount)
	assert.Equal(t, uint64(5), cfg.RetryIntervalSec)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.NotEmpty(t, cfg.DBPath)
	assert.NotEmpty(t, cfg.StatePath)
	assert.NotEmpty(t, cfg.CredentialPath)
}

func TestLoadParsesTOMLFields(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path := filepath.Join(dir, "config.toml")
	const doc = `
poll_interval_sec = 60
mark_as_read_on_notify = true
retry_count = 5

[filter]
include_repositories = ["golang/go"]
exclude_draft_prs = true
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint64(60), cfg.PollIntervalSec)
	assert.True(t, cfg.MarkAsReadOnNotify)
	assert.Equal(t, uint32(5), cfg.RetryCount)
	assert.Equal(t, []string{"golang/go"}, cfg.Filter.IncludeRepositories)
	assert.True(t, cfg.Filter.ExcludeDraftPRs)
}

func TestLoadRejectsOutOfRangePollInterval(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("poll_interval_sec = 1\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`log_level = "verbose"`+"\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrideLogLevel(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("LOG", "debug")

	cfg, err := Load(filepath.Join(dir, "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

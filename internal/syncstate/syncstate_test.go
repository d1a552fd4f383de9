package syncstate

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "", s.GetLastCheckedAt())
	assert.Equal(t, "", s.GetEtag("https://api.github.com/notifications"))
}

func TestPersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := Load(path)
	require.NoError(t, err)

	s.SetLastCheckedAt("2024-01-02T10:00:00Z")
	s.SetEtag("https://api.github.com/notifications", `W/"abc123"`)
	require.NoError(t, s.Persist())

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02T10:00:00Z", reloaded.GetLastCheckedAt())
	assert.Equal(t, `W/"abc123"`, reloaded.GetEtag("https://api.github.com/notifications"))
}

func TestPersistOverwritesPreviousValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Load(path)
	require.NoError(t, err)

	s.SetLastCheckedAt("2024-01-02T10:00:00Z")
	require.NoError(t, s.Persist())

	s.SetLastCheckedAt("2024-01-02T11:00:00Z")
	require.NoError(t, s.Persist())

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02T11:00:00Z", reloaded.GetLastCheckedAt())
}

package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEphemeralLifecycle(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.Create())

	path := m.Path()
	require.NotEmpty(t, path)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	sub, err := m.CreateSubdir("source")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(path, "source"), sub)

	require.NoError(t, m.Cleanup())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, m.Path())
}

func TestPersistentSurvivesCleanup(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "staging")
	m := NewPersistentManager(dir)
	require.NoError(t, m.Create())
	require.NoError(t, m.Cleanup())

	_, err := os.Stat(dir)
	assert.NoError(t, err, "persistent staging directory must survive cleanup")
}

func TestSubdirBeforeCreateFails(t *testing.T) {
	m := NewManager(t.TempDir())
	_, err := m.CreateSubdir("x")
	assert.Error(t, err)
}

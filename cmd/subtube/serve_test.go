package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subtube/internal/persistence"
)

func TestCleanupRemovesStaleTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := persistence.NewSQLiteStore(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	defer store.Close()

	tempDir := filepath.Join(dir, "tmp")
	require.NoError(t, os.MkdirAll(tempDir, 0o755))

	stale := filepath.Join(tempDir, "old.vtt")
	fresh := filepath.Join(tempDir, "new.vtt")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))

	old := time.Now().Add(-2 * tempFileMaxAge)
	require.NoError(t, os.Chtimes(stale, old, old))

	cleanup(store, tempDir)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "stale file should be removed")
	_, err = os.Stat(fresh)
	assert.NoError(t, err, "fresh file should survive")
}

func TestCleanupMissingTempDir(t *testing.T) {
	dir := t.TempDir()
	store, err := persistence.NewSQLiteStore(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	defer store.Close()

	cleanup(store, filepath.Join(dir, "does-not-exist"))
}

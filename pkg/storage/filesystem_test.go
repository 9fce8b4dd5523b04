package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveOpenDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	name, err := store.Save("exports/timetable.csv", []byte("a,b\n"))
	require.NoError(t, err)
	require.Equal(t, "exports/timetable.csv", name)

	file, err := store.Open(name)
	require.NoError(t, err)
	data, err := os.ReadFile(file.Name())
	require.NoError(t, err)
	require.NoError(t, file.Close())
	require.Equal(t, "a,b\n", string(data))

	require.NoError(t, store.Delete(name))
	_, err = store.Open(name)
	require.Error(t, err)
}

func TestLocalStorageRejectsEscapingNames(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"../outside.csv", "/etc/passwd", "a/../../b.csv"} {
		_, err := store.Save(name, []byte("x"))
		require.Error(t, err, name)
	}
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = store.Save("old.csv", []byte("x"))
	require.NoError(t, err)
	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.csv"), stale, stale))

	_, err = store.Save("fresh.csv", []byte("y"))
	require.NoError(t, err)

	deleted, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	require.Equal(t, []string{"old.csv"}, deleted)

	_, err = store.Open("fresh.csv")
	require.NoError(t, err)
}

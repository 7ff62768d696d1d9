package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openBackends(t *testing.T) map[string]func() Database {
	t.Helper()
	dir := t.TempDir()
	return map[string]func() Database{
		"memory": func() Database { return NewMemDB() },
		"leveldb": func() Database {
			db, err := NewLevelDB(filepath.Join(dir, "level"))
			require.NoError(t, err)
			return db
		},
		"bolt": func() Database {
			db, err := NewBoltDB(filepath.Join(dir, "state.db"), nil)
			require.NoError(t, err)
			return db
		},
	}
}

func TestDatabaseGetMissingReturnsErrNotFound(t *testing.T) {
	for name, open := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			db := open()
			defer db.Close()

			_, err := db.Get([]byte("missing"))
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestDatabaseBatchAppliesAllWrites(t *testing.T) {
	for name, open := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			db := open()
			defer db.Close()

			require.NoError(t, db.Put([]byte("stale"), []byte("x")))

			batch := db.NewBatch()
			batch.Put([]byte("a"), []byte("1"))
			batch.Put([]byte("b"), []byte("2"))
			batch.Delete([]byte("stale"))
			require.Equal(t, 3, batch.Len())
			require.NoError(t, batch.Write())

			got, err := db.Get([]byte("a"))
			require.NoError(t, err)
			require.Equal(t, []byte("1"), got)
			got, err = db.Get([]byte("b"))
			require.NoError(t, err)
			require.Equal(t, []byte("2"), got)
			_, err = db.Get([]byte("stale"))
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	value := []byte("abc")
	require.NoError(t, db.Put([]byte("k"), value))
	value[0] = 'z'

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)
}

func TestBoltDBPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	db, err := NewBoltDB(path, nil)
	require.NoError(t, err)
	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	require.NoError(t, db.Close())

	reopened, err := NewBoltDB(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open("rocks", t.TempDir())
	require.Error(t, err)

	db, err := Open(BackendMemory, "")
	require.NoError(t, err)
	require.IsType(t, &MemDB{}, db)
}

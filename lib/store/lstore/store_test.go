package lstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/rKV/lib/db"
	"github.com/ValentinKolb/rKV/lib/db/engines/maple"
	"github.com/ValentinKolb/rKV/lib/store"
	storetesting "github.com/ValentinKolb/rKV/lib/store/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapleFactory() db.KVDB {
	return maple.NewMapleDB(nil)
}

func Test(t *testing.T) {
	storetesting.RunIStoreTests(t, "LocalStore(memory)", func() store.IStore {
		return NewLocalStore(mapleFactory, "")
	})

	storetesting.RunIStoreTests(t, "LocalStore(disk)", func() store.IStore {
		return NewLocalStore(mapleFactory, t.TempDir())
	})

	dir := t.TempDir()
	storetesting.RunIStorePersistenceTests(t, "LocalStore(reopen)", func() store.IStore {
		return NewLocalStore(mapleFactory, dir)
	})
}

func TestLocalStore_SnapshotLayout(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(mapleFactory, dir)
	defer s.Close()

	ns := store.Namespace{DBName: "app", StoreName: "settings"}
	require.NoError(t, s.Put(context.Background(), ns, "theme", []byte(`"dark"`)))

	path := filepath.Join(dir, "app", "settings.maple")
	assert.FileExists(t, path)

	entries, err := os.ReadDir(filepath.Join(dir, "app"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary snapshot files must be cleaned up")
}

func TestLocalStore_CorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	ns := store.Namespace{DBName: "app", StoreName: "broken"}

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "app"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app", "broken.maple"), []byte("garbage"), 0o644))

	s := NewLocalStore(mapleFactory, dir)
	defer s.Close()

	_, _, err := s.Get(context.Background(), ns, "key")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.NewError(store.RetCInternalError, ""))

	// other namespaces are unaffected
	ok := store.Namespace{DBName: "app", StoreName: "fine"}
	require.NoError(t, s.Put(context.Background(), ok, "key", []byte("value")))
}

func TestLocalStore_DBInfoLatency(t *testing.T) {
	s := NewLocalStore(mapleFactory, "")
	defer s.Close()

	ns := store.Namespace{DBName: "app", StoreName: "timed"}
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, ns, "a", []byte("1")))
	_, _, err := s.Get(ctx, ns, "a")
	require.NoError(t, err)
	_, _, err = s.Get(ctx, ns, "b")
	require.NoError(t, err)

	info, err := s.GetDBInfo(ns)
	require.NoError(t, err)
	assert.Equal(t, db.ImplMaple, info.DbType)
	assert.Equal(t, 1, info.Entries)

	require.NotNil(t, info.Metadata)

	nsdb, ok := s.(*storeImpl).namespaces.Load(ns)
	require.True(t, ok)
	assert.EqualValues(t, 2, NewTimerStats(nsdb.getTimer).Count)
	assert.EqualValues(t, 1, NewTimerStats(nsdb.putTimer).Count)
}

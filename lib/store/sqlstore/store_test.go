package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/rKV/lib/db"
	"github.com/ValentinKolb/rKV/lib/store"
	storetesting "github.com/ValentinKolb/rKV/lib/store/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, dir string) store.IStore {
	t.Helper()
	s, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	return s
}

func Test(t *testing.T) {
	storetesting.RunIStoreTests(t, "SQLiteStore(memory)", func() store.IStore {
		return newStore(t, "")
	})

	storetesting.RunIStoreTests(t, "SQLiteStore(disk)", func() store.IStore {
		return newStore(t, t.TempDir())
	})

	dir := t.TempDir()
	storetesting.RunIStorePersistenceTests(t, "SQLiteStore(reopen)", func() store.IStore {
		return newStore(t, dir)
	})
}

func TestSQLiteStore_FilePerDB(t *testing.T) {
	dir := t.TempDir()
	s := newStore(t, dir)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, store.Namespace{DBName: "app", StoreName: "a"}, "k", []byte("1")))
	require.NoError(t, s.Put(ctx, store.Namespace{DBName: "app", StoreName: "b"}, "k", []byte("2")))
	require.NoError(t, s.Put(ctx, store.Namespace{DBName: "other", StoreName: "a"}, "k", []byte("3")))

	assert.FileExists(t, filepath.Join(dir, "app.sqlite"))
	assert.FileExists(t, filepath.Join(dir, "other.sqlite"))
}

func TestSQLiteStore_QuotedStoreName(t *testing.T) {
	s := newStore(t, "")
	defer s.Close()

	ctx := context.Background()
	ns := store.Namespace{DBName: "app", StoreName: `we"ird; DROP TABLE x`}
	require.NoError(t, s.Put(ctx, ns, "k", []byte("v")))

	value, ok, err := s.Get(ctx, ns, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), value)
}

func TestSQLiteStore_DBInfo(t *testing.T) {
	s := newStore(t, "")
	defer s.Close()

	ctx := context.Background()
	ns := store.Namespace{DBName: "app", StoreName: "info"}
	require.NoError(t, s.Put(ctx, ns, "ab", []byte("cde")))

	info, err := s.GetDBInfo(ns)
	require.NoError(t, err)
	assert.Equal(t, db.ImplSQLite, info.DbType)
	assert.Equal(t, 1, info.Entries)
	assert.Equal(t, 5, info.SizeBytes)
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"kv_plain"`, quoteIdent("kv_plain"))
	assert.Equal(t, `"a""b"`, quoteIdent(`a"b`))
}

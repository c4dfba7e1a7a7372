package util

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ValentinKolb/rKV/lib/common"
	"github.com/ValentinKolb/rKV/lib/db"
	"github.com/ValentinKolb/rKV/lib/reactive"
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapString(t *testing.T) {
	wrapped := WrapString(strings.Repeat("word ", 30))
	for _, line := range strings.Split(wrapped, "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, "short text", WrapString("  short   text "))
}

func TestOpenBackend(t *testing.T) {
	ns := store.Namespace{DBName: "db", StoreName: "s"}

	for _, backend := range []string{common.BackendMemory, common.BackendLocal, common.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			conf := &common.Config{Backend: backend, DataDir: filepath.Join(t.TempDir(), "data")}
			s, err := OpenBackend(conf)
			require.NoError(t, err)
			defer s.Close()

			require.NoError(t, s.Put(context.Background(), ns, "k", []byte("v")))
			info, err := s.GetDBInfo(ns)
			require.NoError(t, err)
			assert.Equal(t, 1, info.Entries)
			if backend == common.BackendSQLite {
				assert.Equal(t, db.ImplSQLite, info.DbType)
			}
		})
	}

	_, err := OpenBackend(&common.Config{Backend: "redis"})
	assert.Error(t, err)
}

func TestOpenRegistry(t *testing.T) {
	conf := &common.Config{
		Backend:    common.BackendLocal,
		DataDir:    t.TempDir(),
		Codec:      "gob",
		Namespace:  store.Namespace{DBName: "cli", StoreName: "values"},
		RacePolicy: reactive.HydrationWins.String(),
	}

	reg, closeRegistry, err := OpenRegistry(conf)
	require.NoError(t, err)

	s, err := reactive.GetStore[int](reg, "n", nil)
	require.NoError(t, err)
	assert.Equal(t, conf.Namespace, s.Identity().Namespace)
	require.NoError(t, closeRegistry())

	conf.Codec = "xml"
	_, _, err = OpenRegistry(conf)
	assert.Error(t, err)

	conf.Codec = "json"
	conf.RacePolicy = "first-wins"
	_, _, err = OpenRegistry(conf)
	assert.Error(t, err)
}

func TestPrintResult(t *testing.T) {
	v := map[string]any{"a": 1}

	var buf bytes.Buffer
	require.NoError(t, PrintResult(&buf, "json", v))
	assert.JSONEq(t, `{"a": 1}`, buf.String())

	buf.Reset()
	require.NoError(t, PrintResult(&buf, "yaml", v))
	assert.Equal(t, "a: 1\n", buf.String())

	buf.Reset()
	require.NoError(t, PrintResult(&buf, "text", "plain"))
	assert.Equal(t, "plain\n", buf.String())

	assert.Error(t, PrintResult(&buf, "xml", v))
}

package cell

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/rKV/cmd/util"
	"github.com/ValentinKolb/rKV/lib/db"
	"github.com/ValentinKolb/rKV/lib/db/engines/maple"
	"github.com/ValentinKolb/rKV/lib/reactive"
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/ValentinKolb/rKV/lib/store/lstore"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCell(t *testing.T, rules util.Rules) (*cell, store.IStore) {
	t.Helper()

	backend := lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }, "")
	reg := reactive.NewRegistry(backend)
	t.Cleanup(func() {
		_ = reg.Close(context.Background())
		_ = backend.Close()
	})

	initial, err := rules.InitialValue()
	require.NoError(t, err)
	opts, err := rules.Options()
	require.NoError(t, err)

	return newCell(reg, initial, opts), backend
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func seed(t *testing.T, backend store.IStore, key, raw string) {
	t.Helper()
	require.NoError(t, backend.Put(context.Background(), reactive.DefaultNamespace, key, []byte(raw)))
}

func TestCellSetAndGet(t *testing.T) {
	c, backend := newTestCell(t, util.Rules{})
	ctx := testContext(t)

	var v any = map[string]any{"name": "ada"}
	res, err := c.Set(ctx, "user", &v)
	require.NoError(t, err)
	assert.Equal(t, "keyval-store/keyval", res.Namespace)
	assert.False(t, res.Null)
	assert.Equal(t, `{"name":"ada"}`, res.Text())

	raw, found, err := backend.Get(ctx, reactive.DefaultNamespace, "user")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"name":"ada"}`, string(raw))

	res, err = c.Get(ctx, "user")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "ada"}, res.Value)
}

func TestCellClearWritesNull(t *testing.T) {
	c, backend := newTestCell(t, util.Rules{Initial: `1`})
	ctx := testContext(t)

	res, err := c.Set(ctx, "n", nil)
	require.NoError(t, err)
	assert.True(t, res.Null)
	assert.Equal(t, "null", res.Text())

	raw, found, err := backend.Get(ctx, reactive.DefaultNamespace, "n")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "null", string(raw))
}

func TestCellSetRepairsInvalidValue(t *testing.T) {
	c, _ := newTestCell(t, util.Rules{Initial: `{"age": 0}`, Schema: `{age: int & >=0}`})
	ctx := testContext(t)

	var v any = map[string]any{"age": -5}
	res, err := c.Set(ctx, "person", &v)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"age": float64(0)}, res.Value)
}

func TestCellCheck(t *testing.T) {
	rules := util.Rules{Initial: `{"count": 0}`, Expr: `count >= 0`}

	t.Run("missing", func(t *testing.T) {
		c, backend := newTestCell(t, rules)
		ctx := testContext(t)

		res, err := c.Check(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, StatusMissing, res.Status)
		assert.Equal(t, map[string]any{"count": float64(0)}, res.Value)

		raw, found, err := backend.Get(ctx, reactive.DefaultNamespace, "k")
		require.NoError(t, err)
		require.True(t, found, "missing record is written back")
		assert.JSONEq(t, `{"count": 0}`, string(raw))
	})

	t.Run("repaired", func(t *testing.T) {
		c, backend := newTestCell(t, rules)
		ctx := testContext(t)
		seed(t, backend, "k", `{"count": -1}`)

		res, err := c.Check(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, StatusRepaired, res.Status)
		assert.Equal(t, `repaired: {"count":0}`, res.Text())
	})

	t.Run("undecodable", func(t *testing.T) {
		c, backend := newTestCell(t, rules)
		ctx := testContext(t)
		seed(t, backend, "k", `{not json`)

		res, err := c.Check(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, StatusRepaired, res.Status)
	})

	t.Run("valid", func(t *testing.T) {
		c, backend := newTestCell(t, rules)
		ctx := testContext(t)
		seed(t, backend, "k", `{"count": 7}`)

		res, err := c.Check(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, StatusValid, res.Status)
		assert.Equal(t, map[string]any{"count": float64(7)}, res.Value)
	})

	t.Run("null", func(t *testing.T) {
		c, backend := newTestCell(t, rules)
		ctx := testContext(t)
		seed(t, backend, "k", `null`)

		res, err := c.Check(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, StatusNull, res.Status)
		assert.Nil(t, res.Value)
	})
}

func TestRulesOptions(t *testing.T) {
	_, err := util.Rules{Schema: `{a: `}.Options()
	assert.Error(t, err, "broken CUE must not compile")

	_, err = util.Rules{Initial: `{`}.InitialValue()
	assert.Error(t, err)

	opts, err := util.Rules{}.Options()
	require.NoError(t, err)
	assert.Empty(t, opts)
}

// testRoot wires the cell commands below a root carrying the backend flags
var testRoot = func() *cobra.Command {
	root := &cobra.Command{Use: "rkv", SilenceUsage: true}
	util.SetupBackendFlags(root)
	root.AddCommand(CellCommands)
	return root
}()

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	testRoot.SetOut(&out)
	testRoot.SetErr(&out)
	testRoot.SetArgs(args)
	require.NoError(t, testRoot.Execute(), out.String())
	return out.String()
}

func TestCellCommandsPersistAcrossRuns(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	common := []string{"--backend", "local", "--data-dir", dir, "--schema", `{n: int}`, "--initial", `{"n": 0}`}

	out := execute(t, append([]string{"cell", "set", "counter", `{"n": 41}`, "--output", "json"}, common...)...)
	var res Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, map[string]any{"n": float64(41)}, res.Value)

	out = execute(t, append([]string{"cell", "get", "counter", "--output", "text"}, common...)...)
	assert.Equal(t, "{\"n\":41}\n", out)

	out = execute(t, append([]string{"cell", "check", "counter", "--output", "yaml"}, common...)...)
	assert.Contains(t, out, "status: valid")
}

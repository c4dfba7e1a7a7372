package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetArgs([]string{"version"})

	require.NoError(t, RootCmd.Execute())
	assert.Equal(t, "rKV v"+Version+"\n", out.String())
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"serve"},
		{"cell", "get"},
		{"cell", "set"},
		{"cell", "clear"},
		{"cell", "check"},
	} {
		c, _, err := RootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], c.Name())
	}

	for _, flag := range []string{"backend", "data-dir", "codec", "db-name", "store-name", "race-policy", "log-level", "output"} {
		assert.NotNil(t, RootCmd.PersistentFlags().Lookup(flag), flag)
	}
}

package common

import (
	"bytes"
	"os"
	"testing"

	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]logger.LogLevel{
		"debug":   logger.DEBUG,
		"INFO":    logger.INFO,
		"warn":    logger.WARNING,
		"warning": logger.WARNING,
		"error":   logger.ERROR,
	}
	for in, want := range cases {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLogLevel("verbose")
	assert.Error(t, err)
}

func TestLoggerFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	defer SetLogOutput(os.Stderr)

	l := CreateLogger("test")
	l.SetLevel(logger.WARNING)

	l.Infof("hidden %d", 1)
	l.Warningf("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN  | test       | shown 2")
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Backend:   BackendMemory,
		Output:    "text",
		Namespace: store.Namespace{DBName: "db", StoreName: "s"},
	}
	require.NoError(t, valid.Validate())

	local := valid
	local.Backend = BackendLocal
	assert.Error(t, local.Validate(), "local backend needs a data dir")
	local.DataDir = "/tmp/rkv"
	assert.NoError(t, local.Validate())

	bad := valid
	bad.Backend = "redis"
	assert.Error(t, bad.Validate())

	bad = valid
	bad.Output = "xml"
	assert.Error(t, bad.Validate())

	bad = valid
	bad.Namespace.StoreName = ""
	assert.Error(t, bad.Validate())
}

func TestConfigString(t *testing.T) {
	c := Config{
		Backend:    BackendSQLite,
		DataDir:    "/var/lib/rkv",
		Codec:      "json",
		Namespace:  store.Namespace{DBName: "keyval-store", StoreName: "keyval"},
		RacePolicy: "last-writer-wins",
		Endpoint:   "0.0.0.0:8080",
		LogLevel:   "info",
	}
	s := c.String()
	assert.Contains(t, s, "PERSISTENCE")
	assert.Contains(t, s, "/var/lib/rkv")
	assert.Contains(t, s, "keyval-store/keyval")
	assert.Contains(t, s, "HTTP API")
}

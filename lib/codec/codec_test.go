package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testCodecs is a map of codec name to factory function
var testCodecs = map[string]func() ICodec{
	"JSON": NewJSONCodec,
	"GOB":  NewGOBCodec,
}

type counter struct {
	Count int
	Label string
}

func TestCodecRoundTrip(t *testing.T) {
	for name, factory := range testCodecs {
		t.Run(name, func(t *testing.T) {
			c := factory()

			in := counter{Count: 7, Label: "seven"}
			b, err := c.Marshal(&in)
			require.NoError(t, err)
			assert.False(t, c.IsNull(b), "encoded value must not look like a tombstone")

			var out counter
			require.NoError(t, c.Unmarshal(b, &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestCodecNullTombstone(t *testing.T) {
	for name, factory := range testCodecs {
		t.Run(name, func(t *testing.T) {
			c := factory()

			null := c.Null()
			assert.True(t, c.IsNull(null))

			var out counter
			assert.Error(t, c.Unmarshal(null, &out), "a tombstone must not decode into a value")

			// callers may modify the returned slice
			null[0] = 'x'
			assert.True(t, c.IsNull(c.Null()))
		})
	}
}

func TestCodecRejectsGarbage(t *testing.T) {
	for name, factory := range testCodecs {
		t.Run(name, func(t *testing.T) {
			c := factory()
			var out counter
			assert.Error(t, c.Unmarshal([]byte(`"not-an-object"`), &out))
		})
	}
}

func TestJSONCodecNullWhitespace(t *testing.T) {
	c := NewJSONCodec()
	assert.True(t, c.IsNull([]byte(" null\n")))
	assert.False(t, c.IsNull([]byte(`"null"`)))
}

func TestJSONCodecNilCollectionsAreNotNull(t *testing.T) {
	c := NewJSONCodec()

	var nilSlice []string
	b, err := c.Marshal(&nilSlice)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))

	var out []string
	require.NoError(t, c.Unmarshal(b, &out))
	assert.Empty(t, out)

	var nilMap map[string]int
	b, err = c.Marshal(&nilMap)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))

	var nilAny any
	_, err = c.Marshal(&nilAny)
	assert.True(t, errors.Is(err, ErrNullEncoding), "got %v", err)

	var nilPtr *counter
	_, err = c.Marshal(&nilPtr)
	assert.True(t, errors.Is(err, ErrNullEncoding), "got %v", err)
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "gob"} {
		c, err := ByName(name)
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}

	c, err := ByName("")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())

	_, err = ByName("xml")
	assert.Error(t, err)
}

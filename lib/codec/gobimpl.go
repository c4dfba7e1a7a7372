package codec

import (
	"bytes"
	"encoding/gob"
	"errors"
)

// gobNull is a single zero byte. Every gob stream starts with a non-zero message
// length, so it can not collide with an encoded value.
var gobNull = []byte{0}

func init() {
	// untyped JSON-like documents (Store[any]) hold these behind interfaces
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// NewGOBCodec creates a new codec using Go's binary gob format
func NewGOBCodec() ICodec {
	return &gobCodecImpl{}
}

// gobCodecImpl implements the ICodec interface using gob encoding
type gobCodecImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.ICodec)
// --------------------------------------------------------------------------

func (g gobCodecImpl) Name() string {
	return "gob"
}

func (g gobCodecImpl) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g gobCodecImpl) Unmarshal(b []byte, v any) error {
	if g.IsNull(b) {
		return errors.New("gob: cannot decode null tombstone into a value")
	}
	buf := bytes.NewBuffer(b)
	dec := gob.NewDecoder(buf)
	return dec.Decode(v)
}

func (g gobCodecImpl) Null() []byte {
	return bytes.Clone(gobNull)
}

func (g gobCodecImpl) IsNull(b []byte) bool {
	return bytes.Equal(b, gobNull)
}

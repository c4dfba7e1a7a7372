package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

var jsonNull = []byte("null")

// ErrNullEncoding is returned by Marshal for values that would encode to the null
// tombstone and have no empty non-null form, e.g. a nil pointer behind a pointer.
var ErrNullEncoding = errors.New("value encodes to the null tombstone")

// NewJSONCodec creates a new codec using json encoding.
// The null tombstone is the JSON literal null.
func NewJSONCodec() ICodec {
	return &jsonCodecImpl{}
}

// jsonCodecImpl implements the ICodec interface using json encoding
type jsonCodecImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.ICodec)
// --------------------------------------------------------------------------

func (j jsonCodecImpl) Name() string {
	return "json"
}

func (j jsonCodecImpl) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil || !j.IsNull(b) {
		return b, err
	}
	// nil slices and maps encode to null, which would read back as a tombstone
	return emptyForm(v)
}

func (j jsonCodecImpl) Unmarshal(b []byte, v any) error {
	// json.Unmarshal silently accepts null for most types, which would turn a tombstone into a zero value
	if j.IsNull(b) {
		return errors.New("json: cannot decode null tombstone into a value")
	}
	return json.Unmarshal(b, v)
}

func (j jsonCodecImpl) Null() []byte {
	return bytes.Clone(jsonNull)
}

func (j jsonCodecImpl) IsNull(b []byte) bool {
	return bytes.Equal(bytes.TrimSpace(b), jsonNull)
}

// emptyForm returns the empty non-null encoding of v, which json encoded as null.
func emptyForm(v any) ([]byte, error) {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) && !rv.IsNil() {
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Slice:
		return []byte("[]"), nil
	case reflect.Map:
		return []byte("{}"), nil
	default:
		return nil, fmt.Errorf("json: %T: %w", v, ErrNullEncoding)
	}
}

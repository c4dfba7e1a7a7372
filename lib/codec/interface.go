package codec

import "fmt"

// ICodec encodes values for persistence. Besides regular values every codec has an
// explicit null tombstone: a persisted record that means "the value is null" as opposed
// to "there is no record".
type ICodec interface {
	// Name returns the name used to select the codec (see ByName)
	Name() string
	// Marshal encodes the value v points to. v must not be nil.
	// The result is never the null tombstone: values that would encode to it are encoded
	// in their empty form or rejected with ErrNullEncoding.
	Marshal(v any) ([]byte, error)
	// Unmarshal decodes b into the value v points to.
	// It returns an error if b is the null tombstone or does not fit v.
	Unmarshal(b []byte, v any) error
	// Null returns the encoded null tombstone
	Null() []byte
	// IsNull reports whether b is the null tombstone
	IsNull(b []byte) bool
}

// ByName returns the codec registered under name ("json" or "gob").
func ByName(name string) (ICodec, error) {
	switch name {
	case "json", "":
		return NewJSONCodec(), nil
	case "gob":
		return NewGOBCodec(), nil
	default:
		return nil, fmt.Errorf("unknown codec: %s. must be one of json, gob", name)
	}
}

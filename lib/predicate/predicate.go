package predicate

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("predicate")

// Validator reports whether a value may be stored.
type Validator[T any] func(value *T) bool

// Equaler reports whether two values are equal, so storing b over a changes nothing.
type Equaler[T any] func(a, b *T) bool

// --------------------------------------------------------------------------
// Equality
// --------------------------------------------------------------------------

// DeepEqual is the default Equaler.
// Identical pointers are equal, nil is only equal to nil, everything else is compared
// with reflect.DeepEqual: scalars directly, structs, maps and slices element by element.
func DeepEqual[T any](a, b *T) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return reflect.DeepEqual(*a, *b)
}

// --------------------------------------------------------------------------
// Validation
// --------------------------------------------------------------------------

// Always accepts every value
func Always[T any](*T) bool {
	return true
}

// All accepts a value only if every validator accepts it. Nil validators are skipped.
func All[T any](validators ...Validator[T]) Validator[T] {
	return func(value *T) bool {
		for _, v := range validators {
			if v != nil && !v(value) {
				return false
			}
		}
		return true
	}
}

// Check is a compiled validation rule evaluated against the document form of a value:
// the value as it would look after a JSON round trip (maps, slices, float64, string, bool, nil).
type Check interface {
	// Language returns the rule language, e.g. "cue"
	Language() string
	// Source returns the rule as written
	Source() string
	// Eval reports whether doc satisfies the rule
	Eval(doc any) (bool, error)
}

// FromCheck adapts c to a Validator. Values that can not be converted or fail to evaluate
// are reported invalid.
func FromCheck[T any](c Check) Validator[T] {
	return func(value *T) bool {
		doc, err := ToDocument(value)
		if err != nil {
			Logger.Debugf("%s check: %v", c.Language(), err)
			return false
		}
		ok, err := c.Eval(doc)
		if err != nil {
			Logger.Debugf("%s check %q: %v", c.Language(), c.Source(), err)
			return false
		}
		return ok
	}
}

// ToDocument converts value into its JSON document form.
func ToDocument[T any](value *T) (any, error) {
	if value == nil {
		return nil, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("convert %T to document: %w", value, err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("convert %T to document: %w", value, err)
	}
	return doc, nil
}

// Compile compiles source in the given rule language ("cue", "expr", "cel" or "js").
func Compile(language, source string) (Check, error) {
	switch language {
	case "cue":
		return NewCUE(source)
	case "expr":
		return NewExpr(source)
	case "cel":
		return NewCEL(source)
	case "js":
		return NewJS(source)
	default:
		return nil, fmt.Errorf("unknown rule language: %s. must be one of cue, expr, cel, js", language)
	}
}

// envFor builds the variables an expression sees: the document as "value" and,
// for objects, each top level field under its own name.
func envFor(doc any) map[string]any {
	env := map[string]any{"value": doc}
	if fields, ok := doc.(map[string]any); ok {
		for key, v := range fields {
			if key != "value" {
				env[key] = v
			}
		}
	}
	return env
}

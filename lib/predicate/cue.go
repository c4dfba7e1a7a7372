package predicate

import (
	"encoding/json"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

type cueCheck struct {
	source string

	// cue values share their runtime, which is not safe for concurrent use
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
}

// NewCUE compiles a CUE schema, e.g. `{count: number & >=0}`.
// A value is valid if it unifies with the schema into a concrete value.
func NewCUE(schema string) (Check, error) {
	if schema == "" {
		return nil, fmt.Errorf("cue: schema must not be empty")
	}
	ctx := cuecontext.New()
	value := ctx.CompileString(schema)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("cue: compile schema: %w", err)
	}
	return &cueCheck{source: schema, ctx: ctx, schema: value}, nil
}

func (c *cueCheck) Language() string { return "cue" }

func (c *cueCheck) Source() string { return c.source }

func (c *cueCheck) Eval(doc any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// compiled from JSON so whole numbers stay ints instead of becoming float64
	b, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("cue: encode value: %w", err)
	}
	value := c.ctx.CompileBytes(b)
	if err := value.Err(); err != nil {
		return false, fmt.Errorf("cue: encode value: %w", err)
	}
	if err := c.schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		Logger.Debugf("cue: value rejected: %v", err)
		return false, nil
	}
	return true, nil
}

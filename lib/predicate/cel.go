package predicate

import (
	"fmt"

	celgo "github.com/google/cel-go/cel"
)

type celCheck struct {
	source  string
	program celgo.Program
}

// NewCEL compiles a CEL expression over the variable value,
// e.g. `value.count >= 0`. The expression must have type bool.
func NewCEL(expression string) (Check, error) {
	if expression == "" {
		return nil, fmt.Errorf("cel: expression must not be empty")
	}
	env, err := celgo.NewEnv(
		celgo.Variable("value", celgo.DynType),
		celgo.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("cel: build env: %w", err)
	}
	ast, issues := env.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("cel: parse %q: %w", expression, issues.Err())
	}
	checked, issues := env.Check(ast)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("cel: check %q: %w", expression, issues.Err())
	}
	if out := checked.OutputType().String(); out != "bool" && out != "dyn" {
		return nil, fmt.Errorf("cel: %q has type %s, expected bool", expression, out)
	}
	prg, err := env.Program(checked)
	if err != nil {
		return nil, fmt.Errorf("cel: program %q: %w", expression, err)
	}
	return &celCheck{source: expression, program: prg}, nil
}

func (c *celCheck) Language() string { return "cel" }

func (c *celCheck) Source() string { return c.source }

func (c *celCheck) Eval(doc any) (bool, error) {
	out, _, err := c.program.Eval(map[string]any{"value": doc})
	if err != nil {
		return false, err
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("cel: expected bool, got %T", out.Value())
	}
	return ok, nil
}

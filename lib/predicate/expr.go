package predicate

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

type exprCheck struct {
	source  string
	program *exprvm.Program
}

// NewExpr compiles an expr-lang expression that must evaluate to a bool,
// e.g. `count >= 0 && len(label) > 0`.
func NewExpr(expression string) (Check, error) {
	if expression == "" {
		return nil, fmt.Errorf("expr: expression must not be empty")
	}
	program, err := exprlang.Compile(expression,
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
		exprlang.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("expr: compile %q: %w", expression, err)
	}
	return &exprCheck{source: expression, program: program}, nil
}

func (e *exprCheck) Language() string { return "expr" }

func (e *exprCheck) Source() string { return e.source }

func (e *exprCheck) Eval(doc any) (bool, error) {
	result, err := exprlang.Run(e.program, envFor(doc))
	if err != nil {
		return false, err
	}
	ok, isBool := result.(bool)
	if !isBool {
		return false, fmt.Errorf("expr: expected bool, got %T", result)
	}
	return ok, nil
}

package predicate

import (
	"fmt"

	"github.com/dop251/goja"
)

type jsCheck struct {
	source  string
	program *goja.Program
}

// NewJS compiles a JavaScript expression, e.g. `typeof value.count === "number"`.
// The result is converted with JavaScript truthiness.
func NewJS(expression string) (Check, error) {
	if expression == "" {
		return nil, fmt.Errorf("js: expression must not be empty")
	}
	program, err := goja.Compile("", "("+expression+")", false)
	if err != nil {
		return nil, fmt.Errorf("js: compile %q: %w", expression, err)
	}
	return &jsCheck{source: expression, program: program}, nil
}

func (j *jsCheck) Language() string { return "js" }

func (j *jsCheck) Source() string { return j.source }

// Eval runs the program in a fresh runtime; goja runtimes are not safe for concurrent use.
func (j *jsCheck) Eval(doc any) (bool, error) {
	vm := goja.New()
	for key, value := range envFor(doc) {
		if err := vm.Set(key, value); err != nil {
			return false, err
		}
	}
	result, err := vm.RunProgram(j.program)
	if err != nil {
		return false, err
	}
	return result.ToBoolean(), nil
}

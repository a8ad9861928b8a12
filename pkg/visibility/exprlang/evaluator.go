// Package exprlang provides a visibility.Evaluator backed by
// github.com/expr-lang/expr. It accepts the full expr language, which is a
// superset of the rules the default engine understands.
package exprlang

import (
	"fmt"
	"strings"
	"sync"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/goliatone/go-formflow/pkg/visibility"
)

// Evaluator compiles rules once and runs them against a merged environment
// made of the form values plus an `extras` map.
type Evaluator struct {
	mu       sync.RWMutex
	programs map[string]*exprvm.Program
}

var _ visibility.Evaluator = (*Evaluator)(nil)

// New constructs an Evaluator with an empty program cache.
func New() *Evaluator {
	return &Evaluator{programs: make(map[string]*exprvm.Program)}
}

// Eval runs rule against ctx. Rules must produce a boolean.
func (e *Evaluator) Eval(fieldPath, rule string, ctx visibility.Context) (bool, error) {
	trimmed := strings.TrimSpace(rule)
	if trimmed == "" {
		return true, nil
	}
	program, err := e.program(trimmed)
	if err != nil {
		return false, err
	}

	env := make(map[string]any, len(ctx.Values)+1)
	for key, value := range ctx.Values {
		env[key] = value
	}
	extras := make(map[string]any, len(ctx.Extras))
	for key, value := range ctx.Extras {
		extras[key] = value
	}
	env["extras"] = extras

	out, err := exprlang.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("visibility/exprlang: evaluate %q for %s: %w", trimmed, fieldPath, err)
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("visibility/exprlang: rule %q returned %T, want bool", trimmed, out)
	}
	return result, nil
}

// Check compiles rule without running it.
func (e *Evaluator) Check(rule string) error {
	trimmed := strings.TrimSpace(rule)
	if trimmed == "" {
		return nil
	}
	_, err := e.program(trimmed)
	return err
}

func (e *Evaluator) program(rule string) (*exprvm.Program, error) {
	e.mu.RLock()
	program, ok := e.programs[rule]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := exprlang.Compile(rule,
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
		exprlang.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("visibility/exprlang: compile %q: %w", rule, err)
	}

	e.mu.Lock()
	e.programs[rule] = program
	e.mu.Unlock()
	return program, nil
}

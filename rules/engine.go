// Package rules compiles and evaluates CEL filter expressions over records.
//
// An expression sees the record as the map variable `row`, e.g.
// `row.score >= 80 && row.email.endsWith("@site.com")`.
package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// RulesEngine handles compilation and evaluation of CEL rules
type RulesEngine struct {
	env      *cel.Env
	prgCache sync.Map // map[string]cel.Program
}

// Rule is a compiled expression bound to its engine
type Rule struct {
	expression string
	prg        cel.Program
}

var (
	defaultOnce   sync.Once
	defaultEngine *RulesEngine
	defaultErr    error
)

// Default returns a process wide engine shared by all queries
func Default() (*RulesEngine, error) {
	defaultOnce.Do(func() {
		defaultEngine, defaultErr = NewRulesEngine()
	})
	return defaultEngine, defaultErr
}

// NewRulesEngine creates a new RulesEngine with standard environment
func NewRulesEngine() (*RulesEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("row", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, err
	}

	return &RulesEngine{
		env: env,
	}, nil
}

// Compile checks an expression and returns a reusable rule.
// Programs are cached by expression text.
func (re *RulesEngine) Compile(expression string) (*Rule, error) {
	if expression == "" {
		return nil, fmt.Errorf("empty expression")
	}

	if val, ok := re.prgCache.Load(expression); ok {
		return &Rule{expression: expression, prg: val.(cel.Program)}, nil
	}

	ast, issues := re.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %s", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) && !ast.OutputType().IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression must return boolean, got %s", ast.OutputType())
	}

	prg, err := re.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program construction error: %s", err)
	}
	re.prgCache.Store(expression, prg)

	return &Rule{expression: expression, prg: prg}, nil
}

// Evaluate evaluates a rule expression against a row
func (re *RulesEngine) Evaluate(expression string, row map[string]interface{}) (bool, error) {
	rule, err := re.Compile(expression)
	if err != nil {
		return false, err
	}
	return rule.Eval(row)
}

// Eval runs the rule against a row
func (r *Rule) Eval(row map[string]interface{}) (bool, error) {
	out, _, err := r.prg.Eval(map[string]interface{}{"row": row})
	if err != nil {
		return false, fmt.Errorf("eval error in %q: %s", r.expression, err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule %q must return boolean", r.expression)
	}

	return result, nil
}

// String returns the source expression
func (r *Rule) String() string {
	return r.expression
}

package services

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
)

// DefaultShareRule is the eligibility expression used when the engine
// config does not override it. Evaluated over a string-map context.
const DefaultShareRule = `ctx.taggable == "true" && ctx.show_in_cross_shares == "true" && ctx.target_status == "active"`

var newShareRuleEnv = func() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("ctx", cel.MapType(cel.StringType, cel.StringType)))
}

var shareRuleProgramCache sync.Map

func evalShareRule(expr string, ctxMap map[string]string) (bool, error) {
	program, err := loadOrCompileShareRule(expr)
	if err != nil {
		return false, err
	}
	out, _, err := program.Eval(map[string]any{"ctx": ctxMap})
	if err != nil {
		return false, err
	}
	v, ok := out.Value().(bool)
	if !ok {
		return false, errors.New("share rule returned non-bool")
	}
	return v, nil
}

func loadOrCompileShareRule(expr string) (cel.Program, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = DefaultShareRule
	}
	if cached, ok := shareRuleProgramCache.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	env, err := newShareRuleEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if ast.OutputType() != cel.BoolType {
		return nil, errors.New("share rule must evaluate to bool")
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	shareRuleProgramCache.Store(expr, program)
	return program, nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

package stream

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// CompileFilter compiles a CEL expression evaluated against each event
// payload before it is queued for a direct session. The payload is bound
// to the variable `event`, e.g. `event.sku == 'A-100'`.
func CompileFilter(expr string) (cel.Program, error) {
	if expr == "" {
		return nil, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("event", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("filter must evaluate to a boolean, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program creation error: %w", err)
	}
	return prg, nil
}

// evalFilter runs the program against a decoded payload. Evaluation errors
// fail open: a broken filter must not silently drop the feed.
func evalFilter(prg cel.Program, payload map[string]any) bool {
	if prg == nil {
		return true
	}
	out, _, err := prg.Eval(map[string]any{"event": payload})
	if err != nil {
		return true
	}
	match, ok := out.Value().(bool)
	return !ok || match
}

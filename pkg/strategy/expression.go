package strategy

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// programs caches compiled tag expressions; compiled programs are immutable.
var programs sync.Map

func tagEnv(tags []string) map[string]any {
	if tags == nil {
		tags = []string{}
	}
	return map[string]any{"tags": tags}
}

// CompileExpression checks that exprStr is a boolean expression over `tags`.
func CompileExpression(exprStr string) (*vm.Program, error) {
	if p, ok := programs.Load(exprStr); ok {
		return p.(*vm.Program), nil
	}
	program, err := expr.Compile(exprStr, expr.Env(tagEnv(nil)), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile tag expression %q: %w", exprStr, err)
	}
	programs.Store(exprStr, program)
	return program, nil
}

// EvalExpression evaluates a tag expression such as
// `"smoke" in tags && !("slow" in tags)` against the active tags.
func EvalExpression(exprStr string, tags []string) (bool, error) {
	program, err := CompileExpression(exprStr)
	if err != nil {
		return false, err
	}
	output, err := expr.Run(program, tagEnv(tags))
	if err != nil {
		return false, fmt.Errorf("eval tag expression %q: %w", exprStr, err)
	}
	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("tag expression %q did not return bool (got %T: %v)", exprStr, output, output)
	}
	return result, nil
}

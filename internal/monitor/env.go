package monitor

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/driftwatch-project/driftwatch/pkg/structdiff"
)

// RecordEnv is the environment a filter expression is evaluated against,
// once per change record. Expressions like `Kind("added", "removed")` or
// `PathPrefix("inventory")` select which records are kept.
type RecordEnv struct {
	Target string
	Record *structdiff.Change
}

func (e RecordEnv) All() bool {
	return true
}

func (e RecordEnv) None() bool {
	return false
}

func (e RecordEnv) Kinds(vals ...string) bool {
	if len(vals) == 0 {
		return true
	}
	for _, val := range vals {
		if structdiff.ChangeKind(val) == e.Record.Kind {
			return true
		}
	}
	return false
}

func (e RecordEnv) Kind(vals ...string) bool {
	return e.Kinds(vals...)
}

func (e RecordEnv) PathPrefixes(vals ...string) bool {
	if len(vals) == 0 {
		return true
	}
	for _, val := range vals {
		if strings.HasPrefix(e.Record.Path, val) {
			return true
		}
	}
	return false
}

func (e RecordEnv) PathPrefix(vals ...string) bool {
	return e.PathPrefixes(vals...)
}

func (e RecordEnv) Targets(vals ...string) bool {
	if len(vals) == 0 {
		return true
	}
	for _, val := range vals {
		if val == e.Target {
			return true
		}
	}
	return false
}

// CompileFilter compiles a record filter expression. The expression must
// evaluate to a boolean.
func CompileFilter(expression string) (*vm.Program, error) {
	prog, err := expr.Compile(expression, expr.Env(RecordEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", expression, err)
	}
	return prog, nil
}

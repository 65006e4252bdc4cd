// Package expression wraps the expr-lang/expr evaluation engine behind the
// small capability surface the transformation engine needs: compile once,
// evaluate many, plus registration of named functions, value-pipe transforms
// and binary operators.
//
// An Adapter is instance-scoped: registrations on one Adapter are invisible to
// every other Adapter, so two engines never interfere unless they explicitly
// share one Adapter by reference. All registrations must happen before the
// first Compile that depends on them; re-registering a name afterwards does not
// affect already compiled programs.
package expression

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Func implements a custom function or a value-pipe transform. Transforms are
// invoked through expr's pipe operator, so `name | upper()` calls the transform
// registered as "upper" with the piped value as its first argument.
type Func func(args ...interface{}) (interface{}, error)

// BinaryFunc combines the two operands of a custom binary operator.
type BinaryFunc func(left, right interface{}) (interface{}, error)

// Program is a compiled expression. It retains the original source text, which
// compiled programs are otherwise opaque about, for diagnostics.
//
// A Program is immutable and safe for concurrent evaluation.
type Program struct {
	prog   *vm.Program
	source string
}

// Source returns the original, pre-rewrite source text of the expression.
func (p *Program) Source() string {
	return p.source
}

// Adapter compiles and evaluates expressions for one engine instance.
type Adapter struct {
	mu   sync.RWMutex
	opts []expr.Option
	ops  map[string]*binaryOp
}

type binaryOp struct {
	name       string
	precedence int
	callName   string // hidden function the rewriter emits in place of the operator
}

// NewAdapter creates an empty Adapter.
func NewAdapter() *Adapter {
	return &Adapter{ops: make(map[string]*binaryOp)}
}

// AddFunction registers a named function callable as name(args...).
func (a *Adapter) AddFunction(name string, fn Func) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.opts = append(a.opts, expr.Function(name, func(params ...interface{}) (interface{}, error) {
		return fn(params...)
	}))
}

// AddTransform registers a named value-pipe transform. It is callable either
// as a plain function or through the pipe operator: `value | name()`.
func (a *Adapter) AddTransform(name string, fn Func) {
	a.AddFunction(name, fn)
}

// AddBinaryOp registers a custom binary operator with the given precedence.
// Higher precedence binds tighter; see the table in rewrite.go for where the
// built-in operators sit (== is 20, + is 30, * is 40). The operator name may be
// an identifier ("contains") or a symbol ("~=").
func (a *Adapter) AddBinaryOp(name string, precedence int, fn BinaryFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	callName := fmt.Sprintf("__binop%d", len(a.ops))
	a.ops[name] = &binaryOp{name: name, precedence: precedence, callName: callName}
	a.opts = append(a.opts, expr.Function(callName, func(params ...interface{}) (interface{}, error) {
		if len(params) != 2 {
			return nil, fmt.Errorf("operator %q expects 2 operands, got %d", name, len(params))
		}
		return fn(params[0], params[1])
	}))
}

// Compile compiles expression source text. Registered custom binary operators
// are rewritten into function calls before the text reaches expr; the returned
// Program still reports the original source.
//
// Unknown input fields are not a compile error: they evaluate to nil at
// runtime, which is what lets templates probe optional fields.
func (a *Adapter) Compile(source string) (*Program, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	code := source
	if len(a.ops) > 0 {
		rewritten, err := rewriteOperators(source, a.ops)
		if err != nil {
			return nil, err
		}
		code = rewritten
	}

	opts := make([]expr.Option, 0, len(a.opts)+1)
	opts = append(opts, a.opts...)
	opts = append(opts, expr.AllowUndefinedVariables())

	prog, err := expr.Compile(code, opts...)
	if err != nil {
		return nil, err
	}
	return &Program{prog: prog, source: source}, nil
}

// Evaluate runs a compiled Program against one data record.
func (a *Adapter) Evaluate(p *Program, data map[string]interface{}) (interface{}, error) {
	if p == nil || p.prog == nil {
		return nil, fmt.Errorf("invalid program")
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	return expr.Run(p.prog, data)
}

// EvaluateString compiles and evaluates in one call. For repeated evaluation
// of the same text, Compile once instead.
func (a *Adapter) EvaluateString(source string, data map[string]interface{}) (interface{}, error) {
	p, err := a.Compile(source)
	if err != nil {
		return nil, err
	}
	return a.Evaluate(p, data)
}

// Package transform implements the per-record transformation engine and the
// sequential processor that drives it over record streams.
//
// A Transformer holds a compiled template and an expression adapter, both
// read-only, so one Transformer may serve concurrent Transform calls; all
// per-call state lives in a context value threaded through the recursion.
package transform

import (
	"github.com/FirebrandTech/jexlate/pkg/coerce"
	"github.com/FirebrandTech/jexlate/pkg/expression"
	"github.com/FirebrandTech/jexlate/pkg/template"
	"github.com/FirebrandTech/jexlate/pkg/types"
)

// Transformer applies one compiled template to data records.
type Transformer struct {
	root    *template.Node
	adapter *expression.Adapter
}

// New creates a Transformer for a compiled template.
func New(root *template.Node, adapter *expression.Adapter) *Transformer {
	return &Transformer{root: root, adapter: adapter}
}

// walkContext accumulates diagnostics for a single Transform call.
type walkContext struct {
	required   []string
	seen       map[string]struct{}
	violations []types.Violation
}

func (c *walkContext) addRequired(path string) {
	if c.seen == nil {
		c.seen = make(map[string]struct{})
	}
	if _, dup := c.seen[path]; dup {
		return
	}
	c.seen[path] = struct{}{}
	c.required = append(c.required, path)
}

// Transform evaluates the template against one record. When required fields
// resolved absent it fails with *types.RequiredFieldError; otherwise, when
// validate expressions failed, with *types.ValidationError. Required-ness is
// checked first and is fatal.
func (t *Transformer) Transform(data map[string]interface{}) (interface{}, error) {
	wctx := &walkContext{}
	out, _, err := t.node(t.root, data, "", wctx)
	if err != nil {
		return nil, err
	}
	if len(wctx.required) > 0 {
		return nil, &types.RequiredFieldError{Paths: wctx.required}
	}
	if len(wctx.violations) > 0 {
		return nil, &types.ValidationError{Violations: wctx.violations}
	}
	return out, nil
}

// node dispatches on the template node kind. The boolean result reports
// presence: absent results are omitted from enclosing objects and arrays,
// never emitted as null.
func (t *Transformer) node(n *template.Node, data map[string]interface{}, path string, ctx *walkContext) (interface{}, bool, error) {
	switch n.Kind {
	case template.KindObject:
		return t.object(n, data, path, ctx)
	case template.KindArray:
		return t.array(n, data, path, ctx)
	default:
		return t.field(n, data, path, ctx)
	}
}

func (t *Transformer) object(n *template.Node, data map[string]interface{}, path string, ctx *walkContext) (interface{}, bool, error) {
	out := make(map[string]interface{}, len(n.Keys))
	for _, key := range n.Keys {
		v, present, err := t.node(n.Children[key], data, childPath(path, key), ctx)
		if err != nil {
			return nil, false, err
		}
		if present {
			out[key] = v
		}
	}
	return out, true, nil
}

// array projects every element of the named array through the values
// sub-template. The source is a bare key of the current record, looked up
// directly rather than through expression evaluation; dotted paths and
// expressions are not supported here. Input order and arity are preserved,
// except that elements whose sub-template resolves absent are excluded from
// the result rather than left as holes.
func (t *Transformer) array(n *template.Node, data map[string]interface{}, path string, ctx *walkContext) (interface{}, bool, error) {
	if n.If != nil {
		ok, err := t.condition(n.If, n.IfText, data)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
	}
	raw := data[n.Key]
	seq, ok := raw.([]interface{})
	if !ok {
		return nil, false, &types.ShapeError{Path: path, Key: n.Key, Value: raw}
	}
	out := make([]interface{}, 0, len(seq))
	for _, elem := range seq {
		// The element becomes the current data scope for the sub-template.
		// Violations inside elements report against the array's own path.
		v, present, err := t.node(n.Values, asRecord(elem), path, ctx)
		if err != nil {
			return nil, false, err
		}
		if present {
			out = append(out, v)
		}
	}
	return out, true, nil
}

// field runs the per-field state machine: literal short-circuit, if gate,
// from evaluation, coercion, then non-blocking validation.
func (t *Transformer) field(n *template.Node, data map[string]interface{}, path string, ctx *walkContext) (interface{}, bool, error) {
	if n.Literal != nil {
		v, err := t.literal(n)
		return v, err == nil, err
	}

	if n.If != nil {
		ok, err := t.condition(n.If, n.IfText, data)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			if n.Required {
				ctx.addRequired(path)
			}
			return nil, false, nil
		}
	}

	raw, err := t.adapter.Evaluate(n.From, data)
	if err != nil {
		return nil, false, &types.EvaluationError{Expr: n.FromText, Err: err}
	}
	if raw == nil {
		if n.Required {
			ctx.addRequired(path)
		}
		return nil, false, nil
	}

	v, err := coerce.Coerce(raw, n.As)
	if err != nil {
		return nil, false, err
	}

	if n.Validate != nil {
		// Validation sees the already-coerced value, bound as "value"
		// alongside the record's own fields. A falsy result is recorded but
		// does not remove the field from the output.
		env := make(map[string]interface{}, len(data)+1)
		for k, val := range data {
			env[k] = val
		}
		env["value"] = v
		res, err := t.adapter.Evaluate(n.Validate, env)
		if err != nil {
			return nil, false, &types.EvaluationError{Expr: n.ValidateText, Err: err}
		}
		if !truthy(res) {
			ctx.violations = append(ctx.violations, types.Violation{Path: path, Test: n.ValidateText, Value: v})
		}
	}
	return v, true, nil
}

// literal resolves a pre-detected literal form. Detection happened at compile
// time; resolution stays per-record so that a failing value() coercion
// surfaces as an error for the record being transformed.
func (t *Transformer) literal(n *template.Node) (interface{}, error) {
	lit := n.Literal
	switch lit.Form {
	case template.LiteralValue:
		return coerce.Coerce(lit.Text, n.As)
	case template.LiteralString:
		return lit.Text, nil
	case template.LiteralNumber:
		return coerce.Number(lit.Text), nil
	case template.LiteralBoolean:
		return lit.Bool, nil
	default:
		return nil, nil
	}
}

func (t *Transformer) condition(prog *expression.Program, text string, data map[string]interface{}) (bool, error) {
	res, err := t.adapter.Evaluate(prog, data)
	if err != nil {
		return false, &types.EvaluationError{Expr: text, Err: err}
	}
	return truthy(res), nil
}

// truthy decides if/validate outcomes for non-boolean results: nil, false,
// zero and the empty string are falsy; everything else, collections included
// regardless of emptiness, is truthy.
func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case string:
		return t != ""
	}
	return true
}

// asRecord views an array element as the data scope for its sub-template.
// Non-object elements expose no fields.
func asRecord(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func childPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

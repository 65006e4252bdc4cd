// Package template compiles raw template trees into the immutable node union
// the transformation engine walks.
//
// A raw template node is classified structurally, once, at compile time:
// a node carrying "from" whose text contains the [] marker is an Array node
// (and must carry "values"), a node carrying "from" without the marker is a
// Field node, and a node without "from" is an Object node whose every key is
// itself a template node. The classification is never re-inferred per record.
package template

import (
	"github.com/FirebrandTech/jexlate/pkg/coerce"
	"github.com/FirebrandTech/jexlate/pkg/expression"
)

// Kind discriminates the template node union.
type Kind int

const (
	// KindField derives one output value by expression or literal.
	KindField Kind = iota
	// KindArray projects every element of a named array through a sub-template.
	KindArray
	// KindObject nests independently processed keys.
	KindObject
)

// ArrayMarker is the two-character suffix that marks a "from" as an array
// projection. It is stripped at its first occurrence to obtain the bare
// lookup key.
const ArrayMarker = "[]"

// Node is one compiled template node. Nodes are read-only after compilation
// and safe to share across concurrent transformations.
type Node struct {
	Kind Kind

	// FromText is the original "from" source text (Field and Array nodes).
	// Compiled programs are opaque, so diagnostics and literal handling always
	// go through the original text.
	FromText string
	// From is the compiled "from" expression. Nil for Array nodes, and for
	// Field nodes whose FromText matched a literal form.
	From *expression.Program
	// Literal is non-nil when FromText matched one of the literal syntaxes.
	Literal *Literal

	// If gates the node. Nil when the template has no "if".
	If     *expression.Program
	IfText string

	// Field-only.
	Required     bool
	As           coerce.Type
	Validate     *expression.Program
	ValidateText string

	// Array-only: the bare lookup key and the per-element sub-template.
	Key    string
	Values *Node

	// Object-only: children in declaration order.
	Keys     []string
	Children map[string]*Node
}

// LiteralForm identifies which literal syntax a "from" text matched.
type LiteralForm int

const (
	// LiteralValue is value(X): X coerced by the field's explicit type.
	LiteralValue LiteralForm = iota
	// LiteralString is string(X): X verbatim.
	LiteralString
	// LiteralNumber is number(X): numeric parse of X.
	LiteralNumber
	// LiteralBoolean is boolean(true) or boolean(false).
	LiteralBoolean
	// LiteralNull is exactly null().
	LiteralNull
)

// Literal is a pre-detected literal "from". Detection happens once at compile
// time against the original source text; resolution to a value happens per
// record so that coercion failures surface as record errors.
type Literal struct {
	Form LiteralForm
	// Text is the payload between the parentheses (value, string, number).
	Text string
	// Bool is the payload of a boolean literal.
	Bool bool
}

// Object is an order-preserving raw template object. DecodeJSON produces
// Object trees so that required-violation ordering can follow the template's
// declaration order; plain map[string]interface{} templates are accepted too,
// with keys processed in sorted order.
type Object struct {
	Keys   []string
	Values map[string]interface{}
}

// Get returns the value for key, if present.
func (o *Object) Get(key string) (interface{}, bool) {
	v, ok := o.Values[key]
	return v, ok
}

// Set appends key (preserving insertion order) or replaces its value.
func (o *Object) Set(key string, value interface{}) {
	if o.Values == nil {
		o.Values = make(map[string]interface{})
	}
	if _, ok := o.Values[key]; !ok {
		o.Keys = append(o.Keys, key)
	}
	o.Values[key] = value
}

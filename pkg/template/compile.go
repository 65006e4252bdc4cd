package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/FirebrandTech/jexlate/pkg/coerce"
	"github.com/FirebrandTech/jexlate/pkg/expression"
	"github.com/FirebrandTech/jexlate/pkg/types"
)

// Literal syntax patterns, matched whole against the original "from" text.
// Keywords are case-sensitive. Precedence: value, string, number, boolean, null.
// The payload is maximal: any text opening with a literal keyword and closing
// with ')' is one literal, so "string(a) + string(b)" is a string literal with
// the payload "a) + string(b", not an expression.
var (
	literalValue   = regexp.MustCompile(`(?s)^value\((.*)\)$`)
	literalString  = regexp.MustCompile(`(?s)^string\((.*)\)$`)
	literalNumber  = regexp.MustCompile(`(?s)^number\((.*)\)$`)
	literalBoolean = regexp.MustCompile(`^boolean\((true|false)\)$`)
)

const literalNull = "null()"

// programSource abstracts the expression cache so the compiler works with or
// without one.
type programSource interface {
	GetOrCompile(source string, compile func() (*expression.Program, error)) (*expression.Program, error)
}

// Compiler builds compiled template trees through one expression adapter and
// an optional shared program cache.
type Compiler struct {
	Adapter *expression.Adapter
	Cache   programSource
}

// Compile walks the raw template depth-first, classifying every node and
// pre-compiling every expression it carries. It performs no data-dependent
// work: it fails only on malformed structure or expression syntax, and such a
// failure is fatal for engine construction.
func (c *Compiler) Compile(raw interface{}) (*Node, error) {
	if c.Adapter == nil {
		return nil, fmt.Errorf("template: Compiler requires an Adapter")
	}
	return c.compileNode(raw, "")
}

func (c *Compiler) compileNode(raw interface{}, path string) (*Node, error) {
	keys, get, ok := objectOf(raw)
	if !ok {
		return nil, &types.CompilationError{Path: path, Err: fmt.Errorf("template node must be an object, got %T", raw)}
	}

	fromRaw, hasFrom := get("from")
	if !hasFrom {
		return c.compileObject(keys, get, path)
	}
	from, ok := fromRaw.(string)
	if !ok {
		return nil, &types.CompilationError{Path: path, Err: fmt.Errorf(`"from" must be a string, got %T`, fromRaw)}
	}
	if strings.Contains(from, ArrayMarker) {
		return c.compileArray(from, get, path)
	}
	return c.compileField(from, get, path)
}

func (c *Compiler) compileObject(keys []string, get func(string) (interface{}, bool), path string) (*Node, error) {
	node := &Node{
		Kind:     KindObject,
		Keys:     keys,
		Children: make(map[string]*Node, len(keys)),
	}
	for _, key := range keys {
		raw, _ := get(key)
		child, err := c.compileNode(raw, childPath(path, key))
		if err != nil {
			return nil, err
		}
		node.Children[key] = child
	}
	return node, nil
}

func (c *Compiler) compileArray(from string, get func(string) (interface{}, bool), path string) (*Node, error) {
	valuesRaw, ok := get("values")
	if !ok {
		return nil, &types.CompilationError{Path: path, Err: fmt.Errorf(`array template %q has no "values"`, from)}
	}
	// Per-element violations are reported against the array's own path, so the
	// sub-template compiles under the same path.
	values, err := c.compileNode(valuesRaw, path)
	if err != nil {
		return nil, err
	}
	node := &Node{
		Kind:     KindArray,
		FromText: from,
		Key:      strings.Replace(from, ArrayMarker, "", 1),
		Values:   values,
	}
	if err := c.compileIf(node, get, path); err != nil {
		return nil, err
	}
	return node, nil
}

func (c *Compiler) compileField(from string, get func(string) (interface{}, bool), path string) (*Node, error) {
	node := &Node{Kind: KindField, FromText: from}

	if req, ok := get("required"); ok {
		b, ok := req.(bool)
		if !ok {
			return nil, &types.CompilationError{Path: path, Err: fmt.Errorf(`"required" must be a boolean, got %T`, req)}
		}
		node.Required = b
	}
	if as, ok := get("as"); ok {
		s, ok := as.(string)
		if !ok {
			return nil, &types.CompilationError{Path: path, Err: fmt.Errorf(`"as" must be a string, got %T`, as)}
		}
		typ, err := coerce.ParseType(s)
		if err != nil {
			return nil, &types.CompilationError{Path: path, Err: err}
		}
		node.As = typ
	}

	// The literal forms are recognized against the original source text only;
	// a literal "from" is never compiled as an expression.
	if lit := detectLiteral(from); lit != nil {
		node.Literal = lit
	} else {
		prog, err := c.compileExpr(from, path)
		if err != nil {
			return nil, err
		}
		node.From = prog
	}

	if err := c.compileIf(node, get, path); err != nil {
		return nil, err
	}
	if v, ok := get("validate"); ok {
		text, ok := v.(string)
		if !ok {
			return nil, &types.CompilationError{Path: path, Err: fmt.Errorf(`"validate" must be a string, got %T`, v)}
		}
		prog, err := c.compileExpr(text, path)
		if err != nil {
			return nil, err
		}
		node.Validate = prog
		node.ValidateText = text
	}
	return node, nil
}

func (c *Compiler) compileIf(node *Node, get func(string) (interface{}, bool), path string) error {
	raw, ok := get("if")
	if !ok {
		return nil
	}
	text, ok := raw.(string)
	if !ok {
		return &types.CompilationError{Path: path, Err: fmt.Errorf(`"if" must be a string, got %T`, raw)}
	}
	prog, err := c.compileExpr(text, path)
	if err != nil {
		return err
	}
	node.If = prog
	node.IfText = text
	return nil
}

func (c *Compiler) compileExpr(text, path string) (*expression.Program, error) {
	compile := func() (*expression.Program, error) { return c.Adapter.Compile(text) }
	var prog *expression.Program
	var err error
	if c.Cache != nil {
		prog, err = c.Cache.GetOrCompile(text, compile)
	} else {
		prog, err = compile()
	}
	if err != nil {
		return nil, &types.CompilationError{Path: path, Expr: text, Err: err}
	}
	return prog, nil
}

// detectLiteral matches from against the literal syntaxes, in precedence
// order. Returns nil when from is an ordinary expression.
func detectLiteral(from string) *Literal {
	if m := literalValue.FindStringSubmatch(from); m != nil {
		return &Literal{Form: LiteralValue, Text: m[1]}
	}
	if m := literalString.FindStringSubmatch(from); m != nil {
		return &Literal{Form: LiteralString, Text: m[1]}
	}
	if m := literalNumber.FindStringSubmatch(from); m != nil {
		return &Literal{Form: LiteralNumber, Text: m[1]}
	}
	if m := literalBoolean.FindStringSubmatch(from); m != nil {
		return &Literal{Form: LiteralBoolean, Bool: m[1] == "true"}
	}
	if from == literalNull {
		return &Literal{Form: LiteralNull}
	}
	return nil
}

// objectOf normalizes a raw node into its keys and a lookup function.
// *Object preserves declaration order; plain maps process keys sorted so that
// traversal stays deterministic.
func objectOf(raw interface{}) ([]string, func(string) (interface{}, bool), bool) {
	switch t := raw.(type) {
	case *Object:
		return t.Keys, t.Get, true
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys, func(k string) (interface{}, bool) {
			v, ok := t[k]
			return v, ok
		}, true
	}
	return nil, nil, false
}

func childPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

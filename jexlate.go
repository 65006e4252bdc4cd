// Package jexlate is a declarative JSON-to-JSON transformation engine: a
// template document describes how output keys derive from an input record via
// expressions, nested structures, array projections, conditionals, type
// coercion and required/validated fields.
//
// # Quick Start
//
//	engine, err := jexlate.NewFromJSON([]byte(`{
//	    "FirstName": {"from": "first_name", "required": true},
//	    "Age":       {"from": "age", "as": "number", "validate": "age >= 18"}
//	}`))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := engine.Parse(record)
//
// A template compiles once at engine construction and is reused for every
// record; an Engine is safe for concurrent Parse calls.
//
// # Templates
//
// Every template node is classified structurally. A node with a "from" whose
// text ends in the [] marker projects an array ("items[]" with a "values"
// sub-template); a node with a plain "from" derives a single field (optionally
// gated by "if", typed by "as", enforced by "required", checked by
// "validate"); a node without "from" nests objects. The "from" text may also
// be one of the literal forms value(X), string(X), number(X), boolean(true),
// boolean(false) or null(), which bypass expression evaluation entirely.
//
// # Streaming
//
//	results := engine.Stream(ctx, records,
//	    jexlate.OnErrorContinue(),
//	    jexlate.WithErrorCollector(&errs),
//	)
//	for res := range results { ... }
//
// # More Information
//
// For detailed documentation, see:
//   - Expressions: github.com/FirebrandTech/jexlate/pkg/expression
//   - Templates:   github.com/FirebrandTech/jexlate/pkg/template
//   - Transform:   github.com/FirebrandTech/jexlate/pkg/transform
//   - Errors:      github.com/FirebrandTech/jexlate/pkg/types
package jexlate

import (
	"context"
	"fmt"
	"io"

	"github.com/FirebrandTech/jexlate/pkg/cache"
	"github.com/FirebrandTech/jexlate/pkg/expression"
	"github.com/FirebrandTech/jexlate/pkg/template"
	"github.com/FirebrandTech/jexlate/pkg/transform"
)

// Version returns the current version of jexlate.
func Version() string {
	return "v0.1.0-dev"
}

// Engine is a compiled template ready to transform records. Safe for
// concurrent use.
type Engine struct {
	adapter     *expression.Adapter
	cache       *cache.Cache
	root        *template.Node
	transformer *transform.Transformer
}

type config struct {
	adapter   *expression.Adapter
	cache     *cache.Cache
	cacheSize int
	register  []func(*expression.Adapter)
}

// Option configures engine construction.
type Option func(*config)

// WithFunction registers a named function with the engine's expression
// adapter, callable as name(args...) in template expressions.
func WithFunction(name string, fn expression.Func) Option {
	return func(c *config) {
		c.register = append(c.register, func(a *expression.Adapter) { a.AddFunction(name, fn) })
	}
}

// WithTransform registers a named value-pipe transform, usable as
// `value | name()` in template expressions.
func WithTransform(name string, fn expression.Func) Option {
	return func(c *config) {
		c.register = append(c.register, func(a *expression.Adapter) { a.AddTransform(name, fn) })
	}
}

// WithBinaryOp registers a custom binary operator with the given precedence.
func WithBinaryOp(name string, precedence int, fn expression.BinaryFunc) Option {
	return func(c *config) {
		c.register = append(c.register, func(a *expression.Adapter) { a.AddBinaryOp(name, precedence, fn) })
	}
}

// WithAdapter shares an existing expression adapter by reference instead of
// creating one per engine. Registrations from options still apply to it, so
// registering conflicting names across engines sharing one adapter leaves the
// latest registration in effect for programs compiled after it.
func WithAdapter(a *expression.Adapter) Option {
	return func(c *config) { c.adapter = a }
}

// WithCache attaches an external compiled-program cache, letting several
// engines share compiled expressions.
func WithCache(c *cache.Cache) Option {
	return func(cfg *config) { cfg.cache = c }
}

// WithCacheSize sets the capacity of the engine's own program cache.
func WithCacheSize(size int) Option {
	return func(cfg *config) { cfg.cacheSize = size }
}

// New compiles a raw template into an Engine. The template is either a
// map[string]interface{} (keys processed in sorted order) or an
// order-preserving *template.Object tree as produced by the JSON/YAML
// loaders. Compilation performs no data-dependent work: it fails only on
// malformed structure or expression syntax, with *types.CompilationError.
func New(rawTemplate interface{}, opts ...Option) (*Engine, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	adapter := cfg.adapter
	if adapter == nil {
		adapter = expression.NewAdapter()
	}
	// Registration must precede compilation of anything that depends on it.
	for _, reg := range cfg.register {
		reg(adapter)
	}

	c := cfg.cache
	if c == nil {
		c = cache.New(cfg.cacheSize)
	}

	compiler := &template.Compiler{Adapter: adapter, Cache: c}
	root, err := compiler.Compile(rawTemplate)
	if err != nil {
		return nil, err
	}

	return &Engine{
		adapter:     adapter,
		cache:       c,
		root:        root,
		transformer: transform.New(root, adapter),
	}, nil
}

// MustNew is like New but panics when the template does not compile. It
// simplifies safe initialization of global variables.
func MustNew(rawTemplate interface{}, opts ...Option) *Engine {
	e, err := New(rawTemplate, opts...)
	if err != nil {
		panic(fmt.Sprintf("jexlate: New: %v", err))
	}
	return e
}

// NewFromJSON compiles a JSON template document, preserving key declaration
// order for violation reporting.
func NewFromJSON(data []byte, opts ...Option) (*Engine, error) {
	raw, err := template.DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	return New(raw, opts...)
}

// NewFromYAML compiles a YAML template document, preserving key declaration
// order for violation reporting.
func NewFromYAML(data []byte, opts ...Option) (*Engine, error) {
	raw, err := template.DecodeYAML(data)
	if err != nil {
		return nil, err
	}
	return New(raw, opts...)
}

// Parse transforms one record. It fails with *types.RequiredFieldError when
// required fields resolved absent (checked first, fatal), with
// *types.ValidationError when validate expressions failed, or with the
// wrapped per-field error that aborted the walk.
func (e *Engine) Parse(data map[string]interface{}) (map[string]interface{}, error) {
	out, err := e.transformer.Transform(data)
	if err != nil {
		return nil, err
	}
	m, ok := out.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("template root is not an object (produced %T)", out)
	}
	return m, nil
}

// Stream applies the engine to each record received on in, in order, one
// record fully processed before the next. See the stream options for the two
// failure policies; the default halts at the first failing record.
func (e *Engine) Stream(ctx context.Context, in <-chan map[string]interface{}, opts ...StreamOption) <-chan Result {
	return e.transformer.Stream(ctx, in, opts...)
}

// ParseStream reads a sequence of JSON records from r (NDJSON or concatenated
// JSON values) and applies the engine to each one.
func (e *Engine) ParseStream(ctx context.Context, r io.Reader, opts ...StreamOption) <-chan Result {
	return e.transformer.StreamReader(ctx, r, opts...)
}

// Adapter returns the engine's expression adapter, e.g. for sharing with
// another engine via WithAdapter.
func (e *Engine) Adapter() *expression.Adapter {
	return e.adapter
}

// Cache returns the engine's compiled-program cache.
func (e *Engine) Cache() *cache.Cache {
	return e.cache
}

// Re-exported streaming types, so common use of the package needs a single
// import.
type (
	// Result is one streaming output: a transformed record or its error.
	Result = transform.Result
	// StreamOption configures Stream and ParseStream.
	StreamOption = transform.StreamOption
)

// OnErrorContinue switches a stream to the collect-and-continue policy.
func OnErrorContinue() StreamOption {
	return transform.OnErrorContinue()
}

// WithErrorCollector supplies the slice that collects per-record errors under
// OnErrorContinue.
func WithErrorCollector(collector *[]error) StreamOption {
	return transform.WithErrorCollector(collector)
}

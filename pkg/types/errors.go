// Package types defines the structured error kinds surfaced by template
// compilation, record transformation and streaming.
package types

import (
	"fmt"
	"strings"
)

// CompilationError reports a malformed template or expression discovered while
// building an engine. It is fatal: construction fails and no engine is returned.
type CompilationError struct {
	// Path is the dotted template path of the offending node ("" for the root).
	Path string
	// Expr is the expression source text, when the failure came from compiling one.
	Expr string
	// Err is the underlying cause.
	Err error
}

func (e *CompilationError) Error() string {
	if e.Expr != "" {
		return fmt.Sprintf("compile %q at %q: %v", e.Expr, e.Path, e.Err)
	}
	return fmt.Sprintf("compile template at %q: %v", e.Path, e.Err)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

// ShapeError reports that an array template's source value was not an ordered
// sequence. Fatal for the record being transformed.
type ShapeError struct {
	// Path is the dotted path of the array node.
	Path string
	// Key is the bare lookup key obtained by stripping the [] marker.
	Key string
	// Value is the non-sequence value that was found (nil when the key is absent).
	Value interface{}
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("field %q at %q is not an array (got %T)", e.Key, e.Path, e.Value)
}

// EvaluationError wraps an error raised while evaluating an expression against
// a record, carrying the original expression text so the message is
// self-describing per field.
type EvaluationError struct {
	Expr string
	Err  error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate %q: %v", e.Expr, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// CoercionError reports that an explicit json coercion failed to parse.
type CoercionError struct {
	Value interface{}
	Err   error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("coerce %v to json: %v", e.Value, e.Err)
}

func (e *CoercionError) Unwrap() error {
	return e.Err
}

// RequiredFieldError reports required fields that resolved to absent during one
// transformation. Paths preserves template traversal order, de-duplicated.
type RequiredFieldError struct {
	Paths []string
}

func (e *RequiredFieldError) Error() string {
	return "missing required fields: " + strings.Join(e.Paths, ", ")
}

// Violation is one failed validate expression: the field path, the expression
// source text and the coerced value that failed it.
type Violation struct {
	Path  string
	Test  string
	Value interface{}
}

// ValidationError reports fields whose validate expression evaluated falsy
// during one transformation, in template traversal order.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = fmt.Sprintf("%s: %q failed for value %v", v.Path, v.Test, v.Value)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

package expression

import (
	"fmt"
	"strings"
)

// rewriteOperators rebuilds an expression so that every registered custom
// binary operator becomes a call to its hidden function, honoring operator
// precedence. Built-in operators are re-emitted with explicit parentheses so
// the grouping decided here survives expr's own parser unchanged.
//
// The rewriter understands just enough of the expression grammar to find infix
// positions: literals, identifiers, member access and optional chaining, calls,
// index/slice brackets, array and map literals, unary and binary operators
// (including the membership family and its "not" negation), the ternary
// conditional and the pipe. It does not evaluate anything.
func rewriteOperators(source string, ops map[string]*binaryOp) (string, error) {
	toks, err := scanTokens(source, ops)
	if err != nil {
		return "", err
	}
	r := &rewriter{toks: toks, ops: ops}
	out, err := r.ternary()
	if err != nil {
		return "", err
	}
	if r.pos < len(r.toks) {
		return "", fmt.Errorf("unexpected %q at offset %d in %q", r.toks[r.pos].text, r.toks[r.pos].offset, source)
	}
	return out, nil
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokString
	tokIdent
	tokSymbol
)

type token struct {
	kind   tokenKind
	text   string
	offset int
}

// Built-in binary operator precedences. Custom operators are slotted into the
// same scale by the precedence given at registration.
var builtinPrec = map[string]int{
	"|":  2,
	"??": 5,
	"||": 10, "or": 10,
	"&&": 15, "and": 15,
	"==": 20, "!=": 20, "<": 20, "<=": 20, ">": 20, ">=": 20,
	"in": 20, "contains": 20, "startsWith": 20, "endsWith": 20, "matches": 20,
	"..": 28,
	"+": 30, "-": 30,
	"*": 40, "/": 40, "%": 40,
	"**": 50, "^": 50,
}

// negatable names the identifier operators that may follow "not" to form a
// negated two-token operator, as in "x not in list".
var negatable = map[string]bool{
	"in": true, "contains": true, "startsWith": true, "endsWith": true, "matches": true,
}

// symbols holds the punctuation the scanner recognizes, longest first so that
// multi-rune symbols win over their prefixes.
var symbols = []string{
	"**", "==", "!=", "<=", ">=", "&&", "||", "??", "..", "?.",
	"+", "-", "*", "/", "%", "^", "<", ">", "!", "?", ":",
	",", ".", "(", ")", "[", "]", "{", "}", "|",
}

func scanTokens(source string, ops map[string]*binaryOp) ([]token, error) {
	// Symbolic custom operators must be scanned as single tokens too.
	syms := symbols
	for name := range ops {
		if !isIdentText(name) {
			syms = append([]string{name}, syms...)
		}
	}

	var toks []token
	i := 0
	for i < len(source) {
		c := source[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '"' || c == '\'':
			end, err := scanString(source, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokString, source[i:end], i})
			i = end
		case c >= '0' && c <= '9':
			end := i + 1
			for end < len(source) && (isDigit(source[end]) || source[end] == '.' ||
				source[end] == 'e' || source[end] == 'E' ||
				((source[end] == '+' || source[end] == '-') && (source[end-1] == 'e' || source[end-1] == 'E'))) {
				end++
			}
			// ".." after a number is a range, not a fraction
			if idx := strings.Index(source[i:end], ".."); idx >= 0 {
				end = i + idx
			}
			toks = append(toks, token{tokNumber, source[i:end], i})
			i = end
		case isIdentStart(c):
			end := i + 1
			for end < len(source) && isIdentPart(source[end]) {
				end++
			}
			toks = append(toks, token{tokIdent, source[i:end], i})
			i = end
		default:
			matched := ""
			for _, s := range syms {
				if strings.HasPrefix(source[i:], s) && len(s) > len(matched) {
					matched = s
				}
			}
			if matched == "" {
				return nil, fmt.Errorf("unexpected character %q at offset %d in %q", c, i, source)
			}
			toks = append(toks, token{tokSymbol, matched, i})
			i += len(matched)
		}
	}
	return toks, nil
}

func scanString(source string, start int) (int, error) {
	quote := source[start]
	i := start + 1
	for i < len(source) {
		switch source[i] {
		case '\\':
			i += 2
		case quote:
			return i + 1, nil
		default:
			i++
		}
	}
	return 0, fmt.Errorf("unterminated string at offset %d in %q", start, source)
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || c == '$' || c == '#' || isLetter(c) }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) }
func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentText(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentPart(s[i]) {
			return false
		}
	}
	return true
}

type rewriter struct {
	toks []token
	pos  int
	ops  map[string]*binaryOp
}

func (r *rewriter) peek() (token, bool) {
	if r.pos >= len(r.toks) {
		return token{}, false
	}
	return r.toks[r.pos], true
}

func (r *rewriter) peekAt(n int) (token, bool) {
	if r.pos+n >= len(r.toks) {
		return token{}, false
	}
	return r.toks[r.pos+n], true
}

func (r *rewriter) accept(text string) bool {
	if t, ok := r.peek(); ok && t.text == text && t.kind != tokString {
		r.pos++
		return true
	}
	return false
}

// ternary is the entry point: binary expression optionally followed by ?:.
func (r *rewriter) ternary() (string, error) {
	cond, err := r.binary(0)
	if err != nil {
		return "", err
	}
	if !r.accept("?") {
		return cond, nil
	}
	then, err := r.ternary()
	if err != nil {
		return "", err
	}
	if !r.accept(":") {
		return "", fmt.Errorf("expected ':' in conditional")
	}
	alt, err := r.ternary()
	if err != nil {
		return "", err
	}
	return "(" + cond + " ? " + then + " : " + alt + ")", nil
}

// binary performs left-associative precedence climbing over both built-in and
// custom operators.
func (r *rewriter) binary(min int) (string, error) {
	left, err := r.unary()
	if err != nil {
		return "", err
	}
	for {
		t, ok := r.peek()
		if !ok {
			return left, nil
		}
		if op, isCustom := r.ops[t.text]; isCustom && t.kind != tokString {
			if op.precedence < min {
				return left, nil
			}
			r.pos++
			right, err := r.binary(op.precedence + 1)
			if err != nil {
				return "", err
			}
			left = op.callName + "(" + left + ", " + right + ")"
			continue
		}
		// "not" in infix position negates the following membership operator.
		if t.kind == tokIdent && t.text == "not" {
			nxt, ok := r.peekAt(1)
			if !ok || nxt.kind != tokIdent || !negatable[nxt.text] {
				return left, nil
			}
			prec := builtinPrec[nxt.text]
			if prec < min {
				return left, nil
			}
			r.pos += 2
			right, err := r.binary(prec + 1)
			if err != nil {
				return "", err
			}
			left = "(" + left + " not " + nxt.text + " " + right + ")"
			continue
		}
		prec, isBuiltin := builtinPrec[t.text]
		if !isBuiltin || t.kind == tokString || prec < min {
			return left, nil
		}
		r.pos++
		right, err := r.binary(prec + 1)
		if err != nil {
			return "", err
		}
		left = "(" + left + " " + t.text + " " + right + ")"
	}
}

func (r *rewriter) unary() (string, error) {
	for _, op := range []string{"!", "-", "+", "not"} {
		if r.accept(op) {
			inner, err := r.unary()
			if err != nil {
				return "", err
			}
			if op == "not" {
				return "(not " + inner + ")", nil
			}
			return "(" + op + inner + ")", nil
		}
	}
	return r.postfix()
}

// postfix parses a primary followed by member access, calls and index/slice
// brackets, re-emitting them verbatim.
func (r *rewriter) postfix() (string, error) {
	out, err := r.primary()
	if err != nil {
		return "", err
	}
	for {
		switch {
		case r.accept("."):
			t, ok := r.peek()
			if !ok || t.kind != tokIdent {
				return "", fmt.Errorf("expected identifier after '.'")
			}
			r.pos++
			out += "." + t.text
		case r.accept("?."):
			if r.accept("[") {
				idx, err := r.list("]", ":")
				if err != nil {
					return "", err
				}
				out += "?.[" + idx + "]"
				break
			}
			t, ok := r.peek()
			if !ok || t.kind != tokIdent {
				return "", fmt.Errorf("expected identifier after '?.'")
			}
			r.pos++
			out += "?." + t.text
		case r.accept("("):
			args, err := r.list(")", ",")
			if err != nil {
				return "", err
			}
			out += "(" + args + ")"
		case r.accept("["):
			idx, err := r.list("]", ":")
			if err != nil {
				return "", err
			}
			out += "[" + idx + "]"
		default:
			return out, nil
		}
	}
}

func (r *rewriter) primary() (string, error) {
	t, ok := r.peek()
	if !ok {
		return "", fmt.Errorf("unexpected end of expression")
	}
	switch {
	case t.kind == tokNumber || t.kind == tokString:
		r.pos++
		return t.text, nil
	case t.kind == tokIdent:
		r.pos++
		return t.text, nil
	case t.text == "(":
		r.pos++
		inner, err := r.ternary()
		if err != nil {
			return "", err
		}
		if !r.accept(")") {
			return "", fmt.Errorf("expected ')'")
		}
		return "(" + inner + ")", nil
	case t.text == "[":
		r.pos++
		items, err := r.list("]", ",")
		if err != nil {
			return "", err
		}
		return "[" + items + "]", nil
	case t.text == "{":
		r.pos++
		pairs, err := r.mapLiteral()
		if err != nil {
			return "", err
		}
		return "{" + pairs + "}", nil
	}
	return "", fmt.Errorf("unexpected %q at offset %d", t.text, t.offset)
}

// list parses sep-separated expressions until the closing token, which is
// consumed. Empty lists and empty slice halves ("[:2]") are allowed.
func (r *rewriter) list(closing, sep string) (string, error) {
	var parts []string
	pending := ""
	for {
		if r.accept(closing) {
			parts = append(parts, pending)
			if len(parts) == 1 && parts[0] == "" {
				return "", nil
			}
			return strings.Join(parts, sep+" "), nil
		}
		if r.accept(sep) {
			parts = append(parts, pending)
			pending = ""
			continue
		}
		e, err := r.ternary()
		if err != nil {
			return "", err
		}
		pending = e
	}
}

func (r *rewriter) mapLiteral() (string, error) {
	var parts []string
	for {
		if r.accept("}") {
			return strings.Join(parts, ", "), nil
		}
		if len(parts) > 0 && !r.accept(",") {
			return "", fmt.Errorf("expected ',' in map literal")
		}
		key, ok := r.peek()
		if !ok || (key.kind != tokIdent && key.kind != tokString) {
			return "", fmt.Errorf("expected map key")
		}
		r.pos++
		if !r.accept(":") {
			return "", fmt.Errorf("expected ':' after map key")
		}
		val, err := r.ternary()
		if err != nil {
			return "", err
		}
		parts = append(parts, key.text+": "+val)
	}
}

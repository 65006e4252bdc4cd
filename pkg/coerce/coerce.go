// Package coerce implements the output typing policy: explicit coercion to
// one of the four target types a template may name in an "as" field, and
// automatic inference for untyped string values.
package coerce

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/FirebrandTech/jexlate/pkg/types"
)

// Type is an explicit coercion target.
type Type string

const (
	// TypeNone requests automatic inference.
	TypeNone Type = ""
	// TypeString stringifies the value unconditionally.
	TypeString Type = "string"
	// TypeNumber parses the value as a number, returning it unchanged when it
	// does not parse. Never produces NaN.
	TypeNumber Type = "number"
	// TypeBoolean yields true only for the boolean true or the exact text "true".
	TypeBoolean Type = "boolean"
	// TypeJSON parses the value as a JSON document.
	TypeJSON Type = "json"
)

// ParseType validates an "as" value from a template.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeNone, TypeString, TypeNumber, TypeBoolean, TypeJSON:
		return t, nil
	}
	return TypeNone, fmt.Errorf("unknown coercion type %q", s)
}

var numberPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// Coerce maps a raw evaluated value to its typed output value. With TypeNone
// it falls back to Infer. Only TypeJSON can fail, with *types.CoercionError.
func Coerce(value interface{}, typ Type) (interface{}, error) {
	switch typ {
	case TypeString:
		return String(value), nil
	case TypeNumber:
		return Number(value), nil
	case TypeBoolean:
		return Boolean(value), nil
	case TypeJSON:
		return JSON(value)
	}
	return Infer(value), nil
}

// Infer applies automatic inference. Only string values are ever inferred:
// numeric syntax becomes a number, "true"/"false"/"null" (case-insensitive)
// become the corresponding value, anything else is returned unchanged.
func Infer(value interface{}) interface{} {
	s, ok := value.(string)
	if !ok {
		return value
	}
	if numberPattern.MatchString(s) {
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n
		}
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	return value
}

// String stringifies any value. Numbers format without a trailing ".0" and
// structured values render as their JSON encoding.
func String(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case map[string]interface{}, []interface{}:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(value)
}

// Number parses value as a number, returning the value unchanged when it does
// not parse. A total function: it never fails and never emits NaN.
func Number(value interface{}) interface{} {
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if numberPattern.MatchString(v) {
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				return n
			}
		}
	}
	return value
}

// Boolean is true iff value is the boolean true or the exact text "true".
func Boolean(value interface{}) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

// JSON parses value as a JSON document. Non-string values are stringified
// first. Parse failure yields *types.CoercionError.
func JSON(value interface{}) (interface{}, error) {
	text, ok := value.(string)
	if !ok {
		text = String(value)
	}
	var out interface{}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, &types.CoercionError{Value: value, Err: err}
	}
	return out, nil
}

// Package ext provides ready-made transforms and functions that engines can
// opt into, grouped by category.
//
// # Integration – everything at once
//
//	engine, err := jexlate.New(tpl, ext.WithAll()...)
//
// # Integration – by category
//
//	engine, err := jexlate.New(tpl, ext.WithStrings()...)
//
// All of them are registered as transforms, so they compose with the pipe
// operator: `first_name | upper()`, `tags | join(", ")`.
package ext

import (
	"math"
	"strings"

	"github.com/FirebrandTech/jexlate"
	"github.com/FirebrandTech/jexlate/pkg/coerce"
	"github.com/FirebrandTech/jexlate/pkg/expression"
)

// Def names one extension transform.
type Def struct {
	Name string
	Fn   expression.Func
}

// Options converts definitions into engine options.
func Options(defs ...Def) []jexlate.Option {
	opts := make([]jexlate.Option, len(defs))
	for i, d := range defs {
		opts[i] = jexlate.WithTransform(d.Name, d.Fn)
	}
	return opts
}

// WithAll returns engine options registering every extension transform.
func WithAll() []jexlate.Option {
	return Options(All()...)
}

// WithStrings returns engine options for the string transforms only.
func WithStrings() []jexlate.Option {
	return Options(Strings()...)
}

// WithNumeric returns engine options for the numeric transforms only.
func WithNumeric() []jexlate.Option {
	return Options(Numeric()...)
}

// All returns every extension definition.
func All() []Def {
	var all []Def
	all = append(all, Strings()...)
	all = append(all, Numeric()...)
	all = append(all, Misc()...)
	return all
}

// Strings returns the string transforms: upper, lower, trim, split, join.
func Strings() []Def {
	return []Def{
		{"upper", func(args ...interface{}) (interface{}, error) {
			return strings.ToUpper(coerce.String(arg(args, 0))), nil
		}},
		{"lower", func(args ...interface{}) (interface{}, error) {
			return strings.ToLower(coerce.String(arg(args, 0))), nil
		}},
		{"trim", func(args ...interface{}) (interface{}, error) {
			return strings.TrimSpace(coerce.String(arg(args, 0))), nil
		}},
		{"split", func(args ...interface{}) (interface{}, error) {
			parts := strings.Split(coerce.String(arg(args, 0)), coerce.String(arg(args, 1)))
			out := make([]interface{}, len(parts))
			for i, p := range parts {
				out[i] = p
			}
			return out, nil
		}},
		{"join", func(args ...interface{}) (interface{}, error) {
			seq, ok := arg(args, 0).([]interface{})
			if !ok {
				return coerce.String(arg(args, 0)), nil
			}
			parts := make([]string, len(seq))
			for i, e := range seq {
				parts[i] = coerce.String(e)
			}
			return strings.Join(parts, coerce.String(arg(args, 1))), nil
		}},
	}
}

// Numeric returns the numeric transforms: round, floor, ceil, abs.
func Numeric() []Def {
	unary := func(fn func(float64) float64) expression.Func {
		return func(args ...interface{}) (interface{}, error) {
			if n, ok := coerce.Number(arg(args, 0)).(float64); ok {
				return fn(n), nil
			}
			return arg(args, 0), nil
		}
	}
	return []Def{
		{"round", unary(math.Round)},
		{"floor", unary(math.Floor)},
		{"ceil", unary(math.Ceil)},
		{"abs", unary(math.Abs)},
	}
}

// Misc returns the remaining transforms: default, length.
func Misc() []Def {
	return []Def{
		// default(value, fallback) yields fallback when value is nil.
		{"default", func(args ...interface{}) (interface{}, error) {
			if v := arg(args, 0); v != nil {
				return v, nil
			}
			return arg(args, 1), nil
		}},
		{"length", func(args ...interface{}) (interface{}, error) {
			switch v := arg(args, 0).(type) {
			case nil:
				return float64(0), nil
			case string:
				return float64(len(v)), nil
			case []interface{}:
				return float64(len(v)), nil
			case map[string]interface{}:
				return float64(len(v)), nil
			}
			return float64(1), nil
		}},
	}
}

func arg(args []interface{}, i int) interface{} {
	if i < len(args) {
		return args[i]
	}
	return nil
}

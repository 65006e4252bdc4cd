package coerce

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/FirebrandTech/jexlate/pkg/types"
)

func TestInfer(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
		want interface{}
	}{
		{"numeric string", "26", float64(26)},
		{"decimal string", "3.5", 3.5},
		{"negative string", "-2", float64(-2)},
		{"exponent string", "1e3", float64(1000)},
		{"true lowercase", "true", true},
		{"true mixed case", "TRUE", true},
		{"false mixed case", "False", false},
		{"null mixed case", "Null", nil},
		{"plain string", "hello", "hello"},
		{"number untouched", float64(26), float64(26)},
		{"bool untouched", true, true},
		{"nil untouched", nil, nil},
		{"numeric-ish word", "26abc", "26abc"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Infer(tc.in); got != tc.want {
				t.Errorf("Infer(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestString(t *testing.T) {
	cases := []struct {
		in   interface{}
		want string
	}{
		{"26", "26"},
		{float64(26), "26"},
		{2.5, "2.5"},
		{true, "true"},
		{nil, "null"},
		{map[string]interface{}{"a": float64(1)}, `{"a":1}`},
		{[]interface{}{float64(1), "x"}, `[1,"x"]`},
	}
	for _, tc := range cases {
		if got := String(tc.in); got != tc.want {
			t.Errorf("String(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNumber(t *testing.T) {
	if got := Number("12.5"); got != 12.5 {
		t.Errorf("got %v", got)
	}
	if got := Number(float64(7)); got != float64(7) {
		t.Errorf("got %v", got)
	}
	// Unparseable values pass through unchanged, never NaN.
	if got := Number("abc"); got != "abc" {
		t.Errorf("got %v", got)
	}
	if got := Number(true); got != true {
		t.Errorf("got %v", got)
	}
}

func TestBoolean(t *testing.T) {
	cases := []struct {
		in   interface{}
		want bool
	}{
		{true, true},
		{false, false},
		{"true", true},
		{"True", false}, // explicit coercion is case-sensitive
		{"false", false},
		{"anything", false},
		{float64(1), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := Boolean(tc.in); got != tc.want {
			t.Errorf("Boolean(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestJSON(t *testing.T) {
	got, err := JSON(`{"a": [1, 2]}`)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]interface{}{"a": []interface{}{float64(1), float64(2)}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	_, err = JSON("{not json")
	var coErr *types.CoercionError
	if !errors.As(err, &coErr) {
		t.Fatalf("expected CoercionError, got %v", err)
	}
}

func TestCoerceDispatch(t *testing.T) {
	if v, err := Coerce("26", TypeString); err != nil || v != "26" {
		t.Errorf("string: %v, %v", v, err)
	}
	if v, err := Coerce("26", TypeNumber); err != nil || v != float64(26) {
		t.Errorf("number: %v, %v", v, err)
	}
	if v, err := Coerce("true", TypeBoolean); err != nil || v != true {
		t.Errorf("boolean: %v, %v", v, err)
	}
	if v, err := Coerce("26", TypeNone); err != nil || v != float64(26) {
		t.Errorf("inferred: %v, %v", v, err)
	}
}

func TestParseType(t *testing.T) {
	for _, ok := range []string{"", "string", "number", "boolean", "json"} {
		if _, err := ParseType(ok); err != nil {
			t.Errorf("ParseType(%q) unexpected error: %v", ok, err)
		}
	}
	if _, err := ParseType("float"); err == nil {
		t.Error("expected error for unknown type")
	}
}

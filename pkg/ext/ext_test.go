package ext_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/FirebrandTech/jexlate"
	"github.com/FirebrandTech/jexlate/pkg/ext"
)

func parse(t *testing.T, tpl string, data map[string]interface{}) map[string]interface{} {
	t.Helper()
	engine, err := jexlate.NewFromJSON([]byte(tpl), ext.WithAll()...)
	if err != nil {
		t.Fatal(err)
	}
	out, err := engine.Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestStringTransforms(t *testing.T) {
	out := parse(t, `{
		"Upper": {"from": "name | upper()"},
		"Lower": {"from": "name | lower()"},
		"Trim":  {"from": "padded | trim()"}
	}`, map[string]interface{}{"name": "Ada", "padded": "  x  "})

	want := map[string]interface{}{"Upper": "ADA", "Lower": "ada", "Trim": "x"}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitAndJoin(t *testing.T) {
	out := parse(t, `{
		"Parts":  {"from": "csv | split(\",\")"},
		"Joined": {"from": "tags | join(\"; \")"}
	}`, map[string]interface{}{
		"csv":  "a,b,c",
		"tags": []interface{}{"x", "y"},
	})

	want := map[string]interface{}{
		"Parts":  []interface{}{"a", "b", "c"},
		"Joined": "x; y",
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestNumericTransforms(t *testing.T) {
	out := parse(t, `{
		"Round": {"from": "n | round()"},
		"Floor": {"from": "n | floor()"},
		"Ceil":  {"from": "n | ceil()"},
		"Abs":   {"from": "neg | abs()"}
	}`, map[string]interface{}{"n": 2.5, "neg": -3.0})

	want := map[string]interface{}{
		"Round": float64(3),
		"Floor": float64(2),
		"Ceil":  float64(3),
		"Abs":   float64(3),
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultTransform(t *testing.T) {
	out := parse(t, `{
		"Known":   {"from": "name | default(\"anonymous\")"},
		"Unknown": {"from": "missing | default(\"anonymous\")"}
	}`, map[string]interface{}{"name": "Ada"})

	want := map[string]interface{}{"Known": "Ada", "Unknown": "anonymous"}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestLength(t *testing.T) {
	out := parse(t, `{
		"S": {"from": "name | length()"},
		"A": {"from": "tags | length()"}
	}`, map[string]interface{}{
		"name": "Ada",
		"tags": []interface{}{"x", "y"},
	})

	want := map[string]interface{}{"S": float64(3), "A": float64(2)}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

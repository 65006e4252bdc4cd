package transform

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/FirebrandTech/jexlate/pkg/expression"
	"github.com/FirebrandTech/jexlate/pkg/template"
	"github.com/FirebrandTech/jexlate/pkg/types"
)

func build(t *testing.T, raw interface{}) *Transformer {
	t.Helper()
	adapter := expression.NewAdapter()
	c := &template.Compiler{Adapter: adapter}
	root, err := c.Compile(raw)
	if err != nil {
		t.Fatal(err)
	}
	return New(root, adapter)
}

func field(attrs map[string]interface{}) map[string]interface{} {
	return attrs
}

func TestAbsentFieldIsOmittedNotNull(t *testing.T) {
	tr := build(t, map[string]interface{}{
		"Present": field(map[string]interface{}{"from": "a"}),
		"Missing": field(map[string]interface{}{"from": "b"}),
	})
	out, err := tr.Transform(map[string]interface{}{"a": "x"})
	if err != nil {
		t.Fatal(err)
	}
	m := out.(map[string]interface{})
	if _, present := m["Missing"]; present {
		t.Error("absent field must be omitted, not set")
	}
	if m["Present"] != "x" {
		t.Errorf("got %v", m["Present"])
	}
}

func TestIfGateSkipsFromAndValidate(t *testing.T) {
	// The validate expression would fail for this record; the if gate must
	// short-circuit both from evaluation and validation.
	tr := build(t, map[string]interface{}{
		"Age": field(map[string]interface{}{
			"from":     "age",
			"if":       "age > 18",
			"validate": "age > 100",
		}),
	})
	out, err := tr.Transform(map[string]interface{}{"age": float64(10)})
	if err != nil {
		t.Fatal(err)
	}
	if _, present := out.(map[string]interface{})["Age"]; present {
		t.Error("gated field must be absent")
	}
}

func TestIfFalseOnRequiredFieldRecordsViolation(t *testing.T) {
	tr := build(t, map[string]interface{}{
		"Age": field(map[string]interface{}{
			"from":     "age",
			"if":       "age > 18",
			"required": true,
		}),
	})
	_, err := tr.Transform(map[string]interface{}{"age": float64(10)})
	var reqErr *types.RequiredFieldError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequiredFieldError, got %v", err)
	}
	if len(reqErr.Paths) != 1 || reqErr.Paths[0] != "Age" {
		t.Errorf("got %v", reqErr.Paths)
	}
}

func TestValidationKeepsFieldInOutput(t *testing.T) {
	tr := build(t, map[string]interface{}{
		"Age": field(map[string]interface{}{"from": "age", "validate": "value > 25"}),
	})
	_, err := tr.Transform(map[string]interface{}{"age": float64(24)})
	var valErr *types.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	// The violation carries the coerced value the validate expression saw.
	if valErr.Violations[0].Value != float64(24) {
		t.Errorf("got %v", valErr.Violations[0].Value)
	}
}

func TestValidateSeesCoercedValue(t *testing.T) {
	// age arrives as a string; with as:number the validate expression must see
	// the number through the "value" binding.
	tr := build(t, map[string]interface{}{
		"Age": field(map[string]interface{}{"from": "age", "as": "number", "validate": "value > 25"}),
	})
	out, err := tr.Transform(map[string]interface{}{"age": "30"})
	if err != nil {
		t.Fatal(err)
	}
	if out.(map[string]interface{})["Age"] != float64(30) {
		t.Errorf("got %v", out)
	}
}

func TestRequiredDeduplicated(t *testing.T) {
	tr := build(t, map[string]interface{}{
		"List": map[string]interface{}{
			"from": "items[]",
			"values": map[string]interface{}{
				"Name": field(map[string]interface{}{"from": "name", "required": true}),
			},
		},
	})
	_, err := tr.Transform(map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{},
			map[string]interface{}{},
		},
	})
	var reqErr *types.RequiredFieldError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequiredFieldError, got %v", err)
	}
	// Both elements miss the same path; the list reports it once, against the
	// array's own path.
	want := []string{"List.Name"}
	if diff := cmp.Diff(want, reqErr.Paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestArrayElementFilteringLeavesNoHoles(t *testing.T) {
	tr := build(t, map[string]interface{}{
		"Adults": map[string]interface{}{
			"from":   "people[]",
			"values": field(map[string]interface{}{"from": "name", "if": "age >= 18"}),
		},
	})
	out, err := tr.Transform(map[string]interface{}{
		"people": []interface{}{
			map[string]interface{}{"name": "a", "age": float64(30)},
			map[string]interface{}{"name": "b", "age": float64(10)},
			map[string]interface{}{"name": "c", "age": float64(40)},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []interface{}{"a", "c"}
	got := out.(map[string]interface{})["Adults"]
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("filtered projection mismatch (-want +got):\n%s", diff)
	}
}

func TestArrayPreservesOrderAndArity(t *testing.T) {
	tr := build(t, map[string]interface{}{
		"Ns": map[string]interface{}{
			"from":   "items[]",
			"values": field(map[string]interface{}{"from": "n"}),
		},
	})
	out, err := tr.Transform(map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"n": float64(3)},
			map[string]interface{}{"n": float64(1)},
			map[string]interface{}{"n": float64(2)},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []interface{}{float64(3), float64(1), float64(2)}
	if diff := cmp.Diff(want, out.(map[string]interface{})["Ns"]); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestArrayIfGate(t *testing.T) {
	tr := build(t, map[string]interface{}{
		"List": map[string]interface{}{
			"from":   "items[]",
			"if":     "include",
			"values": field(map[string]interface{}{"from": "n"}),
		},
	})
	out, err := tr.Transform(map[string]interface{}{
		"include": false,
		"items":   []interface{}{map[string]interface{}{"n": float64(1)}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, present := out.(map[string]interface{})["List"]; present {
		t.Error("gated array must be absent")
	}
}

func TestNestedObjectPaths(t *testing.T) {
	tr := build(t, map[string]interface{}{
		"User": map[string]interface{}{
			"Name": field(map[string]interface{}{"from": "name", "required": true}),
		},
	})
	_, err := tr.Transform(map[string]interface{}{})
	var reqErr *types.RequiredFieldError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequiredFieldError, got %v", err)
	}
	if reqErr.Paths[0] != "User.Name" {
		t.Errorf("expected dotted path, got %q", reqErr.Paths[0])
	}
}

func TestConcurrentTransforms(t *testing.T) {
	tr := build(t, map[string]interface{}{
		"Name": field(map[string]interface{}{"from": "name", "required": true}),
	})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				out, err := tr.Transform(map[string]interface{}{"name": "ok"})
				if err != nil || out.(map[string]interface{})["Name"] != "ok" {
					t.Errorf("success case: %v, %v", out, err)
				}
			} else {
				_, err := tr.Transform(map[string]interface{}{})
				var reqErr *types.RequiredFieldError
				if !errors.As(err, &reqErr) {
					t.Errorf("failure case: %v", err)
				}
			}
		}()
	}
	wg.Wait()
}

func TestJSONCoercionFailureFailsRecord(t *testing.T) {
	tr := build(t, map[string]interface{}{
		"Payload": field(map[string]interface{}{"from": "raw", "as": "json"}),
	})
	_, err := tr.Transform(map[string]interface{}{"raw": "{not json"})
	var cerr *types.CoercionError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CoercionError, got %v", err)
	}
	if cerr.Value != "{not json" {
		t.Errorf("got value %v", cerr.Value)
	}
}

func TestTruthy(t *testing.T) {
	falsy := []interface{}{nil, false, float64(0), 0, ""}
	for _, v := range falsy {
		if truthy(v) {
			t.Errorf("expected %v (%T) falsy", v, v)
		}
	}
	truths := []interface{}{
		true, float64(1), "x",
		[]interface{}{1}, map[string]interface{}{"a": 1},
		[]interface{}{}, map[string]interface{}{},
	}
	for _, v := range truths {
		if !truthy(v) {
			t.Errorf("expected %v (%T) truthy", v, v)
		}
	}
}

func TestEmptyCollectionConditionIsTruthy(t *testing.T) {
	tr := build(t, map[string]interface{}{
		"Name": field(map[string]interface{}{"from": "name", "if": "tags"}),
	})
	out, err := tr.Transform(map[string]interface{}{"name": "x", "tags": []interface{}{}})
	if err != nil {
		t.Fatal(err)
	}
	if out.(map[string]interface{})["Name"] != "x" {
		t.Error("empty collection must not gate the field off")
	}
}

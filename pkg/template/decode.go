package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/goccy/go-yaml"
)

// DecodeJSON decodes a JSON template document into an order-preserving raw
// tree: objects become *Object, arrays []interface{}, numbers float64.
// encoding/json's map decoding would lose key order, which the engine needs
// for stable violation ordering, so objects are rebuilt from the token stream.
func DecodeJSON(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after template document")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		// string, bool or nil
		return tok, nil
	}
}

func decodeObject(dec *json.Decoder) (*Object, error) {
	obj := &Object{Values: make(map[string]interface{})}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is not a string: %v", tok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		obj.Set(key, val)
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeArray(dec *json.Decoder) ([]interface{}, error) {
	arr := []interface{}{}
	for dec.More() {
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}

// DecodeYAML decodes a YAML template document into the same order-preserving
// raw tree as DecodeJSON.
func DecodeYAML(data []byte) (interface{}, error) {
	var v interface{}
	if err := yaml.UnmarshalWithOptions(data, &v, yaml.UseOrderedMap()); err != nil {
		return nil, err
	}
	return fromYAML(v), nil
}

// fromYAML rewrites goccy's ordered form (yaml.MapSlice) into *Object trees
// and normalizes numeric types to float64.
func fromYAML(v interface{}) interface{} {
	switch t := v.(type) {
	case yaml.MapSlice:
		obj := &Object{Values: make(map[string]interface{}, len(t))}
		for _, item := range t {
			obj.Set(fmt.Sprint(item.Key), fromYAML(item.Value))
		}
		return obj
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = fromYAML(e)
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	default:
		return v
	}
}

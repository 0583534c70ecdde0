package jsonstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// indentUnit is the indentation used for pretty-printed documents.
const indentUnit = "    "

// encodeDocument serializes the mapping as a JSON object with top-level
// keys in the given order. encoding/json sorts map keys, so the object
// framing is emitted by hand; individual values go through json.Marshal.
func encodeDocument(keys []string, data map[string]any, indented bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(data[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')

	if !indented {
		return buf.Bytes(), nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", indentUnit); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// decodeDocument parses a JSON object, preserving the order in which
// top-level keys appear in the input. A duplicated key keeps its first
// position and its last value. Non-object input fails with ErrDataShape.
func decodeDocument(b []byte) ([]string, map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))

	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, ErrDataShape
		}
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, ErrDataShape
	}

	var keys []string
	data := make(map[string]any)
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := kt.(string)
		if !ok {
			return nil, nil, fmt.Errorf("jsonstore: unexpected token %v", kt)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, nil, err
		}
		if _, seen := data[key]; !seen {
			keys = append(keys, key)
		}
		data[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("jsonstore: trailing data after document")
	}
	return keys, data, nil
}

// normalizeValue converts a value to its JSON-native Go form (string,
// float64, bool, nil, []any, map[string]any) by round-tripping through
// encoding/json, so the in-memory state always equals the reloaded state.
// Values that cannot be serialized fail with ErrNotSerializable here,
// before any mutation is applied.
func normalizeValue(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, float64:
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSerializable, err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// cloneValue deep-copies JSON-native containers so callers cannot mutate
// the store's internal state through returned values.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

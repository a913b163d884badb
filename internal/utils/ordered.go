// Package utils provides small encoding helpers shared across ideograph packages.
package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Member is one key/value pair of a JSON object.
type Member struct {
	Key   string
	Value json.RawMessage
}

// DecodeObject decodes a JSON object into its members in document order.
// encoding/json maps lose key order, and persisted documents are keyed by id
// with iteration order that matters to callers. Empty input and null decode
// to no members.
func DecodeObject(data []byte) ([]Member, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected JSON object, got %v", tok)
	}

	var out []Member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decoding %q: %w", key, err)
		}
		out = append(out, Member{Key: key, Value: raw})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeObject marshals each value under its key, preserving member order.
func EncodeObject[T any](keys []string, values []T) (json.RawMessage, error) {
	if len(keys) != len(values) {
		return nil, fmt.Errorf("%d keys for %d values", len(keys), len(values))
	}
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
		vb, err := json.Marshal(values[i])
		if err != nil {
			return nil, fmt.Errorf("encoding %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

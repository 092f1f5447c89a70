package vector

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EncodePayload marshals a payload for drivers that store it as JSON.
func EncodePayload(payload map[string]any) ([]byte, error) {
	if err := CheckPayload(payload); err != nil {
		return nil, err
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	return b, nil
}

// DecodePayload unmarshals a JSON payload, restoring integral numbers as int.
func DecodePayload(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	for k, v := range raw {
		raw[k] = numbers(v)
	}
	return raw, nil
}

func numbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
		f, _ := t.Float64()
		return f
	case []any:
		for i := range t {
			t[i] = numbers(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = numbers(t[k])
		}
		return t
	}
	return v
}

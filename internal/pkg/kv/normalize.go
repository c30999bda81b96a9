package kv

import (
	"encoding/json"
	"strings"
)

// NormalizeRecord undoes the historical shape drift of stored records. Values
// read back from the store may be a raw JSON object, a JSON-encoded string
// wrapping one, or an array wrapping either form. It returns the canonical
// object bytes, or ok=false when no usable record can be recovered. It never
// fails loudly; a bad stored value is the same as no value.
func NormalizeRecord(raw string) ([]byte, bool) {
	return normalizeValue([]byte(strings.TrimSpace(raw)), 0)
}

// MarshalRecord renders a record in the canonical stored shape: a plain JSON
// object, never string- or array-wrapped.
func MarshalRecord(in interface{}) (string, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UnmarshalRecord normalizes raw stored bytes and decodes them into out.
func UnmarshalRecord(raw string, out interface{}) bool {
	data, ok := NormalizeRecord(raw)
	if !ok {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

func normalizeValue(data []byte, depth int) ([]byte, bool) {
	// Double-encoded strings and nested arrays bottom out quickly; the
	// depth guard only exists to stop hostile input.
	if depth > 4 || len(data) == 0 {
		return nil, false
	}

	switch data[0] {
	case '{':
		if json.Valid(data) {
			return data, true
		}
		return nil, false
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(data, &arr); err != nil || len(arr) == 0 {
			return nil, false
		}
		return normalizeValue(arr[0], depth+1)
	case '"':
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, false
		}
		return normalizeValue([]byte(strings.TrimSpace(inner)), depth+1)
	default:
		return nil, false
	}
}

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// flexString accepts a JSON string, number or list of strings.
// Lists are joined with ", ".
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*f = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
	case data[0] == '[':
		var parts []string
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		*f = flexString(strings.Join(parts, ", "))
	default:
		*f = flexString(data)
	}
	return nil
}

// flexAmount accepts a number, a numeric string or an object with a value
// field. The raw text is kept; parsing happens during normalization.
type flexAmount string

func (f *flexAmount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*f = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexAmount(strings.TrimSpace(s))
	case data[0] == '{':
		var obj struct {
			Value flexAmount `json:"value"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*f = obj.Value
	default:
		*f = flexAmount(data)
	}
	return nil
}

// decodeList reads either a bare JSON array or an object wrapping the array
// under key.
func decodeList[T any](raw json.RawMessage, key string) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var items []T
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode %s list: %w", key, err)
		}
		return items, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", key, err)
	}
	inner, ok := wrapped[key]
	if !ok {
		return nil, nil
	}
	if err := json.Unmarshal(inner, &items); err != nil {
		return nil, fmt.Errorf("decode %s list: %w", key, err)
	}
	return items, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

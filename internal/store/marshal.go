package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// marshalFailures converts failure messages to JSON TEXT. HTML escaping is
// disabled so stored messages read the same as printed ones.
func marshalFailures(failures []string) (string, error) {
	if len(failures) == 0 {
		return "[]", nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(failures); err != nil {
		return "", fmt.Errorf("marshal failures: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalFailures parses JSON TEXT to failure messages. Returns an empty,
// non-nil slice for an empty list.
func unmarshalFailures(data string) ([]string, error) {
	out := []string{}
	if data == "" || data == "[]" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal failures: %w", err)
	}
	return out, nil
}

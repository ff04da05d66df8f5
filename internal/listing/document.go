package listing

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Document is one raw inventory item as returned by the remote API.
// Every accessor is total: a missing or mistyped field yields the zero
// value for the requested type, never an error. This keeps mapping of
// sparse remote records from ever aborting item processing.
type Document map[string]any

// ParseDocument decodes a raw JSON object into a Document. A non-object
// payload yields an empty document.
func ParseDocument(raw json.RawMessage) Document {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}
	}
	if doc == nil {
		return Document{}
	}
	return doc
}

func (d Document) lookup(path ...string) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}
	var current any = map[string]any(d)
	for _, key := range path {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Str returns the string at path, or "" when absent or not a string.
func (d Document) Str(path ...string) string {
	v, ok := d.lookup(path...)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// Int returns the integer at path. JSON numbers and numeric strings are
// both accepted; anything else yields 0.
func (d Document) Int(path ...string) int {
	v, ok := d.lookup(path...)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

// Float returns the float at path, accepting numbers and numeric strings.
func (d Document) Float(path ...string) float64 {
	v, ok := d.lookup(path...)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

// List returns the slice at path, or nil when absent or not a list.
func (d Document) List(path ...string) []any {
	v, ok := d.lookup(path...)
	if !ok {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	return items
}

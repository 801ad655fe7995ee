package graph

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Document wraps a loosely-typed JSON object returned by the directory API.
// Response shapes vary per endpoint and API version, so callers probe fields
// with safe accessors instead of binding per-endpoint static types.
type Document struct {
	fields map[string]any
}

// ParseDocument decodes a raw JSON object into a Document.
func ParseDocument(data []byte) (*Document, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &Document{fields: fields}, nil
}

// NewDocument wraps an already-decoded object. Used by tests and by nested
// object access.
func NewDocument(fields map[string]any) *Document {
	if fields == nil {
		fields = make(map[string]any)
	}
	return &Document{fields: fields}
}

// Has reports whether the field is present, including when set to null.
func (d *Document) Has(key string) bool {
	_, ok := d.fields[key]
	return ok
}

// String returns the field as a string, or "" when absent or not a string.
func (d *Document) String(key string) string {
	if v, ok := d.fields[key].(string); ok {
		return v
	}
	return ""
}

// StringOr returns the field as a string, or def when absent.
func (d *Document) StringOr(key, def string) string {
	if v, ok := d.fields[key].(string); ok {
		return v
	}
	return def
}

// Bool returns the field as a bool, defaulting to false.
func (d *Document) Bool(key string) bool {
	if v, ok := d.fields[key].(bool); ok {
		return v
	}
	return false
}

// Int returns the field as an int, defaulting to 0. JSON numbers decode as
// float64; numeric strings are also accepted since some endpoints quote counts.
func (d *Document) Int(key string) int {
	switch v := d.fields[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

// Float returns the field as a float64, defaulting to 0.
func (d *Document) Float(key string) float64 {
	switch v := d.fields[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// Time returns the field parsed as RFC 3339, or the zero time on absence or
// parse failure.
func (d *Document) Time(key string) time.Time {
	s, ok := d.fields[key].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// StringSlice returns the field as a list of strings, skipping non-string
// elements.
func (d *Document) StringSlice(key string) []string {
	arr, ok := d.fields[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Doc returns a nested object field as a Document, or nil when absent.
func (d *Document) Doc(key string) *Document {
	if v, ok := d.fields[key].(map[string]any); ok {
		return &Document{fields: v}
	}
	return nil
}

// Docs returns an array-of-objects field as Documents, skipping non-object
// elements.
func (d *Document) Docs(key string) []*Document {
	arr, ok := d.fields[key].([]any)
	if !ok {
		return nil
	}
	out := make([]*Document, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			out = append(out, &Document{fields: m})
		}
	}
	return out
}

// Items returns the top-level collection array of a paged response. The API
// uses "value" on most endpoints and "items" on a few legacy ones.
func (d *Document) Items() []*Document {
	if d.Has("value") {
		return d.Docs("value")
	}
	return d.Docs("items")
}

// NextLink returns the pagination continuation cursor, or "" on the last page.
func (d *Document) NextLink() string {
	if s := d.String("@odata.nextLink"); s != "" {
		return s
	}
	return d.String("nextLink")
}

// Raw returns the underlying field map. Callers must not mutate it.
func (d *Document) Raw() map[string]any {
	return d.fields
}

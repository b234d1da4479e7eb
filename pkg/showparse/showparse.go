// Package showparse decodes the semi-structured output of radio "show"
// commands into flat key/value records. The older point-to-point dialect
// is decoded with per-command regex tables; the mesh dialect emits a
// quasi-YAML dump that is rewritten into real YAML and decoded structurally.
package showparse

import "errors"

// ErrDecode is wrapped by decoders when a show dump cannot be parsed.
var ErrDecode = errors.New("cannot decode show output")

// Field is one token extracted from a show response.
type Field struct {
	Key   string
	Value string
}

// Record is an ordered set of fields decoded from one show response or one
// section of a dump. Order is preserved so CSV columns come out stable.
type Record struct {
	Section string
	Fields  []Field
}

// Set appends a field, or replaces it if the key is already present.
func (r *Record) Set(key, value string) {
	for i := range r.Fields {
		if r.Fields[i].Key == key {
			r.Fields[i].Value = value
			return
		}
	}
	r.Fields = append(r.Fields, Field{Key: key, Value: value})
}

// Get returns the value for key, or "" if absent.
func (r Record) Get(key string) string {
	for _, f := range r.Fields {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}

// Keys returns the field keys in order.
func (r Record) Keys() []string {
	keys := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		keys[i] = f.Key
	}
	return keys
}

// Values returns the field values in key order.
func (r Record) Values() []string {
	values := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		values[i] = f.Value
	}
	return values
}

// Empty reports whether every field value is blank.
func (r Record) Empty() bool {
	for _, f := range r.Fields {
		if f.Value != "" {
			return false
		}
	}
	return true
}

// Merge appends all fields of other onto r, replacing duplicates.
func (r *Record) Merge(other Record) {
	for _, f := range other.Fields {
		r.Set(f.Key, f.Value)
	}
}

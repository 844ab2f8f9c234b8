// Package normalize extracts the canonical client fields from raw Upmind
// client records.
package normalize

import (
	"strings"
)

// Record is a raw client object as decoded from the upstream JSON.
// No schema is assumed; only the keys named by the field chains are read.
type Record map[string]any

// Path is a lookup path into a Record, e.g. {"primary_contact", "email"}.
type Path []string

// String renders the path in dotted form.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Lookup resolves the path against the record and returns the trimmed string
// value at its end. Every intermediate key must resolve to an object and the
// final value must be a string; anything else yields "".
func (p Path) Lookup(r Record) string {
	if len(p) == 0 {
		return ""
	}

	var current any = map[string]any(r)
	for _, key := range p {
		obj, ok := asObject(current)
		if !ok {
			return ""
		}
		current = obj[key]
	}

	s, ok := current.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// Chain is an ordered list of candidate paths. The first candidate that is
// non-empty after trimming wins.
type Chain []Path

// Resolve evaluates the candidates in order.
func (c Chain) Resolve(r Record) string {
	for _, p := range c {
		if v := p.Lookup(r); v != "" {
			return v
		}
	}
	return ""
}

// asObject accepts both Record and plain decoded JSON objects.
func asObject(v any) (map[string]any, bool) {
	switch obj := v.(type) {
	case map[string]any:
		return obj, obj != nil
	case Record:
		return obj, obj != nil
	default:
		return nil, false
	}
}

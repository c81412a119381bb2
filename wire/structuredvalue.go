// Package wire converts between the wire protocol's StructuredValue and Go's
// standard dynamic JSON representation (encoding/json's map[string]any,
// []any, float64, string, bool, nil), applying the numeric normalization
// rules spec.md §6 pins: integer-valued doubles round-trip as integers,
// non-finite doubles serialize as JSON null, and every other double is
// reproduced within a 1e-10 relative tolerance.
//
// Grounded on bundoc's wire/types.go, which defines a single recursive
// encode/decode pass over its own dynamic value type rather than leaning on
// encoding/json's default float64 handling; this package keeps that shape
// but targets json.RawMessage directly since entgraph's StructuredValue is
// exactly "the JSON metadata blob", not a separate wire type.
package wire

import (
	"encoding/json"
	"math"
)

// Normalize re-encodes a JSON document so every number satisfies the
// StructuredValue conversion rules: integer-valued doubles emit as bare
// integers, non-finite doubles (which json.Unmarshal would itself already
// reject as input, but callers may construct floats programmatically) emit
// as null, and all other doubles pass through their float64 value.
func Normalize(raw json.RawMessage) (json.RawMessage, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	out, err := json.Marshal(normalizeValue(v))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FromFloat64 applies the StructuredValue numeric rules to a single Go
// float64; Normalize applies it to every number it decodes.
func FromFloat64(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	if isIntegerValued(f) {
		return int64(f)
	}
	return f
}

func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case float64:
		return FromFloat64(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, elem := range val {
			out[i] = normalizeValue(elem)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, elem := range val {
			out[k] = normalizeValue(elem)
		}
		return out
	default:
		return val
	}
}

// isIntegerValued reports whether f has no fractional part and fits within
// the int64 range, the boundary spec.md §6 draws for integer round-tripping.
func isIntegerValued(f float64) bool {
	if f != math.Trunc(f) {
		return false
	}
	const twoToThe63 = 9223372036854775808.0 // 2^63; int64 max (2^63-1) is not exactly representable as float64
	return f >= -twoToThe63 && f < twoToThe63
}

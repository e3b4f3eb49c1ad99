package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/restmodel/core/fault"
	"github.com/google/uuid"
)

// Type is the semantic type of an attribute.
type Type string

const (
	TypeString  Type = "string"
	TypeBoolean Type = "boolean"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeDate    Type = "date"
	TypeUUID    Type = "uuid"
	TypeJSON    Type = "json"
)

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	switch t {
	case TypeString, TypeBoolean, TypeNumber, TypeInteger, TypeDate, TypeUUID, TypeJSON:
		return true
	}
	return false
}

// Coerce converts an inbound value to the canonical Go value for t:
// string, bool, float64, int64, time.Time, or the decoded JSON value.
// Strings are parsed, so query parameters coerce the same way as JSON.
// nil is always accepted.
func (t Type) Coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch t {
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}

	case TypeBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			parsed, err := strconv.ParseBool(b)
			if err == nil {
				return parsed, nil
			}
		}

	case TypeNumber:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f, nil
			}
		case string:
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				return f, nil
			}
		}

	case TypeInteger:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n == math.Trunc(n) && n >= math.MinInt64 && n < math.MaxInt64 {
				return int64(n), nil
			}
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return i, nil
			}
		case string:
			if i, err := strconv.ParseInt(n, 10, 64); err == nil {
				return i, nil
			}
		}

	case TypeDate:
		switch d := v.(type) {
		case time.Time:
			return d.UTC(), nil
		case *time.Time:
			if d == nil {
				return nil, nil
			}
			return d.UTC(), nil
		case string:
			if parsed, err := parseDate(d); err == nil {
				return parsed, nil
			}
		}

	case TypeUUID:
		if s, ok := v.(string); ok {
			if id, err := uuid.Parse(s); err == nil {
				return id.String(), nil
			}
		}

	case TypeJSON:
		// Re-encoding yields a private copy in canonical JSON shapes.
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fault.Wrap(fault.KindValidation, err, "value is not valid json")
		}
		var out any
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fault.Wrap(fault.KindValidation, err, "value is not valid json")
		}
		return out, nil
	}

	return nil, fault.New(fault.KindValidation, "value %v is not a valid %s", v, t)
}

// CloneValue copies the maps and slices of a decoded JSON value so the
// result shares no mutable state with v. Scalars are returned as is.
func CloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = CloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = CloneValue(e)
		}
		return out
	}
	return v
}

// parseDate accepts RFC 3339 timestamps and plain dates.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// Equal compares two canonical values of type t.
func (t Type) Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if t == TypeDate {
		at, aok := a.(time.Time)
		bt, bok := b.(time.Time)
		return aok && bok && at.Equal(bt)
	}
	if t == TypeJSON {
		aj, _ := json.Marshal(a)
		bj, _ := json.Marshal(b)
		return string(aj) == string(bj)
	}
	return a == b
}

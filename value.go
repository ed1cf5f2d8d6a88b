package raypak

import (
	"encoding/json"
	"strconv"
)

// ValueKind identifies which variant a [Value] holds.
type ValueKind uint8

const (
	// KindAbsent means the value is undefined: the pin was not reported or
	// its raw value could not be converted.
	KindAbsent ValueKind = iota
	KindBool
	KindNumber
	KindInteger
	KindText
)

// String returns the lowercase name of the kind.
func (k ValueKind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindInteger:
		return "integer"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Value is a typed domain value produced by a derivation.
//
// Value is immutable and comparable. The zero Value is absent.
// It encodes to JSON as null, a boolean, a number, or a string.
type Value struct {
	kind ValueKind
	b    bool
	n    float64
	i    int64
	s    string
}

// Absent returns the undefined value.
func Absent() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Integer returns an integer value.
func Integer(i int64) Value { return Value{kind: KindInteger, i: i} }

// Text returns a text value.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Kind returns the variant held by v.
func (v Value) Kind() ValueKind { return v.kind }

// IsAbsent reports whether v is undefined.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// AsBool returns the boolean and whether v holds one.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsNumber returns the number and whether v holds one.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsInteger returns the integer and whether v holds one.
func (v Value) AsInteger() (int64, bool) { return v.i, v.kind == KindInteger }

// AsText returns the text and whether v holds one.
func (v Value) AsText() (string, bool) { return v.s, v.kind == KindText }

// Interface returns v as a plain Go value: nil, bool, float64, int64 or string.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindInteger:
		return v.i
	case KindText:
		return v.s
	default:
		return nil
	}
}

// String formats v for display. Absent values format as "unknown".
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		if v.b {
			return "on"
		}
		return "off"
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindText:
		return v.s
	default:
		return "unknown"
	}
}

// MarshalJSON implements [json.Marshaler].
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return strconv.AppendBool(nil, v.b), nil
	case KindNumber:
		return strconv.AppendFloat(nil, v.n, 'f', -1, 64), nil
	case KindInteger:
		return strconv.AppendInt(nil, v.i, 10), nil
	case KindText:
		return json.Marshal(v.s)
	default:
		return []byte("null"), nil
	}
}

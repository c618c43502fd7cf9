// Package value provides the type-erased but type-checked container for data
// flowing through ports: a closed tagged union over the engine's scalar set
// plus an extension point for opaque domain types.
package value

import (
	"fmt"
	"strconv"
)

// Kind tags the concrete type held by a Value. The tag is fixed at
// construction and never changes.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindBool
	KindString
	KindOpaque
)

// Stable type names used for port type declarations and convertibility
// lookups. Opaque values carry their own name.
const (
	TypeInt    = "int"
	TypeFloat  = "double"
	TypeBool   = "bool"
	TypeString = "string"
)

// Value holds one concrete typed value. Values are immutable after
// construction; ports share them read-only.
type Value struct {
	kind       Kind
	i          int32
	f          float64
	b          bool
	s          string
	opaque     any
	opaqueType string
}

// NewInt wraps a 32-bit integer.
func NewInt(v int32) *Value { return &Value{kind: KindInt, i: v} }

// NewFloat wraps a double-precision float.
func NewFloat(v float64) *Value { return &Value{kind: KindFloat, f: v} }

// NewBool wraps a boolean.
func NewBool(v bool) *Value { return &Value{kind: KindBool, b: v} }

// NewString wraps a string.
func NewString(v string) *Value { return &Value{kind: KindString, s: v} }

// NewOpaque wraps an opaque domain value under the given type name. The
// engine moves opaque values between ports without inspecting them.
func NewOpaque(typeName string, v any) *Value {
	return &Value{kind: KindOpaque, opaque: v, opaqueType: typeName}
}

// Kind returns the type tag.
func (v *Value) Kind() Kind { return v.kind }

// TypeName returns the tag as a stable name string.
func (v *Value) TypeName() string {
	switch v.kind {
	case KindInt:
		return TypeInt
	case KindFloat:
		return TypeFloat
	case KindBool:
		return TypeBool
	case KindString:
		return TypeString
	default:
		return v.opaqueType
	}
}

// Int returns the stored integer, or ErrTypeMismatch if the tag differs.
func (v *Value) Int() (int32, error) {
	if v.kind != KindInt {
		return 0, mismatch(TypeInt, v.TypeName())
	}
	return v.i, nil
}

// Float returns the stored float, or ErrTypeMismatch if the tag differs.
func (v *Value) Float() (float64, error) {
	if v.kind != KindFloat {
		return 0, mismatch(TypeFloat, v.TypeName())
	}
	return v.f, nil
}

// Bool returns the stored boolean, or ErrTypeMismatch if the tag differs.
func (v *Value) Bool() (bool, error) {
	if v.kind != KindBool {
		return false, mismatch(TypeBool, v.TypeName())
	}
	return v.b, nil
}

// Text returns the stored string, or ErrTypeMismatch if the tag differs.
func (v *Value) Text() (string, error) {
	if v.kind != KindString {
		return "", mismatch(TypeString, v.TypeName())
	}
	return v.s, nil
}

// Opaque returns the stored domain value, or ErrTypeMismatch if the tag
// is one of the scalar kinds.
func (v *Value) Opaque() (any, error) {
	if v.kind != KindOpaque {
		return nil, mismatch("opaque", v.TypeName())
	}
	return v.opaque, nil
}

// String renders a human-readable projection. The rendering is deterministic
// for a given value: integers in base 10, floats in shortest 'g' form.
func (v *Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(int64(v.i), 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.s
	default:
		return fmt.Sprintf("<%s>", v.opaqueType)
	}
}

// Equal reports whether two values hold the same tag and payload. Opaque
// values compare by interface equality.
func (v *Value) Equal(o *Value) bool {
	if v == nil || o == nil {
		return v == o
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.s == o.s
	default:
		return v.opaqueType == o.opaqueType && v.opaque == o.opaque
	}
}

func mismatch(want, got string) error {
	return fmt.Errorf("%w: expected %s, got %s", ErrTypeMismatch, want, got)
}

package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_TagFixedAtConstruction(t *testing.T) {
	tests := []struct {
		name     string
		v        *Value
		kind     Kind
		typeName string
		str      string
	}{
		{"int", NewInt(42), KindInt, TypeInt, "42"},
		{"negative int", NewInt(-7), KindInt, TypeInt, "-7"},
		{"float", NewFloat(2.5), KindFloat, TypeFloat, "2.5"},
		{"float integral", NewFloat(10), KindFloat, TypeFloat, "10"},
		{"bool", NewBool(true), KindBool, TypeBool, "true"},
		{"string", NewString("hello"), KindString, TypeString, "hello"},
		{"opaque", NewOpaque("image", struct{}{}), KindOpaque, "image", "<image>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.v.Kind())
			assert.Equal(t, tt.typeName, tt.v.TypeName())
			assert.Equal(t, tt.str, tt.v.String())
		})
	}
}

func TestValue_Accessors(t *testing.T) {
	i, err := NewInt(5).Int()
	require.NoError(t, err)
	assert.Equal(t, int32(5), i)

	f, err := NewFloat(1.25).Float()
	require.NoError(t, err)
	assert.Equal(t, 1.25, f)

	b, err := NewBool(true).Bool()
	require.NoError(t, err)
	assert.True(t, b)

	s, err := NewString("x").Text()
	require.NoError(t, err)
	assert.Equal(t, "x", s)
}

func TestValue_WrongTypeAccess(t *testing.T) {
	v := NewInt(5)

	_, err := v.Float()
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = v.Bool()
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = v.Text()
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = v.Opaque()
	assert.ErrorIs(t, err, ErrTypeMismatch)

	// Mismatch errors carry both the expected and actual type names.
	_, err = NewString("s").Int()
	assert.ErrorContains(t, err, "expected int")
	assert.ErrorContains(t, err, "got string")
}

func TestValue_Equal(t *testing.T) {
	assert.True(t, NewInt(5).Equal(NewInt(5)))
	assert.False(t, NewInt(5).Equal(NewInt(6)))
	assert.False(t, NewInt(5).Equal(NewFloat(5)))
	assert.True(t, NewString("a").Equal(NewString("a")))
	assert.True(t, NewBool(false).Equal(NewBool(false)))
	assert.False(t, NewBool(false).Equal(nil))

	var a, b *Value
	assert.True(t, a.Equal(b))
}

func TestValue_StringDeterministic(t *testing.T) {
	// The same value must render identically across calls.
	v := NewFloat(0.30000000000000004)
	assert.Equal(t, v.String(), v.String())
	assert.Equal(t, "0.30000000000000004", v.String())
}

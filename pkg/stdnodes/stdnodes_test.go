package stdnodes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore/flowcore/internal/app/modules"
	"github.com/flowcore/flowcore/internal/core/graph"
	"github.com/flowcore/flowcore/internal/core/ident"
	"github.com/flowcore/flowcore/internal/core/value"
)

// inlineEnv computes submitted tasks synchronously.
type inlineEnv struct {
	factory *graph.NodeFactory
}

func (e *inlineEnv) Factory() *graph.NodeFactory { return e.factory }
func (e *inlineEnv) Submit(task func())          { task() }

func newEnv(t *testing.T) *inlineEnv {
	t.Helper()
	factory := graph.NewNodeFactory()
	mgr := modules.NewManager(factory)
	require.NoError(t, mgr.Load(New()))
	return &inlineEnv{factory: factory}
}

func newNode(t *testing.T, env *inlineEnv, class string) *graph.Node {
	t.Helper()
	n, err := env.factory.CreateNode(class, ident.NewUUID(), class, env)
	require.NoError(t, err)
	return n
}

func TestModule_RegistersAllClasses(t *testing.T) {
	env := newEnv(t)

	assert.ElementsMatch(t,
		[]string{ClassConstInt, ClassConstFloat, ClassConstBool, ClassConstString},
		env.factory.ClassesIn("constants"))
	assert.ElementsMatch(t,
		[]string{ClassMathDouble, ClassMathAdd, ClassMathMultiply},
		env.factory.ClassesIn("math"))
	assert.ElementsMatch(t,
		[]string{ClassStringConcat},
		env.factory.ClassesIn("string"))
	assert.ElementsMatch(t,
		[]string{ClassIntToString},
		env.factory.ClassesIn("convert"))
}

func TestModule_UnloadWithdrawsClasses(t *testing.T) {
	factory := graph.NewNodeFactory()
	mgr := modules.NewManager(factory)
	require.NoError(t, mgr.Load(New()))
	require.NoError(t, mgr.Unload("stdnodes"))

	_, ok := factory.Class(ClassConstInt)
	assert.False(t, ok)
	assert.Empty(t, factory.ClassesIn("math"))
}

func TestConstClasses(t *testing.T) {
	env := newEnv(t)
	tests := []struct {
		class string
		in    *value.Value
	}{
		{ClassConstInt, value.NewInt(5)},
		{ClassConstFloat, value.NewFloat(2.5)},
		{ClassConstBool, value.NewBool(true)},
		{ClassConstString, value.NewString("hi")},
	}
	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			n := newNode(t, env, tt.class)
			require.NoError(t, n.SetInputData(keyValue, tt.in, true))
			out, err := n.OutputData(keyValue)
			require.NoError(t, err)
			require.NotNil(t, out)
			assert.True(t, out.Equal(tt.in))
		})
	}

	t.Run("compute without staged value faults", func(t *testing.T) {
		n := newNode(t, env, ClassConstInt)
		assert.ErrorIs(t, n.InvokeCompute(), graph.ErrComputationFailed)
	})
}

func TestMathDouble(t *testing.T) {
	env := newEnv(t)
	n := newNode(t, env, ClassMathDouble)

	require.NoError(t, n.SetInputData(keyInput, value.NewInt(21), true))
	out, err := n.OutputData(keyOutput)
	require.NoError(t, err)
	require.NotNil(t, out)
	i, err := out.Int()
	require.NoError(t, err)
	assert.Equal(t, int32(42), i)
}

func TestMathAddAndMultiply(t *testing.T) {
	env := newEnv(t)

	add := newNode(t, env, ClassMathAdd)
	require.NoError(t, add.SetInputData(keyA, value.NewFloat(1.5), false))
	require.NoError(t, add.SetInputData(keyB, value.NewFloat(2.25), true))
	sum, err := add.OutputData(keySum)
	require.NoError(t, err)
	require.NotNil(t, sum)
	f, err := sum.Float()
	require.NoError(t, err)
	assert.Equal(t, 3.75, f)

	mul := newNode(t, env, ClassMathMultiply)
	require.NoError(t, mul.SetInputData(keyA, value.NewFloat(3), false))
	require.NoError(t, mul.SetInputData(keyB, value.NewFloat(4), true))
	product, err := mul.OutputData(keyProduct)
	require.NoError(t, err)
	require.NotNil(t, product)
	f, err = product.Float()
	require.NoError(t, err)
	assert.Equal(t, 12.0, f)
}

func TestStringConcat(t *testing.T) {
	env := newEnv(t)
	n := newNode(t, env, ClassStringConcat)

	require.NoError(t, n.SetInputData(keyA, value.NewString("flow"), false))
	require.NoError(t, n.SetInputData(keyB, value.NewString("core"), true))
	out, err := n.OutputData(keyResult)
	require.NoError(t, err)
	require.NotNil(t, out)
	s, err := out.Text()
	require.NoError(t, err)
	assert.Equal(t, "flowcore", s)
}

func TestIntToString(t *testing.T) {
	env := newEnv(t)
	n := newNode(t, env, ClassIntToString)

	require.NoError(t, n.SetInputData(keyInput, value.NewInt(42), true))
	out, err := n.OutputData(keyOutput)
	require.NoError(t, err)
	require.NotNil(t, out)
	s, err := out.Text()
	require.NoError(t, err)
	assert.Equal(t, "42", s)
}

func TestConversions(t *testing.T) {
	env := newEnv(t)
	f := env.factory

	tests := []struct {
		name string
		in   *value.Value
		to   string
		want *value.Value
	}{
		{"int to double", value.NewInt(7), value.TypeFloat, value.NewFloat(7)},
		{"int to string", value.NewInt(7), value.TypeString, value.NewString("7")},
		{"double to string", value.NewFloat(2.5), value.TypeString, value.NewString("2.5")},
		{"bool to string", value.NewBool(false), value.TypeString, value.NewString("false")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Convert(tt.in, tt.to)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s", got)
		})
	}

	t.Run("no narrowing", func(t *testing.T) {
		assert.False(t, f.IsConvertible(value.TypeFloat, value.TypeInt))
		assert.False(t, f.IsConvertible(value.TypeString, value.TypeInt))
	})
}

func TestConversionFeedsTypedPort(t *testing.T) {
	env := newEnv(t)
	n := newNode(t, env, ClassMathAdd)

	// An int lands on a double port through the widening conversion.
	require.NoError(t, n.SetInputData(keyA, value.NewInt(2), false))
	require.NoError(t, n.SetInputData(keyB, value.NewInt(3), true))

	sum, err := n.OutputData(keySum)
	require.NoError(t, err)
	require.NotNil(t, sum)
	f, err := sum.Float()
	require.NoError(t, err)
	assert.Equal(t, 5.0, f)
}

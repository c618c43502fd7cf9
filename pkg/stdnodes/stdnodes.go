// Package stdnodes is the builtin node class pack: constants for each
// scalar type, basic arithmetic, string concatenation, and the widening
// scalar conversions. It is loaded like any other module; nothing in the
// engine depends on it.
package stdnodes

import (
	"fmt"

	"github.com/flowcore/flowcore/internal/app/modules"
	"github.com/flowcore/flowcore/internal/core/graph"
	"github.com/flowcore/flowcore/internal/core/ident"
	"github.com/flowcore/flowcore/internal/core/value"
)

// Class identifiers contributed by this module.
const (
	ClassConstInt     = "const.int"
	ClassConstFloat   = "const.float"
	ClassConstBool    = "const.bool"
	ClassConstString  = "const.string"
	ClassMathDouble   = "math.double"
	ClassMathAdd      = "math.add"
	ClassMathMultiply = "math.multiply"
	ClassStringConcat = "string.concat"
	ClassIntToString  = "convert.int_to_string"
)

const (
	categoryConstants = "constants"
	categoryMath      = "math"
	categoryString    = "string"
	categoryConvert   = "convert"
)

var (
	keyValue   = ident.Intern("value")
	keyInput   = ident.Intern("input")
	keyOutput  = ident.Intern("output")
	keyA       = ident.Intern("a")
	keyB       = ident.Intern("b")
	keySum     = ident.Intern("sum")
	keyProduct = ident.Intern("product")
	keyResult  = ident.Intern("result")
)

// Module implements modules.Module for the builtin classes.
type Module struct{}

// New returns the builtin module.
func New() *Module { return &Module{} }

// Metadata identifies the builtin pack.
func (m *Module) Metadata() modules.Info {
	return modules.Info{
		Name:        "stdnodes",
		Version:     "1.0",
		Author:      "flowcore",
		Description: "builtin constants, arithmetic, string, and conversion nodes",
	}
}

// RegisterNodes adds every builtin class and conversion to f.
func (m *Module) RegisterNodes(f *graph.NodeFactory) error {
	for _, spec := range classSpecs() {
		if err := f.RegisterClass(spec); err != nil {
			return err
		}
	}
	registerConversions(f)
	return nil
}

// UnregisterNodes removes the builtin classes from f. Conversions stay
// registered; they are harmless without the classes that exercise them.
func (m *Module) UnregisterNodes(f *graph.NodeFactory) error {
	for _, spec := range classSpecs() {
		f.UnregisterClass(spec.ID)
	}
	return nil
}

func classSpecs() []graph.ClassSpec {
	return []graph.ClassSpec{
		constClass(ClassConstInt, value.TypeInt),
		constClass(ClassConstFloat, value.TypeFloat),
		constClass(ClassConstBool, value.TypeBool),
		constClass(ClassConstString, value.TypeString),
		{
			ID:       ClassMathDouble,
			Category: categoryMath,
			Inputs:   []graph.PortSpec{{Key: "input", DataType: value.TypeInt, Caption: "Input", Required: true}},
			Outputs:  []graph.PortSpec{{Key: "output", DataType: value.TypeInt, Caption: "Doubled"}},
			Compute:  computeDouble,
		},
		{
			ID:       ClassMathAdd,
			Category: categoryMath,
			Inputs: []graph.PortSpec{
				{Key: "a", DataType: value.TypeFloat, Caption: "A", Required: true},
				{Key: "b", DataType: value.TypeFloat, Caption: "B", Required: true},
			},
			Outputs: []graph.PortSpec{{Key: "sum", DataType: value.TypeFloat, Caption: "Sum"}},
			Compute: binaryFloat(keySum, func(a, b float64) float64 { return a + b }),
		},
		{
			ID:       ClassMathMultiply,
			Category: categoryMath,
			Inputs: []graph.PortSpec{
				{Key: "a", DataType: value.TypeFloat, Caption: "A", Required: true},
				{Key: "b", DataType: value.TypeFloat, Caption: "B", Required: true},
			},
			Outputs: []graph.PortSpec{{Key: "product", DataType: value.TypeFloat, Caption: "Product"}},
			Compute: binaryFloat(keyProduct, func(a, b float64) float64 { return a * b }),
		},
		{
			ID:       ClassIntToString,
			Category: categoryConvert,
			Inputs:   []graph.PortSpec{{Key: "input", DataType: value.TypeInt, Caption: "Input", Required: true}},
			Outputs:  []graph.PortSpec{{Key: "output", DataType: value.TypeString, Caption: "Text"}},
			Compute:  computeIntToString,
		},
		{
			ID:       ClassStringConcat,
			Category: categoryString,
			Inputs: []graph.PortSpec{
				{Key: "a", DataType: value.TypeString, Caption: "A", Required: true},
				{Key: "b", DataType: value.TypeString, Caption: "B", Required: true},
			},
			Outputs: []graph.PortSpec{{Key: "result", DataType: value.TypeString, Caption: "Result"}},
			Compute: computeConcat,
		},
	}
}

// constClass builds a pass-through class: the staged input value appears on
// the output when the node computes.
func constClass(id, dataType string) graph.ClassSpec {
	return graph.ClassSpec{
		ID:       id,
		Category: categoryConstants,
		Inputs:   []graph.PortSpec{{Key: "value", DataType: dataType, Caption: "Value", Required: true}},
		Outputs:  []graph.PortSpec{{Key: "value", DataType: dataType, Caption: "Value"}},
		Compute: func(n *graph.Node) error {
			v, err := n.InputData(keyValue)
			if err != nil {
				return err
			}
			if v == nil {
				return fmt.Errorf("no value staged")
			}
			return n.SetOutputData(keyValue, v, true)
		},
	}
}

func computeDouble(n *graph.Node) error {
	v, err := n.InputData(keyInput)
	if err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("input is empty")
	}
	i, err := v.Int()
	if err != nil {
		return err
	}
	return n.SetOutputData(keyOutput, value.NewInt(i*2), true)
}

func binaryFloat(out ident.Name, op func(a, b float64) float64) graph.ComputeFunc {
	return func(n *graph.Node) error {
		av, err := n.InputData(keyA)
		if err != nil {
			return err
		}
		bv, err := n.InputData(keyB)
		if err != nil {
			return err
		}
		if av == nil || bv == nil {
			return fmt.Errorf("missing operand")
		}
		a, err := av.Float()
		if err != nil {
			return err
		}
		b, err := bv.Float()
		if err != nil {
			return err
		}
		return n.SetOutputData(out, value.NewFloat(op(a, b)), true)
	}
}

func computeIntToString(n *graph.Node) error {
	v, err := n.InputData(keyInput)
	if err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("input is empty")
	}
	if _, err := v.Int(); err != nil {
		return err
	}
	return n.SetOutputData(keyOutput, value.NewString(v.String()), true)
}

func computeConcat(n *graph.Node) error {
	av, err := n.InputData(keyA)
	if err != nil {
		return err
	}
	bv, err := n.InputData(keyB)
	if err != nil {
		return err
	}
	if av == nil || bv == nil {
		return fmt.Errorf("missing operand")
	}
	a, err := av.Text()
	if err != nil {
		return err
	}
	b, err := bv.Text()
	if err != nil {
		return err
	}
	return n.SetOutputData(keyResult, value.NewString(a+b), true)
}

// registerConversions wires the widening conversions: numeric widening to
// double, and the three scalar-to-string renderings.
func registerConversions(f *graph.NodeFactory) {
	f.RegisterConversion(value.TypeInt, value.TypeFloat, func(v *value.Value) (*value.Value, error) {
		i, err := v.Int()
		if err != nil {
			return nil, err
		}
		return value.NewFloat(float64(i)), nil
	})
	toString := func(v *value.Value) (*value.Value, error) {
		return value.NewString(v.String()), nil
	}
	f.RegisterConversion(value.TypeInt, value.TypeString, toString)
	f.RegisterConversion(value.TypeFloat, value.TypeString, toString)
	f.RegisterConversion(value.TypeBool, value.TypeString, toString)
}

package graph

import (
	"fmt"

	"github.com/flowcore/flowcore/internal/core/ident"
	"github.com/flowcore/flowcore/internal/core/value"
)

// testEnv runs submitted tasks inline by default, which makes propagation
// synchronous and tests deterministic. Tests that need real asynchrony
// plug in a pool via submit.
type testEnv struct {
	factory *NodeFactory
	submit  func(task func())
}

func (e *testEnv) Factory() *NodeFactory { return e.factory }

func (e *testEnv) Submit(task func()) {
	if e.submit != nil {
		e.submit(task)
		return
	}
	task()
}

var (
	keyValue  = ident.Intern("value")
	keyInput  = ident.Intern("input")
	keyOutput = ident.Intern("output")
	keyA      = ident.Intern("a")
	keyB      = ident.Intern("b")
	keySum    = ident.Intern("sum")
)

// newTestEnv builds an environment with the class set used across the
// package tests: an integer constant, an integer doubler, and a float
// adder, plus the int->double conversion.
func newTestEnv() *testEnv {
	f := NewNodeFactory()

	mustRegister(f, ClassSpec{
		ID:       "const.int",
		Category: "constants",
		Inputs:   []PortSpec{{Key: "value", DataType: value.TypeInt, Caption: "Value", Required: true}},
		Outputs:  []PortSpec{{Key: "value", DataType: value.TypeInt, Caption: "Value"}},
		Compute: func(n *Node) error {
			v, err := n.InputData(keyValue)
			if err != nil {
				return err
			}
			if v == nil {
				return fmt.Errorf("no value set")
			}
			return n.SetOutputData(keyValue, v, true)
		},
	})

	mustRegister(f, ClassSpec{
		ID:       "math.double",
		Category: "math",
		Inputs:   []PortSpec{{Key: "input", DataType: value.TypeInt, Caption: "Input", Required: true}},
		Outputs:  []PortSpec{{Key: "output", DataType: value.TypeInt, Caption: "Doubled"}},
		Compute: func(n *Node) error {
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
		},
	})

	mustRegister(f, ClassSpec{
		ID:       "math.add",
		Category: "math",
		Inputs: []PortSpec{
			{Key: "a", DataType: value.TypeFloat, Caption: "A", Required: true},
			{Key: "b", DataType: value.TypeFloat, Caption: "B", Required: true},
		},
		Outputs: []PortSpec{{Key: "sum", DataType: value.TypeFloat, Caption: "Sum"}},
		Compute: func(n *Node) error {
			a, err := n.InputData(keyA)
			if err != nil {
				return err
			}
			b, err := n.InputData(keyB)
			if err != nil {
				return err
			}
			if a == nil || b == nil {
				return fmt.Errorf("missing operand")
			}
			af, err := a.Float()
			if err != nil {
				return err
			}
			bf, err := b.Float()
			if err != nil {
				return err
			}
			return n.SetOutputData(keySum, value.NewFloat(af+bf), true)
		},
	})

	f.RegisterConversion(value.TypeInt, value.TypeFloat, func(v *value.Value) (*value.Value, error) {
		i, err := v.Int()
		if err != nil {
			return nil, err
		}
		return value.NewFloat(float64(i)), nil
	})

	return &testEnv{factory: f}
}

func mustRegister(f *NodeFactory, spec ClassSpec) {
	if err := f.RegisterClass(spec); err != nil {
		panic(err)
	}
}

func mustNode(env *testEnv, class, name string) *Node {
	n, err := env.factory.CreateNode(class, ident.NewUUID(), name, env)
	if err != nil {
		panic(err)
	}
	return n
}

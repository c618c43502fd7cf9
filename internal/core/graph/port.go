package graph

import (
	"sync"

	"github.com/flowcore/flowcore/internal/core/ident"
	"github.com/flowcore/flowcore/internal/core/value"
)

// Role distinguishes input from output ports.
type Role int

const (
	RoleInput Role = iota
	RoleOutput
)

// PortSpec declares one port in a node class: its key, declared data type
// name, human-readable caption, and whether an input is required for the
// node's compute procedure to make sense.
type PortSpec struct {
	Key      string
	DataType string
	Caption  string
	Required bool
}

// Port is a named, typed slot on a node holding at most one current value.
// Key, data type, caption, and role are fixed at node construction; only the
// value changes over the port's life.
type Port struct {
	key      ident.Name
	dataType string
	caption  string
	required bool
	role     Role

	mu    sync.RWMutex
	value *value.Value
}

func newPort(spec PortSpec, role Role) *Port {
	return &Port{
		key:      ident.Intern(spec.Key),
		dataType: spec.DataType,
		caption:  spec.Caption,
		required: spec.Required && role == RoleInput,
		role:     role,
	}
}

// Key returns the port's interned key.
func (p *Port) Key() ident.Name { return p.key }

// DataType returns the declared data type name.
func (p *Port) DataType() string { return p.dataType }

// Caption returns the human-readable caption.
func (p *Port) Caption() string { return p.caption }

// Required reports whether the port is a required input.
func (p *Port) Required() bool { return p.required }

// Role returns whether the port is an input or an output.
func (p *Port) Role() Role { return p.role }

// Value returns the current value, or nil when the port is empty. Empty is
// a legitimate state, not an error.
func (p *Port) Value() *value.Value {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// HasValue reports whether the port currently holds a value.
func (p *Port) HasValue() bool {
	return p.Value() != nil
}

func (p *Port) setValue(v *value.Value) {
	p.mu.Lock()
	p.value = v
	p.mu.Unlock()
}

package graph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/flowcore/flowcore/internal/core/ident"
	"github.com/flowcore/flowcore/internal/core/value"
)

// ClassSpec describes a node class: its identifier, the category it is
// filed under, its fixed port layout, and its compute procedure.
type ClassSpec struct {
	ID       string
	Category string
	Inputs   []PortSpec
	Outputs  []PortSpec
	Compute  ComputeFunc
}

// ConvertFunc converts a value from one type tag to another.
type ConvertFunc func(*value.Value) (*value.Value, error)

type convKey struct {
	from, to string
}

// NodeFactory maps class identifiers to constructors, grouped by category,
// and owns the type-conversion compatibility table. Registration is
// internally locked so readers never observe a partially registered class.
type NodeFactory struct {
	mu         sync.RWMutex
	classes    map[string]ClassSpec
	categories map[string][]string // category -> sorted class ids
	converts   map[convKey]ConvertFunc
}

// NewNodeFactory creates an empty factory.
func NewNodeFactory() *NodeFactory {
	return &NodeFactory{
		classes:    make(map[string]ClassSpec),
		categories: make(map[string][]string),
		converts:   make(map[convKey]ConvertFunc),
	}
}

// RegisterClass files a class under its category. Re-registering the same
// identifier replaces the previous descriptor; the operation is idempotent.
func (f *NodeFactory) RegisterClass(spec ClassSpec) error {
	if spec.ID == "" {
		return fmt.Errorf("%w: class ID must not be empty", ErrInvalidArgument)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if prev, ok := f.classes[spec.ID]; ok && prev.Category != spec.Category {
		f.removeFromCategory(prev.Category, spec.ID)
	}
	if _, ok := f.classes[spec.ID]; !ok || f.classes[spec.ID].Category != spec.Category {
		ids := append(f.categories[spec.Category], spec.ID)
		sort.Strings(ids)
		f.categories[spec.Category] = ids
	}
	f.classes[spec.ID] = spec
	return nil
}

// UnregisterClass removes a class. Unknown identifiers are a no-op, which
// keeps module unregistration idempotent.
func (f *NodeFactory) UnregisterClass(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	spec, ok := f.classes[id]
	if !ok {
		return
	}
	delete(f.classes, id)
	f.removeFromCategory(spec.Category, id)
}

func (f *NodeFactory) removeFromCategory(category, id string) {
	ids := f.categories[category]
	for i, c := range ids {
		if c == id {
			f.categories[category] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(f.categories[category]) == 0 {
		delete(f.categories, category)
	}
}

// CreateNode instantiates a node of the given class with the node's fixed
// port layout. It fails with ErrClassNotRegistered for unknown identifiers.
func (f *NodeFactory) CreateNode(classID string, id ident.UUID, name string, env Env) (*Node, error) {
	if classID == "" {
		return nil, fmt.Errorf("%w: class ID must not be empty", ErrInvalidArgument)
	}
	f.mu.RLock()
	spec, ok := f.classes[classID]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrClassNotRegistered, classID)
	}
	return newNode(id, classID, name, spec, env), nil
}

// Class returns the descriptor registered under id.
func (f *NodeFactory) Class(id string) (ClassSpec, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	spec, ok := f.classes[id]
	return spec, ok
}

// Categories returns the distinct category names ever registered, sorted.
func (f *NodeFactory) Categories() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.categories))
	for c := range f.categories {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// ClassesIn returns the class identifiers filed under category. An unknown
// category yields an empty slice, not an error.
func (f *NodeFactory) ClassesIn(category string) []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := f.categories[category]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// RegisterConversion adds a converter for the (from, to) type pair.
func (f *NodeFactory) RegisterConversion(from, to string, fn ConvertFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.converts[convKey{from, to}] = fn
}

// IsConvertible reports whether from can flow into a port declared as to.
// Same-type is always convertible.
func (f *NodeFactory) IsConvertible(from, to string) bool {
	if from == to {
		return true
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.converts[convKey{from, to}]
	return ok
}

// Convert produces v's equivalent under the target type. Same-type returns
// v unchanged; unknown pairs fail with ErrTypeMismatch.
func (f *NodeFactory) Convert(v *value.Value, to string) (*value.Value, error) {
	if v == nil || v.TypeName() == to {
		return v, nil
	}
	f.mu.RLock()
	fn, ok := f.converts[convKey{v.TypeName(), to}]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no conversion from %s to %s", ErrTypeMismatch, v.TypeName(), to)
	}
	return fn(v)
}

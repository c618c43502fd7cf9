package graph

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/flowcore/flowcore/internal/core/ident"
	"github.com/flowcore/flowcore/internal/core/value"
	imetrics "github.com/flowcore/flowcore/internal/infrastructure/metrics"
)

// Env is the execution context a node computes under. It is implemented by
// the public environment type and injected at node construction.
type Env interface {
	// Factory returns the node factory, consulted for type conversions.
	Factory() *NodeFactory
	// Submit queues a task on the environment's worker pool.
	Submit(task func())
}

// ComputeFunc is a node class's compute procedure. It reads input ports and
// writes output ports on n. An error return (or panic) moves the node to the
// Error state without touching its previous outputs.
type ComputeFunc func(n *Node) error

// ComputeState is the node's compute state machine position.
type ComputeState int32

const (
	// StateIdle means no compute is pending.
	StateIdle ComputeState = iota
	// StateComputing means the compute procedure is executing.
	StateComputing
	// StateError means the last compute raised a fault. A subsequent
	// InvokeCompute retries unconditionally.
	StateError
)

// Node is a computation unit: a fixed set of typed input and output ports,
// a compute procedure, and an event surface. Identity is the UUID; the name
// is a mutable display label and the class is immutable.
type Node struct {
	id      ident.UUID
	class   string
	env     Env
	compute ComputeFunc

	mu   sync.RWMutex
	name string

	// Port maps are fixed at construction; only port values change.
	inputs  map[ident.Name]*Port
	outputs map[ident.Name]*Port

	state     atomic.Int32
	computeMu sync.Mutex
	waveDepth atomic.Int32

	computeEvents emitter[*Node]
	errorEvents   emitter[NodeFault]
	inputEvents   emitter[PortEvent]
	outputEvents  emitter[PortEvent]
}

func newNode(id ident.UUID, class, name string, spec ClassSpec, env Env) *Node {
	n := &Node{
		id:      id,
		class:   class,
		env:     env,
		compute: spec.Compute,
		name:    name,
		inputs:  make(map[ident.Name]*Port, len(spec.Inputs)),
		outputs: make(map[ident.Name]*Port, len(spec.Outputs)),
	}
	for _, ps := range spec.Inputs {
		n.inputs[ident.Intern(ps.Key)] = newPort(ps, RoleInput)
	}
	for _, ps := range spec.Outputs {
		n.outputs[ident.Intern(ps.Key)] = newPort(ps, RoleOutput)
	}
	return n
}

// ID returns the node's identity.
func (n *Node) ID() ident.UUID { return n.id }

// Class returns the immutable class identifier.
func (n *Node) Class() string { return n.class }

// Name returns the display label.
func (n *Node) Name() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.name
}

// SetName updates the display label. The name is not identity and may be
// changed freely, but must be non-empty.
func (n *Node) SetName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: node name must not be empty", ErrInvalidArgument)
	}
	n.mu.Lock()
	n.name = name
	n.mu.Unlock()
	return nil
}

// State returns the compute state machine position.
func (n *Node) State() ComputeState {
	return ComputeState(n.state.Load())
}

// InputPort returns the input port for key, or ErrPortNotFound.
func (n *Node) InputPort(key ident.Name) (*Port, error) {
	p, ok := n.inputs[key]
	if !ok {
		return nil, fmt.Errorf("%w: input port %q on node %s", ErrPortNotFound, key, n.id)
	}
	return p, nil
}

// OutputPort returns the output port for key, or ErrPortNotFound.
func (n *Node) OutputPort(key ident.Name) (*Port, error) {
	p, ok := n.outputs[key]
	if !ok {
		return nil, fmt.Errorf("%w: output port %q on node %s", ErrPortNotFound, key, n.id)
	}
	return p, nil
}

// InputPortKeys returns the input port keys in sorted order.
func (n *Node) InputPortKeys() []ident.Name {
	return sortedKeys(n.inputs)
}

// OutputPortKeys returns the output port keys in sorted order.
func (n *Node) OutputPortKeys() []ident.Name {
	return sortedKeys(n.outputs)
}

func sortedKeys(ports map[ident.Name]*Port) []ident.Name {
	keys := make([]ident.Name, 0, len(ports))
	for k := range ports {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// SetInputData writes v to the named input port. A nil v clears the port.
// The value must match the port's declared type or be convertible per the
// factory's compatibility table. With autoCompute true a non-nil write
// queues the node's compute procedure on the environment pool; false
// suppresses it, which bulk restore relies on to avoid cascades.
func (n *Node) SetInputData(key ident.Name, v *value.Value, autoCompute bool) error {
	port, err := n.InputPort(key)
	if err != nil {
		return err
	}
	coerced, err := n.coerce(v, port.DataType())
	if err != nil {
		return err
	}
	port.setValue(coerced)
	imetrics.IncValuesSet()
	n.inputEvents.emit(PortEvent{Key: key, Value: coerced, Auto: autoCompute})
	if autoCompute && coerced != nil {
		n.scheduleCompute(0)
	}
	return nil
}

// ClearInputData resets the named input port to empty.
func (n *Node) ClearInputData(key ident.Name) error {
	return n.SetInputData(key, nil, false)
}

// SetOutputData writes v to the named output port. A nil v clears the port.
// With propagate true the write is announced to output subscribers (the
// owning graph pushes it through outgoing connections); compute procedures
// use true, bulk restore uses false.
func (n *Node) SetOutputData(key ident.Name, v *value.Value, propagate bool) error {
	port, err := n.OutputPort(key)
	if err != nil {
		return err
	}
	coerced, err := n.coerce(v, port.DataType())
	if err != nil {
		return err
	}
	port.setValue(coerced)
	imetrics.IncValuesSet()
	n.outputEvents.emit(PortEvent{
		Key:   key,
		Value: coerced,
		Auto:  propagate,
		depth: int(n.waveDepth.Load()),
	})
	return nil
}

// ClearOutputData resets the named output port to empty.
func (n *Node) ClearOutputData(key ident.Name) error {
	return n.SetOutputData(key, nil, false)
}

// InputData returns the named input port's current value (nil when empty).
func (n *Node) InputData(key ident.Name) (*value.Value, error) {
	port, err := n.InputPort(key)
	if err != nil {
		return nil, err
	}
	return port.Value(), nil
}

// OutputData returns the named output port's current value (nil when empty).
func (n *Node) OutputData(key ident.Name) (*value.Value, error) {
	port, err := n.OutputPort(key)
	if err != nil {
		return nil, err
	}
	return port.Value(), nil
}

// coerce checks v against the declared port type, converting through the
// factory's table when the types differ.
func (n *Node) coerce(v *value.Value, dataType string) (*value.Value, error) {
	if v == nil || v.TypeName() == dataType {
		return v, nil
	}
	if n.env == nil {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrTypeMismatch, dataType, v.TypeName())
	}
	return n.env.Factory().Convert(v, dataType)
}

// ValidateRequiredInputs reports whether every input port marked required
// holds a value. It is a pure query: InvokeCompute does not consult it, so
// composing the two is the caller's choice.
func (n *Node) ValidateRequiredInputs() bool {
	for _, p := range n.inputs {
		if p.Required() && !p.HasValue() {
			return false
		}
	}
	return true
}

// HasConnectedInputs reports whether any input port currently holds data.
func (n *Node) HasConnectedInputs() bool {
	for _, p := range n.inputs {
		if p.HasValue() {
			return true
		}
	}
	return false
}

// HasConnectedOutputs reports whether any output port currently holds data.
func (n *Node) HasConnectedOutputs() bool {
	for _, p := range n.outputs {
		if p.HasValue() {
			return true
		}
	}
	return false
}

// InvokeCompute runs the node's compute procedure on the calling goroutine.
// Missing required inputs do not block the call; the compute procedure is
// responsible for handling empty ports. A fault (error return or panic)
// moves the node to the Error state, fires the error events, and is
// returned wrapped in ErrComputationFailed. A later InvokeCompute retries
// unconditionally.
func (n *Node) InvokeCompute() error {
	return n.invokeCompute(0)
}

func (n *Node) invokeCompute(depth int) error {
	n.computeMu.Lock()
	defer n.computeMu.Unlock()

	n.waveDepth.Store(int32(depth))
	defer n.waveDepth.Store(0)

	n.state.Store(int32(StateComputing))
	err := n.runCompute()
	if err != nil {
		n.state.Store(int32(StateError))
		imetrics.IncNodeComputeErrors(n.class)
		fault := fmt.Errorf("%w: class %s: %v", ErrComputationFailed, n.class, err)
		n.errorEvents.emit(NodeFault{NodeID: n.id, Err: fault})
		return fault
	}
	n.state.Store(int32(StateIdle))
	imetrics.IncNodeComputes(n.class)
	n.computeEvents.emit(n)
	return nil
}

func (n *Node) runCompute() (err error) {
	if n.compute == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return n.compute(n)
}

// scheduleCompute queues the compute procedure on the environment pool at
// the given propagation depth. Without an environment the compute runs
// inline.
func (n *Node) scheduleCompute(depth int) {
	if n.env == nil {
		_ = n.invokeCompute(depth)
		return
	}
	n.env.Submit(func() {
		// Faults are routed through the error events; nothing to return to.
		_ = n.invokeCompute(depth)
	})
}

// OnCompute subscribes to successful compute completions.
func (n *Node) OnCompute(fn func(*Node)) Token {
	return n.computeEvents.subscribe(fn)
}

// OnError subscribes to compute faults.
func (n *Node) OnError(fn func(NodeFault)) Token {
	return n.errorEvents.subscribe(fn)
}

// OnSetInput subscribes to input port writes (including clears).
func (n *Node) OnSetInput(fn func(PortEvent)) Token {
	return n.inputEvents.subscribe(fn)
}

// OnSetOutput subscribes to output port writes (including clears).
func (n *Node) OnSetOutput(fn func(PortEvent)) Token {
	return n.outputEvents.subscribe(fn)
}

// Unsubscribe removes the subscription identified by tok from whichever
// event surface it belongs to.
func (n *Node) Unsubscribe(tok Token) {
	if n.computeEvents.unsubscribe(tok) {
		return
	}
	if n.errorEvents.unsubscribe(tok) {
		return
	}
	if n.inputEvents.unsubscribe(tok) {
		return
	}
	n.outputEvents.unsubscribe(tok)
}

// Package graph provides the core dataflow entities: typed ports, computing
// nodes, directed connections, the owning graph, and the node factory.
// Values written to output ports propagate through connections into
// downstream input ports, which may trigger further computation.
package graph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/flowcore/flowcore/internal/core/ident"
	imetrics "github.com/flowcore/flowcore/internal/infrastructure/metrics"
)

// maxPropagationDepth bounds a single propagation wave. Acyclic graphs stay
// far below it; a cyclic graph trips it instead of recursing forever, and
// the overflow is reported through the graph's error surface.
const maxPropagationDepth = 1024

// Graph owns a set of nodes and the connections between their ports,
// forming a dataflow network bound to one execution environment.
type Graph struct {
	id   ident.UUID
	name string
	env  Env

	mu       sync.RWMutex
	nodes    map[ident.UUID]*Node
	conns    map[ident.UUID]*Connection
	nodeSubs map[ident.UUID][]Token

	errorEvents emitter[NodeFault]
	dataEvents  emitter[DataEvent]
}

// NewGraph creates an empty graph bound to env.
func NewGraph(name string, env Env) *Graph {
	return &Graph{
		id:       ident.NewUUID(),
		name:     name,
		env:      env,
		nodes:    make(map[ident.UUID]*Node),
		conns:    make(map[ident.UUID]*Connection),
		nodeSubs: make(map[ident.UUID][]Token),
	}
}

// ID returns the graph's identity.
func (g *Graph) ID() ident.UUID { return g.id }

// Name returns the graph's display name.
func (g *Graph) Name() string { return g.name }

// Env returns the execution environment the graph is bound to.
func (g *Graph) Env() Env { return g.env }

// AddNode adds a pre-created node to the graph and wires the graph's
// propagation and error aggregation to the node's event surface.
func (g *Graph) AddNode(n *Node) error {
	if n == nil {
		return ErrNilNode
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.nodes[n.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID())
	}
	g.nodes[n.ID()] = n
	g.nodeSubs[n.ID()] = []Token{
		n.OnSetOutput(func(ev PortEvent) { g.handleOutput(n, ev) }),
		n.OnSetInput(func(ev PortEvent) {
			g.dataEvents.emit(DataEvent{NodeID: n.ID(), PortKey: ev.Key, Value: ev.Value, IsInput: true})
		}),
		n.OnError(func(f NodeFault) { g.errorEvents.emit(f) }),
	}
	return nil
}

// AddNodeOf creates a node of the given class through the environment's
// factory, assigns it a fresh UUID, and adds it to the graph.
func (g *Graph) AddNodeOf(classID, name string) (*Node, error) {
	n, err := g.env.Factory().CreateNode(classID, ident.NewUUID(), name, g.env)
	if err != nil {
		return nil, err
	}
	if err := g.AddNode(n); err != nil {
		return nil, err
	}
	return n, nil
}

// RemoveNode removes the node and every connection that references it as
// source or target; no dangling connection survives.
func (g *Graph) RemoveNode(id ident.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	for cid, c := range g.conns {
		if c.sourceNodeID == id || c.targetNodeID == id {
			delete(g.conns, cid)
			imetrics.AddConnections(-1)
		}
	}
	for _, tok := range g.nodeSubs[id] {
		n.Unsubscribe(tok)
	}
	delete(g.nodeSubs, id)
	delete(g.nodes, id)
	return nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id ident.UUID) (*Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return n, nil
}

// Nodes returns all nodes ordered by id.
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		return ident.CompareUUID(out[i].ID(), out[j].ID()) < 0
	})
	return out
}

// CanConnect reports whether ConnectNodes would succeed for the given
// endpoints, without mutating the graph.
func (g *Graph) CanConnect(sourceID ident.UUID, sourcePort ident.Name, targetID ident.UUID, targetPort ident.Name) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, _, err := g.validateEndpoints(sourceID, sourcePort, targetID, targetPort)
	return err == nil
}

// ConnectNodes wires a source output port to a target input port after
// validating that both endpoints exist, the roles match, and the declared
// types are identical or registered-convertible. If the target input
// already has an incoming connection it is superseded, keeping fan-in at
// one. If the source output currently holds a value it is pushed to the
// target immediately, so connecting to a populated output seeds the
// consumer.
func (g *Graph) ConnectNodes(sourceID ident.UUID, sourcePort ident.Name, targetID ident.UUID, targetPort ident.Name) (*Connection, error) {
	g.mu.Lock()
	src, dst, err := g.validateEndpoints(sourceID, sourcePort, targetID, targetPort)
	if err != nil {
		g.mu.Unlock()
		return nil, err
	}

	// Fan-in <= 1: an existing connection into the target input is
	// superseded, not rejected.
	for cid, c := range g.conns {
		if c.targetNodeID == targetID && c.targetPortKey == targetPort {
			delete(g.conns, cid)
			imetrics.AddConnections(-1)
		}
	}

	conn := &Connection{
		id:            ident.NewUUID(),
		sourceNodeID:  sourceID,
		sourcePortKey: sourcePort,
		targetNodeID:  targetID,
		targetPortKey: targetPort,
	}
	g.conns[conn.id] = conn
	imetrics.AddConnections(1)

	srcPort, _ := src.OutputPort(sourcePort)
	seed := srcPort.Value()
	g.mu.Unlock()

	if seed != nil {
		if err := dst.SetInputData(targetPort, seed, true); err != nil {
			g.errorEvents.emit(NodeFault{NodeID: targetID, Err: err})
		}
	}
	return conn, nil
}

// validateEndpoints checks both nodes and ports under g.mu (held by the
// caller) and returns the endpoint nodes.
func (g *Graph) validateEndpoints(sourceID ident.UUID, sourcePort ident.Name, targetID ident.UUID, targetPort ident.Name) (*Node, *Node, error) {
	src, ok := g.nodes[sourceID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: source node %s not in graph", ErrConnectionFailed, sourceID)
	}
	dst, ok := g.nodes[targetID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: target node %s not in graph", ErrConnectionFailed, targetID)
	}
	out, err := src.OutputPort(sourcePort)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	in, err := dst.InputPort(targetPort)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	if !g.env.Factory().IsConvertible(out.DataType(), in.DataType()) {
		return nil, nil, fmt.Errorf("%w: type %s is not convertible to %s",
			ErrConnectionFailed, out.DataType(), in.DataType())
	}
	return src, dst, nil
}

// DisconnectNodes removes the connection matching all four endpoints. The
// downstream input port keeps its last known value.
func (g *Graph) DisconnectNodes(sourceID ident.UUID, sourcePort ident.Name, targetID ident.UUID, targetPort ident.Name) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for cid, c := range g.conns {
		if c.sourceNodeID == sourceID && c.sourcePortKey == sourcePort &&
			c.targetNodeID == targetID && c.targetPortKey == targetPort {
			delete(g.conns, cid)
			imetrics.AddConnections(-1)
			return nil
		}
	}
	return fmt.Errorf("%w: %s.%s -> %s.%s", ErrConnectionNotFound,
		sourceID, sourcePort, targetID, targetPort)
}

// RemoveConnection removes the connection with the given id. The downstream
// input port keeps its last known value.
func (g *Graph) RemoveConnection(id ident.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.conns[id]; !ok {
		return fmt.Errorf("%w: %s", ErrConnectionNotFound, id)
	}
	delete(g.conns, id)
	imetrics.AddConnections(-1)
	return nil
}

// Connection returns the connection with the given id.
func (g *Graph) Connection(id ident.UUID) (*Connection, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.conns[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConnectionNotFound, id)
	}
	return c, nil
}

// Connections returns all connections ordered by id.
func (g *Graph) Connections() []*Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Connection, 0, len(g.conns))
	for _, c := range g.conns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return ident.CompareUUID(out[i].ID(), out[j].ID()) < 0
	})
	return out
}

// Run triggers computation starting from source nodes (nodes with no
// incoming connections) and relies on propagation to reach the rest of the
// graph. Computes are queued on the environment pool; Env.Wait barriers on
// completion.
func (g *Graph) Run() {
	g.mu.RLock()
	hasIncoming := make(map[ident.UUID]bool, len(g.conns))
	for _, c := range g.conns {
		hasIncoming[c.targetNodeID] = true
	}
	sources := make([]*Node, 0, len(g.nodes))
	for id, n := range g.nodes {
		if !hasIncoming[id] {
			sources = append(sources, n)
		}
	}
	g.mu.RUnlock()

	for _, n := range sources {
		n.scheduleCompute(0)
	}
}

// Clear drops all nodes and connections.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, n := range g.nodes {
		for _, tok := range g.nodeSubs[id] {
			n.Unsubscribe(tok)
		}
	}
	imetrics.AddConnections(int64(-len(g.conns)))
	g.nodes = make(map[ident.UUID]*Node)
	g.conns = make(map[ident.UUID]*Connection)
	g.nodeSubs = make(map[ident.UUID][]Token)
}

// OnError subscribes to the graph's aggregate error surface: every node
// compute fault and propagation failure lands here. Callbacks may fire from
// worker goroutines.
func (g *Graph) OnError(fn func(NodeFault)) Token {
	return g.errorEvents.subscribe(fn)
}

// OnDataSet subscribes to value writes anywhere in the graph. Callbacks may
// fire from worker goroutines.
func (g *Graph) OnDataSet(fn func(DataEvent)) Token {
	return g.dataEvents.subscribe(fn)
}

// Unsubscribe removes a graph-level subscription.
func (g *Graph) Unsubscribe(tok Token) {
	if g.errorEvents.unsubscribe(tok) {
		return
	}
	g.dataEvents.unsubscribe(tok)
}

// handleOutput reacts to a node's output port write: it surfaces the write
// on the graph's data event surface and, for propagating writes, pushes the
// value through every outgoing connection of that port. Each downstream
// write is applied without auto-compute and the downstream compute is
// scheduled explicitly one depth level deeper, so a propagation wave can be
// bounded.
func (g *Graph) handleOutput(n *Node, ev PortEvent) {
	g.dataEvents.emit(DataEvent{NodeID: n.ID(), PortKey: ev.Key, Value: ev.Value})
	if !ev.Auto || ev.Value == nil {
		return
	}
	if ev.depth >= maxPropagationDepth {
		g.errorEvents.emit(NodeFault{
			NodeID: n.ID(),
			Err: fmt.Errorf("%w: propagation depth limit (%d) exceeded at node %s, possible cycle",
				ErrComputationFailed, maxPropagationDepth, n.ID()),
		})
		return
	}

	type hop struct {
		target *Node
		key    ident.Name
	}
	g.mu.RLock()
	var hops []hop
	for _, c := range g.conns {
		if c.sourceNodeID == n.ID() && c.sourcePortKey == ev.Key {
			if target, ok := g.nodes[c.targetNodeID]; ok {
				hops = append(hops, hop{target: target, key: c.targetPortKey})
			}
		}
	}
	g.mu.RUnlock()

	for _, h := range hops {
		imetrics.IncPropagations()
		if err := h.target.SetInputData(h.key, ev.Value, false); err != nil {
			g.errorEvents.emit(NodeFault{NodeID: h.target.ID(), Err: err})
			continue
		}
		h.target.scheduleCompute(ev.depth + 1)
	}
}

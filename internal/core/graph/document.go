package graph

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/flowcore/flowcore/internal/core/ident"
	"github.com/flowcore/flowcore/internal/core/value"
	imetrics "github.com/flowcore/flowcore/internal/infrastructure/metrics"
)

// Semantic value types used by the persisted document format and the port
// metadata interchange. "none" denotes a type with no simple scalar
// representation.
const (
	SemanticInteger = "integer"
	SemanticFloat   = "float"
	SemanticBoolean = "boolean"
	SemanticString  = "string"
	SemanticNone    = "none"
)

// ValueDocument is the persisted form of one port value.
type ValueDocument struct {
	Type  string `json:"type" validate:"required,oneof=integer float boolean string none"`
	Value string `json:"value,omitempty"`
}

// NodeDocument is the persisted form of one node: identity, class, label,
// and the current values of its ports. Empty ports are simply absent.
type NodeDocument struct {
	ID      string                   `json:"id" validate:"required,uuid"`
	Class   string                   `json:"class" validate:"required"`
	Name    string                   `json:"name"`
	Inputs  map[string]ValueDocument `json:"inputs,omitempty" validate:"dive"`
	Outputs map[string]ValueDocument `json:"outputs,omitempty" validate:"dive"`
}

// ConnectionDocument is the persisted form of one connection.
type ConnectionDocument struct {
	ID            string `json:"id" validate:"required,uuid"`
	SourceNodeID  string `json:"source_node_id" validate:"required,uuid"`
	SourcePortKey string `json:"source_port_key" validate:"required"`
	TargetNodeID  string `json:"target_node_id" validate:"required,uuid"`
	TargetPortKey string `json:"target_port_key" validate:"required"`
}

// Document is a whole persisted graph.
type Document struct {
	Nodes       []NodeDocument       `json:"nodes" validate:"dive"`
	Connections []ConnectionDocument `json:"connections" validate:"dive"`
}

// SemanticType maps an engine type name to its interchange type. Complex
// and domain types map to "none".
func SemanticType(dataType string) string {
	switch dataType {
	case value.TypeInt:
		return SemanticInteger
	case value.TypeFloat:
		return SemanticFloat
	case value.TypeBool:
		return SemanticBoolean
	case value.TypeString:
		return SemanticString
	default:
		return SemanticNone
	}
}

// EncodeValue renders a value in the persisted form. Opaque values encode
// as "none" with no payload.
func EncodeValue(v *value.Value) ValueDocument {
	if v == nil {
		return ValueDocument{Type: SemanticNone}
	}
	st := SemanticType(v.TypeName())
	if st == SemanticNone {
		return ValueDocument{Type: SemanticNone}
	}
	return ValueDocument{Type: st, Value: v.String()}
}

// DecodeValue parses a persisted value. "none" yields nil without error.
func DecodeValue(doc ValueDocument) (*value.Value, error) {
	switch doc.Type {
	case SemanticInteger:
		i, err := strconv.ParseInt(doc.Value, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: integer value %q: %v", ErrInvalidArgument, doc.Value, err)
		}
		return value.NewInt(int32(i)), nil
	case SemanticFloat:
		f, err := strconv.ParseFloat(doc.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: float value %q: %v", ErrInvalidArgument, doc.Value, err)
		}
		return value.NewFloat(f), nil
	case SemanticBoolean:
		b, err := strconv.ParseBool(doc.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: boolean value %q: %v", ErrInvalidArgument, doc.Value, err)
		}
		return value.NewBool(b), nil
	case SemanticString:
		return value.NewString(doc.Value), nil
	case SemanticNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown value type %q", ErrInvalidArgument, doc.Type)
	}
}

// Save renders the node's persisted form. Port values render in sorted key
// order for deterministic output.
func (n *Node) Save() NodeDocument {
	doc := NodeDocument{
		ID:    n.id.String(),
		Class: n.class,
		Name:  n.Name(),
	}
	doc.Inputs = savePorts(n.inputs)
	doc.Outputs = savePorts(n.outputs)
	return doc
}

func savePorts(ports map[ident.Name]*Port) map[string]ValueDocument {
	out := make(map[string]ValueDocument)
	for k, p := range ports {
		v := p.Value()
		if v == nil {
			continue
		}
		out[k.String()] = EncodeValue(v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Restore applies a persisted node document to this node. Values are
// written without auto-compute so bulk restore does not cascade; the caller
// runs the graph afterwards if it wants computed outputs brought up to
// date.
func (n *Node) Restore(doc NodeDocument) error {
	if doc.Name != "" {
		if err := n.SetName(doc.Name); err != nil {
			return err
		}
	}
	for key, vd := range doc.Inputs {
		v, err := DecodeValue(vd)
		if err != nil {
			return err
		}
		if v == nil {
			continue
		}
		if err := n.SetInputData(ident.Intern(key), v, false); err != nil {
			return err
		}
	}
	for key, vd := range doc.Outputs {
		v, err := DecodeValue(vd)
		if err != nil {
			return err
		}
		if v == nil {
			continue
		}
		if err := n.SetOutputData(ident.Intern(key), v, false); err != nil {
			return err
		}
	}
	return nil
}

// Save renders the whole graph: nodes and connections in id order, port
// values included, so Save followed by Load reproduces a structurally
// equivalent graph.
func (g *Graph) Save() *Document {
	doc := &Document{}
	for _, n := range g.Nodes() {
		doc.Nodes = append(doc.Nodes, n.Save())
	}
	for _, c := range g.Connections() {
		doc.Connections = append(doc.Connections, ConnectionDocument{
			ID:            c.ID().String(),
			SourceNodeID:  c.SourceNodeID().String(),
			SourcePortKey: c.SourcePortKey().String(),
			TargetNodeID:  c.TargetNodeID().String(),
			TargetPortKey: c.TargetPortKey().String(),
		})
	}
	return doc
}

// SaveJSON renders the graph document as indented JSON.
func (g *Graph) SaveJSON() ([]byte, error) {
	return json.MarshalIndent(g.Save(), "", "  ")
}

// Load applies a persisted document to this graph. Loading is additive and
// overwriting by id: a node that already exists has its state restored, a
// new node is instantiated through the factory. Connections are
// re-established without eager value propagation; callers run the graph
// afterwards to bring computed outputs up to date.
func (g *Graph) Load(doc *Document) error {
	for _, nd := range doc.Nodes {
		if err := g.loadNode(nd); err != nil {
			return err
		}
	}
	for _, cd := range doc.Connections {
		if err := g.loadConnection(cd); err != nil {
			return err
		}
	}
	return nil
}

// LoadJSON parses and applies a persisted document.
func (g *Graph) LoadJSON(data []byte) error {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return g.Load(&doc)
}

func (g *Graph) loadNode(nd NodeDocument) error {
	id, err := ident.ParseUUID(nd.ID)
	if err != nil {
		return fmt.Errorf("%w: node id: %v", ErrInvalidArgument, err)
	}

	g.mu.RLock()
	n, exists := g.nodes[id]
	g.mu.RUnlock()

	if exists {
		if n.Class() != nd.Class {
			return fmt.Errorf("%w: node %s is class %q, document says %q",
				ErrInvalidArgument, id, n.Class(), nd.Class)
		}
		return n.Restore(nd)
	}

	n, err = g.env.Factory().CreateNode(nd.Class, id, nd.Name, g.env)
	if err != nil {
		return err
	}
	if err := g.AddNode(n); err != nil {
		return err
	}
	return n.Restore(nd)
}

func (g *Graph) loadConnection(cd ConnectionDocument) error {
	id, err := ident.ParseUUID(cd.ID)
	if err != nil {
		return fmt.Errorf("%w: connection id: %v", ErrInvalidArgument, err)
	}
	sourceID, err := ident.ParseUUID(cd.SourceNodeID)
	if err != nil {
		return fmt.Errorf("%w: connection source: %v", ErrInvalidArgument, err)
	}
	targetID, err := ident.ParseUUID(cd.TargetNodeID)
	if err != nil {
		return fmt.Errorf("%w: connection target: %v", ErrInvalidArgument, err)
	}
	sourcePort := ident.Intern(cd.SourcePortKey)
	targetPort := ident.Intern(cd.TargetPortKey)

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, _, err := g.validateEndpoints(sourceID, sourcePort, targetID, targetPort); err != nil {
		return err
	}
	// Overwrite by id and keep fan-in at one, same as ConnectNodes, but
	// with no eager seeding during bulk restore.
	for cid, c := range g.conns {
		if cid == id || (c.targetNodeID == targetID && c.targetPortKey == targetPort) {
			delete(g.conns, cid)
			imetrics.AddConnections(-1)
		}
	}
	g.conns[id] = &Connection{
		id:            id,
		sourceNodeID:  sourceID,
		sourcePortKey: sourcePort,
		targetNodeID:  targetID,
		targetPortKey: targetPort,
	}
	imetrics.AddConnections(1)
	return nil
}

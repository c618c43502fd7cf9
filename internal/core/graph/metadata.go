package graph

import (
	"encoding/json"
	"fmt"

	"github.com/flowcore/flowcore/internal/core/ident"
)

// PortMetadata is the per-port record consumed by external tooling. The
// value descriptor is a JSON string of shape {"type": <semantic-type>,
// "value"?: <string>}; "none" denotes a type with no simple scalar default.
type PortMetadata struct {
	Key             string `json:"key"`
	ValueDescriptor string `json:"value_descriptor"`
	HasDefault      bool   `json:"has_default"`
}

// PortMetadata returns the metadata record for the named port, looking up
// inputs first and then outputs. An unknown key fails with ErrPortNotFound
// and mutates nothing.
func (n *Node) PortMetadata(key ident.Name) (PortMetadata, error) {
	p, ok := n.inputs[key]
	if !ok {
		if p, ok = n.outputs[key]; !ok {
			return PortMetadata{}, fmt.Errorf("%w: port %q on node %s", ErrPortNotFound, key, n.id)
		}
	}
	return portMetadata(p), nil
}

// InputPortsMetadata returns metadata for every input port in key order.
func (n *Node) InputPortsMetadata() []PortMetadata {
	keys := n.InputPortKeys()
	out := make([]PortMetadata, 0, len(keys))
	for _, k := range keys {
		out = append(out, portMetadata(n.inputs[k]))
	}
	return out
}

// OutputPortsMetadata returns metadata for every output port in key order.
func (n *Node) OutputPortsMetadata() []PortMetadata {
	keys := n.OutputPortKeys()
	out := make([]PortMetadata, 0, len(keys))
	for _, k := range keys {
		out = append(out, portMetadata(n.outputs[k]))
	}
	return out
}

func portMetadata(p *Port) PortMetadata {
	descriptor := struct {
		Type  string `json:"type"`
		Value string `json:"value,omitempty"`
	}{
		Type: SemanticType(p.DataType()),
	}
	v := p.Value()
	if descriptor.Type != SemanticNone && v != nil {
		descriptor.Value = v.String()
	}
	// The descriptor shape cannot fail to marshal.
	raw, _ := json.Marshal(descriptor)
	return PortMetadata{
		Key:             p.Key().String(),
		ValueDescriptor: string(raw),
		HasDefault:      v != nil,
	}
}

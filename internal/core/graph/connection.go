package graph

import (
	"github.com/flowcore/flowcore/internal/core/ident"
)

// Connection is a directed edge from one node's output port to another
// node's input port. A target input port has at most one incoming
// connection; a source output port fans out to any number.
type Connection struct {
	id            ident.UUID
	sourceNodeID  ident.UUID
	sourcePortKey ident.Name
	targetNodeID  ident.UUID
	targetPortKey ident.Name
}

// ID returns the connection's identity.
func (c *Connection) ID() ident.UUID { return c.id }

// SourceNodeID returns the upstream node.
func (c *Connection) SourceNodeID() ident.UUID { return c.sourceNodeID }

// SourcePortKey returns the upstream output port key.
func (c *Connection) SourcePortKey() ident.Name { return c.sourcePortKey }

// TargetNodeID returns the downstream node.
func (c *Connection) TargetNodeID() ident.UUID { return c.targetNodeID }

// TargetPortKey returns the downstream input port key.
func (c *Connection) TargetPortKey() ident.Name { return c.targetPortKey }

package flowcore

import (
	"github.com/flowcore/flowcore/internal/adapters/repository/memory"
	"github.com/flowcore/flowcore/internal/app/modules"
	"github.com/flowcore/flowcore/internal/core/graph"
	"github.com/flowcore/flowcore/internal/core/ident"
	"github.com/flowcore/flowcore/internal/core/snapshot"
	"github.com/flowcore/flowcore/internal/core/value"
	"github.com/flowcore/flowcore/pkg/serialization"
)

// Core graph types, re-exported so callers never import internal packages.
type (
	Graph        = graph.Graph
	Node         = graph.Node
	Port         = graph.Port
	Connection   = graph.Connection
	NodeFactory  = graph.NodeFactory
	ClassSpec    = graph.ClassSpec
	PortSpec     = graph.PortSpec
	ComputeFunc  = graph.ComputeFunc
	PortMetadata = graph.PortMetadata
	Document     = graph.Document
	Token        = graph.Token
	NodeFault    = graph.NodeFault
	DataEvent    = graph.DataEvent
	PortEvent    = graph.PortEvent
)

// Identity types.
type (
	UUID = ident.UUID
	Name = ident.Name
)

// NewUUID generates a fresh node or connection identity.
var NewUUID = ident.NewUUID

// ParseUUID parses a canonical UUID string.
var ParseUUID = ident.ParseUUID

// Intern canonicalizes a port key.
var Intern = ident.Intern

// Value is the typed container flowing through ports.
type Value = value.Value

// Value constructors.
var (
	NewInt    = value.NewInt
	NewFloat  = value.NewFloat
	NewBool   = value.NewBool
	NewString = value.NewString
	NewOpaque = value.NewOpaque
)

// Declared port type names.
const (
	TypeInt    = value.TypeInt
	TypeFloat  = value.TypeFloat
	TypeBool   = value.TypeBool
	TypeString = value.TypeString
)

// Sentinel errors, re-exported for errors.Is assertions at the call site.
var (
	ErrInvalidArgument    = graph.ErrInvalidArgument
	ErrTypeMismatch       = graph.ErrTypeMismatch
	ErrNodeNotFound       = graph.ErrNodeNotFound
	ErrPortNotFound       = graph.ErrPortNotFound
	ErrComputationFailed  = graph.ErrComputationFailed
	ErrConnectionFailed   = graph.ErrConnectionFailed
	ErrConnectionNotFound = graph.ErrConnectionNotFound
	ErrClassNotRegistered = graph.ErrClassNotRegistered
	ErrSnapshotNotFound   = snapshot.ErrSnapshotNotFound
	ErrModuleLoadFailed   = modules.ErrModuleLoadFailed
	ErrModuleNotLoaded    = modules.ErrModuleNotLoaded
)

// Module loading.
type (
	Module     = modules.Module
	ModuleInfo = modules.Info
)

// Snapshot persistence.
type (
	Snapshot       = snapshot.Snapshot
	SnapshotStore  = snapshot.Store
	SnapshotFilter = snapshot.Filter
)

// NewSnapshot captures the graph's current persisted form.
var NewSnapshot = snapshot.New

// NewMemorySnapshotStore creates the in-process snapshot store with the
// default serialization pipeline.
func NewMemorySnapshotStore() SnapshotStore {
	return memory.NewSnapshotStore(serialization.DefaultSerializer())
}

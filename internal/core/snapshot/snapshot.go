// Package snapshot defines the persisted-graph contract: a snapshot is one
// saved graph document plus identifying metadata, and a Store keeps
// snapshots someplace durable. Storage backends live under
// internal/adapters/repository.
package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/flowcore/flowcore/internal/core/graph"
	"github.com/flowcore/flowcore/pkg/validation"
)

var (
	// ErrSnapshotNotFound is returned when a snapshot id has no record.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrInvalidSnapshot is returned for snapshots that fail validation
	// before they reach a backend.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// Version tags the document layout a snapshot was written with.
const Version = "1.0"

// Snapshot is one saved graph state.
type Snapshot struct {
	ID        string          `json:"id"`
	GraphID   string          `json:"graph_id"`
	Name      string          `json:"name"`
	Document  *graph.Document `json:"document"`
	CreatedAt time.Time       `json:"created_at"`
	Version   string          `json:"version"`
}

// New builds a snapshot of the graph's current persisted form.
func New(g *graph.Graph) *Snapshot {
	return &Snapshot{
		ID:        g.ID().String() + "-" + time.Now().UTC().Format("20060102T150405.000000000"),
		GraphID:   g.ID().String(),
		Name:      g.Name(),
		Document:  g.Save(),
		CreatedAt: time.Now().UTC(),
		Version:   Version,
	}
}

// Validate checks the fields a backend relies on, then runs full document
// validation so malformed graphs never reach storage.
func (s *Snapshot) Validate() error {
	if s == nil {
		return ErrInvalidSnapshot
	}
	if s.ID == "" {
		return errors.New("snapshot id is empty")
	}
	if s.GraphID == "" {
		return errors.New("snapshot graph id is empty")
	}
	if s.Document == nil {
		return errors.New("snapshot document is nil")
	}
	return validation.ValidateDocument(s.Document)
}

// Filter narrows a List call. Zero values mean "no constraint".
type Filter struct {
	GraphID string
	Since   *time.Time
	Before  *time.Time
	Limit   int
	Offset  int
}

// Store persists snapshots. Implementations must be safe for concurrent
// use.
type Store interface {
	Save(ctx context.Context, s *Snapshot) error
	Load(ctx context.Context, id string) (*Snapshot, error)
	List(ctx context.Context, filter Filter) ([]*Snapshot, error)
	Delete(ctx context.Context, id string) error
}

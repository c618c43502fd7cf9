// Package memory provides an in-process snapshot store, the default for
// tests and single-binary deployments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/flowcore/flowcore/internal/core/snapshot"
	"github.com/flowcore/flowcore/pkg/serialization"
)

// SnapshotStore implements snapshot.Store over a mutex-guarded map. Entries
// are held in serialized form so loads hand back detached copies; a caller
// mutating a loaded snapshot cannot corrupt the stored one.
type SnapshotStore struct {
	mu         sync.RWMutex
	entries    map[string][]byte
	serializer *serialization.Serializer
}

// NewSnapshotStore creates a store. A nil serializer selects the default
// msgpack+zstd pipeline.
func NewSnapshotStore(serializer *serialization.Serializer) *SnapshotStore {
	if serializer == nil {
		serializer = serialization.DefaultSerializer()
	}
	return &SnapshotStore{
		entries:    make(map[string][]byte),
		serializer: serializer,
	}
}

// Save stores the snapshot, replacing any entry with the same id.
func (s *SnapshotStore) Save(_ context.Context, snap *snapshot.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("%w: %v", snapshot.ErrInvalidSnapshot, err)
	}
	data, err := s.serializer.Serialize(snap)
	if err != nil {
		return fmt.Errorf("snapshot serialization failed: %w", err)
	}
	s.mu.Lock()
	s.entries[snap.ID] = data
	s.mu.Unlock()
	return nil
}

// Load returns the snapshot with the given id.
func (s *SnapshotStore) Load(_ context.Context, id string) (*snapshot.Snapshot, error) {
	s.mu.RLock()
	data, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", snapshot.ErrSnapshotNotFound, id)
	}
	var snap snapshot.Snapshot
	if err := s.serializer.Deserialize(data, &snap); err != nil {
		return nil, fmt.Errorf("snapshot deserialization failed: %w", err)
	}
	return &snap, nil
}

// List returns snapshots matching the filter, newest first.
func (s *SnapshotStore) List(_ context.Context, filter snapshot.Filter) ([]*snapshot.Snapshot, error) {
	s.mu.RLock()
	all := make([]*snapshot.Snapshot, 0, len(s.entries))
	for _, data := range s.entries {
		var snap snapshot.Snapshot
		if err := s.serializer.Deserialize(data, &snap); err != nil {
			s.mu.RUnlock()
			return nil, fmt.Errorf("snapshot deserialization failed: %w", err)
		}
		all = append(all, &snap)
	}
	s.mu.RUnlock()

	matched := all[:0]
	for _, snap := range all {
		if filter.GraphID != "" && snap.GraphID != filter.GraphID {
			continue
		}
		if filter.Since != nil && !snap.CreatedAt.After(*filter.Since) {
			continue
		}
		if filter.Before != nil && !snap.CreatedAt.Before(*filter.Before) {
			continue
		}
		matched = append(matched, snap)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Delete removes the snapshot with the given id.
func (s *SnapshotStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return fmt.Errorf("%w: %s", snapshot.ErrSnapshotNotFound, id)
	}
	delete(s.entries, id)
	return nil
}

// Stats reports entry count and serialized byte footprint.
type Stats struct {
	Count int   `json:"count"`
	Bytes int64 `json:"bytes"`
}

// GetStats returns the store's current footprint.
func (s *SnapshotStore) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Count: len(s.entries)}
	for _, data := range s.entries {
		st.Bytes += int64(len(data))
	}
	return st
}

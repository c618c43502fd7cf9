// Package postgres provides a snapshot store backed by PostgreSQL, for
// deployments where several processes share one snapshot history.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowcore/flowcore/internal/core/graph"
	"github.com/flowcore/flowcore/internal/core/snapshot"
	"github.com/flowcore/flowcore/pkg/serialization"
)

// SnapshotStore implements snapshot.Store for PostgreSQL over a pgx pool.
type SnapshotStore struct {
	pool       *pgxpool.Pool
	serializer *serialization.Serializer
	tableName  string
}

// NewSnapshotStore creates a store over pool. A nil serializer selects the
// default msgpack+zstd pipeline.
func NewSnapshotStore(pool *pgxpool.Pool, serializer *serialization.Serializer) *SnapshotStore {
	if serializer == nil {
		serializer = serialization.DefaultSerializer()
	}
	return &SnapshotStore{
		pool:       pool,
		serializer: serializer,
		tableName:  "snapshots",
	}
}

// CreateTables creates the snapshot table and its indexes.
func (s *SnapshotStore) CreateTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			graph_id TEXT NOT NULL,
			name TEXT,
			document BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			version TEXT NOT NULL DEFAULT '%s'
		);

		CREATE INDEX IF NOT EXISTS idx_%s_graph_id ON %s (graph_id);
		CREATE INDEX IF NOT EXISTS idx_%s_created_at ON %s (created_at);
	`, s.tableName, snapshot.Version, s.tableName, s.tableName, s.tableName, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Save stores the snapshot, replacing any row with the same id.
func (s *SnapshotStore) Save(ctx context.Context, snap *snapshot.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("%w: %v", snapshot.ErrInvalidSnapshot, err)
	}
	data, err := s.serializer.Serialize(snap.Document)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot document: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, graph_id, name, document, created_at, version)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			document = EXCLUDED.document,
			created_at = EXCLUDED.created_at
	`, s.tableName)

	_, err = s.pool.Exec(ctx, query,
		snap.ID, snap.GraphID, snap.Name, data, snap.CreatedAt, snap.Version)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Load retrieves the snapshot with the given id.
func (s *SnapshotStore) Load(ctx context.Context, id string) (*snapshot.Snapshot, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", snapshot.ErrSnapshotNotFound)
	}

	query := fmt.Sprintf(`
		SELECT id, graph_id, name, document, created_at, version
		FROM %s
		WHERE id = $1
	`, s.tableName)

	var snap snapshot.Snapshot
	var data []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&snap.ID, &snap.GraphID, &snap.Name, &data, &snap.CreatedAt, &snap.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", snapshot.ErrSnapshotNotFound, id)
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	snap.Document = &graph.Document{}
	if err := s.serializer.Deserialize(data, snap.Document); err != nil {
		return nil, fmt.Errorf("failed to deserialize snapshot document: %w", err)
	}
	return &snap, nil
}

// List retrieves snapshots matching the filter, newest first.
func (s *SnapshotStore) List(ctx context.Context, filter snapshot.Filter) ([]*snapshot.Snapshot, error) {
	query, args := s.buildListQuery(filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*snapshot.Snapshot
	for rows.Next() {
		var snap snapshot.Snapshot
		var data []byte
		if err := rows.Scan(&snap.ID, &snap.GraphID, &snap.Name, &data, &snap.CreatedAt, &snap.Version); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		snap.Document = &graph.Document{}
		if err := s.serializer.Deserialize(data, snap.Document); err != nil {
			return nil, fmt.Errorf("failed to deserialize snapshot document: %w", err)
		}
		snaps = append(snaps, &snap)
	}
	return snaps, rows.Err()
}

// Delete removes the snapshot with the given id.
func (s *SnapshotStore) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableName)
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", snapshot.ErrSnapshotNotFound, id)
	}
	return nil
}

func (s *SnapshotStore) buildListQuery(filter snapshot.Filter) (string, []any) {
	query := fmt.Sprintf(
		"SELECT id, graph_id, name, document, created_at, version FROM %s WHERE 1=1",
		s.tableName)
	args := make([]any, 0)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.GraphID != "" {
		query += " AND graph_id = " + arg(filter.GraphID)
	}
	if filter.Since != nil {
		query += " AND created_at > " + arg(*filter.Since)
	}
	if filter.Before != nil {
		query += " AND created_at < " + arg(*filter.Before)
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}
	return query, args
}

// Package sqlite provides a snapshot store backed by an embedded SQLite
// database, suitable for single-host durability without a server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/flowcore/flowcore/internal/core/graph"
	"github.com/flowcore/flowcore/internal/core/snapshot"
	"github.com/flowcore/flowcore/pkg/serialization"
)

// SnapshotStore implements snapshot.Store for SQLite. The graph document is
// stored as a serialized blob; identifying metadata is stored in plain
// columns so List can filter in SQL.
type SnapshotStore struct {
	db         *sql.DB
	serializer *serialization.Serializer
	tableName  string
}

// NewSnapshotStore creates a store over db. A nil serializer selects the
// default msgpack+zstd pipeline.
func NewSnapshotStore(db *sql.DB, serializer *serialization.Serializer) *SnapshotStore {
	if serializer == nil {
		serializer = serialization.DefaultSerializer()
	}
	return &SnapshotStore{
		db:         db,
		serializer: serializer,
		tableName:  "snapshots",
	}
}

// WithTableName overrides the table name. Only alphanumerics and underscore
// are accepted; the name is interpolated into SQL identifiers.
func (s *SnapshotStore) WithTableName(name string) *SnapshotStore {
	if isSafeIdent(name) {
		s.tableName = name
	}
	return s
}

func isSafeIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			continue
		}
		return false
	}
	return true
}

// CreateTables creates the snapshot table and its indexes.
func (s *SnapshotStore) CreateTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			graph_id TEXT NOT NULL,
			name TEXT,
			document BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			version TEXT NOT NULL DEFAULT '%s'
		);

		CREATE INDEX IF NOT EXISTS idx_%s_graph_id ON %s (graph_id);
		CREATE INDEX IF NOT EXISTS idx_%s_created_at ON %s (created_at);
	`, s.tableName, snapshot.Version, s.tableName, s.tableName, s.tableName, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
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
		INSERT OR REPLACE INTO %s (id, graph_id, name, document, created_at, version)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.tableName)

	_, err = s.db.ExecContext(ctx, query,
		snap.ID, snap.GraphID, snap.Name, data, snap.CreatedAt.UnixNano(), snap.Version)
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
		WHERE id = ?
	`, s.tableName)

	snap, err := s.scanRow(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", snapshot.ErrSnapshotNotFound, id)
		}
		return nil, err
	}
	return snap, nil
}

// List retrieves snapshots matching the filter, newest first.
func (s *SnapshotStore) List(ctx context.Context, filter snapshot.Filter) ([]*snapshot.Snapshot, error) {
	query, args := s.buildListQuery(filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*snapshot.Snapshot
	for rows.Next() {
		snap, err := s.scanRow(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// Delete removes the snapshot with the given id.
func (s *SnapshotStore) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.tableName)
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", snapshot.ErrSnapshotNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SnapshotStore) scanRow(row rowScanner) (*snapshot.Snapshot, error) {
	var snap snapshot.Snapshot
	var data []byte
	var createdAt int64

	if err := row.Scan(&snap.ID, &snap.GraphID, &snap.Name, &data, &createdAt, &snap.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
	}
	snap.CreatedAt = time.Unix(0, createdAt).UTC()

	snap.Document = &graph.Document{}
	if err := s.serializer.Deserialize(data, snap.Document); err != nil {
		return nil, fmt.Errorf("failed to deserialize snapshot document: %w", err)
	}
	return &snap, nil
}

func (s *SnapshotStore) buildListQuery(filter snapshot.Filter) (string, []any) {
	query := fmt.Sprintf(
		"SELECT id, graph_id, name, document, created_at, version FROM %s WHERE 1=1",
		s.tableName)
	args := make([]any, 0)

	if filter.GraphID != "" {
		query += " AND graph_id = ?"
		args = append(args, filter.GraphID)
	}
	if filter.Since != nil {
		query += " AND created_at > ?"
		args = append(args, filter.Since.UnixNano())
	}
	if filter.Before != nil {
		query += " AND created_at < ?"
		args = append(args, filter.Before.UnixNano())
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		// SQLite only accepts OFFSET after a LIMIT clause; -1 means
		// unbounded, so offset-only filters stay valid.
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}
	return query, args
}

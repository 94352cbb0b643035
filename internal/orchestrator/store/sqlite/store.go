// Package sqlite provides a SQLite-backed implementation of
// orchestrator.InstanceStore.
//
// The instance is stored as a JSON document alongside dedicated columns for
// the primary key and the revision counter. The revision column is the
// optimistic-concurrency anchor: Update writes only where the stored
// revision still equals the revision the caller loaded, so a concurrent
// writer is detected as a conflict instead of being silently overwritten.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jcmexdev/delivery-sagas/internal/orchestrator"

	// Register the pure-Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS saga_instances (
    -- Correlation identifier. One row per saga, updated in place.
    id          TEXT    PRIMARY KEY,

    -- Monotonically increasing revision; every write increments it and is
    -- conditioned on the previous value (compare-and-swap).
    revision    INTEGER NOT NULL,

    -- Current state, duplicated out of the document for cheap filtering.
    state       TEXT    NOT NULL,

    -- Full instance snapshot as JSON.
    document    TEXT    NOT NULL,

    -- Wall-clock time of the last write (RFC3339 TEXT, SQLite idiom).
    updated_at  TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_saga_instances_state ON saga_instances(state);
`

// Store is the SQLite implementation of orchestrator.InstanceStore.
type Store struct {
	db *sql.DB
}

var _ orchestrator.InstanceStore = (*Store)(nil)

// Open opens (or creates) the SQLite database at the given path and applies
// the schema. WAL mode is enabled so status reads never block saga writes.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("instance store: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("instance store: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database connection. Call it with defer in main().
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, ins *orchestrator.Instance) error {
	ins.Revision = 1
	doc, err := json.Marshal(ins)
	if err != nil {
		return fmt.Errorf("instance store: marshal saga %q: %w", ins.ID, err)
	}

	const q = `
		INSERT OR IGNORE INTO saga_instances (id, revision, state, document, updated_at)
		VALUES (?, ?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, q, ins.ID, ins.Revision, string(ins.State), string(doc), nowRFC3339())
	if err != nil {
		return fmt.Errorf("instance store: create saga %q: %w", ins.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("instance store: create saga %q: %w", ins.ID, err)
	}
	if n == 0 {
		return orchestrator.ErrAlreadyExists
	}
	return nil
}

func (s *Store) Load(ctx context.Context, id string) (*orchestrator.Instance, error) {
	const q = `SELECT revision, document FROM saga_instances WHERE id = ?`

	var revision int64
	var doc string
	err := s.db.QueryRowContext(ctx, q, id).Scan(&revision, &doc)
	if err == sql.ErrNoRows {
		return nil, orchestrator.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("instance store: load saga %q: %w", id, err)
	}

	var ins orchestrator.Instance
	if err := json.Unmarshal([]byte(doc), &ins); err != nil {
		return nil, fmt.Errorf("instance store: unmarshal saga %q: %w", id, err)
	}
	// The column is authoritative; the document copy may lag behind it
	// only if the row was edited by hand.
	ins.Revision = revision
	return &ins, nil
}

func (s *Store) Update(ctx context.Context, ins *orchestrator.Instance) error {
	next := ins.Clone()
	next.Revision = ins.Revision + 1
	doc, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("instance store: marshal saga %q: %w", ins.ID, err)
	}

	const q = `
		UPDATE saga_instances
		SET    revision = ?, state = ?, document = ?, updated_at = ?
		WHERE  id = ? AND revision = ?`

	res, err := s.db.ExecContext(ctx, q,
		next.Revision, string(next.State), string(doc), nowRFC3339(), ins.ID, ins.Revision)
	if err != nil {
		return fmt.Errorf("instance store: update saga %q: %w", ins.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("instance store: update saga %q: %w", ins.ID, err)
	}
	if n == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM saga_instances WHERE id = ?`, ins.ID).Scan(&exists)
		if err == sql.ErrNoRows {
			return orchestrator.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("instance store: update saga %q: %w", ins.ID, err)
		}
		return orchestrator.ErrConflict
	}

	ins.Revision = next.Revision
	return nil
}

func nowRFC3339() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.999999999Z")
}

// Package sqlite provides a SQLite-backed implementation of
// sagalog.Repository.
//
// WAL mode is enabled on Open so that readers never block writers and vice
// versa — the orchestrator writes transition rows while operators may be
// querying the log.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jcmexdev/delivery-sagas/internal/orchestrator/sagalog"

	// Register the pure-Go SQLite driver. We use modernc.org/sqlite
	// instead of mattn/go-sqlite3 to avoid CGO requirements.
	_ "modernc.org/sqlite"
)

// schema is the DDL executed once on startup. The table is append-only:
// each row is an immutable event in the saga's lifecycle.
const schema = `
CREATE TABLE IF NOT EXISTS saga_transitions (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,

    -- Correlation identifier of the order transaction.
    -- Not UNIQUE: multiple rows exist per saga, one per transition.
    saga_id         TEXT        NOT NULL,

    -- Saga state after the transition was applied.
    state           TEXT        NOT NULL,

    -- Kind of the message that drove the transition.
    message_kind    TEXT        NOT NULL DEFAULT '',

    -- Business rejection or timeout reason, empty on the happy path.
    failure_reason  TEXT        NOT NULL DEFAULT '',

    -- W3C trace_id / span_id from the active OTel span.
    trace_id        TEXT        NOT NULL DEFAULT '',
    span_id         TEXT        NOT NULL DEFAULT '',

    -- Wall-clock timestamp (RFC3339 stored as TEXT, SQLite idiom).
    recorded_at     TEXT        NOT NULL
);

-- The most common query: "give me all transitions for saga X in order".
CREATE INDEX IF NOT EXISTS idx_saga_transitions_saga_id ON saga_transitions(saga_id, recorded_at);

-- The observability query: "find the saga for trace Y".
CREATE INDEX IF NOT EXISTS idx_saga_transitions_trace_id ON saga_transitions(trace_id);
`

// Repository is the SQLite implementation of sagalog.Repository.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at the given path and applies
// the schema. WAL mode is enabled for better concurrent read/write
// performance.
func Open(path string) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	// Use "sqlite", not "sqlite3", for the modernc driver.
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sagalog sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sagalog sqlite: apply schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close releases the database connection. Call it with defer in main().
func (r *Repository) Close() error {
	return r.db.Close()
}

// Save inserts a new transition entry. It is safe to call concurrently.
func (r *Repository) Save(ctx context.Context, entry *sagalog.Entry) error {
	const q = `
		INSERT INTO saga_transitions
			(saga_id, state, message_kind, failure_reason, trace_id, span_id, recorded_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		entry.SagaID,
		entry.State,
		entry.MessageKind,
		entry.FailureReason,
		entry.TraceID,
		entry.SpanID,
		entry.RecordedAt.UTC().Format("2006-01-02T15:04:05.999999999Z"),
	)
	if err != nil {
		return fmt.Errorf("sagalog sqlite: save entry for %q: %w", entry.SagaID, err)
	}
	return nil
}

// GetLatest returns the most recent transition for a given saga ID. Useful
// for spot checks when the instance store and the log are compared.
func (r *Repository) GetLatest(ctx context.Context, sagaID string) (*sagalog.Entry, error) {
	const q = `
		SELECT saga_id, state, message_kind, failure_reason, trace_id, span_id, recorded_at
		FROM   saga_transitions
		WHERE  saga_id = ?
		ORDER  BY recorded_at DESC, id DESC
		LIMIT  1`

	row := r.db.QueryRowContext(ctx, q, sagaID)

	var entry sagalog.Entry
	var recordedAt string
	err := row.Scan(
		&entry.SagaID,
		&entry.State,
		&entry.MessageKind,
		&entry.FailureReason,
		&entry.TraceID,
		&entry.SpanID,
		&recordedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sagalog sqlite: saga %q not found", sagaID)
	}
	if err != nil {
		return nil, fmt.Errorf("sagalog sqlite: get latest for %q: %w", sagaID, err)
	}

	entry.RecordedAt, err = parseRFC3339(recordedAt)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Package store provides SQLite-backed archival for terminal restart
// sessions. The orchestrator never touches this; the serving layer archives
// sessions once they reach a terminal result.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/TheFermiSea/crystalmath/internal/domain"
)

// schemaV1 defines the initial database schema.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id       TEXT PRIMARY KEY,
	max_attempts     INTEGER NOT NULL,
	terminal_kind    TEXT NOT NULL,
	terminal_attempt INTEGER NOT NULL DEFAULT 0,
	terminal_reason  TEXT NOT NULL DEFAULT '',
	created_at       INTEGER NOT NULL,
	archived_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS attempts (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id            TEXT NOT NULL,
	attempt_number        INTEGER NOT NULL,
	status                TEXT NOT NULL,
	params_json           TEXT NOT NULL DEFAULT '{}',
	params_checksum       TEXT NOT NULL DEFAULT '',
	restart_handle        TEXT NOT NULL DEFAULT '',
	pattern               TEXT NOT NULL DEFAULT '',
	reason                TEXT NOT NULL DEFAULT '',
	confidence            REAL NOT NULL DEFAULT 0.0,
	oscillation_amplitude REAL,
	slow_decay_rate       REAL,
	homo_lumo_gap_ev      REAL,
	recommendations_json  TEXT NOT NULL DEFAULT '[]',
	modifications_json    TEXT NOT NULL DEFAULT '[]',
	started_at            INTEGER NOT NULL DEFAULT 0,
	finished_at           INTEGER NOT NULL DEFAULT 0,
	UNIQUE(session_id, attempt_number)
);
CREATE INDEX IF NOT EXISTS idx_attempts_session ON attempts(session_id, attempt_number);

CREATE TABLE IF NOT EXISTS resource_estimates (
	session_id       TEXT PRIMARY KEY,
	memory_mb        INTEGER NOT NULL,
	num_cores        INTEGER NOT NULL,
	walltime_seconds INTEGER NOT NULL,
	created_at       INTEGER NOT NULL
);
`

// NewDB opens a SQLite database at the given path with recommended pragmas
// and runs the V1 schema migration.
func NewDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrStoreInit.Code, "open database", err)
	}

	// Limit connections to 1 for SQLite (WAL allows concurrent reads but single writer).
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, domain.WrapEngineError(domain.ErrStoreInit.Code, "migrate schema", err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.ExecContext(context.Background(), schemaV1)
	return err
}

// Store bundles the database handle with the repositories and satisfies the
// serving layer's Archiver dependency.
type Store struct {
	DB        *sql.DB
	Sessions  *SessionRepo
	Estimates *EstimateRepo
}

// NewStore opens (or creates) the archive database at path.
func NewStore(path string) (*Store, error) {
	db, err := NewDB(path)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db, Sessions: &SessionRepo{}, Estimates: &EstimateRepo{}}, nil
}

// Archive persists a terminal session with all of its attempts.
func (s *Store) Archive(ctx context.Context, session *domain.RestartSession) error {
	return s.Sessions.Archive(ctx, s.DB, session)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.DB.Close()
}

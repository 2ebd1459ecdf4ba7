// Package store persists the mutable state of the learning core in
// SQLite: the word catalog tables, per-(learner, word) progress,
// placement sessions with their answer logs, and daily activity rows.
//
// All access goes through the operations defined here; the pure
// components (scheduler, lifecycle, placement engine) never see the
// database.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"wordhat/internal/errs"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite handle. The single-connection pool plus WAL
// keeps writes serialized without sacrificing read concurrency across
// processes.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open initializes the database at path, creating the schema and
// running migrations. Use ":memory:" for tests.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		log.Debug("failed to set busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		log.Debug("failed to set journal_mode=WAL", zap.Error(err))
	}
	// synchronous=NORMAL is safe under WAL and much faster than FULL.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		log.Debug("failed to set synchronous=NORMAL", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		log.Debug("failed to enable foreign_keys", zap.Error(err))
	}

	s := &Store{db: db, log: log}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	if err := runMigrations(db, log); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	log.Debug("store opened", zap.String("path", path))
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for read-only collaborators
// (the catalog view).
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) initSchema() error {
	wordsTable := `
	CREATE TABLE IF NOT EXISTS words (
		id INTEGER PRIMARY KEY,
		unit INTEGER NOT NULL,
		difficulty_rank INTEGER NOT NULL,
		source_form TEXT NOT NULL,
		target_form TEXT NOT NULL,
		audio_ref TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_words_unit ON words(unit);
	CREATE INDEX IF NOT EXISTS idx_words_rank ON words(difficulty_rank);
	`

	progressTable := `
	CREATE TABLE IF NOT EXISTS progress (
		learner_id TEXT NOT NULL,
		word_id INTEGER NOT NULL REFERENCES words(id) ON DELETE CASCADE,
		status TEXT NOT NULL DEFAULT 'New',
		repetition INTEGER NOT NULL DEFAULT 0,
		easiness REAL NOT NULL DEFAULT 2.5,
		interval_days INTEGER NOT NULL DEFAULT 0,
		next_review_at DATETIME,
		last_reviewed_at DATETIME,
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (learner_id, word_id)
	);
	CREATE INDEX IF NOT EXISTS idx_progress_due ON progress(learner_id, next_review_at);
	CREATE INDEX IF NOT EXISTS idx_progress_status ON progress(learner_id, status);
	`

	placementTable := `
	CREATE TABLE IF NOT EXISTS placement_sessions (
		id TEXT PRIMARY KEY,
		learner_id TEXT NOT NULL,
		current_min INTEGER NOT NULL DEFAULT 1,
		current_max INTEGER NOT NULL DEFAULT 100,
		question_count INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		final_level INTEGER,
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_placement_one_active
		ON placement_sessions(learner_id) WHERE is_active = 1;
	`

	answersTable := `
	CREATE TABLE IF NOT EXISTS placement_answers (
		session_id TEXT NOT NULL REFERENCES placement_sessions(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		word_id INTEGER NOT NULL,
		was_probe BOOLEAN NOT NULL,
		was_known BOOLEAN NOT NULL,
		PRIMARY KEY (session_id, position)
	);
	`

	activityTable := `
	CREATE TABLE IF NOT EXISTS daily_activity (
		learner_id TEXT PRIMARY KEY,
		streak INTEGER NOT NULL DEFAULT 0,
		last_active_day TEXT,
		today_count INTEGER NOT NULL DEFAULT 0,
		today_day TEXT
	);
	`

	for _, table := range []string{
		wordsTable,
		progressTable,
		placementTable,
		answersTable,
		activityTable,
	} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// internalErr tags a storage failure with the Internal error kind while
// keeping the driver error in the chain.
func internalErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, errs.ErrInternal, err)
}

// timePtr converts a scanned NullTime back to the optional form the
// domain records use.
func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// utcPtr normalizes an optional timestamp to UTC before binding, so the
// driver's text serialization stays lexicographically ordered.
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

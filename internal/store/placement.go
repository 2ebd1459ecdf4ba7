package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"wordhat/internal/errs"
	"wordhat/internal/types"
)

// ActiveSession returns the learner's active placement session with its
// answer log, or ErrNotFound when none is in flight.
func (s *Store) ActiveSession(ctx context.Context, learnerID string) (types.PlacementSession, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx, `
		SELECT id, learner_id, current_min, current_max, question_count,
		       is_active, final_level, version, created_at, updated_at
		FROM placement_sessions
		WHERE learner_id = ? AND is_active = 1`,
		learnerID))
	if errors.Is(err, sql.ErrNoRows) {
		return types.PlacementSession{}, fmt.Errorf("active placement session: %w", errs.ErrNotFound)
	}
	if err != nil {
		return types.PlacementSession{}, internalErr("active session", err)
	}
	if err := s.loadAnswers(ctx, &sess); err != nil {
		return types.PlacementSession{}, err
	}
	return sess, nil
}

// GetSession returns a session by id, active or not, with its log.
func (s *Store) GetSession(ctx context.Context, id string) (types.PlacementSession, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx, `
		SELECT id, learner_id, current_min, current_max, question_count,
		       is_active, final_level, version, created_at, updated_at
		FROM placement_sessions WHERE id = ?`,
		id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.PlacementSession{}, fmt.Errorf("placement session %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return types.PlacementSession{}, internalErr("get session", err)
	}
	if err := s.loadAnswers(ctx, &sess); err != nil {
		return types.PlacementSession{}, err
	}
	return sess, nil
}

// CreateSession inserts a fresh session. The partial unique index on
// (learner_id) WHERE is_active enforces one active session per learner;
// a second create while one is in flight returns ErrConflict.
func (s *Store) CreateSession(ctx context.Context, sess types.PlacementSession, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO placement_sessions
			(id, learner_id, current_min, current_max, question_count,
			 is_active, final_level, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.LearnerID, sess.CurrentMin, sess.CurrentMax,
		sess.QuestionCount, sess.Active, sess.FinalLevel, sess.Version, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("learner %s already has an active session: %w", sess.LearnerID, errs.ErrConflict)
		}
		return internalErr("create session", err)
	}
	return nil
}

// UpdateSession writes the session back under optimistic concurrency and
// appends any log entries past what is already persisted, all in one
// transaction. A version mismatch returns ErrConflict.
func (s *Store) UpdateSession(ctx context.Context, sess types.PlacementSession, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return internalErr("update session", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE placement_sessions SET
			current_min = ?, current_max = ?, question_count = ?,
			is_active = ?, final_level = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		sess.CurrentMin, sess.CurrentMax, sess.QuestionCount,
		sess.Active, sess.FinalLevel, now,
		sess.ID, sess.Version)
	if err != nil {
		return internalErr("update session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return internalErr("update session", err)
	}
	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM placement_sessions WHERE id = ?", sess.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("placement session %s: %w", sess.ID, errs.ErrNotFound)
		}
		if err != nil {
			return internalErr("update session", err)
		}
		return fmt.Errorf("placement session %s at version %d: %w", sess.ID, sess.Version, errs.ErrConflict)
	}

	var persisted int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM placement_answers WHERE session_id = ?",
		sess.ID).Scan(&persisted)
	if err != nil {
		return internalErr("update session", err)
	}
	for _, a := range sess.Log {
		if a.Position <= persisted {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO placement_answers (session_id, position, word_id, was_probe, was_known)
			VALUES (?, ?, ?, ?, ?)`,
			sess.ID, a.Position, a.WordID, a.WasProbe, a.WasKnown)
		if err != nil {
			return internalErr("update session", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return internalErr("update session", err)
	}
	return nil
}

func (s *Store) loadAnswers(ctx context.Context, sess *types.PlacementSession) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, word_id, was_probe, was_known
		FROM placement_answers
		WHERE session_id = ?
		ORDER BY position ASC`,
		sess.ID)
	if err != nil {
		return internalErr("load answers", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a types.PlacementAnswer
		if err := rows.Scan(&a.Position, &a.WordID, &a.WasProbe, &a.WasKnown); err != nil {
			return internalErr("load answers", err)
		}
		sess.Log = append(sess.Log, a)
	}
	return rows.Err()
}

func scanSession(row *sql.Row) (types.PlacementSession, error) {
	var (
		sess  types.PlacementSession
		final sql.NullInt64
	)
	err := row.Scan(&sess.ID, &sess.LearnerID, &sess.CurrentMin, &sess.CurrentMax,
		&sess.QuestionCount, &sess.Active, &final, &sess.Version,
		&sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return types.PlacementSession{}, err
	}
	if final.Valid {
		v := int(final.Int64)
		sess.FinalLevel = &v
	}
	return sess, nil
}

// isUniqueViolation sniffs the driver error text; modernc.org/sqlite
// does not export typed constraint errors.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}

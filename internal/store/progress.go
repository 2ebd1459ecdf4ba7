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

// GetOrCreateProgress returns the progress entry for (learnerID, wordID),
// inserting a fresh New-state row if none exists. Safe to race: the
// insert is ON CONFLICT DO NOTHING, so concurrent callers converge on
// the same row.
func (s *Store) GetOrCreateProgress(ctx context.Context, learnerID string, wordID int64, initialEF float64) (types.ProgressEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.ProgressEntry{}, internalErr("get or create progress", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO progress (learner_id, word_id, easiness)
		VALUES (?, ?, ?)
		ON CONFLICT(learner_id, word_id) DO NOTHING`,
		learnerID, wordID, initialEF)
	if err != nil {
		return types.ProgressEntry{}, internalErr("get or create progress", err)
	}

	entry, err := scanProgress(tx.QueryRowContext(ctx, `
		SELECT learner_id, word_id, status, repetition, easiness, interval_days,
		       next_review_at, last_reviewed_at, version
		FROM progress WHERE learner_id = ? AND word_id = ?`,
		learnerID, wordID))
	if err != nil {
		return types.ProgressEntry{}, internalErr("get or create progress", err)
	}
	if err := tx.Commit(); err != nil {
		return types.ProgressEntry{}, internalErr("get or create progress", err)
	}
	return entry, nil
}

// GetProgress returns the entry for (learnerID, wordID) or ErrNotFound.
func (s *Store) GetProgress(ctx context.Context, learnerID string, wordID int64) (types.ProgressEntry, error) {
	entry, err := scanProgress(s.db.QueryRowContext(ctx, `
		SELECT learner_id, word_id, status, repetition, easiness, interval_days,
		       next_review_at, last_reviewed_at, version
		FROM progress WHERE learner_id = ? AND word_id = ?`,
		learnerID, wordID))
	if errors.Is(err, sql.ErrNoRows) {
		return types.ProgressEntry{}, fmt.Errorf("progress for word %d: %w", wordID, errs.ErrNotFound)
	}
	if err != nil {
		return types.ProgressEntry{}, internalErr("get progress", err)
	}
	return entry, nil
}

// UpdateProgress writes the entry back under optimistic concurrency: the
// row must still carry entry.Version. On success the stored version is
// bumped; the caller re-reads before retrying after ErrConflict.
func (s *Store) UpdateProgress(ctx context.Context, entry types.ProgressEntry, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE progress SET
			status = ?, repetition = ?, easiness = ?, interval_days = ?,
			next_review_at = ?, last_reviewed_at = ?,
			version = version + 1, updated_at = ?
		WHERE learner_id = ? AND word_id = ? AND version = ?`,
		entry.Status, entry.Repetition, entry.Easiness, entry.IntervalDays,
		utcPtr(entry.NextReviewAt), utcPtr(entry.LastReviewedAt), now.UTC(),
		entry.LearnerID, entry.WordID, entry.Version)
	if err != nil {
		return internalErr("update progress", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return internalErr("update progress", err)
	}
	if n == 0 {
		// Distinguish a stale version from a missing row.
		var exists int
		err := s.db.QueryRowContext(ctx,
			"SELECT 1 FROM progress WHERE learner_id = ? AND word_id = ?",
			entry.LearnerID, entry.WordID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("progress for word %d: %w", entry.WordID, errs.ErrNotFound)
		}
		if err != nil {
			return internalErr("update progress", err)
		}
		return fmt.Errorf("progress for word %d at version %d: %w", entry.WordID, entry.Version, errs.ErrConflict)
	}
	return nil
}

// QueryDue assembles a due queue for the learner restricted to the
// given statuses: Learning entries first, then due Review entries, then
// New, then Mastered, each ordered by due time and word id for
// determinism. New entries are always due; they have no schedule yet.
func (s *Store) QueryDue(ctx context.Context, learnerID string, now time.Time, limit int, statuses []types.WordStatus) ([]types.ProgressWithWord, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
	args := []any{learnerID}
	for _, st := range statuses {
		args = append(args, st)
	}
	args = append(args, now.UTC(), limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT w.id, w.unit, w.difficulty_rank, w.source_form, w.target_form, w.audio_ref, w.global_difficulty,
		       p.status, p.next_review_at, p.last_reviewed_at
		FROM progress p
		JOIN words w ON w.id = p.word_id
		WHERE p.learner_id = ?
		  AND p.status IN (`+placeholders+`)
		  AND (p.status = 'New' OR p.next_review_at IS NULL OR p.next_review_at <= ?)
		ORDER BY
			CASE p.status
				WHEN 'Learning' THEN 0
				WHEN 'Review' THEN 1
				WHEN 'New' THEN 2
				ELSE 3
			END,
			p.next_review_at IS NULL,
			p.next_review_at ASC,
			p.word_id ASC
		LIMIT ?`,
		args...)
	if err != nil {
		return nil, internalErr("query due", err)
	}
	defer rows.Close()
	return scanProgressWithWords(rows)
}

// UnitFilter returns the unit's words the learner has not yet learned:
// no progress row, or a row still in New or Learning. Ordered by
// difficulty rank, then word id.
func (s *Store) UnitFilter(ctx context.Context, learnerID string, unit int) ([]types.ProgressWithWord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.id, w.unit, w.difficulty_rank, w.source_form, w.target_form, w.audio_ref, w.global_difficulty,
		       COALESCE(p.status, 'New'), p.next_review_at, p.last_reviewed_at
		FROM words w
		LEFT JOIN progress p ON p.word_id = w.id AND p.learner_id = ?
		WHERE w.unit = ?
		  AND (p.status IS NULL OR p.status IN ('New', 'Learning'))
		ORDER BY w.difficulty_rank ASC, w.id ASC`,
		learnerID, unit)
	if err != nil {
		return nil, internalErr("unit filter", err)
	}
	defer rows.Close()
	return scanProgressWithWords(rows)
}

// UnitLearned returns the unit's words the learner has in Review or
// Mastered, ordered by word id.
func (s *Store) UnitLearned(ctx context.Context, learnerID string, unit int) ([]types.ProgressWithWord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.id, w.unit, w.difficulty_rank, w.source_form, w.target_form, w.audio_ref, w.global_difficulty,
		       p.status, p.next_review_at, p.last_reviewed_at
		FROM words w
		JOIN progress p ON p.word_id = w.id AND p.learner_id = ?
		WHERE w.unit = ? AND p.status IN ('Review', 'Mastered')
		ORDER BY w.id ASC`,
		learnerID, unit)
	if err != nil {
		return nil, internalErr("unit learned", err)
	}
	defer rows.Close()
	return scanProgressWithWords(rows)
}

// CountLearnedByUnit returns learned (Review or Mastered) counts keyed
// by unit for the learner.
func (s *Store) CountLearnedByUnit(ctx context.Context, learnerID string) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.unit, COUNT(*)
		FROM progress p
		JOIN words w ON w.id = p.word_id
		WHERE p.learner_id = ? AND p.status IN ('Review', 'Mastered')
		GROUP BY w.unit`,
		learnerID)
	if err != nil {
		return nil, internalErr("count learned by unit", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var unit, n int
		if err := rows.Scan(&unit, &n); err != nil {
			return nil, internalErr("count learned by unit", err)
		}
		counts[unit] = n
	}
	return counts, rows.Err()
}

// ReviewStats summarizes the learner's queue at a point in time.
type ReviewStats struct {
	DueCount     int
	NewCount     int
	NextReviewAt *time.Time
}

// QueryReviewStats counts due and unseen entries and finds the next
// upcoming review after now.
func (s *Store) QueryReviewStats(ctx context.Context, learnerID string, now time.Time) (ReviewStats, error) {
	var stats ReviewStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM progress
		WHERE learner_id = ? AND status != 'New'
		  AND next_review_at IS NOT NULL AND next_review_at <= ?`,
		learnerID, now.UTC()).Scan(&stats.DueCount)
	if err != nil {
		return ReviewStats{}, internalErr("review stats", err)
	}
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM progress WHERE learner_id = ? AND status = 'New'",
		learnerID).Scan(&stats.NewCount)
	if err != nil {
		return ReviewStats{}, internalErr("review stats", err)
	}
	// MIN() would drop the column's DATETIME affinity and hand back a
	// bare string, so select the earliest row instead.
	var next sql.NullTime
	err = s.db.QueryRowContext(ctx, `
		SELECT next_review_at FROM progress
		WHERE learner_id = ? AND next_review_at > ?
		ORDER BY next_review_at ASC LIMIT 1`,
		learnerID, now.UTC()).Scan(&next)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return ReviewStats{}, internalErr("review stats", err)
	}
	stats.NextReviewAt = timePtr(next)
	return stats, nil
}

func scanProgress(row *sql.Row) (types.ProgressEntry, error) {
	var (
		e          types.ProgressEntry
		next, last sql.NullTime
	)
	err := row.Scan(&e.LearnerID, &e.WordID, &e.Status, &e.Repetition,
		&e.Easiness, &e.IntervalDays, &next, &last, &e.Version)
	if err != nil {
		return types.ProgressEntry{}, err
	}
	e.NextReviewAt = timePtr(next)
	e.LastReviewedAt = timePtr(last)
	return e, nil
}

func scanProgressWithWords(rows *sql.Rows) ([]types.ProgressWithWord, error) {
	var out []types.ProgressWithWord
	for rows.Next() {
		var (
			item       types.ProgressWithWord
			audio      sql.NullString
			difficulty sql.NullInt64
			next, last sql.NullTime
		)
		err := rows.Scan(&item.Word.ID, &item.Word.Unit, &item.Word.DifficultyRank,
			&item.Word.SourceForm, &item.Word.TargetForm, &audio, &difficulty,
			&item.Status, &next, &last)
		if err != nil {
			return nil, internalErr("scan progress row", err)
		}
		item.Word.AudioRef = audio.String
		if difficulty.Valid {
			v := int(difficulty.Int64)
			item.Word.GlobalDifficulty = &v
		}
		item.NextReviewAt = timePtr(next)
		item.LastReviewedAt = timePtr(last)
		out = append(out, item)
	}
	return out, rows.Err()
}

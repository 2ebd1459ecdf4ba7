package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"wordhat/internal/types"
)

// UpsertWords inserts or replaces catalog words. Word ids come from
// content; they are stable for the lifetime of a word.
func (s *Store) UpsertWords(ctx context.Context, words []types.Word) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return internalErr("upsert words", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO words (id, unit, difficulty_rank, source_form, target_form, audio_ref)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			unit = excluded.unit,
			difficulty_rank = excluded.difficulty_rank,
			source_form = excluded.source_form,
			target_form = excluded.target_form,
			audio_ref = excluded.audio_ref`)
	if err != nil {
		return internalErr("upsert words", err)
	}
	defer stmt.Close()

	for _, w := range words {
		if w.ID <= 0 {
			return fmt.Errorf("word id must be positive, got %d", w.ID)
		}
		if _, err := stmt.ExecContext(ctx, w.ID, w.Unit, w.DifficultyRank, w.SourceForm, w.TargetForm, w.AudioRef); err != nil {
			return internalErr("upsert words", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return internalErr("upsert words", err)
	}

	s.log.Debug("words upserted", zap.Int("count", len(words)))
	return nil
}

// CountWords returns the catalog size.
func (s *Store) CountWords(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM words").Scan(&n); err != nil {
		return 0, internalErr("count words", err)
	}
	return n, nil
}

// WordOutcome aggregates one word's crowd results: how many learners
// have touched it and how many of those landed in Review or Mastered.
type WordOutcome struct {
	WordID    int64
	Total     int
	Successes int
}

// WordOutcomes returns per-word success aggregates across all learners,
// counting only entries that left the New state.
func (s *Store) WordOutcomes(ctx context.Context) ([]WordOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT word_id,
		       COUNT(*),
		       SUM(CASE WHEN status IN ('Review', 'Mastered') THEN 1 ELSE 0 END)
		FROM progress
		WHERE status != 'New'
		GROUP BY word_id`)
	if err != nil {
		return nil, internalErr("word outcomes", err)
	}
	defer rows.Close()

	var out []WordOutcome
	for rows.Next() {
		var o WordOutcome
		if err := rows.Scan(&o.WordID, &o.Total, &o.Successes); err != nil {
			return nil, internalErr("word outcomes", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// SetGlobalDifficulty bulk-updates the crowd-sourced difficulty levels.
func (s *Store) SetGlobalDifficulty(ctx context.Context, levels map[int64]int) error {
	if len(levels) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return internalErr("set global difficulty", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "UPDATE words SET global_difficulty = ? WHERE id = ?")
	if err != nil {
		return internalErr("set global difficulty", err)
	}
	defer stmt.Close()

	for id, level := range levels {
		if _, err := stmt.ExecContext(ctx, level, id); err != nil {
			return internalErr("set global difficulty", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return internalErr("set global difficulty", err)
	}
	return nil
}

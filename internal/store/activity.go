package store

import (
	"context"
	"database/sql"
	"errors"

	"wordhat/internal/types"
)

// GetActivity returns the learner's activity counters. A learner with no
// recorded reviews gets the zero value rather than an error.
func (s *Store) GetActivity(ctx context.Context, learnerID string) (types.DailyActivity, error) {
	var (
		a        types.DailyActivity
		last, td sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT learner_id, streak, last_active_day, today_count, today_day
		FROM daily_activity WHERE learner_id = ?`,
		learnerID).Scan(&a.LearnerID, &a.Streak, &last, &a.TodayCount, &td)
	if errors.Is(err, sql.ErrNoRows) {
		return types.DailyActivity{LearnerID: learnerID}, nil
	}
	if err != nil {
		return types.DailyActivity{}, internalErr("get activity", err)
	}
	a.LastActiveDay = last.String
	a.TodayDay = td.String
	return a, nil
}

// BumpActivity applies one review event on the given calendar day as a
// single atomic upsert, so concurrent reviews never lose counts. A
// same-day event bumps the count; a new day resets it to 1 and extends
// the streak when yesterday was active, restarting it at 1 otherwise.
// SQLite evaluates every SET expression against the pre-update row, so
// the streak and count cases both see the old day markers.
func (s *Store) BumpActivity(ctx context.Context, learnerID, today, yesterday string) (types.DailyActivity, error) {
	var (
		a        types.DailyActivity
		last, td sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO daily_activity (learner_id, streak, last_active_day, today_count, today_day)
		VALUES (?, 1, ?, 1, ?)
		ON CONFLICT(learner_id) DO UPDATE SET
			streak = CASE
				WHEN today_day = excluded.today_day THEN streak
				WHEN last_active_day = ? THEN streak + 1
				ELSE 1
			END,
			today_count = CASE
				WHEN today_day = excluded.today_day THEN today_count + 1
				ELSE 1
			END,
			last_active_day = excluded.last_active_day,
			today_day = excluded.today_day
		RETURNING learner_id, streak, last_active_day, today_count, today_day`,
		learnerID, today, today, yesterday).
		Scan(&a.LearnerID, &a.Streak, &last, &a.TodayCount, &td)
	if err != nil {
		return types.DailyActivity{}, internalErr("bump activity", err)
	}
	a.LastActiveDay = last.String
	a.TodayDay = td.String
	return a, nil
}

// PutActivity upserts the learner's activity counters.
func (s *Store) PutActivity(ctx context.Context, a types.DailyActivity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_activity (learner_id, streak, last_active_day, today_count, today_day)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(learner_id) DO UPDATE SET
			streak = excluded.streak,
			last_active_day = excluded.last_active_day,
			today_count = excluded.today_count,
			today_day = excluded.today_day`,
		a.LearnerID, a.Streak, a.LastActiveDay, a.TodayCount, a.TodayDay)
	if err != nil {
		return internalErr("put activity", err)
	}
	return nil
}

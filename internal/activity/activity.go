// Package activity derives streak and daily-goal counters from review
// events. Days are calendar dates in the configured timezone, so a
// learner reviewing at 23:59 and again at 00:01 spans two days.
package activity

import (
	"context"
	"time"

	"go.uber.org/zap"

	"wordhat/internal/types"
)

const dayFormat = "2006-01-02"

// Progress is the store surface the tracker needs. BumpActivity must
// apply the event atomically; the tracker itself does no locking, so
// concurrent reviews of different words still count every event.
type Progress interface {
	GetActivity(ctx context.Context, learnerID string) (types.DailyActivity, error)
	BumpActivity(ctx context.Context, learnerID, today, yesterday string) (types.DailyActivity, error)
}

// Tracker updates a learner's counters on every graded review.
type Tracker struct {
	store Progress
	goal  int
	loc   *time.Location
	log   *zap.Logger
}

// Result is what a review submission reports back to the learner.
// GoalReached fires exactly once per day, on the review that hits the
// goal, so the caller can surface a celebration without deduplicating.
type Result struct {
	Streak      int
	DailyCount  int
	GoalReached bool
}

func NewTracker(store Progress, goal int, loc *time.Location, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{store: store, goal: goal, loc: loc, log: log}
}

// RecordReview bumps the counters for one graded review at now. The
// first review of a calendar day extends the streak when yesterday was
// active and restarts it at 1 otherwise.
func (t *Tracker) RecordReview(ctx context.Context, learnerID string, now time.Time) (Result, error) {
	local := now.In(t.loc)
	today := local.Format(dayFormat)
	yesterday := local.AddDate(0, 0, -1).Format(dayFormat)

	a, err := t.store.BumpActivity(ctx, learnerID, today, yesterday)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Streak:      a.Streak,
		DailyCount:  a.TodayCount,
		GoalReached: a.TodayCount == t.goal,
	}
	if res.GoalReached {
		t.log.Info("daily goal reached",
			zap.String("learner", learnerID),
			zap.Int("streak", a.Streak))
	}
	return res, nil
}

// Snapshot reads the counters without recording anything. The daily
// count resets to zero on a fresh day, and a streak whose last active
// day is older than yesterday reads as zero until the next review
// restarts it.
func (t *Tracker) Snapshot(ctx context.Context, learnerID string, now time.Time) (Result, error) {
	a, err := t.store.GetActivity(ctx, learnerID)
	if err != nil {
		return Result{}, err
	}

	local := now.In(t.loc)
	today := local.Format(dayFormat)
	yesterday := local.AddDate(0, 0, -1).Format(dayFormat)

	res := Result{Streak: a.Streak}
	if a.TodayDay == today {
		res.DailyCount = a.TodayCount
	}
	if a.LastActiveDay != today && a.LastActiveDay != yesterday {
		res.Streak = 0
	}
	res.GoalReached = res.DailyCount >= t.goal && t.goal > 0
	return res, nil
}

// Goal returns the configured daily target.
func (t *Tracker) Goal() int {
	return t.goal
}

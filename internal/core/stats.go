package core

import (
	"context"
	"math"
	"sort"

	"wordhat/internal/types"
)

// StatsByUnit reports per-unit progress: learned counts (Review or
// Mastered) against the catalog totals, with percentages rounded to one
// decimal. Units come back in ascending order.
func (s *Service) StatsByUnit(ctx context.Context, learnerID string) (types.UnitBreakdown, error) {
	if err := validLearner(learnerID); err != nil {
		return types.UnitBreakdown{}, err
	}
	totals, err := s.catalog.UnitTotals(ctx)
	if err != nil {
		return types.UnitBreakdown{}, err
	}
	learned, err := s.store.CountLearnedByUnit(ctx, learnerID)
	if err != nil {
		return types.UnitBreakdown{}, err
	}

	units := make([]int, 0, len(totals))
	for unit := range totals {
		units = append(units, unit)
	}
	sort.Ints(units)

	var out types.UnitBreakdown
	for _, unit := range units {
		total := totals[unit]
		n := learned[unit]
		out.Units = append(out.Units, types.UnitStat{
			Unit:    unit,
			Learned: n,
			Total:   total,
			Percent: percent(n, total),
		})
		out.TotalLearned += n
		out.TotalWords += total
	}
	out.OverallPercent = percent(out.TotalLearned, out.TotalWords)
	return out, nil
}

// StatsLearner reports the learner's streak, daily-goal progress, and
// queue summary as of now.
func (s *Service) StatsLearner(ctx context.Context, learnerID string) (types.LearnerStats, error) {
	if err := validLearner(learnerID); err != nil {
		return types.LearnerStats{}, err
	}
	now := s.clock.Now()

	act, err := s.tracker.Snapshot(ctx, learnerID, now)
	if err != nil {
		return types.LearnerStats{}, err
	}
	review, err := s.store.QueryReviewStats(ctx, learnerID, now)
	if err != nil {
		return types.LearnerStats{}, err
	}

	return types.LearnerStats{
		Streak:       act.Streak,
		DailyCount:   act.DailyCount,
		DailyGoal:    s.tracker.Goal(),
		DueCount:     review.DueCount,
		NewCount:     review.NewCount,
		NextReviewAt: review.NextReviewAt,
	}, nil
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}

package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"wordhat/internal/activity"
	"wordhat/internal/errs"
	"wordhat/internal/srs"
	"wordhat/internal/types"
)

// ReviewOutcome is what a graded review reports back: the new SM-2
// state plus the learner's activity counters after this review.
type ReviewOutcome struct {
	Entry    types.ProgressEntry
	Activity activity.Result
}

// ReviewSession assembles the learner's review queue: struggling
// Learning words first, then due Review words, earliest due first in
// each group. A limit of zero means the configured default.
func (s *Service) ReviewSession(ctx context.Context, learnerID string, limit int) ([]types.ProgressWithWord, error) {
	if err := validLearner(learnerID); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, fmt.Errorf("limit must not be negative, got %d: %w", limit, errs.ErrInvalidArgument)
	}
	if limit == 0 {
		limit = s.cfg.Session.ReviewLimit
	}
	return s.store.QueryDue(ctx, learnerID, s.clock.Now(), limit,
		[]types.WordStatus{types.StatusLearning, types.StatusReview})
}

// SubmitReview grades one recall attempt on the 0-5 quality scale,
// advances the SM-2 state, and bumps the activity counters. A word the
// learner has never touched gets a fresh entry first.
func (s *Service) SubmitReview(ctx context.Context, learnerID string, wordID int64, quality int) (ReviewOutcome, error) {
	if err := validLearner(learnerID); err != nil {
		return ReviewOutcome{}, err
	}
	if quality < srs.QualityMin || quality > srs.QualityMax {
		return ReviewOutcome{}, fmt.Errorf("quality %d outside [%d, %d]: %w",
			quality, srs.QualityMin, srs.QualityMax, errs.ErrInvalidArgument)
	}
	if _, err := s.catalog.Get(ctx, wordID); err != nil {
		return ReviewOutcome{}, err
	}

	unlock := s.locks.lock(pairKey(learnerID, wordID))
	defer unlock()

	entry, err := s.store.GetOrCreateProgress(ctx, learnerID, wordID, s.sched.InitialEF)
	if err != nil {
		return ReviewOutcome{}, err
	}

	next := s.sched.Review(stateOf(entry), quality)
	now := s.clock.Now()
	applyState(&entry, next)
	entry.LastReviewedAt = &now
	due := srs.NextReview(now, next.IntervalDays, s.loc)
	entry.NextReviewAt = &due

	if err := s.store.UpdateProgress(ctx, entry, now); err != nil {
		return ReviewOutcome{}, err
	}
	entry.Version++

	act, err := s.tracker.RecordReview(ctx, learnerID, s.clock.Now())
	if err != nil {
		return ReviewOutcome{}, err
	}

	s.log.Debug("review graded",
		zap.String("learner", learnerID),
		zap.Int64("word", wordID),
		zap.Int("quality", quality),
		zap.String("status", string(entry.Status)),
		zap.Int("interval_days", entry.IntervalDays))
	return ReviewOutcome{Entry: entry, Activity: act}, nil
}

// SubmitBinary grades a known/unknown answer by mapping it onto the
// quality scale before scheduling.
func (s *Service) SubmitBinary(ctx context.Context, learnerID string, wordID int64, known bool) (ReviewOutcome, error) {
	quality := srs.QualityUnknown
	if known {
		quality = srs.QualityKnown
	}
	return s.SubmitReview(ctx, learnerID, wordID, quality)
}

// UnitWords returns the unit's words the learner still has to learn,
// ordered easiest first.
func (s *Service) UnitWords(ctx context.Context, learnerID string, unit int) ([]types.ProgressWithWord, error) {
	if err := validLearner(learnerID); err != nil {
		return nil, err
	}
	if unit < 1 {
		return nil, fmt.Errorf("unit must be >= 1, got %d: %w", unit, errs.ErrInvalidArgument)
	}
	return s.store.UnitFilter(ctx, learnerID, unit)
}

// UnitLearned returns the unit's words already in Review or Mastered.
func (s *Service) UnitLearned(ctx context.Context, learnerID string, unit int) ([]types.ProgressWithWord, error) {
	if err := validLearner(learnerID); err != nil {
		return nil, err
	}
	if unit < 1 {
		return nil, fmt.Errorf("unit must be >= 1, got %d: %w", unit, errs.ErrInvalidArgument)
	}
	return s.store.UnitLearned(ctx, learnerID, unit)
}

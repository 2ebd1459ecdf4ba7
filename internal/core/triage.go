package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"wordhat/internal/srs"
	"wordhat/internal/types"
)

// Triage records a first-contact "I know it / I don't" judgment on a
// word. Known words jump straight to Mastered with a seeded interval;
// unknown words enter Learning with a one-day interval. The easiness
// factor is untouched either way, so triage carries no scheduling
// opinion beyond the seed. Idempotent: repeating the same judgment
// lands on the same state.
func (s *Service) Triage(ctx context.Context, learnerID string, wordID int64, known bool) (types.ProgressEntry, error) {
	if err := validLearner(learnerID); err != nil {
		return types.ProgressEntry{}, err
	}
	if _, err := s.catalog.Get(ctx, wordID); err != nil {
		return types.ProgressEntry{}, err
	}

	unlock := s.locks.lock(pairKey(learnerID, wordID))
	defer unlock()

	entry, err := s.store.GetOrCreateProgress(ctx, learnerID, wordID, s.sched.InitialEF)
	if err != nil {
		return types.ProgressEntry{}, err
	}

	prev := stateOf(entry)
	var next srs.State
	if known {
		next = s.sched.TriageKnown(prev)
	} else {
		next = s.sched.TriageUnknown(prev)
	}

	now := s.clock.Now()
	applyState(&entry, next)
	entry.LastReviewedAt = &now
	due := srs.NextReview(now, next.IntervalDays, s.loc)
	entry.NextReviewAt = &due

	if err := s.store.UpdateProgress(ctx, entry, now); err != nil {
		return types.ProgressEntry{}, err
	}
	entry.Version++

	s.log.Debug("triage recorded",
		zap.String("learner", learnerID),
		zap.Int64("word", wordID),
		zap.Bool("known", known),
		zap.String("status", string(entry.Status)))
	return entry, nil
}

// TriageBatch applies one judgment per word and reports per-word errors
// without aborting the batch.
func (s *Service) TriageBatch(ctx context.Context, learnerID string, judgments map[int64]bool) (int, error) {
	if err := validLearner(learnerID); err != nil {
		return 0, err
	}
	applied := 0
	var firstErr error
	for wordID, known := range judgments {
		if _, err := s.Triage(ctx, learnerID, wordID, known); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("word %d: %w", wordID, err)
			}
			continue
		}
		applied++
	}
	return applied, firstErr
}

func stateOf(e types.ProgressEntry) srs.State {
	return srs.State{
		Status:       e.Status,
		Repetition:   e.Repetition,
		Easiness:     e.Easiness,
		IntervalDays: e.IntervalDays,
	}
}

func applyState(e *types.ProgressEntry, st srs.State) {
	e.Status = st.Status
	e.Repetition = st.Repetition
	e.Easiness = st.Easiness
	e.IntervalDays = st.IntervalDays
}

package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wordhat/internal/catalog"
	"wordhat/internal/errs"
	"wordhat/internal/placement"
	"wordhat/internal/types"
)

// PlacementQuestion is the next word the learner should be asked.
// IsProbe marks regression probes so clients can render them like any
// other question without special-casing the engine's bookkeeping.
type PlacementQuestion struct {
	Position int
	Word     types.Word
	IsProbe  bool
}

// PlacementResult is the state of a placement run after an operation:
// either the next question, or the final level once complete.
type PlacementResult struct {
	SessionID     string
	QuestionCount int
	Complete      bool
	FinalLevel    *int
	Question      *PlacementQuestion
}

// StartPlacement begins a placement run, or resumes the learner's
// active one: starting twice is safe and returns the same session.
func (s *Service) StartPlacement(ctx context.Context, learnerID string) (PlacementResult, error) {
	if err := validLearner(learnerID); err != nil {
		return PlacementResult{}, err
	}

	unlock := s.locks.lock(learnerID)
	defer unlock()

	sess, err := s.store.ActiveSession(ctx, learnerID)
	if errors.Is(err, errs.ErrNotFound) {
		sess = placement.NewSession(uuid.NewString(), learnerID)
		if err := s.store.CreateSession(ctx, sess, s.clock.Now()); err != nil {
			// Lost a cross-process race; resume theirs.
			if errors.Is(err, errs.ErrConflict) {
				sess, err = s.store.ActiveSession(ctx, learnerID)
				if err != nil {
					return PlacementResult{}, err
				}
			} else {
				return PlacementResult{}, err
			}
		} else {
			s.log.Info("placement started",
				zap.String("learner", learnerID),
				zap.String("session", sess.ID))
		}
	} else if err != nil {
		return PlacementResult{}, err
	}

	return s.advance(ctx, sess)
}

// CurrentPlacement returns the learner's in-flight run without starting
// one. ErrNotFound when nothing is active.
func (s *Service) CurrentPlacement(ctx context.Context, learnerID string) (PlacementResult, error) {
	if err := validLearner(learnerID); err != nil {
		return PlacementResult{}, err
	}
	sess, err := s.store.ActiveSession(ctx, learnerID)
	if err != nil {
		return PlacementResult{}, err
	}
	return s.advance(ctx, sess)
}

// AnswerPlacement records the learner's answer to the pending question.
// The word must be the one the engine selected; anything else means the
// client drifted from the session and is rejected.
func (s *Service) AnswerPlacement(ctx context.Context, learnerID string, wordID int64, known bool) (PlacementResult, error) {
	if err := validLearner(learnerID); err != nil {
		return PlacementResult{}, err
	}

	unlock := s.locks.lock(learnerID)
	defer unlock()

	sess, err := s.store.ActiveSession(ctx, learnerID)
	if err != nil {
		return PlacementResult{}, err
	}

	// Re-derive the pending question; selection is deterministic, so
	// this reproduces exactly what the learner was shown.
	target := s.placer.NextTarget(&sess)
	word, err := s.sampleTarget(ctx, &sess, &target)
	if err != nil {
		if errors.Is(err, errs.ErrExhausted) {
			return s.finalize(ctx, sess)
		}
		return PlacementResult{}, err
	}
	if word.ID != wordID {
		return PlacementResult{}, fmt.Errorf(
			"answer for word %d but question is word %d: %w",
			wordID, word.ID, errs.ErrInvalidArgument)
	}

	complete := s.placer.Apply(&sess, target, wordID, known)
	if err := s.store.UpdateSession(ctx, sess, s.clock.Now()); err != nil {
		return PlacementResult{}, err
	}
	sess.Version++

	if complete {
		s.log.Info("placement complete",
			zap.String("learner", learnerID),
			zap.String("session", sess.ID),
			zap.Intp("final_level", sess.FinalLevel),
			zap.Int("questions", sess.QuestionCount))
		return result(sess, nil), nil
	}
	return s.advance(ctx, sess)
}

// advance produces the session's next question, finalizing instead when
// the catalog cannot serve one.
func (s *Service) advance(ctx context.Context, sess types.PlacementSession) (PlacementResult, error) {
	if !sess.Active {
		return result(sess, nil), nil
	}
	target := s.placer.NextTarget(&sess)
	word, err := s.sampleTarget(ctx, &sess, &target)
	if errors.Is(err, errs.ErrExhausted) {
		return s.finalize(ctx, sess)
	}
	if err != nil {
		return PlacementResult{}, err
	}
	// sampleTarget may have downgraded an exhausted probe to a plain
	// bisection question; the flag reflects what is actually asked.
	return result(sess, &PlacementQuestion{
		Position: sess.QuestionCount + 1,
		Word:     word,
		IsProbe:  target.IsProbe,
	}), nil
}

// sampleTarget picks the word nearest the target rank, never repeating
// a word shown earlier in the session. A probe whose tier holds no
// unseen word falls back to the plain bisection target; the target is
// rewritten so the bound update matches the question actually asked.
func (s *Service) sampleTarget(ctx context.Context, sess *types.PlacementSession, target *placement.Target) (types.Word, error) {
	seen := sess.Seen()
	word, err := s.catalog.Nearest(ctx, target.Rank, catalog.Filter{
		WindowMin: target.WindowMin,
		WindowMax: target.WindowMax,
		Exclude:   seen,
	})
	if err == nil || !errors.Is(err, errs.ErrExhausted) || !target.IsProbe {
		return word, err
	}

	mid := (sess.CurrentMin + sess.CurrentMax) / 2
	*target = placement.Target{Rank: mid, WindowMin: sess.CurrentMin, WindowMax: sess.CurrentMax}
	return s.catalog.Nearest(ctx, target.Rank, catalog.Filter{
		WindowMin: target.WindowMin,
		WindowMax: target.WindowMax,
		Exclude:   seen,
	})
}

// finalize closes a run the catalog can no longer feed.
func (s *Service) finalize(ctx context.Context, sess types.PlacementSession) (PlacementResult, error) {
	s.placer.Finalize(&sess)
	if err := s.store.UpdateSession(ctx, sess, s.clock.Now()); err != nil {
		return PlacementResult{}, err
	}
	sess.Version++
	s.log.Info("placement finalized early, no words left to ask",
		zap.String("session", sess.ID),
		zap.Intp("final_level", sess.FinalLevel))
	return result(sess, nil), nil
}

func result(sess types.PlacementSession, q *PlacementQuestion) PlacementResult {
	return PlacementResult{
		SessionID:     sess.ID,
		QuestionCount: sess.QuestionCount,
		Complete:      !sess.Active,
		FinalLevel:    sess.FinalLevel,
		Question:      q,
	}
}

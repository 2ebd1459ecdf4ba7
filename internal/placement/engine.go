// Package placement implements the adaptive placement engine: a bounded
// binary search over the [1,100] difficulty spectrum with periodic
// regression probes that catch false-positive "known" answers.
//
// The engine is pure over the session state; persistence and word
// sampling belong to its callers.
package placement

import (
	"math"

	"wordhat/internal/types"
)

// Difficulty ranks span [MinRank, MaxRank] and a fresh session opens
// with the full spectrum.
const (
	MinRank = 1
	MaxRank = 100
)

// Params carries the engine thresholds from the config record.
type Params struct {
	MaxQuestions       int
	MinRange           int
	RegressionInterval int
	RegressionFactor   float64
	Window             int
}

// Target describes the difficulty the next question should sample at.
// The window gives the catalog's nearest-rank sampler room when no word
// sits at the exact rank.
type Target struct {
	Rank      int
	IsProbe   bool
	WindowMin int
	WindowMax int
}

// NewSession returns a fresh session covering the full spectrum.
func NewSession(id, learnerID string) types.PlacementSession {
	return types.PlacementSession{
		ID:         id,
		LearnerID:  learnerID,
		CurrentMin: MinRank,
		CurrentMax: MaxRank,
		Active:     true,
		Version:    1,
	}
}

// NextTarget selects the difficulty for the session's next question.
// Every RegressionInterval-th question is a regression probe aimed at
// RegressionFactor below the current lower bound; the rest bisect the
// current range. A probe is skipped while the lower bound sits at the
// floor of the spectrum, where there is nothing below to probe.
func (p Params) NextTarget(s *types.PlacementSession) Target {
	position := s.QuestionCount + 1
	if p.RegressionInterval > 0 && position%p.RegressionInterval == 0 && s.CurrentMin > MinRank {
		rank := p.probeRank(s.CurrentMin)
		lo := rank - p.Window
		if lo < MinRank {
			lo = MinRank
		}
		hi := rank + p.Window
		if hi > s.CurrentMin-1 {
			hi = s.CurrentMin - 1
		}
		if hi >= lo {
			return Target{Rank: rank, IsProbe: true, WindowMin: lo, WindowMax: hi}
		}
	}
	mid := (s.CurrentMin + s.CurrentMax) / 2
	return Target{Rank: mid, WindowMin: s.CurrentMin, WindowMax: s.CurrentMax}
}

// Apply records the answer for the question selected at t, updates the
// search bounds, and checks the stop rule. It returns true when the
// session has completed, in which case the final level is set and the
// session deactivated.
//
// On a regular question, "known" lifts the lower bound past the target
// and "unknown" drops the upper bound onto it. A probe confirms the
// range when known; when missed, it pulls the lower bound down into the
// probe region.
func (p Params) Apply(s *types.PlacementSession, t Target, wordID int64, known bool) bool {
	s.QuestionCount++
	s.Log = append(s.Log, types.PlacementAnswer{
		Position: s.QuestionCount,
		WordID:   wordID,
		WasProbe: t.IsProbe,
		WasKnown: known,
	})

	switch {
	case t.IsProbe:
		if !known {
			s.CurrentMin = p.probeRank(s.CurrentMin)
		}
	case known:
		s.CurrentMin = t.Rank + 1
	default:
		s.CurrentMax = t.Rank
	}

	if s.CurrentMax-s.CurrentMin < p.MinRange || s.QuestionCount >= p.MaxQuestions {
		p.Finalize(s)
		return true
	}
	return false
}

// Finalize closes the session with the midpoint of the remaining range.
// Also the terminal path when the catalog runs out of candidates.
func (p Params) Finalize(s *types.PlacementSession) {
	level := (s.CurrentMin + s.CurrentMax) / 2
	s.FinalLevel = &level
	s.Active = false
}

func (p Params) probeRank(currentMin int) int {
	rank := int(math.Floor(float64(currentMin) * p.RegressionFactor))
	if rank < MinRank {
		rank = MinRank
	}
	return rank
}

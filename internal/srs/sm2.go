// Package srs implements the SM-2 spaced-repetition scheduler and the
// lifecycle state machine over {New, Learning, Review, Mastered}. Both
// are total, pure functions: they never block and never fail on
// validated input.
package srs

import (
	"math"
	"time"

	"wordhat/internal/types"
)

// Quality is the canonical SM-2 0-5 rating of a recall attempt.
// Anything below PassThreshold counts as failed recall.
const (
	QualityMin    = 0
	QualityMax    = 5
	PassThreshold = 3
)

// Binary answers from triage-style UIs map onto the quality scale
// before entering the scheduler.
const (
	QualityKnown   = 4
	QualityUnknown = 1
)

// Params carries the scheduler thresholds from the config record.
type Params struct {
	EFMin                float64
	EFMax                float64
	InitialEF            float64
	MaxIntervalDays      int
	MasteryThresholdDays int
	MasterySeedDays      int
}

// State is the scheduler-relevant slice of a progress entry.
type State struct {
	Status       types.WordStatus
	Repetition   int
	Easiness     float64
	IntervalDays int
}

// Zero is the synthetic never-reviewed state.
func (p Params) Zero() State {
	return State{
		Status:       types.StatusNew,
		Repetition:   0,
		Easiness:     p.InitialEF,
		IntervalDays: 0,
	}
}

// Review applies one recall of the given quality to prev and returns the
// next state, including the lifecycle transition.
//
// The SM-2 recurrence: EF' = EF + (0.1 - (5-q)*(0.08 + (5-q)*0.02)),
// clamped to [EFMin, EFMax]. Failed recall (q < 3) resets the repetition
// count and schedules a retry in one day. Passed recall follows the
// 1 / 6 / round(interval*EF') interval table.
func (p Params) Review(prev State, quality int) State {
	q := float64(quality)
	ef := prev.Easiness + (0.1 - (5-q)*(0.08+(5-q)*0.02))
	ef = p.clampEF(ef)

	if quality < PassThreshold {
		return State{
			Status:       types.StatusLearning,
			Repetition:   0,
			Easiness:     ef,
			IntervalDays: 1,
		}
	}

	next := State{Easiness: ef, Repetition: prev.Repetition + 1}
	switch prev.Repetition {
	case 0:
		next.IntervalDays = 1
	case 1:
		next.IntervalDays = 6
	default:
		next.IntervalDays = roundHalfUp(float64(prev.IntervalDays) * ef)
	}
	// A pass never shrinks the interval. Matters for triage-seeded
	// entries whose interval starts ahead of the early table rows.
	if next.IntervalDays < prev.IntervalDays {
		next.IntervalDays = prev.IntervalDays
	}
	if p.MaxIntervalDays > 0 && next.IntervalDays > p.MaxIntervalDays {
		next.IntervalDays = p.MaxIntervalDays
	}

	switch prev.Status {
	case types.StatusMastered:
		next.Status = types.StatusMastered
	case types.StatusReview:
		if next.IntervalDays >= p.MasteryThresholdDays {
			next.Status = types.StatusMastered
		} else {
			next.Status = types.StatusReview
		}
	default: // New, Learning: promoted on the first success
		next.Status = types.StatusReview
	}
	return next
}

// TriageKnown is the "I know it" triage event: the word jumps straight
// to Mastered, seeded with a single repetition at the mastery-seed
// interval. Triage never moves EF; only review answers do.
func (p Params) TriageKnown(prev State) State {
	return State{
		Status:       types.StatusMastered,
		Repetition:   1,
		Easiness:     prev.Easiness,
		IntervalDays: p.MasterySeedDays,
	}
}

// TriageUnknown is the "I don't know it" triage event: the word enters
// active acquisition with a one-day interval.
func (p Params) TriageUnknown(prev State) State {
	return State{
		Status:       types.StatusLearning,
		Repetition:   0,
		Easiness:     prev.Easiness,
		IntervalDays: 1,
	}
}

// NextReview computes now + days rounded to the nearest day boundary in
// the learner's timezone.
func NextReview(now time.Time, days int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t := now.In(loc).AddDate(0, 0, days)
	boundary := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	if t.Sub(boundary) >= 12*time.Hour {
		boundary = boundary.AddDate(0, 0, 1)
	}
	return boundary
}

func (p Params) clampEF(ef float64) float64 {
	if ef < p.EFMin {
		return p.EFMin
	}
	if ef > p.EFMax {
		return p.EFMax
	}
	return ef
}

// roundHalfUp rounds fractional intervals half-up to whole days.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

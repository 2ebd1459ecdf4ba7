// Package types holds the domain records shared across the core:
// catalog words, per-learner progress, placement sessions, and the
// derived daily-activity counters.
package types

import "time"

// WordStatus is the lifecycle discriminator on a progress entry.
type WordStatus string

const (
	StatusNew      WordStatus = "New"
	StatusLearning WordStatus = "Learning"
	StatusReview   WordStatus = "Review"
	StatusMastered WordStatus = "Mastered"
)

// Valid reports whether s is one of the four lifecycle states.
func (s WordStatus) Valid() bool {
	switch s {
	case StatusNew, StatusLearning, StatusReview, StatusMastered:
		return true
	}
	return false
}

// Word is a read-only catalog entry. The surface forms are opaque to the
// core and passed through untouched.
type Word struct {
	ID             int64
	Unit           int
	DifficultyRank int
	SourceForm     string
	TargetForm     string
	AudioRef       string

	// GlobalDifficulty is the crowd-sourced 1-20 difficulty level.
	// Nil until the first recalculation touches the word.
	GlobalDifficulty *int
}

// ProgressEntry is the per-(learner, word) SM-2 state. Version backs the
// store's compare-and-swap update.
type ProgressEntry struct {
	LearnerID      string
	WordID         int64
	Status         WordStatus
	Repetition     int
	Easiness       float64
	IntervalDays   int
	NextReviewAt   *time.Time
	LastReviewedAt *time.Time
	Version        int64
}

// ProgressWithWord is the joined row the session assembler returns.
// SM-2 internals are deliberately absent.
type ProgressWithWord struct {
	Word           Word
	Status         WordStatus
	NextReviewAt   *time.Time
	LastReviewedAt *time.Time
}

// PlacementAnswer is one entry of a session's ordered answer log.
type PlacementAnswer struct {
	Position int
	WordID   int64
	WasProbe bool
	WasKnown bool
}

// PlacementSession tracks one learner's adaptive placement run over the
// [1,100] difficulty spectrum.
type PlacementSession struct {
	ID            string
	LearnerID     string
	CurrentMin    int
	CurrentMax    int
	QuestionCount int
	Active        bool
	FinalLevel    *int
	Log           []PlacementAnswer
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Seen returns the word ids already shown in this session. Selection
// never repeats a word, even after a regression widens the range.
func (s *PlacementSession) Seen() map[int64]bool {
	seen := make(map[int64]bool, len(s.Log))
	for _, a := range s.Log {
		seen[a.WordID] = true
	}
	return seen
}

// DailyActivity carries the streak and daily-goal counters derived from
// review events. Days are calendar dates in the learner's timezone,
// formatted 2006-01-02.
type DailyActivity struct {
	LearnerID     string
	Streak        int
	LastActiveDay string
	TodayCount    int
	TodayDay      string
}

// UnitStat is one row of the per-unit progress breakdown.
type UnitStat struct {
	Unit    int
	Learned int
	Total   int
	Percent float64
}

// UnitBreakdown is the stats.by_unit aggregate.
type UnitBreakdown struct {
	Units          []UnitStat
	TotalLearned   int
	TotalWords     int
	OverallPercent float64
}

// LearnerStats is the stats.user aggregate.
type LearnerStats struct {
	Streak       int
	DailyCount   int
	DailyGoal    int
	DueCount     int
	NewCount     int
	NextReviewAt *time.Time
}

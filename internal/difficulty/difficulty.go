// Package difficulty recalculates the crowd-sourced 1-20 difficulty
// level of every word from aggregate learner outcomes. Runs as a batch
// job; the catalog reloads afterwards to pick up the new levels.
package difficulty

import (
	"context"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"wordhat/internal/store"
)

const (
	// Level bounds of the published difficulty scale.
	minLevel = 1
	maxLevel = 20
)

// Store is the persistence surface the recalculation needs.
type Store interface {
	CountWords(ctx context.Context) (int, error)
	WordOutcomes(ctx context.Context) ([]store.WordOutcome, error)
	SetGlobalDifficulty(ctx context.Context, levels map[int64]int) error
}

// Service runs the recalculation.
type Service struct {
	store Store
	log   *zap.Logger
}

// Summary reports one recalculation run.
type Summary struct {
	TotalWords        int
	WordsUpdated      int
	WordsWithoutData  int
	MeanSuccessRate   float64
	LevelDistribution map[int]int
}

func NewService(store Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log}
}

// Recalculate maps each word's crowd success rate onto the 1-20 scale
// and persists the result. Words no learner has attempted keep their
// previous level.
func (s *Service) Recalculate(ctx context.Context) (Summary, error) {
	total, err := s.store.CountWords(ctx)
	if err != nil {
		return Summary{}, err
	}
	outcomes, err := s.store.WordOutcomes(ctx)
	if err != nil {
		return Summary{}, err
	}

	levels := make(map[int64]int, len(outcomes))
	dist := make(map[int]int)
	rates := make([]float64, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Total == 0 {
			continue
		}
		rate := float64(o.Successes) / float64(o.Total)
		level := levelFor(rate)
		levels[o.WordID] = level
		dist[level]++
		rates = append(rates, rate)
	}

	if err := s.store.SetGlobalDifficulty(ctx, levels); err != nil {
		return Summary{}, err
	}

	sum := Summary{
		TotalWords:        total,
		WordsUpdated:      len(levels),
		WordsWithoutData:  total - len(levels),
		LevelDistribution: dist,
	}
	if len(rates) > 0 {
		sum.MeanSuccessRate = stat.Mean(rates, nil)
	}
	s.log.Info("difficulty recalculated",
		zap.Int("updated", sum.WordsUpdated),
		zap.Int("without_data", sum.WordsWithoutData),
		zap.Float64("mean_success_rate", sum.MeanSuccessRate))
	return sum, nil
}

// levelFor maps a success rate in [0, 1] to a difficulty level: a word
// everyone knows lands at 1, a word no one knows at 20.
func levelFor(rate float64) int {
	level := int(math.Round(1 + (1-rate)*19))
	if level < minLevel {
		return minLevel
	}
	if level > maxLevel {
		return maxLevel
	}
	return level
}

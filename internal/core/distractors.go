package core

import (
	"context"
	"math/rand/v2"

	"wordhat/internal/placement"
	"wordhat/internal/types"
)

// Distractors picks n wrong-answer candidates for a quiz card around
// the word's difficulty rank; n of zero means the configured default.
// Words inside the configured band are taken first; only when they run
// short does the band widen, so a nearby candidate is never displaced
// by a far one. Candidates sharing the word's target form are excluded
// so the right answer stays unique.
func (s *Service) Distractors(ctx context.Context, word types.Word, n int) ([]types.Word, error) {
	if n == 0 {
		n = s.cfg.Session.DistractorCount
	}
	if n < 1 {
		return nil, nil
	}

	band := s.cfg.Session.DistractorBand
	picked := make([]types.Word, 0, n)
	taken := map[int64]bool{word.ID: true}
	for {
		lo, hi := word.DifficultyRank-band, word.DifficultyRank+band
		if lo < placement.MinRank {
			lo = placement.MinRank
		}
		if hi > placement.MaxRank {
			hi = placement.MaxRank
		}
		inBand, err := s.catalog.InBand(ctx, lo, hi)
		if err != nil {
			return nil, err
		}
		var ring []types.Word
		for _, w := range inBand {
			if taken[w.ID] || w.TargetForm == word.TargetForm {
				continue
			}
			ring = append(ring, w)
		}
		rand.Shuffle(len(ring), func(i, j int) {
			ring[i], ring[j] = ring[j], ring[i]
		})
		for _, w := range ring {
			taken[w.ID] = true
			picked = append(picked, w)
			if len(picked) == n {
				return picked, nil
			}
		}
		if lo == placement.MinRank && hi == placement.MaxRank {
			return picked, nil
		}
		band *= 2
	}
}

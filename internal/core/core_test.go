package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wordhat/internal/clock"
	"wordhat/internal/config"
	"wordhat/internal/errs"
	"wordhat/internal/store"
	"wordhat/internal/types"
)

var testStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// newTestService builds a core over an in-memory store with a full
// rank spectrum: one word per rank 1-100, word id equal to its rank,
// ten words per unit.
func newTestService(t *testing.T) (*Service, *clock.Fake) {
	t.Helper()
	cfg := config.Default()
	st, err := store.Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	words := make([]types.Word, 0, 100)
	for rank := 1; rank <= 100; rank++ {
		words = append(words, types.Word{
			ID:             int64(rank),
			Unit:           (rank-1)/10 + 1,
			DifficultyRank: rank,
			SourceForm:     "src",
			TargetForm:     "tgt",
		})
	}
	require.NoError(t, st.UpsertWords(context.Background(), words))

	clk := clock.NewFake(testStart)
	svc, err := New(cfg, st, clk, zap.NewNop())
	require.NoError(t, err)
	return svc, clk
}

func TestPlacementConvergesAroundSixty(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.StartPlacement(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, res.Question)
	assert.Equal(t, int64(50), res.Question.Word.ID)

	// Starting again resumes the same run with the same question.
	again, err := svc.StartPlacement(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, res.SessionID, again.SessionID)
	require.NotNil(t, again.Question)
	assert.Equal(t, res.Question.Word.ID, again.Question.Word.ID)

	// A learner sitting around 60: knows everything up to rank 60. The
	// range narrows below 5 after the sixth answer, which ends the run.
	steps := []struct {
		wantWord  int64
		wantProbe bool
		known     bool
	}{
		{50, false, true},
		{75, false, false},
		{63, false, false},
		{57, false, true},
		{46, true, true}, // regression probe
		{60, false, true},
	}
	for i, step := range steps {
		require.NotNil(t, res.Question, "step %d", i+1)
		require.Equal(t, step.wantWord, res.Question.Word.ID, "step %d", i+1)
		assert.Equal(t, step.wantProbe, res.Question.IsProbe, "step %d", i+1)
		res, err = svc.AnswerPlacement(ctx, "alice", res.Question.Word.ID, step.known)
		require.NoError(t, err, "step %d", i+1)
	}

	assert.True(t, res.Complete)
	require.NotNil(t, res.FinalLevel)
	assert.Equal(t, 62, *res.FinalLevel)
	assert.Nil(t, res.Question)

	// The run is over; nothing is active anymore.
	_, err = svc.CurrentPlacement(ctx, "alice")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	// A fresh run starts from scratch.
	fresh, err := svc.StartPlacement(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, res.SessionID, fresh.SessionID)
	assert.Equal(t, int64(50), fresh.Question.Word.ID)
}

func TestPlacementRejectsWrongWord(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.StartPlacement(ctx, "alice")
	require.NoError(t, err)

	_, err = svc.AnswerPlacement(ctx, "alice", res.Question.Word.ID+1, true)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	// The session is untouched; the right word still answers.
	_, err = svc.AnswerPlacement(ctx, "alice", res.Question.Word.ID, true)
	assert.NoError(t, err)
}

func TestPlacementNeverRepeatsWords(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.StartPlacement(ctx, "alice")
	require.NoError(t, err)

	seen := map[int64]bool{}
	for !res.Complete {
		id := res.Question.Word.ID
		assert.False(t, seen[id], "word %d repeated", id)
		seen[id] = true
		res, err = svc.AnswerPlacement(ctx, "alice", id, res.QuestionCount%2 == 0)
		require.NoError(t, err)
	}
}

func TestPlacementFinalizesWhenCatalogRunsOut(t *testing.T) {
	cfg := config.Default()
	st, err := store.Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	// Only three words to ask.
	require.NoError(t, st.UpsertWords(context.Background(), []types.Word{
		{ID: 1, Unit: 1, DifficultyRank: 30, SourceForm: "a", TargetForm: "1"},
		{ID: 2, Unit: 1, DifficultyRank: 50, SourceForm: "b", TargetForm: "2"},
		{ID: 3, Unit: 1, DifficultyRank: 70, SourceForm: "c", TargetForm: "3"},
	}))
	svc, err := New(cfg, st, clock.NewFake(testStart), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	res, err := svc.StartPlacement(ctx, "alice")
	require.NoError(t, err)
	for !res.Complete {
		res, err = svc.AnswerPlacement(ctx, "alice", res.Question.Word.ID, true)
		require.NoError(t, err)
	}
	require.NotNil(t, res.FinalLevel)
	assert.LessOrEqual(t, res.QuestionCount, 3)
}

func TestTriageKnownMastersImmediately(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	entry, err := svc.Triage(ctx, "alice", 40, true)
	require.NoError(t, err)
	assert.Equal(t, types.StatusMastered, entry.Status)
	assert.Equal(t, 1, entry.Repetition)
	assert.Equal(t, 21, entry.IntervalDays)
	assert.InDelta(t, 2.5, entry.Easiness, 1e-9)
	require.NotNil(t, entry.NextReviewAt)
	assert.Equal(t, clk.Now().AddDate(0, 0, 21).Truncate(24*time.Hour), entry.NextReviewAt.UTC())
	require.NotNil(t, entry.LastReviewedAt)

	// Same judgment again lands on the same state.
	repeat, err := svc.Triage(ctx, "alice", 40, true)
	require.NoError(t, err)
	assert.Equal(t, entry.Status, repeat.Status)
	assert.Equal(t, entry.IntervalDays, repeat.IntervalDays)
	assert.Equal(t, entry.Repetition, repeat.Repetition)
}

func TestTriageUnknownEntersLearning(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	entry, err := svc.Triage(ctx, "alice", 40, false)
	require.NoError(t, err)
	assert.Equal(t, types.StatusLearning, entry.Status)
	assert.Equal(t, 0, entry.Repetition)
	assert.Equal(t, 1, entry.IntervalDays)

	_, err = svc.Triage(ctx, "alice", 9999, false)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestReviewProgressionToMastery(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	// Four clean passes on a fresh word: 1, 6, 15, 38 days; the last
	// crosses the mastery threshold.
	wantIntervals := []int{1, 6, 15, 38}
	wantStatus := []types.WordStatus{
		types.StatusReview, types.StatusReview, types.StatusReview, types.StatusMastered,
	}
	for i := range wantIntervals {
		out, err := svc.SubmitReview(ctx, "alice", 10, 4)
		require.NoError(t, err)
		assert.Equal(t, i+1, out.Entry.Repetition)
		assert.Equal(t, wantIntervals[i], out.Entry.IntervalDays, "pass %d", i+1)
		assert.Equal(t, wantStatus[i], out.Entry.Status, "pass %d", i+1)
		clk.Advance(time.Duration(wantIntervals[i]) * 24 * time.Hour)
	}

	// A blackout demotes even a mastered word.
	out, err := svc.SubmitReview(ctx, "alice", 10, 1)
	require.NoError(t, err)
	assert.Equal(t, types.StatusLearning, out.Entry.Status)
	assert.Equal(t, 0, out.Entry.Repetition)
	assert.Equal(t, 1, out.Entry.IntervalDays)
}

func TestSubmitReviewValidatesQuality(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SubmitReview(ctx, "alice", 10, 6)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	_, err = svc.SubmitReview(ctx, "alice", 10, -1)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	_, err = svc.SubmitReview(ctx, "", 10, 4)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	_, err = svc.SubmitReview(ctx, "alice", 9999, 4)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestConcurrentSubmitsAllLand(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	const workers = 8

	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SubmitBinary(ctx, "alice", 10, true)
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	// Every submission serialized through the pair lock: no lost updates.
	entry, err := svc.store.GetProgress(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Equal(t, workers, entry.Repetition)
}

func TestConcurrentReviewsOfDistinctWordsAllCount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	const words = 10

	// Distinct words take distinct pair locks, so only the atomic
	// activity upsert keeps the daily count honest.
	var wg sync.WaitGroup
	errCh := make(chan error, words)
	for i := 0; i < words; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := svc.SubmitBinary(ctx, "alice", id, true)
			errCh <- err
		}(int64(i + 1))
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	stats, err := svc.StatsLearner(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, words, stats.DailyCount)
	assert.Equal(t, 1, stats.Streak)
}

func TestReviewSessionOrder(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	// Word 5 failed (Learning), word 6 passed (Review), word 7 marked
	// unknown at triage (Learning).
	_, err := svc.SubmitBinary(ctx, "alice", 5, false)
	require.NoError(t, err)
	_, err = svc.SubmitBinary(ctx, "alice", 6, true)
	require.NoError(t, err)
	_, err = svc.Triage(ctx, "alice", 7, false)
	require.NoError(t, err)

	clk.Advance(48 * time.Hour)
	queue, err := svc.ReviewSession(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, queue, 3)
	// Learning entries lead the queue.
	assert.Equal(t, types.StatusLearning, queue[0].Status)
	assert.Equal(t, types.StatusLearning, queue[1].Status)
	assert.Equal(t, types.StatusReview, queue[2].Status)

	// Limits cap the queue; negative limits are rejected.
	one, err := svc.ReviewSession(ctx, "alice", 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
	_, err = svc.ReviewSession(ctx, "alice", -1)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestUnitWordsExcludeLearned(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// Unit 1 holds ranks 1-10. Master word 3 via triage.
	_, err := svc.Triage(ctx, "alice", 3, true)
	require.NoError(t, err)

	words, err := svc.UnitWords(ctx, "alice", 1)
	require.NoError(t, err)
	assert.Len(t, words, 9)
	for _, w := range words {
		assert.NotEqual(t, int64(3), w.Word.ID)
	}

	learned, err := svc.UnitLearned(ctx, "alice", 1)
	require.NoError(t, err)
	require.Len(t, learned, 1)
	assert.Equal(t, int64(3), learned[0].Word.ID)

	_, err = svc.UnitWords(ctx, "alice", 0)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestStatsReflectActivityAndQueue(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3} {
		_, err := svc.SubmitBinary(ctx, "alice", id, true)
		require.NoError(t, err)
	}

	stats, err := svc.StatsLearner(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Streak)
	assert.Equal(t, 3, stats.DailyCount)
	assert.Equal(t, svc.cfg.Session.DailyGoal, stats.DailyGoal)
	assert.Equal(t, 0, stats.DueCount)
	require.NotNil(t, stats.NextReviewAt)

	clk.Advance(48 * time.Hour)
	stats, err = svc.StatsLearner(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.DueCount)
	assert.Equal(t, 0, stats.DailyCount)

	byUnit, err := svc.StatsByUnit(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, byUnit.Units, 10)
	assert.Equal(t, 3, byUnit.Units[0].Learned)
	assert.Equal(t, 10, byUnit.Units[0].Total)
	assert.InDelta(t, 30.0, byUnit.Units[0].Percent, 1e-9)
	assert.Equal(t, 3, byUnit.TotalLearned)
	assert.Equal(t, 100, byUnit.TotalWords)
	assert.InDelta(t, 3.0, byUnit.OverallPercent, 1e-9)
}

func TestGoalFiresOnExactReview(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	goal := svc.cfg.Session.DailyGoal

	var fired int
	for i := 0; i < goal+3; i++ {
		out, err := svc.SubmitBinary(ctx, "alice", int64(i+1), true)
		require.NoError(t, err)
		if out.Activity.GoalReached {
			fired++
			assert.Equal(t, goal, out.Activity.DailyCount)
		}
	}
	assert.Equal(t, 1, fired)
}

func TestDistractorsExcludeAnswer(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	word, err := svc.catalog.Get(ctx, 50)
	require.NoError(t, err)

	// Every test word shares one target form, so nothing qualifies.
	none, err := svc.Distractors(ctx, word, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	// Give neighbors distinct forms and ask again.
	require.NoError(t, svc.store.UpsertWords(ctx, []types.Word{
		{ID: 48, Unit: 5, DifficultyRank: 48, SourceForm: "a", TargetForm: "x"},
		{ID: 49, Unit: 5, DifficultyRank: 49, SourceForm: "b", TargetForm: "y"},
		{ID: 51, Unit: 6, DifficultyRank: 51, SourceForm: "c", TargetForm: "z"},
		{ID: 52, Unit: 6, DifficultyRank: 52, SourceForm: "d", TargetForm: "w"},
	}))
	require.NoError(t, svc.catalog.Reload(ctx))

	got, err := svc.Distractors(ctx, word, 3)
	require.NoError(t, err)
	assert.Len(t, got, svc.cfg.Session.DistractorCount)
	for _, d := range got {
		assert.NotEqual(t, word.ID, d.ID)
		assert.NotEqual(t, word.TargetForm, d.TargetForm)
	}
}

func TestDistractorsPreferNearbyRanks(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	word, err := svc.catalog.Get(ctx, 50)
	require.NoError(t, err)

	// Two eligible words inside the ±10 band and three further out; the
	// band widens for the third slot but never displaces the near pair.
	require.NoError(t, svc.store.UpsertWords(ctx, []types.Word{
		{ID: 45, Unit: 5, DifficultyRank: 45, SourceForm: "a", TargetForm: "near-1"},
		{ID: 55, Unit: 6, DifficultyRank: 55, SourceForm: "b", TargetForm: "near-2"},
		{ID: 31, Unit: 4, DifficultyRank: 31, SourceForm: "c", TargetForm: "far-1"},
		{ID: 32, Unit: 4, DifficultyRank: 32, SourceForm: "d", TargetForm: "far-2"},
		{ID: 69, Unit: 7, DifficultyRank: 69, SourceForm: "e", TargetForm: "far-3"},
	}))
	require.NoError(t, svc.catalog.Reload(ctx))

	got, err := svc.Distractors(ctx, word, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	ids := map[int64]bool{}
	for _, d := range got {
		ids[d.ID] = true
	}
	assert.True(t, ids[45], "in-band word 45 displaced by a far candidate")
	assert.True(t, ids[55], "in-band word 55 displaced by a far candidate")
}

package catalog

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"wordhat/internal/errs"
	"wordhat/internal/store"
	"wordhat/internal/types"
)

func testCatalog(t *testing.T, words []types.Word) *Catalog {
	t.Helper()
	s, err := store.Open(":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.UpsertWords(context.Background(), words); err != nil {
		t.Fatalf("seed words: %v", err)
	}
	return New(s.DB(), zap.NewNop())
}

func TestNearestPicksClosestRank(t *testing.T) {
	c := testCatalog(t, []types.Word{
		{ID: 1, Unit: 1, DifficultyRank: 40, SourceForm: "a", TargetForm: "1"},
		{ID: 2, Unit: 1, DifficultyRank: 52, SourceForm: "b", TargetForm: "2"},
		{ID: 3, Unit: 1, DifficultyRank: 55, SourceForm: "c", TargetForm: "3"},
	})
	ctx := context.Background()

	w, err := c.Nearest(ctx, 50, Filter{WindowMin: 1, WindowMax: 100})
	if err != nil {
		t.Fatal(err)
	}
	if w.ID != 2 {
		t.Errorf("nearest to 50 = word %d (rank %d), want word 2", w.ID, w.DifficultyRank)
	}
}

func TestNearestBreaksTiesTowardLowerID(t *testing.T) {
	c := testCatalog(t, []types.Word{
		{ID: 9, Unit: 1, DifficultyRank: 48, SourceForm: "a", TargetForm: "1"},
		{ID: 4, Unit: 1, DifficultyRank: 52, SourceForm: "b", TargetForm: "2"},
	})
	w, err := c.Nearest(context.Background(), 50, Filter{WindowMin: 1, WindowMax: 100})
	if err != nil {
		t.Fatal(err)
	}
	// Both are 2 away from 50; the lower id wins.
	if w.ID != 4 {
		t.Errorf("tie broke to word %d, want 4", w.ID)
	}
}

func TestNearestHonorsWindowAndExclusions(t *testing.T) {
	c := testCatalog(t, []types.Word{
		{ID: 1, Unit: 1, DifficultyRank: 30, SourceForm: "a", TargetForm: "1"},
		{ID: 2, Unit: 1, DifficultyRank: 50, SourceForm: "b", TargetForm: "2"},
		{ID: 3, Unit: 1, DifficultyRank: 51, SourceForm: "c", TargetForm: "3"},
	})
	ctx := context.Background()

	w, err := c.Nearest(ctx, 50, Filter{WindowMin: 45, WindowMax: 55, Exclude: map[int64]bool{2: true}})
	if err != nil {
		t.Fatal(err)
	}
	if w.ID != 3 {
		t.Errorf("got word %d, want 3 (word 2 excluded, word 1 outside window)", w.ID)
	}

	_, err = c.Nearest(ctx, 50, Filter{WindowMin: 45, WindowMax: 55, Exclude: map[int64]bool{2: true, 3: true}})
	if !errors.Is(err, errs.ErrExhausted) {
		t.Errorf("empty band err = %v, want ErrExhausted", err)
	}
}

func TestInBandAndUnitTotals(t *testing.T) {
	c := testCatalog(t, []types.Word{
		{ID: 1, Unit: 1, DifficultyRank: 10, SourceForm: "a", TargetForm: "1"},
		{ID: 2, Unit: 1, DifficultyRank: 20, SourceForm: "b", TargetForm: "2"},
		{ID: 3, Unit: 2, DifficultyRank: 30, SourceForm: "c", TargetForm: "3"},
	})
	ctx := context.Background()

	band, err := c.InBand(ctx, 15, 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(band) != 2 || band[0].ID != 2 || band[1].ID != 3 {
		t.Errorf("band = %+v", band)
	}

	totals, err := c.UnitTotals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if totals[1] != 2 || totals[2] != 1 {
		t.Errorf("unit totals = %v", totals)
	}
}

func TestReloadSeesNewWords(t *testing.T) {
	s, err := store.Open(":memory:", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	if err := s.UpsertWords(ctx, []types.Word{
		{ID: 1, Unit: 1, DifficultyRank: 10, SourceForm: "a", TargetForm: "1"},
	}); err != nil {
		t.Fatal(err)
	}
	c := New(s.DB(), zap.NewNop())
	if n, _ := c.Size(ctx); n != 1 {
		t.Fatalf("size = %d, want 1", n)
	}

	if err := s.UpsertWords(ctx, []types.Word{
		{ID: 2, Unit: 1, DifficultyRank: 20, SourceForm: "b", TargetForm: "2"},
	}); err != nil {
		t.Fatal(err)
	}
	// Cached until reload.
	if n, _ := c.Size(ctx); n != 1 {
		t.Fatalf("stale size = %d, want 1", n)
	}
	if err := c.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := c.Size(ctx); n != 2 {
		t.Errorf("reloaded size = %d, want 2", n)
	}
	if _, err := c.Get(ctx, 2); err != nil {
		t.Errorf("get new word: %v", err)
	}
}

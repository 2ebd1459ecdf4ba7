// Package catalog is the read-only view over the word table: an
// in-memory index keyed by id and sorted by difficulty rank, loaded
// once and shared by the placement sampler and the session assemblers.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"wordhat/internal/errs"
	"wordhat/internal/types"
)

// Catalog caches the word table. Concurrent first readers share one
// load through the singleflight group; Reload refreshes the cache after
// a seed or difficulty recalculation.
type Catalog struct {
	db  *sql.DB
	log *zap.Logger

	group singleflight.Group

	mu     sync.RWMutex
	loaded bool
	byID   map[int64]types.Word
	byRank []types.Word // sorted by (difficulty_rank, id)
	units  map[int]int  // unit -> word count
}

// Filter narrows Nearest to a rank band, excluding already-used words.
type Filter struct {
	WindowMin int
	WindowMax int
	Exclude   map[int64]bool
}

func New(db *sql.DB, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{db: db, log: log}
}

// Get returns the word by id or ErrNotFound.
func (c *Catalog) Get(ctx context.Context, id int64) (types.Word, error) {
	if err := c.ensure(ctx); err != nil {
		return types.Word{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	w, ok := c.byID[id]
	if !ok {
		return types.Word{}, fmt.Errorf("word %d: %w", id, errs.ErrNotFound)
	}
	return w, nil
}

// Nearest returns the word whose difficulty rank is closest to target
// within [f.WindowMin, f.WindowMax], skipping excluded ids. Ties break
// toward the lower word id so selection is deterministic. ErrExhausted
// when the band holds no candidate.
func (c *Catalog) Nearest(ctx context.Context, target int, f Filter) (types.Word, error) {
	if err := c.ensure(ctx); err != nil {
		return types.Word{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	// byRank is sorted, so the band is a contiguous run.
	start := sort.Search(len(c.byRank), func(i int) bool {
		return c.byRank[i].DifficultyRank >= f.WindowMin
	})

	var (
		best  types.Word
		found bool
	)
	for i := start; i < len(c.byRank); i++ {
		w := c.byRank[i]
		if w.DifficultyRank > f.WindowMax {
			break
		}
		if f.Exclude[w.ID] {
			continue
		}
		if !found || closer(w, best, target) {
			best = w
			found = true
		}
	}
	if !found {
		return types.Word{}, fmt.Errorf("no word in rank band [%d, %d]: %w", f.WindowMin, f.WindowMax, errs.ErrExhausted)
	}
	return best, nil
}

// InBand returns every word whose rank lies in [lo, hi], in (rank, id)
// order. The distractor picker widens the band through this.
func (c *Catalog) InBand(ctx context.Context, lo, hi int) ([]types.Word, error) {
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	start := sort.Search(len(c.byRank), func(i int) bool {
		return c.byRank[i].DifficultyRank >= lo
	})
	var out []types.Word
	for i := start; i < len(c.byRank); i++ {
		if c.byRank[i].DifficultyRank > hi {
			break
		}
		out = append(out, c.byRank[i])
	}
	return out, nil
}

// UnitTotals returns word counts keyed by unit.
func (c *Catalog) UnitTotals(ctx context.Context) (map[int]int, error) {
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	totals := make(map[int]int, len(c.units))
	for unit, n := range c.units {
		totals[unit] = n
	}
	return totals, nil
}

// Size returns the number of cached words.
func (c *Catalog) Size(ctx context.Context) (int, error) {
	if err := c.ensure(ctx); err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byRank), nil
}

// Reload discards the cache and loads the table again.
func (c *Catalog) Reload(ctx context.Context) error {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
	return c.ensure(ctx)
}

func (c *Catalog) ensure(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}
	_, err, _ := c.group.Do("load", func() (interface{}, error) {
		return nil, c.load(ctx)
	})
	return err
}

func (c *Catalog) load(ctx context.Context) error {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, unit, difficulty_rank, source_form, target_form, audio_ref, global_difficulty
		FROM words
		ORDER BY difficulty_rank ASC, id ASC`)
	if err != nil {
		return fmt.Errorf("load catalog: %w: %w", errs.ErrInternal, err)
	}
	defer rows.Close()

	byID := make(map[int64]types.Word)
	var byRank []types.Word
	units := make(map[int]int)
	for rows.Next() {
		var (
			w          types.Word
			audio      sql.NullString
			difficulty sql.NullInt64
		)
		err := rows.Scan(&w.ID, &w.Unit, &w.DifficultyRank,
			&w.SourceForm, &w.TargetForm, &audio, &difficulty)
		if err != nil {
			return fmt.Errorf("load catalog: %w: %w", errs.ErrInternal, err)
		}
		w.AudioRef = audio.String
		if difficulty.Valid {
			v := int(difficulty.Int64)
			w.GlobalDifficulty = &v
		}
		byID[w.ID] = w
		byRank = append(byRank, w)
		units[w.Unit]++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load catalog: %w: %w", errs.ErrInternal, err)
	}

	c.mu.Lock()
	c.byID = byID
	c.byRank = byRank
	c.units = units
	c.loaded = true
	c.mu.Unlock()

	c.log.Debug("catalog loaded", zap.Int("words", len(byRank)))
	return nil
}

func closer(a, b types.Word, target int) bool {
	da, db := absDiff(a.DifficultyRank, target), absDiff(b.DifficultyRank, target)
	if da != db {
		return da < db
	}
	return a.ID < b.ID
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

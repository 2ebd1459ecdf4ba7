// Package core is the application service layer: it wires the pure
// scheduler and placement engine to the store, the catalog view, and
// the activity tracker, and owns validation and concurrency control
// for every operation.
package core

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"wordhat/internal/activity"
	"wordhat/internal/catalog"
	"wordhat/internal/clock"
	"wordhat/internal/config"
	"wordhat/internal/errs"
	"wordhat/internal/placement"
	"wordhat/internal/srs"
	"wordhat/internal/store"
)

// Service exposes the learning core's operations.
type Service struct {
	cfg     *config.Config
	store   *store.Store
	catalog *catalog.Catalog
	tracker *activity.Tracker
	clock   clock.Clock
	log     *zap.Logger

	sched  srs.Params
	placer placement.Params
	loc    *time.Location
	locks  stripedLocks
}

// New wires a Service over an open store. The clock defaults to the
// system clock when nil.
func New(cfg *config.Config, st *store.Store, clk clock.Clock, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if clk == nil {
		clk = clock.System{}
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("resolve timezone: %w", err)
	}

	cat := catalog.New(st.DB(), log.Named("catalog"))
	tracker := activity.NewTracker(st, cfg.Session.DailyGoal, loc, log.Named("activity"))

	return &Service{
		cfg:     cfg,
		store:   st,
		catalog: cat,
		tracker: tracker,
		clock:   clk,
		log:     log,
		sched: srs.Params{
			EFMin:                cfg.Scheduler.EFMin,
			EFMax:                cfg.Scheduler.EFMax,
			InitialEF:            cfg.Scheduler.InitialEF,
			MaxIntervalDays:      cfg.Scheduler.MaxIntervalDays,
			MasteryThresholdDays: cfg.Scheduler.MasteryThresholdDays,
			MasterySeedDays:      cfg.Scheduler.MasterySeedDays,
		},
		placer: placement.Params{
			MaxQuestions:       cfg.Placement.MaxQuestions,
			MinRange:           cfg.Placement.MinRange,
			RegressionInterval: cfg.Placement.RegressionInterval,
			RegressionFactor:   cfg.Placement.RegressionFactor,
			Window:             cfg.Placement.RegressionWindow,
		},
		loc: loc,
	}, nil
}

// Catalog exposes the read-only word view, mainly for the CLI.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

func validLearner(learnerID string) error {
	if learnerID == "" {
		return fmt.Errorf("learner id must not be empty: %w", errs.ErrInvalidArgument)
	}
	return nil
}

func pairKey(learnerID string, wordID int64) string {
	return fmt.Sprintf("%s|%d", learnerID, wordID)
}

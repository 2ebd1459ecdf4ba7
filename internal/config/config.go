// Package config holds the process-level configuration record. Every
// threshold the core consults lives here; components never read settings
// from anywhere else at runtime.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration record passed into the core at startup.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Placement PlacementConfig `yaml:"placement"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Session   SessionConfig   `yaml:"session"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig configures SQLite persistence.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// PlacementConfig tunes the adaptive placement engine.
type PlacementConfig struct {
	MaxQuestions       int     `yaml:"max_questions"`
	MinRange           int     `yaml:"min_range"`
	RegressionInterval int     `yaml:"regression_interval"`
	RegressionFactor   float64 `yaml:"regression_factor"`
	RegressionWindow   int     `yaml:"regression_window"`
}

// SchedulerConfig tunes the SM-2 scheduler and the lifecycle thresholds.
type SchedulerConfig struct {
	EFMin                float64 `yaml:"ef_min"`
	EFMax                float64 `yaml:"ef_max"`
	InitialEF            float64 `yaml:"initial_ef"`
	MaxIntervalDays      int     `yaml:"max_interval_days"`
	MasteryThresholdDays int     `yaml:"mastery_threshold_days"`
	MasterySeedDays      int     `yaml:"mastery_seed_days"`
}

// SessionConfig tunes session assembly and the daily-goal tracker.
type SessionConfig struct {
	ReviewLimit     int    `yaml:"review_limit"`
	DailyGoal       int    `yaml:"daily_goal"`
	DistractorCount int    `yaml:"distractor_count"`
	DistractorBand  int    `yaml:"distractor_band"`
	Timezone        string `yaml:"timezone"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the configuration with all deployment defaults applied.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "wordhat.db",
		},
		Placement: PlacementConfig{
			MaxQuestions:       20,
			MinRange:           5,
			RegressionInterval: 5,
			RegressionFactor:   0.80,
			RegressionWindow:   5,
		},
		Scheduler: SchedulerConfig{
			EFMin:                1.3,
			EFMax:                2.5,
			InitialEF:            2.5,
			MaxIntervalDays:      365,
			MasteryThresholdDays: 21,
			MasterySeedDays:      21,
		},
		Session: SessionConfig{
			ReviewLimit:     20,
			DailyGoal:       15,
			DistractorCount: 3,
			DistractorBand:  10,
			Timezone:        "UTC",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path over the defaults, then applies
// environment overrides and validates. A missing file is not an error:
// defaults plus environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides individual fields from WORDHAT_* variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("WORDHAT_DATABASE_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("WORDHAT_TIMEZONE"); v != "" {
		c.Session.Timezone = v
	}
	if v := os.Getenv("WORDHAT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v, err := strconv.Atoi(os.Getenv("WORDHAT_DAILY_GOAL")); err == nil && v > 0 {
		c.Session.DailyGoal = v
	}
	if v, err := strconv.Atoi(os.Getenv("WORDHAT_MAX_QUESTIONS")); err == nil && v > 0 {
		c.Placement.MaxQuestions = v
	}
	if v, err := strconv.Atoi(os.Getenv("WORDHAT_REVIEW_LIMIT")); err == nil && v > 0 {
		c.Session.ReviewLimit = v
	}
}

// Validate rejects settings the algorithms cannot run under.
func (c *Config) Validate() error {
	if c.Placement.MaxQuestions < 1 {
		return fmt.Errorf("placement.max_questions must be >= 1, got %d", c.Placement.MaxQuestions)
	}
	if c.Placement.MinRange < 1 {
		return fmt.Errorf("placement.min_range must be >= 1, got %d", c.Placement.MinRange)
	}
	if c.Placement.RegressionFactor <= 0 || c.Placement.RegressionFactor >= 1 {
		return fmt.Errorf("placement.regression_factor must be in (0,1), got %v", c.Placement.RegressionFactor)
	}
	if c.Scheduler.EFMin >= c.Scheduler.EFMax {
		return fmt.Errorf("scheduler.ef_min %v must be below ef_max %v", c.Scheduler.EFMin, c.Scheduler.EFMax)
	}
	if c.Scheduler.InitialEF < c.Scheduler.EFMin || c.Scheduler.InitialEF > c.Scheduler.EFMax {
		return fmt.Errorf("scheduler.initial_ef %v outside [%v, %v]", c.Scheduler.InitialEF, c.Scheduler.EFMin, c.Scheduler.EFMax)
	}
	if c.Scheduler.MasteryThresholdDays < 14 {
		return fmt.Errorf("scheduler.mastery_threshold_days must be >= 14, got %d", c.Scheduler.MasteryThresholdDays)
	}
	if c.Scheduler.MaxIntervalDays < c.Scheduler.MasteryThresholdDays {
		return fmt.Errorf("scheduler.max_interval_days %d below mastery threshold %d", c.Scheduler.MaxIntervalDays, c.Scheduler.MasteryThresholdDays)
	}
	if c.Session.DailyGoal < 1 {
		return fmt.Errorf("session.daily_goal must be >= 1, got %d", c.Session.DailyGoal)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("session.timezone: %w", err)
	}
	return nil
}

// Location resolves the learner timezone used for day-boundary logic.
func (c *Config) Location() (*time.Location, error) {
	if c.Session.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Session.Timezone)
}

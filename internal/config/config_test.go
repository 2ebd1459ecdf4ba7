package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Placement.MaxQuestions != 20 {
		t.Errorf("expected 20 max questions, got %d", cfg.Placement.MaxQuestions)
	}
	if cfg.Scheduler.EFMin != 1.3 || cfg.Scheduler.EFMax != 2.5 {
		t.Errorf("unexpected EF bounds [%v, %v]", cfg.Scheduler.EFMin, cfg.Scheduler.EFMax)
	}
	if cfg.Session.DailyGoal != 15 {
		t.Errorf("expected daily goal 15, got %d", cfg.Session.DailyGoal)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wordhat.yaml")
	body := `
placement:
  max_questions: 12
session:
  daily_goal: 10
  timezone: America/New_York
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Placement.MaxQuestions != 12 {
		t.Errorf("expected 12, got %d", cfg.Placement.MaxQuestions)
	}
	if cfg.Session.DailyGoal != 10 {
		t.Errorf("expected 10, got %d", cfg.Session.DailyGoal)
	}
	// Untouched fields keep defaults.
	if cfg.Placement.MinRange != 5 {
		t.Errorf("expected default min_range 5, got %d", cfg.Placement.MinRange)
	}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location failed: %v", err)
	}
	if loc.String() != "America/New_York" {
		t.Errorf("unexpected location %s", loc)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Session.ReviewLimit != 20 {
		t.Errorf("expected default review limit, got %d", cfg.Session.ReviewLimit)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("WORDHAT_DAILY_GOAL", "7")
	t.Setenv("WORDHAT_DATABASE_PATH", "/tmp/other.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Session.DailyGoal != 7 {
		t.Errorf("env override not applied, got %d", cfg.Session.DailyGoal)
	}
	if cfg.Database.Path != "/tmp/other.db" {
		t.Errorf("env override not applied, got %s", cfg.Database.Path)
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.MasteryThresholdDays = 7
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for mastery threshold below 14")
	}

	cfg = Default()
	cfg.Placement.RegressionFactor = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for regression factor outside (0,1)")
	}

	cfg = Default()
	cfg.Session.Timezone = "Not/AZone"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown timezone")
	}
}

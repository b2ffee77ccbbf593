package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.Rules.Game != "genshin" || cfg.Cache.Type != "memory" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if !cfg.Rules.Watch {
		t.Error("rules watch should default on")
	}
	if cfg.Simulation.MaxIterations != 5_000_000 {
		t.Errorf("max iterations = %d", cfg.Simulation.MaxIterations)
	}
	if cfg.Simulation.MaxCells != 50_000_000 {
		t.Errorf("max cells = %d", cfg.Simulation.MaxCells)
	}
	if len(cfg.Catalog.Packs) != 6 {
		t.Errorf("default catalog has %d packs", len(cfg.Catalog.Packs))
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wishsim.yaml")
	body := `
http:
  addr: ":9000"
  progress_interval: 250ms
simulation:
  workers: 2
  timeout: 5s
  max_iterations: 100000
  max_cells: 400000
rules:
  watch: false
cache:
  type: none
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WISHSIM_WORKERS", "4")
	t.Setenv("WISHSIM_DEBUG", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Addr != ":9000" || cfg.HTTP.ProgressInterval != 250*time.Millisecond {
		t.Errorf("http: %+v", cfg.HTTP)
	}
	if cfg.Simulation.Workers != 4 {
		t.Errorf("env should win, workers = %d", cfg.Simulation.Workers)
	}
	if cfg.Simulation.MaxIterations != 100000 {
		t.Errorf("max iterations = %d", cfg.Simulation.MaxIterations)
	}
	if cfg.Simulation.MaxCells != 400000 {
		t.Errorf("max cells = %d", cfg.Simulation.MaxCells)
	}
	if cfg.Simulation.Timeout != 5*time.Second {
		t.Errorf("timeout = %v", cfg.Simulation.Timeout)
	}
	if cfg.Rules.Watch || !cfg.Debug || cfg.Cache.Type != "none" {
		t.Errorf("unexpected: watch=%v debug=%v cache=%q", cfg.Rules.Watch, cfg.Debug, cfg.Cache.Type)
	}
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("WISHSIM_WORKERS", "many")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error")
	}
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Cache.Type = "redis"
	cfg.Schedule.Enabled = true
	cfg.Schedule.ProjectionCron = "every day"
	cfg.Ledger.IncomeWindowDays = -1
	cfg.Simulation.MaxIterations = -1
	cfg.Simulation.MaxCells = -1

	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"redis_addr", "projection_cron", "income_window_days", "max_iterations", "max_cells"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %q in %v", want, err)
		}
	}
}

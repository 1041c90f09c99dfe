package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDottedAndFlatKeys(t *testing.T) {
	path := writeConfig(t, `
env:
  board_size: 20
mcts:
  simulations: 123
  cpuct: 1.5
seed: 7
save_dir: "/tmp/run"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BoardSize != 20 {
		t.Errorf("expected board_size 20, got %d", cfg.BoardSize)
	}
	if cfg.NumSimulations != 123 {
		t.Errorf("expected num_simulations 123, got %d", cfg.NumSimulations)
	}
	if cfg.Cpuct != 1.5 {
		t.Errorf("expected c_puct 1.5, got %v", cfg.Cpuct)
	}
	if cfg.Seed != 7 {
		t.Errorf("expected seed 7, got %d", cfg.Seed)
	}
	if cfg.SaveDir != "/tmp/run" {
		t.Errorf("expected save_dir /tmp/run, got %q", cfg.SaveDir)
	}
}

func TestLoadFlatAliasOverridesSameAsDotted(t *testing.T) {
	path := writeConfig(t, "board_size: 15\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BoardSize != 15 {
		t.Errorf("expected board_size 15, got %d", cfg.BoardSize)
	}
}

func TestLoadIgnoresUnknownKeys(t *testing.T) {
	path := writeConfig(t, "totally_unknown_key: 99\nboard_size: 8\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BoardSize != 8 {
		t.Errorf("expected board_size 8 despite unknown key, got %d", cfg.BoardSize)
	}
}

func TestWithProfileWarmupFast(t *testing.T) {
	base := Default()
	base.WarmupIterations = 60
	cfg := WithProfile(base, "warmup_fast")
	if cfg.NumSimulations != 96 || cfg.FoodSamples != 4 || cfg.GamesPerIter != 256 ||
		cfg.EvalGames != 80 || cfg.Iterations != 60 || cfg.TempDecayMove != 20 {
		t.Errorf("unexpected warmup_fast overlay: %+v", cfg)
	}
	if cfg.SelfplayWorkers < 2 || cfg.SelfplayWorkers > 8 {
		t.Errorf("expected selfplay_workers clamped to [2,8], got %d", cfg.SelfplayWorkers)
	}
}

func TestWithProfilePaperStrictUsesStrictIterationsWhenSet(t *testing.T) {
	base := Default()
	base.StrictIterations = 12
	base.Iterations = 999
	cfg := WithProfile(base, "paper_strict")
	if cfg.Iterations != 12 {
		t.Errorf("expected iterations overridden to strict_iterations=12, got %d", cfg.Iterations)
	}

	base2 := Default()
	base2.StrictIterations = 0
	base2.Iterations = 999
	cfg2 := WithProfile(base2, "paper_strict")
	if cfg2.Iterations != 999 {
		t.Errorf("expected iterations unchanged when strict_iterations<=0, got %d", cfg2.Iterations)
	}
}

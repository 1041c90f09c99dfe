// Package config loads the line-oriented TrainConfig file format and
// applies named profile overlays (warmup_fast, smoke, paper_strict).
// two_phase has no overlay of its own here: the trainer command runs it
// as warmup_fast followed by paper_strict.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// TrainConfig holds every tunable named in the configuration key table.
type TrainConfig struct {
	BoardSize int
	MaxSteps  int

	NumSimulations int
	Cpuct          float64
	DirichletAlpha float64
	DirichletEps   float64
	FoodSamples    int
	TempDecayMove  int

	LR              float64
	WeightDecay     float64
	Gamma           float64
	BatchSize       int
	BufferSize      int
	EpochsPerIter   int
	GamesPerIter    int
	SelfplayWorkers int

	InferenceBatchSize int
	InferenceWait      time.Duration

	EvalGames       int
	AcceptThreshold float64

	WarmupIterations int
	StrictIterations int
	Iterations       int

	Seed    int
	SaveDir string
	Profile string

	Spectate bool
}

// Default mirrors the reference trainer's built-in defaults.
func Default() TrainConfig {
	return TrainConfig{
		BoardSize:          10,
		MaxSteps:           1000,
		NumSimulations:     400,
		Cpuct:              1.0,
		DirichletAlpha:     0.03,
		DirichletEps:       0.25,
		TempDecayMove:      30,
		FoodSamples:        8,
		LR:                 1e-3,
		WeightDecay:        1e-4,
		Gamma:              0.997,
		BatchSize:          128,
		BufferSize:         200000,
		EpochsPerIter:      10,
		GamesPerIter:       1000,
		EvalGames:          200,
		AcceptThreshold:    0.55,
		SelfplayWorkers:    8,
		InferenceBatchSize: 128,
		InferenceWait:      time.Millisecond,
		Iterations:         200,
		Seed:               42,
		SaveDir:            "./alphasnake_run",
		Profile:            "paper_strict",
		WarmupIterations:   60,
		StrictIterations:   12,
	}
}

func trim(s string) string { return strings.TrimSpace(s) }

func parseKV(line string) (key, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	key = trim(line[:idx])
	value = trim(line[idx+1:])
	if len(value) > 1 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' || first == '\'') && first == last {
			value = value[1 : len(value)-1]
		}
	}
	return key, value, key != ""
}

// Load reads a config file at path, applying recognised keys on top of
// Default(). Unrecognised keys are ignored. A line ending in ":" opens
// a section whose name prefixes subsequent keys as "section.key"; both
// the dotted and flat forms of each key are accepted. A key inside a
// section is also applied in its flat form, so flat-only keys such as
// seed and save_dir still take effect after a section header; the
// dotted form is applied last.
func Load(path string) (TrainConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return TrainConfig{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	cfg := Default()
	section := ""

	scanner := bufio.NewScanner(f)
	lineno := 0
	for scanner.Scan() {
		lineno++
		t := trim(scanner.Text())
		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		if strings.HasSuffix(t, ":") {
			section = trim(strings.TrimSuffix(t, ":"))
			continue
		}

		key, value, ok := parseKV(t)
		if !ok {
			continue
		}
		full := key
		if section != "" {
			full = section + "." + key
			if err := applyKey(&cfg, key, value); err != nil {
				return TrainConfig{}, fmt.Errorf("config: line %d: %w", lineno, err)
			}
		}
		if err := applyKey(&cfg, full, value); err != nil {
			return TrainConfig{}, fmt.Errorf("config: line %d: %w", lineno, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return TrainConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

func applyKey(cfg *TrainConfig, full, value string) error {
	setInt := func(target *int) error {
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid int for %s: %q", full, value)
		}
		*target = v
		return nil
	}
	setFloat := func(target *float64) error {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float for %s: %q", full, value)
		}
		*target = v
		return nil
	}
	setBool := func(target *bool) error {
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool for %s: %q", full, value)
		}
		*target = v
		return nil
	}
	setDurationMicros := func(target *time.Duration) error {
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid int for %s: %q", full, value)
		}
		*target = time.Duration(v) * time.Microsecond
		return nil
	}

	switch full {
	case "env.board_size", "board_size":
		return setInt(&cfg.BoardSize)
	case "env.max_steps", "max_steps":
		return setInt(&cfg.MaxSteps)
	case "mcts.simulations", "num_simulations":
		return setInt(&cfg.NumSimulations)
	case "mcts.cpuct", "c_puct":
		return setFloat(&cfg.Cpuct)
	case "mcts.dir_alpha", "dirichlet_alpha":
		return setFloat(&cfg.DirichletAlpha)
	case "mcts.dir_eps", "dirichlet_eps":
		return setFloat(&cfg.DirichletEps)
	case "mcts.food_samples", "food_samples":
		return setInt(&cfg.FoodSamples)
	case "selfplay.temp_decay", "temp_decay_move":
		return setInt(&cfg.TempDecayMove)
	case "selfplay.games", "games_per_iter":
		return setInt(&cfg.GamesPerIter)
	case "selfplay.workers", "selfplay_workers":
		return setInt(&cfg.SelfplayWorkers)
	case "selfplay.inference_batch_size":
		return setInt(&cfg.InferenceBatchSize)
	case "selfplay.inference_wait_us":
		return setDurationMicros(&cfg.InferenceWait)
	case "selfplay.spectate":
		return setBool(&cfg.Spectate)
	case "train.lr", "lr":
		return setFloat(&cfg.LR)
	case "train.weight_decay", "weight_decay":
		return setFloat(&cfg.WeightDecay)
	case "train.gamma", "gamma":
		return setFloat(&cfg.Gamma)
	case "train.batch_size", "batch_size":
		return setInt(&cfg.BatchSize)
	case "train.buffer", "buffer_size":
		return setInt(&cfg.BufferSize)
	case "train.epochs", "epochs_per_iter":
		return setInt(&cfg.EpochsPerIter)
	case "train.iterations", "iterations":
		return setInt(&cfg.Iterations)
	case "eval.games", "eval_games":
		return setInt(&cfg.EvalGames)
	case "eval.accept_threshold", "accept_threshold":
		return setFloat(&cfg.AcceptThreshold)
	case "schedule.warmup_iterations", "warmup_iterations":
		return setInt(&cfg.WarmupIterations)
	case "schedule.strict_iterations", "strict_iterations":
		return setInt(&cfg.StrictIterations)
	case "seed":
		return setInt(&cfg.Seed)
	case "save_dir":
		cfg.SaveDir = value
		return nil
	case "profile":
		cfg.Profile = value
		return nil
	}
	// Unrecognised key: ignored, matching the reference parser.
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// WithProfile returns a copy of base with the named profile's overlay
// values applied. Unknown profile names return base unchanged (still
// stamped with the requested profile name).
func WithProfile(base TrainConfig, profile string) TrainConfig {
	cfg := base
	cfg.Profile = profile

	switch profile {
	case "warmup_fast":
		cfg.NumSimulations = 96
		cfg.FoodSamples = 4
		cfg.GamesPerIter = 256
		cfg.EvalGames = 80
		cfg.SelfplayWorkers = clampInt(cfg.SelfplayWorkers, 2, 8)
		cfg.Iterations = cfg.WarmupIterations
		cfg.TempDecayMove = 20
	case "smoke":
		cfg.NumSimulations = 32
		cfg.FoodSamples = 2
		cfg.GamesPerIter = 16
		cfg.EvalGames = 16
		cfg.EpochsPerIter = 2
		cfg.BatchSize = 32
		cfg.SelfplayWorkers = clampInt(cfg.SelfplayWorkers, 1, 4)
		cfg.Iterations = 1
		cfg.TempDecayMove = 8
	case "paper_strict":
		cfg.NumSimulations = 400
		cfg.FoodSamples = 8
		cfg.GamesPerIter = 1000
		cfg.EvalGames = 200
		if cfg.StrictIterations > 0 {
			cfg.Iterations = cfg.StrictIterations
		}
		cfg.TempDecayMove = 30
	}
	return cfg
}

// Command evaluator plays a fixed number of greedy evaluation games
// against a saved checkpoint and reports win rate and average length.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/brensch/alphasnake/internal/batch"
	"github.com/brensch/alphasnake/internal/checkpoint"
	"github.com/brensch/alphasnake/internal/config"
	"github.com/brensch/alphasnake/internal/env"
	"github.com/brensch/alphasnake/internal/logging"
	"github.com/brensch/alphasnake/internal/model"
	"github.com/brensch/alphasnake/internal/selfplay"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to the training config file (required)")
	profile := flag.String("profile", "paper_strict", "profile overlay to apply before evaluating")
	checkpointDir := flag.String("checkpoint", "", "save_dir containing best_model.bin (required)")
	games := flag.Int("games", 0, "number of evaluation games (0 = use profile's eval.games)")
	simulations := flag.Int("simulations", 0, "MCTS simulations per move (0 = use profile's mcts.simulations)")
	flag.Parse()

	logger := slog.New(logging.NewPrettyJSONHandler(os.Stderr, nil))

	if *configPath == "" || *checkpointDir == "" {
		logger.Error("missing required --config or --checkpoint flag")
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config failed", "err", err)
		return 1
	}
	cfg = config.WithProfile(cfg, *profile)
	if *games > 0 {
		cfg.EvalGames = *games
	}
	if *simulations > 0 {
		cfg.NumSimulations = *simulations
	}

	inputSize := env.TensorSize(int32(cfg.BoardSize))
	best := model.NewLinear(inputSize, uint64(cfg.Seed), cfg.LR, cfg.WeightDecay)
	candidate := model.NewLinear(inputSize, uint64(cfg.Seed)+1, cfg.LR, cfg.WeightDecay)
	if _, err := checkpoint.Load(*checkpointDir, best, candidate); err != nil {
		logger.Error("load checkpoint failed", "err", err)
		return 1
	}

	batcher := batch.New(best, batch.Config{MaxBatch: cfg.InferenceBatchSize, Wait: cfg.InferenceWait})
	batcher.Start()
	defer batcher.Stop()
	predictor := batch.NewPredictor(batcher)

	gcfg := selfplay.GameConfig{
		BoardSize:      int32(cfg.BoardSize),
		MaxSteps:       cfg.MaxSteps,
		NumSimulations: cfg.NumSimulations,
		Cpuct:          float32(cfg.Cpuct),
		FoodSamples:    cfg.FoodSamples,
	}

	var totalLength int
	var wins int
	for g := 0; g < cfg.EvalGames; g++ {
		outcome := selfplay.PlayGameGreedy(gcfg, predictor, int64(cfg.Seed)+int64(g))
		totalLength += outcome.Length
		if outcome.Won {
			wins++
		}
	}

	winRate := 0.0
	avgLength := 0.0
	if cfg.EvalGames > 0 {
		winRate = float64(wins) / float64(cfg.EvalGames)
		avgLength = float64(totalLength) / float64(cfg.EvalGames)
	}
	fmt.Printf("win_rate=%.4f\n", winRate)
	fmt.Printf("avg_length=%.4f\n", avgLength)
	return 0
}

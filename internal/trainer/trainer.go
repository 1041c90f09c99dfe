// Package trainer orchestrates one outer-loop iteration: self-play,
// candidate training, head-to-head evaluation, and promotion gating.
package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/brensch/alphasnake/internal/batch"
	"github.com/brensch/alphasnake/internal/checkpoint"
	"github.com/brensch/alphasnake/internal/config"
	"github.com/brensch/alphasnake/internal/model"
	"github.com/brensch/alphasnake/internal/replay"
	"github.com/brensch/alphasnake/internal/selfplay"
	"github.com/brensch/alphasnake/internal/spectator"
)

// Summary reports what happened during one iteration, for logging and
// the dashboard.
type Summary struct {
	Iteration          int
	GamesPlayed        int
	PositionsGenerated int
	TrainedEpochs      int
	Loss               model.LossStats
	BestAvgLength      float64
	CandidateAvgLength float64
	BestWinRate        float64
	CandidateWinRate   float64
	Promoted           bool
	Elapsed            time.Duration
}

// Trainer owns the champion/candidate models and the replay buffer
// across iterations of the outer training loop.
type Trainer struct {
	Cfg       config.TrainConfig
	SaveDir   string
	Best      model.Model
	Candidate model.Model
	Buffer    *replay.Buffer
	Log       *slog.Logger
	// Spectator, when non-nil and Cfg.Spectate is set, receives a live
	// move feed from one self-play worker per iteration.
	Spectator *spectator.Server
}

// New constructs a Trainer. The caller is responsible for loading any
// existing checkpoint into best/candidate before the first iteration.
// spec may be nil; it is only consulted when cfg.Spectate is true.
func New(cfg config.TrainConfig, saveDir string, best, candidate model.Model, buf *replay.Buffer, log *slog.Logger, spec *spectator.Server) *Trainer {
	if log == nil {
		log = slog.Default()
	}
	return &Trainer{Cfg: cfg, SaveDir: saveDir, Best: best, Candidate: candidate, Buffer: buf, Log: log, Spectator: spec}
}

func gameConfig(cfg config.TrainConfig) selfplay.GameConfig {
	return selfplay.GameConfig{
		BoardSize:      int32(cfg.BoardSize),
		MaxSteps:       cfg.MaxSteps,
		NumSimulations: cfg.NumSimulations,
		Cpuct:          float32(cfg.Cpuct),
		DirichletAlpha: float32(cfg.DirichletAlpha),
		DirichletEps:   float32(cfg.DirichletEps),
		FoodSamples:    cfg.FoodSamples,
		TempDecayMove:  cfg.TempDecayMove,
		Gamma:          cfg.Gamma,
	}
}

// RunIteration executes one full step of the outer loop: self-play with
// the champion, buffer insertion, candidate training, head-to-head
// evaluation, and promotion.
func (t *Trainer) RunIteration(ctx context.Context, iteration int) (Summary, error) {
	start := time.Now()
	summary := Summary{Iteration: iteration}

	examples, err := t.runSelfPlay(ctx, iteration)
	if err != nil {
		return summary, fmt.Errorf("trainer: self-play: %w", err)
	}
	summary.GamesPlayed = t.Cfg.GamesPerIter
	summary.PositionsGenerated = len(examples)
	t.Buffer.AddMany(examples)
	t.archiveExamples(iteration, examples)

	if err := t.Candidate.CopyFrom(t.Best); err != nil {
		return summary, fmt.Errorf("trainer: seed candidate: %w", err)
	}
	t.Candidate.ResetOptimizer(t.Cfg.LR, t.Cfg.WeightDecay)

	loss, epochs, err := t.trainCandidate(iteration)
	if err != nil {
		return summary, fmt.Errorf("trainer: train candidate: %w", err)
	}
	summary.Loss = loss
	summary.TrainedEpochs = epochs

	bestStats, err := t.evaluate(ctx, t.Best, iteration, "best")
	if err != nil {
		return summary, fmt.Errorf("trainer: evaluate best: %w", err)
	}
	candStats, err := t.evaluate(ctx, t.Candidate, iteration, "candidate")
	if err != nil {
		return summary, fmt.Errorf("trainer: evaluate candidate: %w", err)
	}
	summary.BestAvgLength = bestStats.avgLength
	summary.CandidateAvgLength = candStats.avgLength
	summary.BestWinRate = bestStats.winRate
	summary.CandidateWinRate = candStats.winRate

	if candStats.avgLength >= bestStats.avgLength {
		if err := t.Best.CopyFrom(t.Candidate); err != nil {
			return summary, fmt.Errorf("trainer: promote candidate: %w", err)
		}
		summary.Promoted = true
		summary.BestWinRate = candStats.winRate
	}

	st := checkpoint.State{
		Iteration:   iteration,
		BestWinRate: summary.BestWinRate,
		Profile:     t.Cfg.Profile,
	}
	if err := checkpoint.Save(t.SaveDir, t.Best, t.Candidate, st); err != nil {
		return summary, fmt.Errorf("trainer: checkpoint: %w", err)
	}

	summary.Elapsed = time.Since(start)
	return summary, nil
}

// archiveExamples persists one iteration's self-play positions to the
// parquet archive under SaveDir/replay_archive, in addition to the
// in-memory ring buffer. Failure is logged, not fatal: the archive is
// a supplementary long-term record, not the training path itself.
func (t *Trainer) archiveExamples(iteration int, examples []model.Example) {
	if len(examples) == 0 {
		return
	}
	gameID := fmt.Sprintf("iter%d", iteration)
	rows := make([]replay.Row, len(examples))
	for i, ex := range examples {
		rows[i] = replay.EncodeExample(gameID, i, ex)
	}
	outDir := filepath.Join(t.SaveDir, "replay_archive")
	path, err := replay.ArchiveBatchAtomic(outDir, rows)
	if err != nil {
		t.Log.Warn("archive replay batch failed", "iteration", iteration, "err", err)
		return
	}
	t.Log.Info("archived replay batch", "iteration", iteration, "rows", len(rows), "path", path)
}

func (t *Trainer) runSelfPlay(ctx context.Context, iteration int) ([]model.Example, error) {
	batcher := batch.New(t.Best, batch.Config{MaxBatch: t.Cfg.InferenceBatchSize, Wait: t.Cfg.InferenceWait})
	batcher.Start()
	defer batcher.Stop()

	predictor := batch.NewPredictor(batcher)
	heartbeat := func(h selfplay.Heartbeat) {
		stats := batcher.Stats()
		avgBatch := 0.0
		if stats.Batches > 0 {
			avgBatch = float64(stats.States) / float64(stats.Batches)
		}
		t.Log.Info("selfplay heartbeat",
			"iteration", iteration,
			"completed", h.Completed,
			"positions", h.Positions,
			"batches", stats.Batches,
			"avg_batch_size", avgBatch,
			"elapsed", h.Elapsed,
		)
		if stats.Batches > 0 && avgBatch < 0.25*float64(t.Cfg.InferenceBatchSize) {
			t.Log.Warn("inference batcher running under-utilised", "iteration", iteration, "avg_batch_size", avgBatch, "max_batch", t.Cfg.InferenceBatchSize)
		}
	}

	var spec *spectator.Server
	if t.Cfg.Spectate {
		spec = t.Spectator
	}
	examples := selfplay.RunSelfPlay(ctx, gameConfig(t.Cfg), t.Cfg.SelfplayWorkers, t.Cfg.GamesPerIter, int64(t.Cfg.Seed), iteration, predictor, heartbeat, 2*time.Second, spec)
	return examples, nil
}

func (t *Trainer) trainCandidate(iteration int) (model.LossStats, int, error) {
	if t.Buffer.Size() < t.Cfg.BatchSize {
		t.Log.Warn("skipping training: buffer below batch size", "iteration", iteration, "buffer_size", t.Buffer.Size(), "batch_size", t.Cfg.BatchSize)
		return model.LossStats{}, 0, nil
	}

	rng := rand.New(rand.NewSource(int64(t.Cfg.Seed) + int64(iteration)*7919))
	stepsPerEpoch := t.Buffer.Size() / t.Cfg.BatchSize
	if stepsPerEpoch < 1 {
		stepsPerEpoch = 1
	}

	var total model.LossStats
	var steps int
	for e := 0; e < t.Cfg.EpochsPerIter; e++ {
		var epochLoss model.LossStats
		for s := 0; s < stepsPerEpoch; s++ {
			sample := t.Buffer.Sample(t.Cfg.BatchSize, rng)
			loss, err := t.Candidate.TrainBatch(sample, t.Cfg.LR, t.Cfg.WeightDecay)
			if err != nil {
				return total, e, fmt.Errorf("train_batch: %w", err)
			}
			epochLoss.Total += loss.Total
			epochLoss.Policy += loss.Policy
			epochLoss.Value += loss.Value
			steps++
		}
		epochLoss.Total /= float64(stepsPerEpoch)
		epochLoss.Policy /= float64(stepsPerEpoch)
		epochLoss.Value /= float64(stepsPerEpoch)
		t.Log.Info("epoch complete", "iteration", iteration, "epoch", e+1, "loss", epochLoss.Total)
		total.Total += epochLoss.Total
		total.Policy += epochLoss.Policy
		total.Value += epochLoss.Value
	}
	if t.Cfg.EpochsPerIter > 0 {
		total.Total /= float64(t.Cfg.EpochsPerIter)
		total.Policy /= float64(t.Cfg.EpochsPerIter)
		total.Value /= float64(t.Cfg.EpochsPerIter)
	}
	return total, t.Cfg.EpochsPerIter, nil
}

type evalStats struct {
	avgLength float64
	winRate   float64
}

// evaluate plays EvalGames greedy (temperature 0, no root noise) games
// against m, using seeds shared between champion and candidate
// evaluation so head-to-head comparisons are apples-to-apples.
func (t *Trainer) evaluate(ctx context.Context, m model.Model, iteration int, label string) (evalStats, error) {
	batcher := batch.New(m, batch.Config{MaxBatch: t.Cfg.InferenceBatchSize, Wait: t.Cfg.InferenceWait})
	batcher.Start()
	defer batcher.Stop()
	predictor := batch.NewPredictor(batcher)

	gcfg := gameConfig(t.Cfg)
	var totalLength int
	var wins int
	for g := 0; g < t.Cfg.EvalGames; g++ {
		select {
		case <-ctx.Done():
			return evalStats{}, ctx.Err()
		default:
		}
		seed := int64(t.Cfg.Seed) + int64(iteration)*100000 + int64(g)
		outcome := selfplay.PlayGameGreedy(gcfg, predictor, seed)
		totalLength += outcome.Length
		if outcome.Won {
			wins++
		}
	}
	if t.Cfg.EvalGames == 0 {
		return evalStats{}, nil
	}
	stats := evalStats{
		avgLength: float64(totalLength) / float64(t.Cfg.EvalGames),
		winRate:   float64(wins) / float64(t.Cfg.EvalGames),
	}
	t.Log.Info("evaluation complete", "iteration", iteration, "model", label, "avg_length", stats.avgLength, "win_rate", stats.winRate)
	return stats, nil
}


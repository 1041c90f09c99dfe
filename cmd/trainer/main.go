// Command trainer runs the AlphaSnake self-play training loop:
// self-play, candidate training, head-to-head evaluation, promotion,
// and checkpointing, repeated for a configured number of iterations.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/alphasnake/internal/checkpoint"
	"github.com/brensch/alphasnake/internal/config"
	"github.com/brensch/alphasnake/internal/dashboard"
	"github.com/brensch/alphasnake/internal/env"
	"github.com/brensch/alphasnake/internal/logging"
	"github.com/brensch/alphasnake/internal/model"
	"github.com/brensch/alphasnake/internal/replay"
	"github.com/brensch/alphasnake/internal/spectator"
	"github.com/brensch/alphasnake/internal/trainer"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to the training config file (required)")
	profile := flag.String("profile", "two_phase", "profile overlay: warmup_fast, smoke, paper_strict, two_phase")
	resumeFlag := flag.String("resume", "auto", "resume from save_dir's checkpoint unless 0/false")
	saveDirFlag := flag.String("save_dir", "", "override cfg.save_dir")
	dashboardFlag := flag.Bool("dashboard", false, "enable the live terminal dashboard instead of slog summaries")
	spectatorAddr := flag.String("spectator_addr", "", "if set, serve a websocket spectator feed on this address")
	flag.Parse()

	logger := slog.New(logging.NewPrettyJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *configPath == "" {
		logger.Error("missing required --config flag")
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config failed", "err", err)
		return 1
	}
	if *saveDirFlag != "" {
		cfg.SaveDir = *saveDirFlag
	}
	resume := parseResume(*resumeFlag)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var spec *spectator.Server
	if cfg.Spectate && *spectatorAddr != "" {
		spec = spectator.New(logger)
		mux := http.NewServeMux()
		mux.Handle("/spectate", spec.Handler())
		srv := &http.Server{Addr: *spectatorAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("spectator server failed", "err", err)
			}
		}()
		go func() {
			<-ctx.Done()
			_ = srv.Close()
		}()
		logger.Info("spectator feed enabled", "addr", *spectatorAddr)
	} else if cfg.Spectate {
		logger.Warn("selfplay.spectate is set but --spectator_addr was not given; spectating disabled")
	}

	var events chan dashboard.Event
	var program *tea.Program
	if *dashboardFlag {
		events = make(chan dashboard.Event, 64)
		program = tea.NewProgram(dashboard.New(events))
		go func() {
			if _, err := program.Run(); err != nil {
				logger.Error("dashboard exited with error", "err", err)
			}
		}()
	}

	if *profile == "two_phase" {
		if err := runTwoPhase(ctx, cfg, resume, logger, events, spec); err != nil {
			logger.Error("training failed", "err", err)
			return 1
		}
		return 0
	}

	cfg = config.WithProfile(cfg, *profile)
	if err := runProfile(ctx, cfg, resume, logger, events, spec); err != nil {
		logger.Error("training failed", "err", err)
		return 1
	}
	return 0
}

func parseResume(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "false":
		return false
	default:
		return true
	}
}

// runTwoPhase runs warmup_fast for max(1, warmup_iterations) iterations
// honoring resume, then paper_strict for max(1, strict_iterations)
// iterations, which always resumes from warmup_fast's checkpoint
// regardless of the caller's original --resume value.
func runTwoPhase(ctx context.Context, base config.TrainConfig, resume bool, logger *slog.Logger, events chan dashboard.Event, spec *spectator.Server) error {
	warmup := config.WithProfile(base, "warmup_fast")
	warmup.Iterations = max(1, base.WarmupIterations)
	if err := runProfile(ctx, warmup, resume, logger, events, spec); err != nil {
		return fmt.Errorf("warmup_fast phase: %w", err)
	}
	if ctx.Err() != nil {
		return nil
	}

	strict := config.WithProfile(base, "paper_strict")
	strict.Iterations = max(1, base.StrictIterations)
	if err := runProfile(ctx, strict, true, logger, events, spec); err != nil {
		return fmt.Errorf("paper_strict phase: %w", err)
	}
	return nil
}

func runProfile(ctx context.Context, cfg config.TrainConfig, resume bool, logger *slog.Logger, events chan dashboard.Event, spec *spectator.Server) error {
	inputSize := env.TensorSize(int32(cfg.BoardSize))
	best := model.NewLinear(inputSize, uint64(cfg.Seed), cfg.LR, cfg.WeightDecay)
	candidate := model.NewLinear(inputSize, uint64(cfg.Seed)+1, cfg.LR, cfg.WeightDecay)

	startIter := 0
	if resume {
		st, err := checkpoint.Load(cfg.SaveDir, best, candidate)
		if err != nil {
			return fmt.Errorf("load checkpoint: %w", err)
		}
		startIter = st.Iteration
		logger.Info("resumed from checkpoint", "iteration", startIter, "profile", cfg.Profile)
	}

	buf := replay.New(cfg.BufferSize)
	tr := trainer.New(cfg, cfg.SaveDir, best, candidate, buf, logger, spec)

	for i := startIter + 1; i <= startIter+cfg.Iterations; i++ {
		select {
		case <-ctx.Done():
			logger.Info("shutdown requested, stopping after current iteration")
			return nil
		default:
		}

		summary, err := tr.RunIteration(ctx, i)
		if err != nil {
			return fmt.Errorf("iteration %d: %w", i, err)
		}

		if events != nil {
			events <- dashboard.Event{Summary: &summary}
		} else {
			logger.Info("iteration complete",
				"iteration", summary.Iteration,
				"games", summary.GamesPlayed,
				"positions", summary.PositionsGenerated,
				"promoted", summary.Promoted,
				"best_avg_length", summary.BestAvgLength,
				"candidate_avg_length", summary.CandidateAvgLength,
				"elapsed", summary.Elapsed,
			)
		}
	}
	return nil
}

package selfplay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brensch/alphasnake/internal/mcts"
	"github.com/brensch/alphasnake/internal/model"
	"github.com/brensch/alphasnake/internal/spectator"
)

// Heartbeat summarises self-play progress for observability.
type Heartbeat struct {
	Completed int
	Positions int
	Elapsed   time.Duration
}

// RunSelfPlay distributes `games` games across `workers` goroutines,
// each drawing game indices from a shared atomic counter so work is
// load-balanced regardless of individual game length. Each game's seed
// is derived deterministically from (seed, iteration, gameIndex),
// independent of which worker plays it, and the returned examples are
// ordered by game index, so a given (seed, iteration) replays
// bit-identically across runs of the same binary. Every
// worker shares the single predictor passed in (bound to one
// InferenceBatcher by the caller). When spec is non-nil, worker 0's
// games are published to it move-by-move so a single running game is
// always visible to spectators without flooding the feed with every
// worker's traffic.
func RunSelfPlay(ctx context.Context, cfg GameConfig, workers, games int, seed int64, iteration int, predictor mcts.Predictor, heartbeat func(Heartbeat), heartbeatEvery time.Duration, spec *spectator.Server) []model.Example {
	if workers < 1 {
		workers = 1
	}
	if workers > games {
		workers = games
	}

	var nextGame atomic.Int64
	var completed atomic.Int64
	var positions atomic.Int64

	// One slot per game index, so the result order does not depend on
	// which worker finished first.
	results := make([][]model.Example, max(games, 0))

	start := time.Now()
	done := make(chan struct{})

	if heartbeat != nil && heartbeatEvery > 0 {
		go func() {
			ticker := time.NewTicker(heartbeatEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					heartbeat(Heartbeat{
						Completed: int(completed.Load()),
						Positions: int(positions.Load()),
						Elapsed:   time.Since(start),
					})
				case <-done:
					return
				}
			}
		}()
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				g := nextGame.Add(1) - 1
				if g >= int64(games) {
					return
				}

				gameSeed := seed + int64(iteration)*100000 + g

				var workerSpec *spectator.Server
				if workerID == 0 {
					workerSpec = spec
				}
				gameID := fmt.Sprintf("iter%d-w%d-g%d", iteration, workerID, g)
				outcome := PlayGame(cfg, predictor, gameSeed, gameID, workerSpec)

				results[g] = outcome.Examples

				completed.Add(1)
				positions.Add(int64(len(outcome.Examples)))
			}
		}(w)
	}
	wg.Wait()
	close(done)

	var examples []model.Example
	for _, r := range results {
		examples = append(examples, r...)
	}
	return examples
}

// Package selfplay drives individual self-play games and a worker pool
// that generates them in parallel against a shared InferenceBatcher.
package selfplay

import (
	"math/rand"

	"github.com/brensch/alphasnake/internal/env"
	"github.com/brensch/alphasnake/internal/mcts"
	"github.com/brensch/alphasnake/internal/model"
	"github.com/brensch/alphasnake/internal/spectator"
)

// GameConfig holds the subset of TrainConfig a single game needs.
type GameConfig struct {
	BoardSize      int32
	MaxSteps       int
	NumSimulations int
	Cpuct          float32
	DirichletAlpha float32
	DirichletEps   float32
	FoodSamples    int
	TempDecayMove  int
	Gamma          float64
}

// GameOutcome is one completed self-play game: its training examples
// (with discounted-return targets already computed) plus summary stats
// used by evaluation and heartbeat logging.
type GameOutcome struct {
	Examples []model.Example
	Steps    int
	Length   int
	Won      bool
}

type recordedStep struct {
	state  []float32
	policy [env.NumActions]float32
	reward float32
}

// PlayGame runs one game to completion (or abort), recording an MCTS
// policy target at every move, and returns per-position training
// examples whose target outcome is the discounted return
// G_t = r_t + gamma*G_{t+1}, clamped to [-1,1]. When spec is non-nil,
// every move is published to it under gameID for live spectating.
func PlayGame(cfg GameConfig, predictor mcts.Predictor, seed int64, gameID string, spec *spectator.Server) GameOutcome {
	e := env.New(cfg.BoardSize, cfg.MaxSteps, seed)
	search := mcts.New(mcts.Config{
		NumSimulations: cfg.NumSimulations,
		Cpuct:          cfg.Cpuct,
		DirichletAlpha: cfg.DirichletAlpha,
		DirichletEps:   cfg.DirichletEps,
		FoodSamples:    cfg.FoodSamples,
	}, predictor, seed)
	rng := rand.New(rand.NewSource(seed ^ 0x5a5a5a5a))

	var steps []recordedStep
	move := 0
	for !e.IsDone() {
		temp := float32(1.0)
		if move >= cfg.TempDecayMove {
			temp = 0.0
		}

		result, err := search.Search(e, true, temp)
		if err != nil {
			break
		}

		state := e.StateTensor()
		var board []int
		if spec != nil {
			board = occupancyBoard(e)
		}
		action := sampleAction(result.Pi, rng)
		stepRes := e.Step(env.Action(action))
		steps = append(steps, recordedStep{state: state, policy: result.Pi, reward: stepRes.Reward})

		if spec != nil {
			spec.PublishMove(spectator.MoveEvent{
				GameID: gameID,
				Turn:   move,
				Board:  board,
				Action: actionName(env.Action(action)),
				Reward: stepRes.Reward,
			})
		}

		move++
		if move > cfg.MaxSteps+8 {
			break
		}
	}

	examples := make([]model.Example, len(steps))
	var g float32
	for i := len(steps) - 1; i >= 0; i-- {
		g = steps[i].reward + float32(cfg.Gamma)*g
		if g > 1 {
			g = 1
		} else if g < -1 {
			g = -1
		}
		examples[i] = model.Example{State: steps[i].state, Policy: steps[i].policy, Value: g}
	}

	return GameOutcome{
		Examples: examples,
		Steps:    e.Steps,
		Length:   e.SnakeLength(),
		Won:      e.IsWin(),
	}
}

// sampleAction draws an action index from the discrete distribution pi,
// falling back to uniform over all four actions if pi sums to zero.
func sampleAction(pi [env.NumActions]float32, rng *rand.Rand) int {
	var sum float32
	for _, p := range pi {
		if p > 0 {
			sum += p
		}
	}
	if sum <= 0 {
		return rng.Intn(env.NumActions)
	}
	r := rng.Float32() * sum
	var acc float32
	for a, p := range pi {
		if p <= 0 {
			continue
		}
		acc += p
		if r <= acc {
			return a
		}
	}
	return env.NumActions - 1
}

// PlayGameGreedy runs one evaluation game at temperature 0 with no root
// noise, returning only summary stats (used by head-to-head evaluation).
func PlayGameGreedy(cfg GameConfig, predictor mcts.Predictor, seed int64) GameOutcome {
	e := env.New(cfg.BoardSize, cfg.MaxSteps, seed)
	search := mcts.New(mcts.Config{
		NumSimulations: cfg.NumSimulations,
		Cpuct:          cfg.Cpuct,
		FoodSamples:    cfg.FoodSamples,
	}, predictor, seed)

	move := 0
	for !e.IsDone() {
		result, err := search.Search(e, false, 0.0)
		if err != nil {
			break
		}
		action := argmax(result.Pi)
		e.Step(env.Action(action))
		move++
		if move > cfg.MaxSteps+8 {
			break
		}
	}

	return GameOutcome{Steps: e.Steps, Length: e.SnakeLength(), Won: e.IsWin()}
}

func argmax(pi [env.NumActions]float32) int {
	best := 0
	for a := 1; a < env.NumActions; a++ {
		if pi[a] > pi[best] {
			best = a
		}
	}
	return best
}

// occupancyBoard flattens the board to a single plane for spectators:
// 0 empty, 1 body, 2 head, 3 food.
func occupancyBoard(e *env.Env) []int {
	n := int(e.N)
	board := make([]int, n*n)
	snake := e.Snake()
	for _, p := range snake {
		board[int(p.Y)*n+int(p.X)] = 1
	}
	if len(snake) > 0 {
		head := snake[0]
		board[int(head.Y)*n+int(head.X)] = 2
	}
	if food, ok := e.FoodPos(); ok {
		board[int(food.Y)*n+int(food.X)] = 3
	}
	return board
}

func actionName(a env.Action) string {
	switch a {
	case env.Up:
		return "up"
	case env.Down:
		return "down"
	case env.Left:
		return "left"
	case env.Right:
		return "right"
	default:
		return "unknown"
	}
}

// Package mcts implements PUCT tree search over a single rooted Snake
// environment, with Dirichlet root noise and food-stochasticity value
// averaging.
package mcts

import (
	"math"
	"math/rand"

	"github.com/brensch/alphasnake/internal/env"
	"github.com/brensch/alphasnake/internal/model"
)

// Predictor is the two-callable abstraction MCTS depends on, so tests
// and non-batched callers can supply a direct model call while self-play
// supplies one backed by an InferenceBatcher.
type Predictor interface {
	Predict(state []float32) (model.Prediction, error)
	PredictMany(states [][]float32) ([]model.Prediction, error)
}

// Config holds the search hyperparameters drawn from TrainConfig.
type Config struct {
	NumSimulations int
	Cpuct          float32
	DirichletAlpha float32
	DirichletEps   float32
	FoodSamples    int
}

// Node owns a cloned environment and its search statistics. Each node
// exclusively owns its child subtrees.
type Node struct {
	Env       *env.Env
	Prior     [env.NumActions]float32
	LegalMask [env.NumActions]bool
	Expanded  bool

	Terminal  bool
	Won       bool
	FoodEaten bool

	VisitCount int
	ValueSum   float32

	Children [env.NumActions]*Node
}

// Q returns the mean backed-up value, or 0 for an unvisited node.
func (n *Node) Q() float32 {
	if n.VisitCount == 0 {
		return 0
	}
	return n.ValueSum / float32(n.VisitCount)
}

// MCTS runs PUCT search bound to a Predictor and an RNG for Dirichlet
// noise and food-sample shuffling.
type MCTS struct {
	Config Config
	Predictor Predictor
	rng       *rand.Rand
}

// New constructs an MCTS instance with its own RNG stream.
func New(cfg Config, predictor Predictor, seed int64) *MCTS {
	return &MCTS{Config: cfg, Predictor: predictor, rng: rand.New(rand.NewSource(seed))}
}

func normalizeMasked(policy [env.NumActions]float32, mask [env.NumActions]bool) [env.NumActions]float32 {
	var out [env.NumActions]float32
	var sum float32
	for a := 0; a < env.NumActions; a++ {
		if !mask[a] {
			continue
		}
		v := policy[a]
		if v < 0 {
			v = 0
		}
		out[a] = v
		sum += v
	}
	if sum <= 0 {
		n := 0
		for a := 0; a < env.NumActions; a++ {
			if mask[a] {
				n++
			}
		}
		if n <= 0 {
			return [env.NumActions]float32{0.25, 0.25, 0.25, 0.25}
		}
		u := 1 / float32(n)
		var uniform [env.NumActions]float32
		for a := 0; a < env.NumActions; a++ {
			if mask[a] {
				uniform[a] = u
			}
		}
		return uniform
	}
	for a := range out {
		out[a] /= sum
	}
	return out
}

// expand evaluates a leaf node: sets its legal mask and priors, and
// returns its value (averaged over alternate food placements when the
// node was reached by eating food and food_samples > 1).
func (m *MCTS) expand(node *Node) (float32, error) {
	node.LegalMask = node.Env.LegalMask()

	pred, err := m.Predictor.Predict(node.Env.StateTensor())
	if err != nil {
		return 0, err
	}
	node.Prior = normalizeMasked(pred.Policy, node.LegalMask)
	node.Expanded = true

	value := pred.Value
	if node.FoodEaten && m.Config.FoodSamples > 1 {
		free := node.Env.FreeCells()
		if len(free) > 0 {
			k := m.Config.FoodSamples - 1
			if k > len(free) {
				k = len(free)
			}
			m.rng.Shuffle(len(free), func(i, j int) { free[i], free[j] = free[j], free[i] })

			states := make([][]float32, k)
			for i := 0; i < k; i++ {
				alt := node.Env.Clone()
				alt.SetFood(free[i])
				states[i] = alt.StateTensor()
			}
			preds, err := m.Predictor.PredictMany(states)
			if err != nil {
				return 0, err
			}
			sum := value
			used := float32(1)
			for _, p := range preds {
				sum += p.Value
				used++
			}
			value = sum / used
		}
	}
	return value, nil
}

func (m *MCTS) selectAction(node *Node) int {
	best := 0
	bestScore := float32(math.Inf(-1))
	nParent := float32(math.Sqrt(math.Max(1, float64(node.VisitCount))))

	for a := 0; a < env.NumActions; a++ {
		if !node.LegalMask[a] {
			continue
		}
		child := node.Children[a]
		var q float32
		var nSA int
		if child != nil {
			q = child.Q()
			nSA = child.VisitCount
		}
		u := m.Config.Cpuct * node.Prior[a] * nParent / (1 + float32(nSA))
		score := q + u
		if score > bestScore {
			bestScore = score
			best = a
		}
	}
	return best
}

func (m *MCTS) addDirichletNoise(node *Node) {
	var valid []int
	for a := 0; a < env.NumActions; a++ {
		if node.LegalMask[a] {
			valid = append(valid, a)
		}
	}
	if len(valid) == 0 {
		return
	}

	noise := make([]float32, len(valid))
	var sum float32
	for i := range valid {
		noise[i] = sampleGamma(m.rng, float64(m.Config.DirichletAlpha))
		sum += noise[i]
	}
	if sum <= 0 {
		return
	}
	eps := m.Config.DirichletEps
	for i, a := range valid {
		dn := noise[i] / sum
		node.Prior[a] = (1-eps)*node.Prior[a] + eps*dn
	}
}

// sampleGamma draws from Gamma(alpha, 1) via the Marsaglia-Tsang method,
// matching the shape used by std::gamma_distribution in the reference
// implementation closely enough for exploration noise purposes.
func sampleGamma(r *rand.Rand, alpha float64) float32 {
	if alpha < 1 {
		u := r.Float64()
		return sampleGamma(r, alpha+1) * float32(math.Pow(u, 1/alpha))
	}
	d := alpha - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		x := r.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := r.Float64()
		if u < 1-0.0331*(x*x)*(x*x) {
			return float32(d * v)
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return float32(d * v)
		}
	}
}

// Result is the output of a completed search.
type Result struct {
	Pi   [env.NumActions]float32
	Root *Node
}

// Search runs Config.NumSimulations simulations from rootEnv and
// returns the resulting visit-count policy π. rootEnv is cloned, so the
// caller's board is left untouched; its food RNG stream is shared with
// the clones (see env.Env.Clone) and advances when a simulated move
// eats food.
func (m *MCTS) Search(rootEnv *env.Env, addRootNoise bool, temperature float32) (Result, error) {
	root := &Node{Env: rootEnv.Clone()}
	rootValue, err := m.expand(root)
	if err != nil {
		return Result{}, err
	}
	root.VisitCount = 1
	root.ValueSum = rootValue

	if addRootNoise {
		m.addDirichletNoise(root)
	}

	path := make([]*Node, 0, 64)
	for sim := 0; sim < m.Config.NumSimulations; sim++ {
		node := root
		path = path[:0]
		path = append(path, node)

		for node.Expanded && !node.Terminal {
			action := m.selectAction(node)
			child := node.Children[action]
			if child == nil {
				next := node.Env.Clone()
				step := next.Step(env.Action(action))
				child = &Node{Env: next, FoodEaten: step.FoodEaten, Terminal: step.Done, Won: step.Won}
				node.Children[action] = child
			}
			node = child
			path = append(path, node)
			if node.Terminal {
				break
			}
		}

		var value float32
		if node.Terminal {
			if node.Won {
				value = 1
			} else {
				value = -1
			}
		} else {
			value, err = m.expand(node)
			if err != nil {
				return Result{}, err
			}
		}

		for _, n := range path {
			n.VisitCount++
			n.ValueSum += value
		}
	}

	var visits [env.NumActions]float32
	for a := 0; a < env.NumActions; a++ {
		if child := root.Children[a]; child != nil {
			visits[a] = float32(child.VisitCount)
		}
	}

	pi := policyFromVisits(visits, temperature)
	return Result{Pi: pi, Root: root}, nil
}

func policyFromVisits(visits [env.NumActions]float32, temperature float32) [env.NumActions]float32 {
	var pi [env.NumActions]float32
	if temperature <= 1e-6 {
		best := 0
		mx := visits[0]
		for a := 1; a < env.NumActions; a++ {
			if visits[a] > mx {
				mx = visits[a]
				best = a
			}
		}
		pi[best] = 1
		return pi
	}

	var sum float32
	for a := 0; a < env.NumActions; a++ {
		v := visits[a]
		if v < 1e-6 {
			v = 1e-6
		}
		pi[a] = float32(math.Pow(float64(v), 1/float64(temperature)))
		sum += pi[a]
	}
	if sum <= 0 {
		return [env.NumActions]float32{0.25, 0.25, 0.25, 0.25}
	}
	for a := range pi {
		pi[a] /= sum
	}
	return pi
}

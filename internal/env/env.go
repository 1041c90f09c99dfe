// Package env implements the deterministic single-agent Snake transition
// used by self-play and MCTS: state tensor encoding, legal-action masking,
// and cloning for tree exploration.
package env

import "math/rand"

// Action identifies one of the four cardinal moves.
type Action int

const (
	Up Action = iota
	Down
	Left
	Right
)

// NumActions is the fixed branching factor of the environment.
const NumActions = 4

var deltas = [NumActions]Point{
	Up:    {X: 0, Y: 1},
	Down:  {X: 0, Y: -1},
	Left:  {X: -1, Y: 0},
	Right: {X: 1, Y: 0},
}

var directionScalar = [NumActions]float32{
	Up:    0.25,
	Down:  0.5,
	Left:  0.75,
	Right: 1.0,
}

var opposite = [NumActions]Action{
	Up:    Down,
	Down:  Up,
	Left:  Right,
	Right: Left,
}

// Point is a board coordinate.
type Point struct {
	X, Y int32
}

// StepResult reports the outcome of a single step.
type StepResult struct {
	Reward    float32
	Done      bool
	Won       bool
	FoodEaten bool
}

// Env is a single-agent Snake board. It is deliberately small and
// cheaply clonable: MCTS clones an Env once per new tree node.
type Env struct {
	N      int32 // board size
	SMax   int   // step limit
	Body   []Point
	Dir    Action
	Food   Point
	hasFood bool
	Steps         int
	StepsNoFood   int
	Done          bool
	Won           bool
	rng *rand.Rand
}

// New constructs a fresh Env: snake of length 3 centered horizontally,
// facing Right, with food spawned uniformly over the free cells.
func New(n int32, sMax int, seed int64) *Env {
	e := &Env{
		N:    n,
		SMax: sMax,
		Dir:  Right,
		rng:  rand.New(rand.NewSource(seed)),
	}
	cx, cy := n/2, n/2
	e.Body = []Point{
		{X: cx, Y: cy},
		{X: cx - 1, Y: cy},
		{X: cx - 2, Y: cy},
	}
	e.spawnFood()
	return e
}

// Reset re-initialises the environment in place. If seed is non-nil the
// RNG stream is replaced; otherwise the existing stream continues.
func (e *Env) Reset(seed *int64) {
	if seed != nil {
		e.rng = rand.New(rand.NewSource(*seed))
	}
	cx, cy := e.N/2, e.N/2
	e.Body = []Point{
		{X: cx, Y: cy},
		{X: cx - 1, Y: cy},
		{X: cx - 2, Y: cy},
	}
	e.Dir = Right
	e.hasFood = false
	e.Steps = 0
	e.StepsNoFood = 0
	e.Done = false
	e.Won = false
	e.spawnFood()
}

// Clone returns a copy with its own body, heading, food and counters.
// The food RNG is copied by value, which keeps the same underlying
// source: food spawned in the clone or the original advances the one
// stream both draw from.
func (e *Env) Clone() *Env {
	body := make([]Point, len(e.Body))
	copy(body, e.Body)
	rngCopy := *e.rng
	return &Env{
		N:           e.N,
		SMax:        e.SMax,
		Body:        body,
		Dir:         e.Dir,
		Food:        e.Food,
		hasFood:     e.hasFood,
		Steps:       e.Steps,
		StepsNoFood: e.StepsNoFood,
		Done:        e.Done,
		Won:         e.Won,
		rng:         &rngCopy,
	}
}

func (e *Env) head() Point { return e.Body[0] }

func (e *Env) inBounds(p Point) bool {
	return p.X >= 0 && p.X < e.N && p.Y >= 0 && p.Y < e.N
}

func (e *Env) occupied(p Point) bool {
	for _, b := range e.Body {
		if b == p {
			return true
		}
	}
	return false
}

// IsLegal reports whether a is within range and not the exact reverse
// of the current heading.
func (e *Env) IsLegal(a Action) bool {
	if a < 0 || a >= NumActions {
		return false
	}
	return a != opposite[e.Dir]
}

// LegalMask returns a 4-element mask, true for legal actions.
func (e *Env) LegalMask() [NumActions]bool {
	var m [NumActions]bool
	for a := Action(0); a < NumActions; a++ {
		m[a] = e.IsLegal(a)
	}
	return m
}

// Step advances the environment by one action, substituting the
// current heading for any illegal input.
func (e *Env) Step(a Action) StepResult {
	if e.Done {
		return StepResult{Done: true, Won: e.Won}
	}
	if !e.IsLegal(a) {
		a = e.Dir
	}
	e.Dir = a

	head := e.head()
	newHead := Point{X: head.X + deltas[a].X, Y: head.Y + deltas[a].Y}

	if !e.inBounds(newHead) {
		e.Done = true
		e.Won = false
		return StepResult{Reward: -1, Done: true}
	}

	grow := e.hasFood && newHead == e.Food
	tail := e.Body[len(e.Body)-1]
	collides := false
	for i, b := range e.Body {
		if !grow && i == len(e.Body)-1 {
			continue // tail vacates unless growing
		}
		if b == newHead {
			collides = true
			break
		}
	}
	_ = tail

	if collides {
		e.Done = true
		e.Won = false
		return StepResult{Reward: -1, Done: true}
	}

	e.Body = append([]Point{newHead}, e.Body...)

	var res StepResult
	if grow {
		e.hasFood = false
		res.Reward = 1
		res.FoodEaten = true
		e.StepsNoFood = 0
		if int32(len(e.Body)) == e.N*e.N {
			e.Won = true
			e.Done = true
			res.Won = true
		} else {
			e.spawnFood()
		}
	} else {
		e.Body = e.Body[:len(e.Body)-1]
		e.StepsNoFood++
	}

	e.Steps++
	if !e.Done {
		area := int(e.N) * int(e.N)
		if e.StepsNoFood >= area || e.Steps >= e.SMax {
			e.Done = true
			e.Won = false
		}
	}

	res.Done = e.Done
	res.Won = e.Won
	return res
}

// FreeCells returns every board cell not occupied by the snake body.
func (e *Env) FreeCells() []Point {
	out := make([]Point, 0, int(e.N*e.N)-len(e.Body))
	for y := int32(0); y < e.N; y++ {
		for x := int32(0); x < e.N; x++ {
			p := Point{X: x, Y: y}
			if !e.occupied(p) {
				out = append(out, p)
			}
		}
	}
	return out
}

// SetFood overrides the current food position; a no-op if the point is
// occupied or out of bounds.
func (e *Env) SetFood(p Point) {
	if !e.inBounds(p) || e.occupied(p) {
		return
	}
	e.Food = p
	e.hasFood = true
}

func (e *Env) spawnFood() {
	free := e.FreeCells()
	if len(free) == 0 {
		e.Done = true
		e.Won = true
		e.hasFood = false
		return
	}
	idx := e.rng.Intn(len(free))
	e.Food = free[idx]
	e.hasFood = true
}

func (e *Env) SnakeLength() int { return len(e.Body) }
func (e *Env) IsDone() bool     { return e.Done }
func (e *Env) IsWin() bool      { return e.Won }
func (e *Env) Direction() Action { return e.Dir }
func (e *Env) Snake() []Point {
	out := make([]Point, len(e.Body))
	copy(out, e.Body)
	return out
}
func (e *Env) HasFood() bool { return e.hasFood }
func (e *Env) FoodPos() (Point, bool) { return e.Food, e.hasFood }

// TensorSize is the length of StateTensor()'s output for board size n.
func TensorSize(n int32) int { return 4 * int(n) * int(n) }

// StateTensor encodes the board as four row-major N*N planes: body
// occupancy, head one-hot, food one-hot, constant direction scalar.
func (e *Env) StateTensor() []float32 {
	n := int(e.N)
	out := make([]float32, TensorSize(e.N))
	plane := n * n
	for _, b := range e.Body {
		out[int(b.Y)*n+int(b.X)] = 1
	}
	head := e.head()
	out[plane+int(head.Y)*n+int(head.X)] = 1
	if e.hasFood {
		out[2*plane+int(e.Food.Y)*n+int(e.Food.X)] = 1
	}
	dv := directionScalar[e.Dir]
	for i := 0; i < plane; i++ {
		out[3*plane+i] = dv
	}
	return out
}

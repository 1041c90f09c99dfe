// Package model defines the opaque policy/value network contract used by
// MCTS, self-play, and training, plus two implementations: a small
// trainable reference network (Linear) and an inference-only ONNX
// Runtime accelerator (ONNX).
package model

import (
	"errors"
	"fmt"
)

// ErrReadOnly is returned by mutating operations on inference-only models.
var ErrReadOnly = errors.New("model: read-only implementation")

// ErrShapeMismatch is returned when a state (for prediction or in a
// training example) does not have the model's input length.
var ErrShapeMismatch = errors.New("model: state length mismatch")

// NumActions mirrors env.NumActions without importing the env package,
// keeping the Model contract decoupled from the environment.
const NumActions = 4

// Prediction is a policy/value pair returned by the network.
type Prediction struct {
	Policy [NumActions]float32
	Value  float32
}

// DefaultPrediction is the uniform fallback used whenever the real
// network cannot be consulted.
var DefaultPrediction = Prediction{
	Policy: [NumActions]float32{0.25, 0.25, 0.25, 0.25},
}

// Example is one (state, target policy, target outcome) training tuple.
type Example struct {
	State  []float32
	Policy [NumActions]float32
	Value  float32
}

// LossStats reports the mean losses over a trained batch.
type LossStats struct {
	Total  float64
	Policy float64
	Value  float64
}

// Model is the external, opaque policy/value network contract. The core
// never inspects weights directly; equivalence is purely behavioural.
type Model interface {
	// Predict runs single-state inference. Must be safe for concurrent use.
	Predict(state []float32) (Prediction, error)
	// PredictBatch runs batched inference, returned in input order.
	PredictBatch(states [][]float32) ([]Prediction, error)
	// TrainBatch performs one gradient step over a batch of examples.
	TrainBatch(batch []Example, lr, weightDecay float64) (LossStats, error)
	// CopyFrom overwrites this model's parameters with other's.
	CopyFrom(other Model) error
	// ResetOptimizer discards any accumulated optimiser state.
	ResetOptimizer(lr, weightDecay float64)
	// Save persists parameters to path.
	Save(path string) error
	// Load restores parameters from path.
	Load(path string) error
}

func validateStateLen(state []float32, want int) error {
	if len(state) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrShapeMismatch, len(state), want)
	}
	return nil
}

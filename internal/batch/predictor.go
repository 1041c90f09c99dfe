package batch

import "github.com/brensch/alphasnake/internal/model"

// Predictor adapts a *Batcher to the (state) (model.Prediction, error)
// shape MCTS search expects, so a pool of self-play workers can share one
// Batcher as their inference path without search caring that batched
// requests cannot themselves fail (a down batch call already resolves to
// model.DefaultPrediction inside the Batcher).
type Predictor struct {
	Batcher *Batcher
}

// NewPredictor wraps b for use as an mcts.Predictor.
func NewPredictor(b *Batcher) Predictor {
	return Predictor{Batcher: b}
}

func (p Predictor) Predict(state []float32) (model.Prediction, error) {
	return p.Batcher.Predict(state), nil
}

func (p Predictor) PredictMany(states [][]float32) ([]model.Prediction, error) {
	return p.Batcher.PredictMany(states), nil
}

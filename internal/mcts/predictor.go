package mcts

import "github.com/brensch/alphasnake/internal/model"

// DirectPredictor adapts a bare model.Model to the Predictor interface
// for callers (tests, evaluation without a batcher) that don't need
// cross-worker batching.
type DirectPredictor struct {
	Model model.Model
}

func (d DirectPredictor) Predict(state []float32) (model.Prediction, error) {
	return d.Model.Predict(state)
}

func (d DirectPredictor) PredictMany(states [][]float32) ([]model.Prediction, error) {
	return d.Model.PredictBatch(states)
}

package batch

import (
	"sync"
	"testing"
	"time"

	"github.com/brensch/alphasnake/internal/model"
)

type fixedModel struct {
	calls int
	sizes []int
	mu    sync.Mutex
}

func (f *fixedModel) Predict(state []float32) (model.Prediction, error) {
	preds, err := f.PredictBatch([][]float32{state})
	return preds[0], err
}

func (f *fixedModel) PredictBatch(states [][]float32) ([]model.Prediction, error) {
	f.mu.Lock()
	f.calls++
	f.sizes = append(f.sizes, len(states))
	f.mu.Unlock()

	out := make([]model.Prediction, len(states))
	for i := range out {
		out[i] = model.Prediction{Policy: [4]float32{0.1, 0.2, 0.3, 0.4}, Value: 0.7}
	}
	return out, nil
}

func (f *fixedModel) TrainBatch(batch []model.Example, lr, wd float64) (model.LossStats, error) {
	return model.LossStats{}, nil
}
func (f *fixedModel) CopyFrom(other model.Model) error       { return nil }
func (f *fixedModel) ResetOptimizer(lr, weightDecay float64) {}
func (f *fixedModel) Save(path string) error                 { return nil }
func (f *fixedModel) Load(path string) error                 { return nil }

func TestBatcherCoalescesConcurrentRequests(t *testing.T) {
	m := &fixedModel{}
	b := New(m, Config{MaxBatch: 16, Wait: time.Millisecond})
	b.Start()
	defer b.Stop()

	var wg sync.WaitGroup
	results := make([]model.Prediction, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = b.Predict([]float32{float32(i)})
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		if r.Value != 0.7 {
			t.Errorf("result %d: expected value 0.7, got %v", i, r.Value)
		}
	}

	stats := b.Stats()
	if stats.Batches != 1 {
		t.Errorf("expected all 16 concurrent requests to coalesce into exactly one batch, got %d", stats.Batches)
	}
	if stats.Requests != 16 {
		t.Errorf("expected 16 requests recorded, got %d", stats.Requests)
	}
}

func TestBatcherShapeMismatchFillsDefault(t *testing.T) {
	m := &shortModel{}
	b := New(m, Config{MaxBatch: 4, Wait: time.Millisecond})
	b.Start()
	defer b.Stop()

	got := b.PredictMany([][]float32{{1}, {2}, {3}})
	for i, p := range got {
		if p != model.DefaultPrediction {
			t.Errorf("request %d: expected default-uniform prediction on shape mismatch, got %+v", i, p)
		}
	}
}

type shortModel struct{}

func (shortModel) Predict(state []float32) (model.Prediction, error) {
	return model.DefaultPrediction, nil
}
func (shortModel) PredictBatch(states [][]float32) ([]model.Prediction, error) {
	// Deliberately return fewer results than requested.
	if len(states) == 0 {
		return nil, nil
	}
	return make([]model.Prediction, len(states)-1), nil
}
func (shortModel) TrainBatch(batch []model.Example, lr, wd float64) (model.LossStats, error) {
	return model.LossStats{}, nil
}
func (shortModel) CopyFrom(other model.Model) error       { return nil }
func (shortModel) ResetOptimizer(lr, weightDecay float64) {}
func (shortModel) Save(path string) error                 { return nil }
func (shortModel) Load(path string) error                 { return nil }

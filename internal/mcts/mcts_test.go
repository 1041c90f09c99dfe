package mcts

import (
	"testing"

	"github.com/brensch/alphasnake/internal/env"
	"github.com/brensch/alphasnake/internal/model"
)

// mockPredictor mocks the Predictor interface with a uniform policy and
// a fixed value, so tests can assert on tree shape without a real network.
type mockPredictor struct{}

func (mockPredictor) Predict(state []float32) (model.Prediction, error) {
	return model.Prediction{Policy: [4]float32{0.25, 0.25, 0.25, 0.25}, Value: 0.5}, nil
}

func (mockPredictor) PredictMany(states [][]float32) ([]model.Prediction, error) {
	out := make([]model.Prediction, len(states))
	for i := range out {
		out[i], _ = mockPredictor{}.Predict(states[i])
	}
	return out, nil
}

func TestSearchVisitCounts(t *testing.T) {
	m := New(Config{Cpuct: 1.0, NumSimulations: 10}, mockPredictor{}, 1)
	e := env.New(11, 1000, 42)

	result, err := m.Search(e, false, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if result.Root.VisitCount != 11 { // 1 bootstrap visit + 10 simulations
		t.Errorf("expected root VisitCount 11, got %d", result.Root.VisitCount)
	}

	totalChildVisits := 0
	childrenFound := 0
	for _, child := range result.Root.Children {
		if child != nil {
			childrenFound++
			totalChildVisits += child.VisitCount
		}
	}
	if childrenFound == 0 {
		t.Fatal("expected at least one expanded child")
	}
	if totalChildVisits != 10 {
		t.Errorf("expected sum of child visits 10, got %d", totalChildVisits)
	}
}

func TestSearchTemperatureZeroIsOneHot(t *testing.T) {
	m := New(Config{Cpuct: 1.0, NumSimulations: 32}, mockPredictor{}, 1)
	e := env.New(10, 1000, 123)

	result, err := m.Search(e, false, 0.0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	var sum float32
	onehot := -1
	for a, p := range result.Pi {
		sum += p
		if p == 1 {
			onehot = a
		} else if p != 0 {
			t.Errorf("expected one-hot distribution at temperature 0, got %v at action %d", p, a)
		}
	}
	if onehot == -1 {
		t.Fatal("expected exactly one action with probability 1")
	}
	if !e.LegalMask()[onehot] {
		t.Errorf("argmax action %d is not legal", onehot)
	}
	if sum != 1 {
		t.Errorf("expected pi to sum to 1, got %v", sum)
	}
}

func TestNormalizeMaskedUniformFallback(t *testing.T) {
	mask := [4]bool{true, true, false, false}
	out := normalizeMasked([4]float32{0, 0, 0, 0}, mask)
	if out[0] != 0.5 || out[1] != 0.5 || out[2] != 0 || out[3] != 0 {
		t.Errorf("expected uniform over legal actions, got %+v", out)
	}
}

func BenchmarkSearch(b *testing.B) {
	m := New(Config{Cpuct: 1.0, NumSimulations: 400}, mockPredictor{}, 1)
	e := env.New(10, 1000, 1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Search(e, true, 1.0); err != nil {
			b.Fatalf("Search failed: %v", err)
		}
	}
}

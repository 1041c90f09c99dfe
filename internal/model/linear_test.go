package model

import (
	"math/rand"
	"os"
	"testing"
)

func randomState(r *rand.Rand, n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = r.Float32()
	}
	return s
}

func TestLinearPredictShape(t *testing.T) {
	m := NewLinear(40, 1, 0.01, 1e-4)
	pred, err := m.Predict(randomState(rand.New(rand.NewSource(1)), 40))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	var sum float32
	for _, p := range pred.Policy {
		if p < 0 {
			t.Errorf("expected nonnegative policy component, got %v", p)
		}
		sum += p
	}
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("expected policy to sum to 1, got %v", sum)
	}
	if pred.Value < -1 || pred.Value > 1 {
		t.Errorf("expected value in [-1,1], got %v", pred.Value)
	}
}

func TestLinearTrainReducesLoss(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	m := NewLinear(16, 1, 0.1, 0.0)
	batch := []Example{
		{State: randomState(r, 16), Policy: [NumActions]float32{1, 0, 0, 0}, Value: 1},
		{State: randomState(r, 16), Policy: [NumActions]float32{0, 0, 0, 1}, Value: -1},
	}

	first, err := m.TrainBatch(batch, 0.1, 0.0)
	if err != nil {
		t.Fatalf("TrainBatch failed: %v", err)
	}
	var last LossStats
	for i := 0; i < 50; i++ {
		last, err = m.TrainBatch(batch, 0.1, 0.0)
		if err != nil {
			t.Fatalf("TrainBatch failed: %v", err)
		}
	}
	if last.Total >= first.Total {
		t.Errorf("expected loss to decrease after training, first=%v last=%v", first.Total, last.Total)
	}
}

func TestLinearSaveLoadRoundTrip(t *testing.T) {
	m := NewLinear(24, 7, 0.05, 1e-4)
	state := randomState(rand.New(rand.NewSource(2)), 24)
	want, err := m.Predict(state)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	path := t.TempDir() + "/model.bin"
	if err := m.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := NewLinear(24, 99, 0.05, 1e-4)
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	got, err := loaded.Predict(state)
	if err != nil {
		t.Fatalf("Predict after load failed: %v", err)
	}
	if got != want {
		t.Errorf("round-tripped prediction mismatch: want %+v, got %+v", want, got)
	}
	_ = os.Remove(path)
}

func TestLinearCopyFrom(t *testing.T) {
	src := NewLinear(10, 1, 0.1, 0.0)
	dst := NewLinear(10, 2, 0.1, 0.0)
	state := randomState(rand.New(rand.NewSource(3)), 10)

	before, _ := dst.Predict(state)
	srcPred, _ := src.Predict(state)
	if before == srcPred {
		t.Fatal("test setup invalid: src and dst already agree before CopyFrom")
	}

	if err := dst.CopyFrom(src); err != nil {
		t.Fatalf("CopyFrom failed: %v", err)
	}
	after, _ := dst.Predict(state)
	if after != srcPred {
		t.Errorf("expected dst to match src after CopyFrom: want %+v got %+v", srcPred, after)
	}
}

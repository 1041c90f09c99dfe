package replay

import (
	"math/rand"
	"testing"

	"github.com/brensch/alphasnake/internal/model"
)

func exampleWithValue(v float32) model.Example {
	return model.Example{State: []float32{v}, Value: v}
}

func TestRingOverwrite(t *testing.T) {
	b := New(100)
	examples := make([]model.Example, 150)
	for i := range examples {
		examples[i] = exampleWithValue(float32(i))
	}
	b.AddMany(examples)

	if b.Size() != 100 {
		t.Fatalf("expected size 100, got %d", b.Size())
	}

	rng := rand.New(rand.NewSource(1))
	sampled := b.Sample(1000, rng)
	seen := make(map[float32]bool)
	for _, ex := range sampled {
		seen[ex.Value] = true
	}
	for v := range seen {
		if v < 50 {
			t.Errorf("found example %v, expected only examples 50..149 to survive", v)
		}
	}
}

func TestSampleCapsAtSize(t *testing.T) {
	b := New(10)
	b.AddMany([]model.Example{exampleWithValue(1), exampleWithValue(2)})
	rng := rand.New(rand.NewSource(1))
	sampled := b.Sample(1000, rng)
	if len(sampled) != 2 {
		t.Errorf("expected sample capped at buffer size 2, got %d", len(sampled))
	}
}

func TestSampleEmptyBuffer(t *testing.T) {
	b := New(10)
	rng := rand.New(rand.NewSource(1))
	if sampled := b.Sample(5, rng); sampled != nil {
		t.Errorf("expected nil sample from empty buffer, got %v", sampled)
	}
}

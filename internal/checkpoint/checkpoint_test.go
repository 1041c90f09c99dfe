package checkpoint

import (
	"testing"

	"github.com/brensch/alphasnake/internal/model"
)

func TestFreshStartWhenNothingOnDisk(t *testing.T) {
	dir := t.TempDir()
	best := model.NewLinear(16, 1, 0.1, 0.0)
	candidate := model.NewLinear(16, 2, 0.1, 0.0)

	st, err := Load(dir, best, candidate)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if st.Iteration != 0 {
		t.Errorf("expected fresh start iteration 0, got %d", st.Iteration)
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	best := model.NewLinear(16, 1, 0.1, 0.0)
	candidate := model.NewLinear(16, 2, 0.1, 0.0)

	want := State{Iteration: 7, BestWinRate: 0.61, Profile: "paper_strict"}
	if err := Save(dir, best, candidate, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loadedBest := model.NewLinear(16, 3, 0.1, 0.0)
	loadedCandidate := model.NewLinear(16, 4, 0.1, 0.0)
	got, err := Load(dir, loadedBest, loadedCandidate)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Iteration != want.Iteration || got.BestWinRate != want.BestWinRate || got.Profile != want.Profile {
		t.Errorf("state mismatch: want %+v, got %+v", want, got)
	}

	state := make([]float32, 16)
	wantPred, _ := best.Predict(state)
	gotPred, _ := loadedBest.Predict(state)
	if wantPred != gotPred {
		t.Errorf("expected loaded best model to match saved one: want %+v, got %+v", wantPred, gotPred)
	}
}

func TestLoadSeedsCandidateFromBestWhenCandidateMissing(t *testing.T) {
	dir := t.TempDir()
	best := model.NewLinear(16, 1, 0.1, 0.0)

	// Save only the best model file, not the candidate, by writing it directly.
	if err := best.Save(dir + "/best_model.bin"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loadedBest := model.NewLinear(16, 3, 0.1, 0.0)
	loadedCandidate := model.NewLinear(16, 4, 0.1, 0.0)
	if _, err := Load(dir, loadedBest, loadedCandidate); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	state := make([]float32, 16)
	bestPred, _ := loadedBest.Predict(state)
	candPred, _ := loadedCandidate.Predict(state)
	if bestPred != candPred {
		t.Errorf("expected candidate seeded from best, got best=%+v candidate=%+v", bestPred, candPred)
	}
}

// Package checkpoint persists and restores champion/candidate model
// parameters and small iteration metadata across trainer runs.
package checkpoint

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/brensch/alphasnake/internal/model"
)

const (
	bestModelFile      = "best_model.bin"
	candidateModelFile = "candidate_model.bin"
	stateFile          = "trainer_state.txt"
)

// State is the small metadata record stored alongside the model files.
type State struct {
	Iteration    int
	BestWinRate  float64
	Profile      string
	UpdatedAt    time.Time
}

// Load restores best/candidate model parameters and iteration metadata
// from dir. If neither best_model.bin nor trainer_state.txt exist, it
// returns a zero-valued State with Iteration 0 (fresh start) and leaves
// best/candidate untouched. If candidate_model.bin is absent but best
// exists, candidate is initialised by copying best's parameters.
func Load(dir string, best, candidate model.Model) (State, error) {
	bestPath := filepath.Join(dir, bestModelFile)
	statePath := filepath.Join(dir, stateFile)

	_, bestErr := os.Stat(bestPath)
	_, stateErr := os.Stat(statePath)
	if os.IsNotExist(bestErr) && os.IsNotExist(stateErr) {
		return State{}, nil
	}

	if bestErr == nil {
		if err := best.Load(bestPath); err != nil {
			return State{}, fmt.Errorf("checkpoint: load best model: %w", err)
		}
	}

	candidatePath := filepath.Join(dir, candidateModelFile)
	if _, err := os.Stat(candidatePath); err == nil {
		if err := candidate.Load(candidatePath); err != nil {
			return State{}, fmt.Errorf("checkpoint: load candidate model: %w", err)
		}
	} else if err := candidate.CopyFrom(best); err != nil {
		return State{}, fmt.Errorf("checkpoint: seed candidate from best: %w", err)
	}

	st, err := loadState(statePath)
	if err != nil {
		return State{}, fmt.Errorf("checkpoint: load state: %w", err)
	}
	return st, nil
}

func loadState(path string) (State, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return State{}, nil
	}
	if err != nil {
		return State{}, err
	}
	defer f.Close()

	var st State
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			continue
		}
		key, value := line[:idx], line[idx+1:]
		switch key {
		case "iteration":
			if v, err := strconv.Atoi(value); err == nil {
				st.Iteration = v
			}
		case "best_win_rate":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				st.BestWinRate = v
			}
		case "profile":
			st.Profile = value
		case "updated_at":
			if t, err := time.Parse("2006-01-02 15:04:05", value); err == nil {
				st.UpdatedAt = t
			}
		}
		// Unknown keys are ignored.
	}
	return st, scanner.Err()
}

// Save persists best/candidate parameters and metadata to dir,
// atomically via a temp-file-then-rename for each file so a crash
// mid-write never leaves a corrupt checkpoint file in place.
func Save(dir string, best, candidate model.Model, st State) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("checkpoint: create dir: %w", err)
	}

	if err := saveAtomic(filepath.Join(dir, bestModelFile), best.Save); err != nil {
		return fmt.Errorf("checkpoint: save best model: %w", err)
	}
	if err := saveAtomic(filepath.Join(dir, candidateModelFile), candidate.Save); err != nil {
		return fmt.Errorf("checkpoint: save candidate model: %w", err)
	}

	st.UpdatedAt = time.Now()
	if err := saveState(filepath.Join(dir, stateFile), st); err != nil {
		return fmt.Errorf("checkpoint: save state: %w", err)
	}
	return nil
}

func saveAtomic(path string, save func(string) error) error {
	tmp := path + ".tmp"
	_ = os.Remove(tmp)
	if err := save(tmp); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func saveState(path string, st State) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "iteration=%d\n", st.Iteration)
	fmt.Fprintf(w, "best_win_rate=%g\n", st.BestWinRate)
	fmt.Fprintf(w, "profile=%s\n", st.Profile)
	fmt.Fprintf(w, "updated_at=%s\n", st.UpdatedAt.Format("2006-01-02 15:04:05"))
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

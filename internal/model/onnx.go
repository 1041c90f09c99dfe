package model

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNX wraps an ONNX Runtime session exported from a trained Linear (or
// any other Model) for accelerated inference. It implements the Model
// contract's read side only: TrainBatch, CopyFrom and Save return
// ErrReadOnly and ResetOptimizer is a no-op, mirroring how the original system keeps a
// trainable reference model separate from its accelerated inference
// artifact.
type ONNX struct {
	session   *ort.DynamicAdvancedSession
	boardN    int
	inputSize int
}

var ortInitOnce sync.Once
var ortInitErr error

// ONNXConfig configures session construction.
type ONNXConfig struct {
	BoardSize       int32
	DisableCUDA     bool
	SharedLibraryPath string
}

// NewONNX loads an exported policy/value graph with input name "input"
// and output names "policy"/"value".
func NewONNX(modelPath string, cfg ONNXConfig) (*ONNX, error) {
	if runtime.GOOS == "linux" {
		ensureLinuxLibraryPath()
		if cfg.SharedLibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.SharedLibraryPath)
		} else if p := os.Getenv("ORT_SHARED_LIBRARY_PATH"); p != "" {
			ort.SetSharedLibraryPath(p)
		}
	}

	ortInitOnce.Do(func() {
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("model: init onnxruntime: %w", ortInitErr)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("model: session options: %w", err)
	}
	defer options.Destroy()
	options.SetIntraOpNumThreads(1)
	options.SetInterOpNumThreads(1)

	if !cfg.DisableCUDA {
		if cudaOptions, err := ort.NewCUDAProviderOptions(); err == nil {
			defer cudaOptions.Destroy()
			_ = options.AppendExecutionProviderCUDA(cudaOptions)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, []string{"input"}, []string{"policy", "value"}, options)
	if err != nil {
		return nil, fmt.Errorf("model: create session %s: %w", modelPath, err)
	}

	n := cfg.BoardSize
	if n == 0 {
		n = 10
	}
	return &ONNX{session: session, boardN: int(n), inputSize: 4 * int(n) * int(n)}, nil
}

// ensureLinuxLibraryPath extends LD_LIBRARY_PATH with common locations
// of CUDA/cuDNN shared libraries installed via a Python venv, so the
// dynamically loaded onnxruntime CUDA execution provider can find them.
func ensureLinuxLibraryPath() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}
	patterns := []string{
		filepath.Join(cwd, ".venv", "lib", "python*", "site-packages", "nvidia", "*", "lib"),
		filepath.Join(cwd, ".venv", "lib", "python*", "site-packages", "torch", "lib"),
	}
	candidateDirs := []string{cwd}
	for _, pat := range patterns {
		matches, _ := filepath.Glob(pat)
		candidateDirs = append(candidateDirs, matches...)
	}

	existing := os.Getenv("LD_LIBRARY_PATH")
	existingSet := map[string]bool{}
	for _, p := range strings.Split(existing, ":") {
		if p != "" {
			existingSet[p] = true
		}
	}
	var toAdd []string
	for _, d := range candidateDirs {
		if existingSet[d] {
			continue
		}
		if st, err := os.Stat(d); err == nil && st.IsDir() {
			toAdd = append(toAdd, d)
		}
	}
	if len(toAdd) == 0 {
		return
	}
	newVal := strings.Join(toAdd, ":")
	if existing != "" {
		newVal += ":" + existing
	}
	_ = os.Setenv("LD_LIBRARY_PATH", newVal)
}

// Close releases the underlying session.
func (o *ONNX) Close() error {
	return o.session.Destroy()
}

func (o *ONNX) runBatch(states [][]float32) ([]Prediction, error) {
	batch := int64(len(states))
	flat := make([]float32, 0, int(batch)*o.inputSize)
	for _, s := range states {
		if err := validateStateLen(s, o.inputSize); err != nil {
			return nil, err
		}
		flat = append(flat, s...)
	}

	inTensor, err := ort.NewTensor(ort.NewShape(batch, 4, int64(o.boardN), int64(o.boardN)), flat)
	if err != nil {
		return nil, err
	}
	defer inTensor.Destroy()

	policyTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(batch, NumActions))
	if err != nil {
		return nil, err
	}
	defer policyTensor.Destroy()

	valueTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(batch, 1))
	if err != nil {
		return nil, err
	}
	defer valueTensor.Destroy()

	if err := o.session.Run([]ort.Value{inTensor}, []ort.Value{policyTensor, valueTensor}); err != nil {
		return nil, err
	}

	policyData := policyTensor.GetData()
	valueData := valueTensor.GetData()

	out := make([]Prediction, len(states))
	for i := range states {
		var p Prediction
		copy(p.Policy[:], policyData[i*NumActions:(i+1)*NumActions])
		p.Value = valueData[i]
		out[i] = p
	}
	return out, nil
}

// Predict runs single-state inference.
func (o *ONNX) Predict(state []float32) (Prediction, error) {
	out, err := o.runBatch([][]float32{state})
	if err != nil {
		return DefaultPrediction, err
	}
	return out[0], nil
}

// PredictBatch runs batched inference.
func (o *ONNX) PredictBatch(states [][]float32) ([]Prediction, error) {
	return o.runBatch(states)
}

// TrainBatch is unsupported: ONNX Runtime sessions in this system are
// inference-only artifacts exported from a Linear model.
func (o *ONNX) TrainBatch(batch []Example, lr, weightDecay float64) (LossStats, error) {
	return LossStats{}, ErrReadOnly
}

// CopyFrom is unsupported for the same reason as TrainBatch.
func (o *ONNX) CopyFrom(other Model) error { return ErrReadOnly }

// ResetOptimizer is a no-op: there is no optimiser state to discard.
func (o *ONNX) ResetOptimizer(lr, weightDecay float64) {}

// Save is unsupported; export an ONNX graph out of band from a Linear model.
func (o *ONNX) Save(path string) error { return ErrReadOnly }

// Load replaces the session with one built from a new model file.
func (o *ONNX) Load(path string) error {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("model: session options: %w", err)
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(path, []string{"input"}, []string{"policy", "value"}, options)
	if err != nil {
		return fmt.Errorf("model: reload session %s: %w", path, err)
	}
	old := o.session
	o.session = session
	if old != nil {
		_ = old.Destroy()
	}
	return nil
}

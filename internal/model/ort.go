package model

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/example/bg-removal/internal/preprocess"
)

// The ONNX runtime environment is process-wide and initialized at most once.
var (
	ortInitOnce sync.Once
	ortInitErr  error
)

func initRuntime(sharedLib string) error {
	ortInitOnce.Do(func() {
		if sharedLib != "" {
			ort.SetSharedLibraryPath(sharedLib)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return fmt.Errorf("initialize onnx runtime: %w", ortInitErr)
	}
	return nil
}

// sessionOptions builds session options with the best available execution
// provider: CUDA when its provider options can be constructed, else CPU.
func sessionOptions() (*ort.SessionOptions, string, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, "", fmt.Errorf("create session options: %w", err)
	}

	cudaOpts, err := ort.NewCUDAProviderOptions()
	if err == nil {
		if err := opts.AppendExecutionProviderCUDA(cudaOpts); err == nil {
			return opts, "cuda", nil
		}
		_ = cudaOpts.Destroy()
	}
	return opts, "cpu", nil
}

// ortSession runs the model through ONNX Runtime with preallocated input
// and output tensors. The model emits a sequence of refinement outputs;
// Predict returns the last one.
type ortSession struct {
	// Run reads and writes the preallocated tensors, so calls are
	// serialized. Exactly one image is inferred per call.
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	outputs []*ort.Tensor[float32]
}

func newORTSession(modelPath, inputName string, outputNames []string, opts *ort.SessionOptions) (*ortSession, error) {
	if len(outputNames) == 0 {
		return nil, fmt.Errorf("model has no configured output names")
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, preprocess.Size, preprocess.Size))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputs := make([]*ort.Tensor[float32], 0, len(outputNames))
	destroyAll := func() {
		input.Destroy()
		for _, t := range outputs {
			t.Destroy()
		}
	}
	for _, name := range outputNames {
		t, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, preprocess.Size, preprocess.Size))
		if err != nil {
			destroyAll()
			return nil, fmt.Errorf("create output tensor %s: %w", name, err)
		}
		outputs = append(outputs, t)
	}

	outputValues := make([]ort.ArbitraryTensor, len(outputs))
	for i, t := range outputs {
		outputValues[i] = t
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{inputName}, outputNames,
		[]ort.ArbitraryTensor{input}, outputValues,
		opts)
	if err != nil {
		destroyAll()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &ortSession{session: session, input: input, outputs: outputs}, nil
}

func (s *ortSession) Predict(input []float32) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.input.GetData()
	if len(input) != len(data) {
		return nil, fmt.Errorf("input tensor has %d values, want %d", len(input), len(data))
	}
	copy(data, input)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	last := s.outputs[len(s.outputs)-1].GetData()
	out := make([]float32, len(last))
	copy(out, last)
	return out, nil
}

func (s *ortSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.input != nil {
		s.input.Destroy()
		s.input = nil
	}
	for _, t := range s.outputs {
		t.Destroy()
	}
	s.outputs = nil
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
	return nil
}

// Package tflite runs the tag estimation model in process with TensorFlow Lite.
package tflite

import (
	"context"
	"fmt"
	"image"
	"os"
	"runtime"
	"sync"

	"github.com/tphakala/go-tflite"

	"github.com/mwantia/illustag/pkg/log"
	"github.com/mwantia/illustag/pkg/oracle"
)

type Config struct {
	ModelPath string
	TagsPath  string
	Threads   int
	Threshold float64
	TopCount  int
}

// Model wraps a single interpreter. The interpreter is not reentrant, so
// invocations are serialized.
type Model struct {
	mu          sync.Mutex
	interpreter *tflite.Interpreter
	selector    *oracle.Selector
	width       int
	height      int
}

func New(cfg Config, logger log.LoggerService) (*Model, error) {
	labels, err := oracle.LoadLabels(cfg.TagsPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}

	model := tflite.NewModel(data)
	if model == nil {
		return nil, fmt.Errorf("cannot load model from '%s'", cfg.ModelPath)
	}

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threads)
	options.SetErrorReporter(func(msg string, user_data any) {
		logger.Error("tflite: %s", msg)
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		return nil, fmt.Errorf("cannot create interpreter")
	}

	m := &Model{
		interpreter: interpreter,
		selector: &oracle.Selector{
			Labels:    labels,
			Threshold: cfg.Threshold,
			TopCount:  cfg.TopCount,
		},
	}

	if status := interpreter.AllocateTensors(); status != tflite.OK {
		m.Close()
		return nil, fmt.Errorf("tensor allocation failed")
	}

	input := interpreter.GetInputTensor(0)
	if input.NumDims() != 4 || input.Dim(3) != 3 {
		m.Close()
		return nil, fmt.Errorf("unsupported input shape, expected [1, height, width, 3]")
	}
	m.height, m.width = input.Dim(1), input.Dim(2)

	output := interpreter.GetOutputTensor(0)
	if n := output.Dim(output.NumDims() - 1); n != len(labels) {
		m.Close()
		return nil, fmt.Errorf("model emits %d scores but the tag list has %d entries", n, len(labels))
	}

	logger.Info("Loaded model '%s' with %d tags (%dx%d input, %d threads)",
		cfg.ModelPath, len(labels), m.width, m.height, threads)
	return m, nil
}

func (m *Model) Estimate(ctx context.Context, img image.Image, strategy oracle.Strategy) (oracle.Result, error) {
	if _, err := oracle.ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.interpreter == nil {
		return nil, fmt.Errorf("model is closed")
	}

	input := m.interpreter.GetInputTensor(0)
	if err := oracle.Tensorize(img, m.width, m.height, input.Float32s()); err != nil {
		return nil, err
	}

	if status := m.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("model invocation failed")
	}

	raw := m.interpreter.GetOutputTensor(0).Float32s()
	scores := make([]float32, len(raw))
	copy(scores, raw)

	return m.selector.Select(strategy, scores)
}

func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.interpreter != nil {
		m.interpreter.Delete()
		m.interpreter = nil
	}
	return nil
}

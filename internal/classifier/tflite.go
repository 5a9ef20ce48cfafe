package classifier

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	tflite "github.com/tphakala/go-tflite"
	"github.com/tphakala/go-tflite/delegates/xnnpack"

	"github.com/tphakala/leafscan/internal/errors"
	"github.com/tphakala/leafscan/internal/imageload"
	"github.com/tphakala/leafscan/internal/logger"
)

// interpreter bundles the TensorFlow Lite objects that must be freed together.
type interpreter struct {
	name    string
	path    string
	model   *tflite.Model
	options *tflite.InterpreterOptions
	interp  *tflite.Interpreter
}

func newInterpreter(strategy, path string, opts Options, allowDelegate bool) (*interpreter, error) {
	start := time.Now()
	log := GetLogger()

	data, err := os.ReadFile(path) //nolint:gosec // model path comes from configuration
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			ModelContext(strategy, path).
			Timing("model_read", time.Since(start)).
			Build()
	}

	model := tflite.NewModel(data)
	if model == nil {
		return nil, errors.Newf("cannot load TensorFlow Lite model %s", filepath.Base(path)).
			Component("classifier").
			Category(errors.CategoryModelInit).
			ModelContext(strategy, path).
			Context("model_size_kb", len(data)/1024).
			Build()
	}

	threads := opts.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	options := tflite.NewInterpreterOptions()
	if allowDelegate && opts.UseXNNPACK {
		delegate := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(max(1, threads-1))}) //nolint:gosec // bounded by CPU count
		if delegate == nil {
			log.Warn("failed to create XNNPACK delegate, falling back to default CPU",
				logger.String("strategy", strategy))
			options.SetNumThread(threads)
		} else {
			options.AddDelegate(delegate)
			options.SetNumThread(1)
		}
	} else {
		options.SetNumThread(threads)
	}
	options.SetErrorReporter(func(msg string, _ any) {
		GetLogger().Error("TFLite error", logger.String("message", msg), logger.String("strategy", strategy))
	}, nil)

	interp := tflite.NewInterpreter(model, options)
	if interp == nil {
		options.Delete()
		model.Delete()
		return nil, errors.Newf("cannot create interpreter for %s", filepath.Base(path)).
			Component("classifier").
			Category(errors.CategoryModelInit).
			ModelContext(strategy, path).
			Build()
	}
	if status := interp.AllocateTensors(); status != tflite.OK {
		interp.Delete()
		options.Delete()
		model.Delete()
		return nil, errors.Newf("tensor allocation failed: %v", status).
			Component("classifier").
			Category(errors.CategoryModelInit).
			ModelContext(strategy, path).
			Build()
	}

	log.Info("model initialized",
		logger.String("strategy", strategy),
		logger.String("model", filepath.Base(path)),
		logger.Int("threads", threads),
		logger.Bool("xnnpack", allowDelegate && opts.UseXNNPACK),
		logger.Duration("took", time.Since(start)))

	return &interpreter{name: strategy, path: path, model: model, options: options, interp: interp}, nil
}

func (i *interpreter) close() error {
	if i.interp != nil {
		i.interp.Delete()
		i.interp = nil
	}
	if i.options != nil {
		i.options.Delete()
		i.options = nil
	}
	if i.model != nil {
		i.model.Delete()
		i.model = nil
	}
	return nil
}

// OutputSize returns the number of classes produced by the model, or 0
// when the interpreter is closed or the shape is unknown.
func (i *interpreter) OutputSize() int {
	if i.interp == nil {
		return 0
	}
	out := i.interp.GetOutputTensor(0)
	if out == nil || out.NumDims() == 0 {
		return 0
	}
	return out.Dim(out.NumDims() - 1)
}

// FullModel runs a float32 network.
type FullModel struct {
	*interpreter
}

// NewFullModel loads a float32 model from path.
func NewFullModel(path string, opts Options) (*FullModel, error) {
	return newFullModel(StrategyFull, path, opts)
}

func newFullModel(strategy, path string, opts Options) (*FullModel, error) {
	in, err := newInterpreter(strategy, path, opts, true)
	if err != nil {
		return nil, err
	}
	if t := in.interp.GetInputTensor(0); t == nil || t.Type() != tflite.Float32 {
		_ = in.close()
		return nil, errors.Newf("model %s does not take float32 input", filepath.Base(path)).
			Component("classifier").
			Category(errors.CategoryModelInit).
			ModelContext(strategy, path).
			Build()
	}
	return &FullModel{interpreter: in}, nil
}

// NewModelDirModel loads the first *.tflite file found in dir as a full model.
func NewModelDirModel(dir string, opts Options) (*FullModel, error) {
	path, err := findModel(dir)
	if err != nil {
		return nil, err
	}
	return newFullModel(StrategyModelDir, path, opts)
}

func findModel(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.New(err).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			ModelContext(StrategyModelDir, dir).
			Build()
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".tflite") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", errors.Newf("no .tflite model in %s", dir).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			ModelContext(StrategyModelDir, dir).
			Build()
	}
	slices.Sort(names)
	return filepath.Join(dir, names[0]), nil
}

func (m *FullModel) Name() string { return m.name }

func (m *FullModel) Close() error { return m.close() }

// Predict copies t into the input tensor, invokes the model and returns a
// copy of the output tensor.
func (m *FullModel) Predict(t imageload.Tensor) ([]float32, error) {
	input := m.interp.GetInputTensor(0)
	if input == nil {
		return nil, inferenceError(fmt.Errorf("%w: cannot get input tensor", ErrInference), m.name)
	}
	dst := input.Float32s()
	if len(dst) != len(t.Data) {
		return nil, inferenceError(fmt.Errorf("%w: input size mismatch: model wants %d values, got %d",
			ErrInference, len(dst), len(t.Data)), m.name)
	}
	copy(dst, t.Data)

	if status := m.interp.Invoke(); status != tflite.OK {
		return nil, inferenceError(fmt.Errorf("%w: tensor invoke failed: %v", ErrInference, status), m.name)
	}

	output := m.interp.GetOutputTensor(0)
	if output == nil {
		return nil, inferenceError(fmt.Errorf("%w: cannot get output tensor", ErrInference), m.name)
	}
	return slices.Clone(output.Float32s()), nil
}

// QuantizedModel runs a model whose input and output may be uint8 or int8.
// Inputs are quantized and outputs dequantized with the tensors' own
// scale and zero point.
type QuantizedModel struct {
	*interpreter
}

// NewQuantizedModel loads a quantized model from path. XNNPACK is not used.
func NewQuantizedModel(path string, opts Options) (*QuantizedModel, error) {
	in, err := newInterpreter(StrategyQuantized, path, opts, false)
	if err != nil {
		return nil, err
	}
	return &QuantizedModel{interpreter: in}, nil
}

func (m *QuantizedModel) Name() string { return m.name }

func (m *QuantizedModel) Close() error { return m.close() }

func tensorQuant(t *tflite.Tensor) quantParams {
	p := t.QuantizationParams()
	return quantParams{scale: p.Scale, zeroPoint: p.ZeroPoint}
}

// Predict casts t to the interpreter's input type, invokes and returns float scores.
func (m *QuantizedModel) Predict(t imageload.Tensor) ([]float32, error) {
	input := m.interp.GetInputTensor(0)
	if input == nil {
		return nil, inferenceError(fmt.Errorf("%w: cannot get input tensor", ErrInference), m.name)
	}

	var want int
	switch input.Type() {
	case tflite.Float32:
		dst := input.Float32s()
		want = len(dst)
		if want == len(t.Data) {
			copy(dst, t.Data)
		}
	case tflite.UInt8:
		dst := input.UInt8s()
		want = len(dst)
		if want == len(t.Data) {
			quantizeUint8(dst, t.Data, tensorQuant(input))
		}
	case tflite.Int8:
		dst := input.Int8s()
		want = len(dst)
		if want == len(t.Data) {
			quantizeInt8(dst, t.Data, tensorQuant(input))
		}
	default:
		return nil, inferenceError(fmt.Errorf("%w: unsupported input type %v", ErrInference, input.Type()), m.name)
	}
	if want != len(t.Data) {
		return nil, inferenceError(fmt.Errorf("%w: input size mismatch: model wants %d values, got %d",
			ErrInference, want, len(t.Data)), m.name)
	}

	if status := m.interp.Invoke(); status != tflite.OK {
		return nil, inferenceError(fmt.Errorf("%w: tensor invoke failed: %v", ErrInference, status), m.name)
	}

	output := m.interp.GetOutputTensor(0)
	if output == nil {
		return nil, inferenceError(fmt.Errorf("%w: cannot get output tensor", ErrInference), m.name)
	}
	switch output.Type() {
	case tflite.Float32:
		return slices.Clone(output.Float32s()), nil
	case tflite.UInt8:
		return dequantizeUint8(output.UInt8s(), tensorQuant(output)), nil
	case tflite.Int8:
		return dequantizeInt8(output.Int8s(), tensorQuant(output)), nil
	default:
		return nil, inferenceError(fmt.Errorf("%w: unsupported output type %v", ErrInference, output.Type()), m.name)
	}
}

package cpu

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/mimic-ml/mimic/internal/autodiff"
	"github.com/mimic-ml/mimic/internal/engine"
	"github.com/mimic-ml/mimic/internal/graph"
	"github.com/mimic-ml/mimic/internal/nn"
	"github.com/mimic-ml/mimic/internal/optim"
	"github.com/mimic-ml/mimic/internal/parallel"
	"github.com/mimic-ml/mimic/internal/tensor"
)

// BackendName is the name the platform registers under.
const BackendName = "cpu"

func init() {
	engine.RegisterBackend(BackendName, func() (engine.Backend, error) {
		return NewPlatform(), nil
	})
}

// Platform builds executable graphs on CPUBackend kernels. Training graphs
// run through an autodiff backend wrapping the same kernels.
type Platform struct {
	cfg  parallel.Config
	seed int64
}

// PlatformOption configures a Platform.
type PlatformOption func(*Platform)

// WithParallel sets the kernel parallelism.
func WithParallel(cfg parallel.Config) PlatformOption {
	return func(p *Platform) { p.cfg = cfg }
}

// WithSeed fixes the seed used to sample random weight descriptors.
func WithSeed(seed int64) PlatformOption {
	return func(p *Platform) { p.seed = seed }
}

// NewPlatform creates a CPU platform.
func NewPlatform(opts ...PlatformOption) *Platform {
	p := &Platform{cfg: parallel.DefaultConfig(), seed: time.Now().UnixNano()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the registered backend name.
func (p *Platform) Name() string {
	return BackendName
}

func (p *Platform) rng() *rand.Rand {
	return rand.New(rand.NewSource(p.seed))
}

// NewInferenceGraph lowers g onto plain CPU kernels.
func (p *Platform) NewInferenceGraph(g graph.Graph) (engine.InferenceGraph, error) {
	prog, err := lower(g, newBuilder(NewWithConfig(p.cfg), p.rng()))
	if err != nil {
		return nil, err
	}
	return &inferenceGraph{prog: prog}, nil
}

// NewTrainingGraph lowers g onto an autodiff backend and attaches a loss
// against the single label placeholder and an optimizer over every layer
// parameter.
func (p *Platform) NewTrainingGraph(g graph.Graph, labels []tensor.Tensor, loss engine.LossFunction, opt engine.Optimizer) (engine.TrainingGraph, error) {
	switch len(labels) {
	case 0:
		return nil, engine.ErrMissingLabels
	case 1:
	default:
		return nil, fmt.Errorf("%w: graph has one output, got %d label tensors", tensor.ErrShapeMismatch, len(labels))
	}
	if err := opt.Validate(); err != nil {
		return nil, err
	}

	ad := autodiff.New(NewWithConfig(p.cfg))
	prog, err := lower(g, newBuilder(ad, p.rng()))
	if err != nil {
		return nil, err
	}

	out := prog.outputShape()
	if perSample(out) != perSample(labels[0].Shape) {
		return nil, fmt.Errorf("%w: output %v does not match labels %v", tensor.ErrShapeMismatch, out, labels[0].Shape)
	}

	var lossFn nn.Loss
	switch loss {
	case engine.MeanSquaredError:
		lossFn = nn.NewMSELoss(ad)
	case engine.MeanAbsoluteError:
		lossFn = nn.NewMAELoss(ad)
	default:
		return nil, fmt.Errorf("unknown loss function %q", loss)
	}

	var params []*nn.Parameter
	for _, lm := range prog.modules {
		params = append(params, lm.module.Parameters()...)
	}

	return &trainingGraph{
		prog:      prog,
		backend:   ad,
		labels:    labels,
		loss:      lossFn,
		optimizer: newOptimizer(opt, params),
	}, nil
}

func newOptimizer(opt engine.Optimizer, params []*nn.Parameter) optim.Optimizer {
	switch opt.Kind {
	case engine.Adam:
		return optim.NewAdam(params, optim.AdamConfig{LR: opt.LearningRate})
	case engine.RootMeanSquare:
		return optim.NewRMSProp(params, optim.RMSPropConfig{LR: opt.LearningRate})
	default:
		return optim.NewSGD(params, optim.SGDConfig{LR: opt.LearningRate})
	}
}

func perSample(s tensor.Shape) int {
	if len(s) == 0 {
		return 1
	}
	return s.Trailing().NumElements()
}

func compileFor(ctx context.Context, device tensor.Device) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if device == tensor.GPU {
		return fmt.Errorf("%w: %s backend has no %s", engine.ErrDeviceNotAvailable, BackendName, device)
	}
	return nil
}

type inferenceGraph struct {
	prog     *program
	compiled bool
}

func (g *inferenceGraph) Compile(ctx context.Context, device tensor.Device) error {
	if g.compiled {
		return nil
	}
	if err := compileFor(ctx, device); err != nil {
		return err
	}
	g.compiled = true
	return nil
}

func (g *inferenceGraph) Execute(ctx context.Context, inputs []tensor.Tensor, batchSize int) ([]tensor.Tensor, error) {
	if !g.compiled {
		return nil, engine.ErrNotCompiled
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := g.prog.forward(inputs, batchSize)
	if err != nil {
		return nil, err
	}
	return []tensor.Tensor{g.prog.encode(out)}, nil
}

type trainingGraph struct {
	prog      *program
	backend   *autodiff.AutodiffBackend[*CPUBackend]
	labels    []tensor.Tensor
	loss      nn.Loss
	optimizer optim.Optimizer
	compiled  bool
}

func (g *trainingGraph) Compile(ctx context.Context, device tensor.Device) error {
	if g.compiled {
		return nil
	}
	if err := compileFor(ctx, device); err != nil {
		return err
	}
	g.compiled = true
	return nil
}

// ExecuteTraining records the forward pass and loss on the tape, applies
// one optimizer step and returns the forward output.
func (g *trainingGraph) ExecuteTraining(ctx context.Context, inputs, labels []tensor.Tensor, batchSize int) ([]tensor.Tensor, error) {
	if !g.compiled {
		return nil, engine.ErrNotCompiled
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	targets, err := decodeBatch("label", g.labels, labels, batchSize)
	if err != nil {
		return nil, err
	}

	tape := g.backend.Tape()
	tape.Clear()
	tape.StartRecording()
	defer tape.StopRecording()

	out, err := g.prog.forward(inputs, batchSize)
	if err != nil {
		return nil, err
	}
	loss, err := g.loss.Forward(out, targets[0])
	if err != nil {
		return nil, err
	}

	grads := autodiff.Backward(loss, g.backend)
	g.optimizer.Step(grads)
	g.optimizer.ZeroGrad()
	tape.Clear()

	return []tensor.Tensor{g.prog.encode(out)}, nil
}

// Synchronize is a no-op: parameters live in host memory and are updated in
// place.
func (g *trainingGraph) Synchronize(ctx context.Context) error {
	return ctx.Err()
}

func (g *trainingGraph) Graph() (graph.Graph, error) {
	return g.prog.rebuild(), nil
}

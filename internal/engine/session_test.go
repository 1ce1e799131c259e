package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/mimic-ml/mimic/internal/dataset"
	"github.com/mimic-ml/mimic/internal/graph"
	"github.com/mimic-ml/mimic/internal/tensor"
)

// fakeBackend echoes inputs and counts the calls it receives.
type fakeBackend struct {
	lowers    int
	compiles  int
	firsts    []float32
	executed  []int
	syncs     int
	failBatch int
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) NewInferenceGraph(g graph.Graph) (InferenceGraph, error) {
	b.lowers++
	return &fakeGraph{backend: b, graph: g}, nil
}

func (b *fakeBackend) NewTrainingGraph(g graph.Graph, labels []tensor.Tensor, _ LossFunction, _ Optimizer) (TrainingGraph, error) {
	if len(labels) == 0 {
		return nil, ErrMissingLabels
	}
	b.lowers++
	return &fakeGraph{backend: b, graph: g}, nil
}

type fakeGraph struct {
	backend *fakeBackend
	graph   graph.Graph
	steps   int
}

func (g *fakeGraph) Compile(context.Context, tensor.Device) error {
	g.backend.compiles++
	return nil
}

func (g *fakeGraph) Execute(_ context.Context, inputs []tensor.Tensor, _ int) ([]tensor.Tensor, error) {
	n := len(g.backend.executed)
	g.backend.executed = append(g.backend.executed, n)
	if n == g.backend.failBatch {
		return nil, errors.New("kernel failed")
	}
	if values, err := inputs[0].Float32s(); err == nil {
		g.backend.firsts = append(g.backend.firsts, values[0])
	}
	return inputs, nil
}

func (g *fakeGraph) ExecuteTraining(ctx context.Context, inputs, _ []tensor.Tensor, batchSize int) ([]tensor.Tensor, error) {
	g.steps++
	return g.Execute(ctx, inputs, batchSize)
}

func (g *fakeGraph) Synchronize(context.Context) error {
	g.backend.syncs++
	return nil
}

func (g *fakeGraph) Graph() (graph.Graph, error) {
	layers := make([]graph.Layer, len(g.graph.Layers))
	copy(layers, g.graph.Layers)
	for i := range layers {
		layers[i].Label = layers[i].Label + "*"
	}
	return g.graph.WithLayers(layers), nil
}

func sequenceData(t *testing.T, n, batch int, labels bool) dataset.DataSet {
	t.Helper()
	values := make([]float32, n)
	for i := range values {
		values[i] = float32(i)
	}
	x, err := tensor.FromFloat32s(tensor.Shape{n, 1}, tensor.Float32, values, tensor.NotApplicable)
	require.NoError(t, err)

	var ys []tensor.Tensor
	if labels {
		ys = []tensor.Tensor{x}
	}
	ds, err := dataset.New([]tensor.Tensor{x}, ys, batch)
	require.NoError(t, err)
	return ds
}

func testGraph() graph.Graph {
	return graph.New(tensor.Float32, [][]tensor.Tensor{
		{tensor.Placeholder(tensor.Shape{1}, tensor.Float32, tensor.NotApplicable)},
	}, []graph.Layer{addLayer("sum")}, tensor.NotApplicable)
}

func drain(t *testing.T, s *Session) [][]tensor.Tensor {
	t.Helper()
	var results [][]tensor.Tensor
	for {
		out, ok, err := s.ExecuteNext(context.Background())
		require.NoError(t, err)
		if !ok {
			return results
		}
		results = append(results, out)
	}
}

func TestSessionEpochAccounting(t *testing.T) {
	tests := []struct {
		name             string
		n, batch, epochs int
		want             int
	}{
		{"single epoch", 10, 2, 1, 5},
		{"remainder dropped", 10, 3, 1, 3},
		{"three epochs", 10, 2, 3, 15},
		{"batch larger than data", 2, 3, 4, 0},
		{"zero epochs means one", 4, 1, 0, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{failBatch: -1}
			s, err := NewSession(b, TrainingKind(MeanSquaredError, Optimizer{Kind: Adam, LearningRate: 0.01}),
				testGraph(), sequenceData(t, tt.n, tt.batch, true), WithEpochs(tt.epochs))
			require.NoError(t, err)
			require.NoError(t, s.Compile(context.Background(), tensor.AnyDevice))

			results := drain(t, s)
			assert.Len(t, results, tt.want)
			assert.Equal(t, Finalized, s.Progress().State)
			assert.Equal(t, 1, b.syncs, "finalization synchronises once")
		})
	}
}

func TestSessionBatchesInOrder(t *testing.T) {
	s, err := NewSession(&fakeBackend{failBatch: -1}, InferenceKind(), testGraph(), sequenceData(t, 6, 2, false))
	require.NoError(t, err)
	require.NoError(t, s.Compile(context.Background(), tensor.CPU))

	results := drain(t, s)
	require.Len(t, results, 3)
	for i, out := range results {
		rows, err := out[0].Matrix()
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{float32(2 * i)}, {float32(2*i + 1)}}, rows)
	}
}

func TestSessionCompileIdempotent(t *testing.T) {
	b := &fakeBackend{failBatch: -1}
	s, err := NewSession(b, InferenceKind(), testGraph(), sequenceData(t, 4, 2, false))
	require.NoError(t, err)

	require.NoError(t, s.Compile(context.Background(), tensor.AnyDevice))
	require.NoError(t, s.Compile(context.Background(), tensor.AnyDevice))
	assert.Equal(t, 1, b.compiles)
	assert.Equal(t, Compiled, s.Progress().State)
}

func TestSessionConcurrentCallers(t *testing.T) {
	const (
		callers = 8
		epochs  = 3
	)
	b := &fakeBackend{failBatch: -1}
	data := sequenceData(t, 10, 2, true)
	s, err := NewSession(b, TrainingKind(MeanSquaredError, Optimizer{Kind: SGD, LearningRate: 0.1}),
		testGraph(), data, WithEpochs(epochs))
	require.NoError(t, err)

	ctx := context.Background()
	var g errgroup.Group
	for range callers {
		g.Go(func() error { return s.Compile(ctx, tensor.CPU) })
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 1, b.lowers)
	assert.Equal(t, 1, b.compiles)

	var (
		mu      sync.Mutex
		batches int
	)
	for range callers {
		g.Go(func() error {
			for {
				_, ok, err := s.ExecuteNext(ctx)
				if errors.Is(err, ErrNotCompiled) || (err == nil && !ok) {
					return nil
				}
				if err != nil {
					return err
				}
				mu.Lock()
				batches++
				mu.Unlock()
			}
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, epochs*data.BatchCount(), batches)
	assert.Equal(t, 1, b.lowers)
	assert.Equal(t, Finalized, s.Progress().State)

	var want []float32
	for range epochs {
		for i := range data.BatchCount() {
			want = append(want, float32(2*i))
		}
	}
	assert.Equal(t, want, b.firsts)
}

func TestSessionNotCompiled(t *testing.T) {
	s, err := NewSession(&fakeBackend{failBatch: -1}, InferenceKind(), testGraph(), sequenceData(t, 4, 2, false))
	require.NoError(t, err)

	_, _, err = s.ExecuteNext(context.Background())
	assert.ErrorIs(t, err, ErrNotCompiled)
}

func TestSessionTrainingWithoutLabels(t *testing.T) {
	b := &fakeBackend{failBatch: -1}
	s, err := NewSession(b, TrainingKind(MeanSquaredError, Optimizer{Kind: SGD, LearningRate: 0.1}),
		testGraph(), sequenceData(t, 4, 2, false))
	require.NoError(t, err)

	assert.ErrorIs(t, s.Compile(context.Background(), tensor.AnyDevice), ErrMissingLabels)
	assert.Zero(t, b.compiles)
}

func TestSessionFailedBatchIsSkipped(t *testing.T) {
	s, err := NewSession(&fakeBackend{failBatch: 1}, InferenceKind(), testGraph(), sequenceData(t, 6, 2, false))
	require.NoError(t, err)
	require.NoError(t, s.Compile(context.Background(), tensor.AnyDevice))

	_, ok, err := s.ExecuteNext(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	_, _, err = s.ExecuteNext(context.Background())
	require.Error(t, err)

	out, ok, err := s.ExecuteNext(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	rows, err := out[0].Matrix()
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{4}, {5}}, rows)
}

func TestSessionRetrieveIsNonDestructive(t *testing.T) {
	b := &fakeBackend{failBatch: -1}
	s, err := NewSession(b, TrainingKind(MeanSquaredError, Optimizer{Kind: Adam, LearningRate: 0.01}),
		testGraph(), sequenceData(t, 6, 2, true))
	require.NoError(t, err)
	require.NoError(t, s.Compile(context.Background(), tensor.AnyDevice))

	_, ok, err := s.ExecuteNext(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	l, err := s.RetrieveLayer(context.Background(), "sum*")
	require.NoError(t, err)
	assert.Equal(t, graph.Arithmetic, l.Kind)

	_, err = s.RetrieveLayer(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrLayerNotFound)

	assert.Equal(t, 1, s.Progress().Batch, "runner survives retrieval")
	assert.Len(t, drain(t, s), 2)
}

func TestSessionEnd(t *testing.T) {
	s, err := NewSession(&fakeBackend{failBatch: -1}, TrainingKind(MeanAbsoluteError, Optimizer{Kind: RootMeanSquare, LearningRate: 0.01}),
		testGraph(), sequenceData(t, 6, 2, true))
	require.NoError(t, err)

	g, err := s.End(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sum", g.Layers[0].Label, "ending an uncompiled session is a no-op")

	require.NoError(t, s.Compile(context.Background(), tensor.AnyDevice))
	_, _, err = s.ExecuteNext(context.Background())
	require.NoError(t, err)

	g, err = s.End(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sum*", g.Layers[0].Label)

	_, _, err = s.ExecuteNext(context.Background())
	assert.ErrorIs(t, err, ErrNotCompiled)

	final, err := s.RetrieveGraph(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sum*", final.Layers[0].Label)
}

func TestSessionCancelledContext(t *testing.T) {
	s, err := NewSession(&fakeBackend{failBatch: -1}, InferenceKind(), testGraph(), sequenceData(t, 4, 2, false))
	require.NoError(t, err)
	require.NoError(t, s.Compile(context.Background(), tensor.AnyDevice))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = s.ExecuteNext(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.Progress().Batch)
	assert.Len(t, drain(t, s), 2)
}

func TestNewSessionValidates(t *testing.T) {
	_, err := NewSession(&fakeBackend{}, TrainingKind("hinge", Optimizer{Kind: SGD, LearningRate: 1}), testGraph(), sequenceData(t, 2, 1, true))
	assert.Error(t, err)

	_, err = NewSession(&fakeBackend{}, InferenceKind(), testGraph(), dataset.DataSet{BatchSize: 1})
	assert.ErrorIs(t, err, ErrMissingData)
}

func TestStateText(t *testing.T) {
	for _, s := range []State{Uncompiled, Compiled, Executing, Finalized} {
		b, err := s.MarshalText()
		require.NoError(t, err)
		var got State
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, s, got)
	}

	var s State
	assert.Error(t, s.UnmarshalText([]byte("running")))
}

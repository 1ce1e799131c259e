package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mimic-ml/mimic/internal/backend/cpu"
	"github.com/mimic-ml/mimic/internal/dataset"
	"github.com/mimic-ml/mimic/internal/engine"
	"github.com/mimic-ml/mimic/internal/graph"
	"github.com/mimic-ml/mimic/internal/tensor"
)

func ptr(t tensor.Tensor) *tensor.Tensor { return &t }

// run compiles a session and drains every batch result.
func run(t *testing.T, s *engine.Session) [][]tensor.Tensor {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Compile(ctx, tensor.CPU))

	var results [][]tensor.Tensor
	for {
		out, ok, err := s.ExecuteNext(ctx)
		require.NoError(t, err)
		if !ok {
			return results
		}
		results = append(results, out)
	}
}

func TestAdditionScenario(t *testing.T) {
	row := func() tensor.Tensor { return tensor.Placeholder(tensor.Shape{1, 3}, tensor.Float32, tensor.NotApplicable) }
	g := graph.New(tensor.Float32,
		[][]tensor.Tensor{{row(), row()}},
		[]graph.Layer{{Kind: graph.Arithmetic, ArithmeticOperation: graph.Add}},
		tensor.NotApplicable)

	data, err := dataset.New([]tensor.Tensor{
		tensor.Must(tensor.Matrix([][]float32{{1, 2, 3}})),
		tensor.Must(tensor.Matrix([][]float32{{1, 1, 1}})),
	}, nil, 1)
	require.NoError(t, err)

	s, err := engine.NewSession(cpu.NewPlatform(), engine.InferenceKind(), g, data)
	require.NoError(t, err)

	results := run(t, s)
	require.Len(t, results, 1)
	rows, err := results[0][0].Matrix()
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2, 3, 4}}, rows)
}

func TestChainedArithmeticScenario(t *testing.T) {
	row := func() tensor.Tensor { return tensor.Placeholder(tensor.Shape{1, 3}, tensor.Float32, tensor.NotApplicable) }
	g := graph.New(tensor.Float32,
		[][]tensor.Tensor{{row(), row()}, {row()}},
		[]graph.Layer{
			{Kind: graph.Arithmetic, ArithmeticOperation: graph.Add},
			{Kind: graph.Arithmetic, ArithmeticOperation: graph.Add},
		},
		tensor.NotApplicable)

	ones := tensor.Must(tensor.Matrix([][]float32{{1, 1, 1}}))
	data, err := dataset.New([]tensor.Tensor{ones, ones, ones}, nil, 1)
	require.NoError(t, err)

	s, err := engine.NewSession(cpu.NewPlatform(), engine.InferenceKind(), g, data)
	require.NoError(t, err)

	results := run(t, s)
	require.Len(t, results, 1)
	rows, err := results[0][0].Matrix()
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{3, 3, 3}}, rows)
}

func TestFullyConnectedScenario(t *testing.T) {
	g := graph.New(tensor.Float32,
		[][]tensor.Tensor{{tensor.Placeholder(tensor.Shape{1, 2}, tensor.Float32, tensor.NotApplicable)}},
		[]graph.Layer{{
			Kind:                      graph.FullyConnected,
			InputFeatureChannelCount:  2,
			OutputFeatureChannelCount: 1,
			Weights:                   ptr(tensor.Must(tensor.Matrix([][]float32{{1, 0.5}}))),
			Biases:                    ptr(tensor.Vector([]float32{2})),
		}},
		tensor.NotApplicable)

	data, err := dataset.New([]tensor.Tensor{tensor.Must(tensor.Matrix([][]float32{{2, 2}}))}, nil, 1)
	require.NoError(t, err)

	s, err := engine.NewSession(cpu.NewPlatform(), engine.InferenceKind(), g, data)
	require.NoError(t, err)

	results := run(t, s)
	require.Len(t, results, 1)
	require.Len(t, results[0], 1)
	rows, err := results[0][0].Matrix()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 5, rows[0][0], 1e-4)
}

func regressionData(t *testing.T) dataset.DataSet {
	t.Helper()
	xs := []float32{0.2, 1.3, 0.1, -1.7, 0.6, 1.7, 0.4, -0.45, 1.1, -1.0}
	ys := make([]float32, len(xs))
	for i, x := range xs {
		ys[i] = 0.47*x + 0.3
	}
	inputs, err := tensor.FromFloat32s(tensor.Shape{len(xs), 1}, tensor.Float32, xs, tensor.NotApplicable)
	require.NoError(t, err)
	labels, err := tensor.FromFloat32s(tensor.Shape{len(ys), 1}, tensor.Float32, ys, tensor.NotApplicable)
	require.NoError(t, err)

	data, err := dataset.New([]tensor.Tensor{inputs}, []tensor.Tensor{labels}, 2)
	require.NoError(t, err)
	return data
}

func regressionGraph() graph.Graph {
	uniform := tensor.RandomDescriptor{
		Type:  tensor.Uniform,
		Range: tensor.NewRange[float32](tensor.Closed, -0.1, 0.1),
	}
	weights := tensor.Must(tensor.Random(tensor.Shape{1, 1}, tensor.Float32, uniform, tensor.NotApplicable))
	return graph.New(tensor.Float32,
		[][]tensor.Tensor{{tensor.Placeholder(tensor.Shape{2, 1}, tensor.Float32, tensor.NotApplicable)}},
		[]graph.Layer{{
			Label:                     "fullyConnected",
			Kind:                      graph.FullyConnected,
			InputFeatureChannelCount:  1,
			OutputFeatureChannelCount: 1,
			Weights:                   &weights,
			Biases:                    ptr(tensor.Vector([]float32{0})),
		}},
		tensor.NotApplicable)
}

func TestLinearRegressionScenario(t *testing.T) {
	tests := []struct {
		name      string
		optimizer engine.Optimizer
		epochs    int
		seed      int64
	}{
		{"adam", engine.Optimizer{Kind: engine.Adam, LearningRate: 0.01}, 300, 42},
		{"rootMeanSquare slow", engine.Optimizer{Kind: engine.RootMeanSquare, LearningRate: 0.001}, 600, 42},
		{"rootMeanSquare seed 1", engine.Optimizer{Kind: engine.RootMeanSquare, LearningRate: 0.01}, 20, 1},
		{"rootMeanSquare seed 2", engine.Optimizer{Kind: engine.RootMeanSquare, LearningRate: 0.01}, 20, 2},
		{"rootMeanSquare seed 3", engine.Optimizer{Kind: engine.RootMeanSquare, LearningRate: 0.01}, 20, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := regressionData(t)
			kind := engine.TrainingKind(engine.MeanSquaredError, tt.optimizer)
			s, err := engine.NewSession(cpu.NewPlatform(cpu.WithSeed(tt.seed)), kind, regressionGraph(), data, engine.WithEpochs(tt.epochs))
			require.NoError(t, err)

			results := run(t, s)
			assert.Len(t, results, tt.epochs*data.BatchCount())
			for _, out := range results {
				require.Len(t, out, 1)
				assert.Equal(t, tensor.Shape{2, 1}, out[0].Shape)
			}

			layer, err := s.RetrieveLayer(context.Background(), "fullyConnected")
			require.NoError(t, err)
			w, err := layer.Weights.Matrix()
			require.NoError(t, err)
			b, err := layer.Biases.Vector()
			require.NoError(t, err)

			assert.InDelta(t, 0.47, w[0][0], 0.01)
			assert.InDelta(t, 0.3, b[0], 0.01)
			assert.Equal(t, engine.Finalized, s.Progress().State)
		})
	}
}

func TestUnreadableRandomWeights(t *testing.T) {
	g := regressionGraph()
	g.Layers[0].Weights.Random.Range.DataType = tensor.DataType(9)

	s, err := engine.NewSession(cpu.NewPlatform(), engine.InferenceKind(), g, regressionData(t))
	require.NoError(t, err)

	err = s.Compile(context.Background(), tensor.CPU)
	require.ErrorIs(t, err, engine.ErrLayerConversion)
	assert.ErrorIs(t, err, tensor.ErrInvalidRange)
	assert.Equal(t, engine.Uncompiled, s.Progress().State)
}

func TestConvolutionLayoutScenario(t *testing.T) {
	last := tensor.Must(tensor.Tensor4([][][][]float32{{
		{{0.1, 0.1, 0.1}, {0.2, 0.2, 0.2}, {0.3, 0.3, 0.3}},
		{{0.4, 0.4, 0.4}, {0.5, 0.5, 0.5}, {0.6, 0.6, 0.6}},
	}}, tensor.Last))
	want := []float32{0.3, 0.6, 0.9, 1.2, 1.5, 1.8}

	conv := func(pos tensor.FeatureChannelPosition, input tensor.Tensor) graph.Graph {
		return graph.New(tensor.Float32,
			[][]tensor.Tensor{{tensor.Placeholder(input.Shape, tensor.Float32, pos)}},
			[]graph.Layer{{
				Kind:                      graph.Convolution,
				KernelSize:                &graph.KernelSize{Height: 1, Width: 1},
				InputFeatureChannelCount:  3,
				OutputFeatureChannelCount: 1,
				Weights:                   ptr(tensor.Scalar[float32](1)),
			}},
			pos)
	}

	t.Run("channel last", func(t *testing.T) {
		data, err := dataset.New([]tensor.Tensor{last}, nil, 1)
		require.NoError(t, err)
		s, err := engine.NewSession(cpu.NewPlatform(), engine.InferenceKind(), conv(tensor.Last, last), data)
		require.NoError(t, err)

		results := run(t, s)
		require.Len(t, results, 1)
		out := results[0][0]
		assert.Equal(t, tensor.Shape{1, 2, 3, 1}, out.Shape)
		assert.Equal(t, tensor.Last, out.FeatureChannelPosition)

		got, err := out.Float32s()
		require.NoError(t, err)
		assert.InDeltaSlice(t, want, got, 1e-4)
	})

	t.Run("channel first", func(t *testing.T) {
		first := transposeTensor(t, last, tensor.ToFirst, tensor.First)
		data, err := dataset.New([]tensor.Tensor{first}, nil, 1)
		require.NoError(t, err)
		s, err := engine.NewSession(cpu.NewPlatform(), engine.InferenceKind(), conv(tensor.First, first), data)
		require.NoError(t, err)

		results := run(t, s)
		require.Len(t, results, 1)
		out := results[0][0]
		assert.Equal(t, tensor.Shape{1, 1, 2, 3}, out.Shape)

		got, err := transposeTensor(t, out, tensor.ToLast, tensor.Last).Float32s()
		require.NoError(t, err)
		assert.InDeltaSlice(t, want, got, 1e-4)
	})
}

func transposeTensor(t *testing.T, x tensor.Tensor, perm []int, pos tensor.FeatureChannelPosition) tensor.Tensor {
	t.Helper()
	r, err := tensor.RawFromTensor(x)
	require.NoError(t, err)
	return cpu.New().Transpose(r, perm...).ToTensor(x.DataType, pos)
}

func TestTrainingRoundTrip(t *testing.T) {
	ctx := context.Background()
	g := regressionGraph()
	g.Layers[0].Weights = ptr(tensor.Must(tensor.Matrix([][]float32{{0.25}})))

	kind := engine.TrainingKind(engine.MeanSquaredError, engine.Optimizer{Kind: engine.SGD, LearningRate: 0.1})
	s, err := engine.NewSession(cpu.NewPlatform(), kind, g, regressionData(t))
	require.NoError(t, err)
	require.NoError(t, s.Compile(ctx, tensor.CPU))

	back, err := s.End(ctx)
	require.NoError(t, err)
	require.Len(t, back.Layers, 1)

	want, got := g.Layers[0], back.Layers[0]
	assert.Equal(t, want.Kind, got.Kind)
	assert.Equal(t, want.KernelSize, got.KernelSize)
	assert.Equal(t, want.InputFeatureChannelCount, got.InputFeatureChannelCount)
	assert.Equal(t, want.OutputFeatureChannelCount, got.OutputFeatureChannelCount)
	assert.True(t, want.Weights.Equal(*got.Weights))
	assert.True(t, want.Biases.Equal(*got.Biases))
}

func TestRecompileContinuesFromTrainedWeights(t *testing.T) {
	ctx := context.Background()
	kind := engine.TrainingKind(engine.MeanSquaredError, engine.Optimizer{Kind: engine.SGD, LearningRate: 0.1})
	s, err := engine.NewSession(cpu.NewPlatform(cpu.WithSeed(3)), kind, regressionGraph(), regressionData(t), engine.WithEpochs(20))
	require.NoError(t, err)

	run(t, s)
	first, err := s.RetrieveLayer(ctx, "fullyConnected")
	require.NoError(t, err)

	run(t, s)
	second, err := s.RetrieveLayer(ctx, "fullyConnected")
	require.NoError(t, err)

	w1, err := first.Weights.Matrix()
	require.NoError(t, err)
	w2, err := second.Weights.Matrix()
	require.NoError(t, err)
	assert.LessOrEqual(t, abs(w2[0][0]-0.47), abs(w1[0][0]-0.47))
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func TestGPUUnavailableOnCPU(t *testing.T) {
	data := regressionData(t)
	s, err := engine.NewSession(cpu.NewPlatform(), engine.InferenceKind(), regressionGraph(), data)
	require.NoError(t, err)

	err = s.Compile(context.Background(), tensor.GPU)
	assert.ErrorIs(t, err, engine.ErrDeviceNotAvailable)
	assert.Equal(t, engine.Uncompiled, s.Progress().State)
}

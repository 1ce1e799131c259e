package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mimic-ml/mimic/api"
	"github.com/mimic-ml/mimic/internal/dataset"
	"github.com/mimic-ml/mimic/internal/engine"
	"github.com/mimic-ml/mimic/internal/graph"
	"github.com/mimic-ml/mimic/internal/tensor"
)

func writeJob(t *testing.T, req api.CreateSessionRequest) string {
	t.Helper()
	b, err := json.Marshal(req)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "job.json")
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

func denseJob(t *testing.T) api.CreateSessionRequest {
	t.Helper()
	w := tensor.Must(tensor.Matrix([][]float32{{3}}))
	b := tensor.Vector([]float32{2})
	ds, err := dataset.New([]tensor.Tensor{tensor.Must(tensor.Matrix([][]float32{{1}, {2}}))}, nil, 1)
	require.NoError(t, err)

	return api.CreateSessionRequest{
		Backend: "cpu",
		Kind:    engine.InferenceKind(),
		Graph: graph.New(tensor.Float32,
			[][]tensor.Tensor{{tensor.Placeholder(tensor.Shape{1, 1}, tensor.Float32, tensor.NotApplicable)}},
			[]graph.Layer{{Label: "dense", Kind: graph.FullyConnected, InputFeatureChannelCount: 1, OutputFeatureChannelCount: 1, Weights: &w, Biases: &b}},
			tensor.NotApplicable),
		DataSet: ds,
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewCLI()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestRunLocal(t *testing.T) {
	out, err := execute(t, "run", "--local", writeJob(t, denseJob(t)))
	require.NoError(t, err)

	assert.Contains(t, out, "batch 0 output 0: [1 1] [5]")
	assert.Contains(t, out, "batch 1 output 0: [1 1] [8]")
	assert.Contains(t, out, "2 batches")
	assert.Contains(t, out, "dense")
	assert.Contains(t, out, "fullyConnected")
}

func TestRunLocalEpochsQuiet(t *testing.T) {
	out, err := execute(t, "run", "--local", "--quiet", "--epochs", "3", writeJob(t, denseJob(t)))
	require.NoError(t, err)
	assert.NotContains(t, out, "batch 0")
	assert.Contains(t, out, "6 batches")
}

func TestRunLocalDeviceUnavailable(t *testing.T) {
	_, err := execute(t, "run", "--local", "--device", "gpu", writeJob(t, denseJob(t)))
	assert.ErrorIs(t, err, engine.ErrDeviceNotAvailable)

	_, err = execute(t, "run", "--local", "--device", "tpu", writeJob(t, denseJob(t)))
	assert.Error(t, err)
}

func TestRunMissingJob(t *testing.T) {
	_, err := execute(t, "run", "--local", filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBackendsLocal(t *testing.T) {
	t.Setenv("MIMIC_BACKEND", "cpu")
	out, err := execute(t, "backends", "--local")
	require.NoError(t, err)
	assert.Contains(t, out, "cpu")
	assert.Contains(t, out, "*")
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "-", summarize(nil))

	p := tensor.Placeholder(tensor.Shape{2, 3}, tensor.Float32, tensor.NotApplicable)
	assert.Equal(t, "[2 3] (placeholder)", summarize(&p))

	v := tensor.Vector([]float32{1, 2, 3, 4, 5})
	assert.Equal(t, "[5] [1 2 3 4 ...]", summarize(&v))
}

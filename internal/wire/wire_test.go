package wire

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/mimic-ml/mimic/internal/dataset"
	"github.com/mimic-ml/mimic/internal/engine"
	"github.com/mimic-ml/mimic/internal/graph"
	"github.com/mimic-ml/mimic/internal/tensor"
)

var equateEmpty = cmpopts.EquateEmpty()

func TestTensorRoundTrip(t *testing.T) {
	img := tensor.Must(tensor.Tensor4([][][][]float32{{{{1, 2, 3}}, {{4, 5, 6}}}}, tensor.Last))
	half, err := tensor.Vector([]float32{0.5, -2}).Convert(tensor.BFloat16)
	if err != nil {
		t.Fatal(err)
	}
	random := tensor.Placeholder(tensor.Shape{3, 2}, tensor.Float32, tensor.NotApplicable)
	random.Random = &tensor.RandomDescriptor{
		Type:  tensor.Uniform,
		Range: tensor.NewRange[float32](tensor.Closed, -0.1, 0.1),
	}

	cases := map[string]tensor.Tensor{
		"scalar":      tensor.Scalar[float32](3),
		"zero scalar": tensor.Scalar[float32](0),
		"vector":      tensor.Vector([]float32{1, 2, 3}),
		"rank4":       img,
		"bfloat16":    half,
		"placeholder": tensor.Placeholder(tensor.Shape{1, 4}, tensor.Float32, tensor.NotApplicable),
		"random":      random,
	}

	for name, want := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := UnmarshalTensor(MarshalTensor(want))
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(want, got, equateEmpty); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTensorsKeepEmptyEntries(t *testing.T) {
	want := []tensor.Tensor{
		tensor.Scalar[float32](0),
		tensor.Vector([]float32{7}),
	}
	got, err := UnmarshalTensors(MarshalTensors(want))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got, equateEmpty); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestGraphRoundTrip(t *testing.T) {
	w := tensor.Must(tensor.Matrix([][]float32{{3}}))
	b := tensor.Vector([]float32{2})
	kernel := tensor.Placeholder(tensor.Shape{1, 3, 1, 1}, tensor.Float32, tensor.First)
	kernel.Data = tensor.Vector([]float32{1, 1, 1}).Data

	want := graph.New(tensor.Float32,
		[][]tensor.Tensor{
			{tensor.Placeholder(tensor.Shape{1, 1}, tensor.Float32, tensor.NotApplicable)},
			{},
			{tensor.Vector([]float32{1})},
		},
		[]graph.Layer{
			{Label: "dense", Kind: graph.FullyConnected, InputFeatureChannelCount: 1, OutputFeatureChannelCount: 1, Weights: &w, Biases: &b},
			{Kind: graph.Convolution, KernelSize: &graph.KernelSize{Height: 1, Width: 1}, InputFeatureChannelCount: 3, OutputFeatureChannelCount: 1, Weights: &kernel},
			{Kind: graph.Arithmetic, ArithmeticOperation: graph.Add},
		},
		tensor.Last,
	)

	got, err := UnmarshalGraph(MarshalGraph(want))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got, equateEmpty); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	layer, err := UnmarshalLayer(MarshalLayer(want.Layers[0]))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want.Layers[0], layer, equateEmpty); diff != "" {
		t.Errorf("layer mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	ds, err := dataset.New(
		[]tensor.Tensor{tensor.Must(tensor.Matrix([][]float32{{1}, {2}}))},
		[]tensor.Tensor{tensor.Must(tensor.Matrix([][]float32{{3}, {5}}))},
		1,
	)
	if err != nil {
		t.Fatal(err)
	}
	want := Session{
		Kind:    engine.TrainingKind(engine.MeanSquaredError, engine.Optimizer{Kind: engine.Adam, LearningRate: 0.01}),
		Graph:   graph.New(tensor.Float32, [][]tensor.Tensor{{tensor.Placeholder(tensor.Shape{1, 1}, tensor.Float32, tensor.NotApplicable)}}, nil, tensor.NotApplicable),
		DataSet: ds,
		Epochs:  3,
		Device:  tensor.CPU,
	}

	got, err := UnmarshalSession(MarshalSession(want))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got, equateEmpty); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSampleDataSetRoundTrip(t *testing.T) {
	want, err := dataset.FromSamples(
		[][]tensor.Tensor{{tensor.Vector([]float32{1, 2}), tensor.Vector([]float32{3, 4}), tensor.Vector([]float32{5, 6})}},
		[][]tensor.Tensor{{tensor.Scalar[float32](1), tensor.Scalar[float32](0), tensor.Scalar[float32](1)}},
		2,
	)
	if err != nil {
		t.Fatal(err)
	}

	got, err := UnmarshalDataSet(MarshalDataSet(want))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got, equateEmpty); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if n := got.Tensors[0].Len(); n != 3 {
		t.Errorf("got %d members, want the 3 samples kept apart", n)
	}
}

func TestUnknownFieldsSkipped(t *testing.T) {
	b := MarshalTensor(tensor.Vector([]float32{1, 2}))
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "future")
	b = protowire.AppendTag(b, 100, protowire.VarintType)
	b = protowire.AppendVarint(b, 1)

	got, err := UnmarshalTensor(b)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(tensor.Vector([]float32{1, 2})) {
		t.Errorf("got %v", got)
	}
}

func TestMalformed(t *testing.T) {
	valid := MarshalGraph(graph.New(tensor.Float32, nil, []graph.Layer{{Kind: graph.Arithmetic, ArithmeticOperation: graph.Add}}, tensor.NotApplicable))

	wrongType := protowire.AppendTag(nil, 1, protowire.VarintType)
	wrongType = protowire.AppendVarint(wrongType, 1)

	cases := map[string]struct {
		data   []byte
		decode func([]byte) error
	}{
		"truncated graph": {valid[:len(valid)-1], func(b []byte) error { _, err := UnmarshalGraph(b); return err }},
		"bad tag":         {[]byte{0x80}, func(b []byte) error { _, err := UnmarshalTensor(b); return err }},
		"wrong wire type": {wrongType, func(b []byte) error { _, err := UnmarshalGraph(b); return err }},
		"truncated set":   {MarshalDataSet(dataset.DataSet{Tensors: []tensor.Array{tensor.ArrayOf(tensor.Vector([]float32{1}))}})[:3], func(b []byte) error { _, err := UnmarshalDataSet(b); return err }},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if err := tc.decode(tc.data); !errors.Is(err, ErrMalformed) {
				t.Errorf("got %v, want ErrMalformed", err)
			}
		})
	}
}

func TestUnmarshalTensorValidates(t *testing.T) {
	bad := tensor.Vector([]float32{1, 2})
	bad.Shape = tensor.Shape{3}
	if _, err := UnmarshalTensor(MarshalTensor(bad)); !errors.Is(err, tensor.ErrInvalidData) {
		t.Errorf("got %v, want ErrInvalidData", err)
	}
}

func TestRandomRangeRejected(t *testing.T) {
	w := tensor.Placeholder(tensor.Shape{1, 1}, tensor.Float32, tensor.NotApplicable)
	w.Random = &tensor.RandomDescriptor{
		Type:  tensor.Uniform,
		Range: tensor.NewRange[float32](tensor.HalfOpen, -1, 1),
	}
	w.Random.Range.DataType = tensor.DataType(9)

	g := graph.New(tensor.Float32,
		[][]tensor.Tensor{{tensor.Placeholder(tensor.Shape{1, 1}, tensor.Float32, tensor.NotApplicable)}},
		[]graph.Layer{{Kind: graph.FullyConnected, InputFeatureChannelCount: 1, OutputFeatureChannelCount: 1, Weights: &w}},
		tensor.NotApplicable,
	)

	if _, err := UnmarshalGraph(MarshalGraph(g)); !errors.Is(err, tensor.ErrInvalidRange) {
		t.Errorf("graph: got %v, want ErrInvalidRange", err)
	}
	if _, err := UnmarshalTensor(MarshalTensor(w)); !errors.Is(err, tensor.ErrInvalidRange) {
		t.Errorf("tensor: got %v, want ErrInvalidRange", err)
	}
}

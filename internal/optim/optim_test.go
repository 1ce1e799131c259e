package optim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mimic-ml/mimic/internal/nn"
	"github.com/mimic-ml/mimic/internal/tensor"
)

func param(t *testing.T, values ...float32) *nn.Parameter {
	t.Helper()
	r, err := tensor.RawFromFloat32s(tensor.Shape{len(values)}, values)
	require.NoError(t, err)
	return nn.NewParameter("p", r)
}

func gradsFor(t *testing.T, p *nn.Parameter, values ...float32) GradientMap {
	t.Helper()
	g, err := tensor.RawFromFloat32s(p.Value().Shape(), values)
	require.NoError(t, err)
	return GradientMap{p.Value(): g}
}

func TestSGD(t *testing.T) {
	p := param(t, 1, 2)
	opt := NewSGD([]*nn.Parameter{p}, SGDConfig{LR: 0.1})

	opt.Step(gradsFor(t, p, 0.5, -1))
	assert.InDeltaSlice(t, []float32{0.95, 2.1}, p.Value().AsFloat32(), 1e-6)
	assert.Equal(t, float32(0.1), opt.GetLR())
	assert.NotNil(t, p.Grad())

	opt.ZeroGrad()
	assert.Nil(t, p.Grad())
}

func TestSGDMomentum(t *testing.T) {
	p := param(t, 0)
	opt := NewSGD([]*nn.Parameter{p}, SGDConfig{LR: 1, Momentum: 0.5})

	opt.Step(gradsFor(t, p, 1)) // v = 1
	opt.Step(gradsFor(t, p, 1)) // v = 1.5
	assert.InDelta(t, -2.5, p.Value().AsFloat32()[0], 1e-6)
}

func TestSGDDefaultLR(t *testing.T) {
	assert.Equal(t, float32(0.01), NewSGD(nil, SGDConfig{}).GetLR())
}

func TestAdamFirstStepIsSignScaled(t *testing.T) {
	p := param(t, 1, 1)
	opt := NewAdam([]*nn.Parameter{p}, AdamConfig{LR: 0.01})

	opt.Step(gradsFor(t, p, 4, -0.25))
	assert.InDeltaSlice(t, []float32{0.99, 1.01}, p.Value().AsFloat32(), 1e-5)
}

func TestAdamDefaults(t *testing.T) {
	opt := NewAdam(nil, AdamConfig{})
	assert.Equal(t, float32(0.001), opt.GetLR())
	assert.Equal(t, float32(0.9), opt.beta1)
	assert.Equal(t, float32(0.999), opt.beta2)
	assert.Equal(t, float32(1e-8), opt.eps)
}

func TestRMSPropFirstStep(t *testing.T) {
	p := param(t, 0)
	opt := NewRMSProp([]*nn.Parameter{p}, RMSPropConfig{LR: 0.01})

	opt.Step(gradsFor(t, p, 2))
	want := -0.01 / math.Sqrt(0.1)
	assert.InDelta(t, want, p.Value().AsFloat32()[0], 1e-5)
}

func TestOptimizersSkipMissingGradients(t *testing.T) {
	tests := []struct {
		name string
		new  func([]*nn.Parameter) Optimizer
	}{
		{"sgd", func(p []*nn.Parameter) Optimizer { return NewSGD(p, SGDConfig{LR: 0.1, Momentum: 0.9}) }},
		{"adam", func(p []*nn.Parameter) Optimizer { return NewAdam(p, AdamConfig{}) }},
		{"rmsprop", func(p []*nn.Parameter) Optimizer { return NewRMSProp(p, RMSPropConfig{}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trained, frozen := param(t, 1), param(t, 1)
			opt := tt.new([]*nn.Parameter{trained, frozen})

			opt.Step(gradsFor(t, trained, 1))
			assert.Less(t, trained.Value().AsFloat32()[0], float32(1))
			assert.Equal(t, float32(1), frozen.Value().AsFloat32()[0])
			assert.Nil(t, frozen.Grad())
		})
	}
}

package engine

import (
	"fmt"
	"math/rand"
	"slices"

	"github.com/mimic-ml/mimic/internal/tensor"
)

// MaterializeWeights produces the float32 values a backend loads into a
// parameter of the given shape. A scalar tensor fills the whole shape, a
// tensor with a random descriptor is sampled from rng, and any other tensor
// must carry exactly as many bytes as shape needs.
func MaterializeWeights(t tensor.Tensor, shape tensor.Shape, rng *rand.Rand) ([]float32, error) {
	n := shape.NumElements()

	switch {
	case t.IsScalar():
		v, err := t.ScalarValue()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidWeights, err)
		}
		return slices.Repeat([]float32{v}, n), nil

	case t.Random != nil:
		values, err := t.Random.Fill(rng, n)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidWeights, err)
		}
		return values, nil

	case t.IsPlaceholder():
		return nil, fmt.Errorf("%w: %v tensor has no data", ErrInvalidWeights, t.Shape)
	}

	if want := n * t.DataType.Size(); len(t.Data) != want {
		return nil, fmt.Errorf("%w: %d bytes for %v %s parameter, want %d", ErrInvalidWeights, len(t.Data), shape, t.DataType, want)
	}
	values, err := t.DataType.Decode(t.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWeights, err)
	}
	return values, nil
}

package engine

import (
	"context"

	"github.com/mimic-ml/mimic/internal/dataset"
	"github.com/mimic-ml/mimic/internal/tensor"
)

// BatchRunner walks a dataset's batches in order, executing each through an
// operation. It is not safe for concurrent use.
type BatchRunner struct {
	data   dataset.DataSet
	op     Operation
	cursor int
}

// NewBatchRunner starts a runner at the first batch.
func NewBatchRunner(data dataset.DataSet, op Operation) *BatchRunner {
	return &BatchRunner{data: data, op: op}
}

// Cursor returns the index of the next batch.
func (r *BatchRunner) Cursor() int {
	return r.cursor
}

// Next executes the next batch. It returns ok=false once every batch has
// run. The cursor advances even when execution fails, so a failing batch is
// skipped on the following call.
func (r *BatchRunner) Next(ctx context.Context) ([]tensor.Tensor, bool, error) {
	if r.cursor >= r.data.BatchCount() {
		return nil, false, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	i := r.cursor
	r.cursor++

	inputs, err := r.data.MakeBatch(i)
	if err != nil {
		return nil, false, err
	}
	labels, err := r.data.MakeBatchLabels(i)
	if err != nil {
		return nil, false, err
	}

	out, err := r.op.Execute(ctx, Batch{Index: i, Inputs: inputs, Labels: labels, Size: r.data.BatchSize})
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

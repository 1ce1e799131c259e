package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mimic-ml/mimic/internal/dataset"
	"github.com/mimic-ml/mimic/internal/graph"
	"github.com/mimic-ml/mimic/internal/tensor"
)

// State is the lifecycle position of a session.
type State int

// Session states. A finalized session behaves like an uncompiled one whose
// graph carries the parameters of the last run.
const (
	Uncompiled State = iota
	Compiled
	Executing
	Finalized
)

func (s State) String() string {
	switch s {
	case Compiled:
		return "compiled"
	case Executing:
		return "executing"
	case Finalized:
		return "finalized"
	default:
		return "uncompiled"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	for _, v := range []State{Uncompiled, Compiled, Executing, Finalized} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", b)
}

// Progress reports where a session is in its run.
type Progress struct {
	State           State `json:"state"`
	Epoch           int   `json:"epoch"`
	Epochs          int   `json:"epochs"`
	Batch           int   `json:"batch"`
	BatchesPerEpoch int   `json:"batchesPerEpoch"`
}

// Session binds a graph and a dataset to a backend and executes the dataset
// batch by batch, for one or more epochs. All methods are safe for concurrent
// use; calls are serialised.
type Session struct {
	mu sync.Mutex

	backend Backend
	kind    Kind
	graph   graph.Graph
	data    dataset.DataSet
	epochs  int

	state  State
	op     Operation
	runner *BatchRunner
	epoch  int
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithEpochs sets how many passes over the dataset a run makes. Values below
// one are treated as one.
func WithEpochs(n int) SessionOption {
	return func(s *Session) {
		s.epochs = max(n, 1)
	}
}

// NewSession validates its arguments. No backend work happens until Compile.
func NewSession(backend Backend, kind Kind, g graph.Graph, data dataset.DataSet, opts ...SessionOption) (*Session, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}

	s := &Session{
		backend: backend,
		kind:    kind,
		graph:   g,
		data:    data,
		epochs:  1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Kind returns the session kind.
func (s *Session) Kind() Kind {
	return s.kind
}

// Progress returns a snapshot of the session's position.
func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := Progress{
		State:           s.state,
		Epoch:           s.epoch,
		Epochs:          s.epochs,
		BatchesPerEpoch: s.data.BatchCount(),
	}
	if s.runner != nil {
		p.Batch = s.runner.Cursor()
	}
	return p
}

// Compile lowers the graph on the backend and compiles it for device.
// Compiling a compiled session is a no-op.
func (s *Session) Compile(ctx context.Context, device tensor.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.op != nil {
		return nil
	}

	var (
		op  Operation
		err error
	)
	switch s.kind.Mode {
	case Training:
		if !s.data.HasLabels() {
			return ErrMissingLabels
		}
		op, err = NewTrainingOperation(s.backend, s.graph, s.data.LabelPlaceholders(), s.kind.LossFunction, s.kind.Optimizer)
	default:
		op, err = NewInferenceOperation(s.backend, s.graph)
	}
	if err != nil {
		return err
	}
	if err := op.Compile(ctx, device); err != nil {
		return err
	}

	s.op = op
	s.runner = nil
	s.epoch = 0
	s.state = Compiled
	slog.Debug("session compiled", "backend", s.backend.Name(), "kind", s.kind, "device", device, "epochs", s.epochs, "batches", s.data.BatchCount())
	return nil
}

// ExecuteNext runs the next batch and returns its outputs. After the last
// batch of the last epoch the session is finalized and ok is false.
func (s *Session) ExecuteNext(ctx context.Context) ([]tensor.Tensor, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.op == nil {
		return nil, false, ErrNotCompiled
	}
	if s.runner == nil {
		s.runner = NewBatchRunner(s.data, s.op)
		s.state = Executing
	}

	for {
		if s.epoch >= s.epochs {
			_, err := s.finalize(ctx)
			return nil, false, err
		}

		out, ok, err := s.runner.Next(ctx)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return out, true, nil
		}

		s.epoch++
		slog.Debug("epoch complete", "epoch", s.epoch, "epochs", s.epochs)
		s.runner = NewBatchRunner(s.data, s.op)
	}
}

// RetrieveGraph returns the graph with its current parameters. An active
// run is synchronised but not interrupted.
func (s *Session) RetrieveGraph(ctx context.Context) (graph.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.retrieveGraph(ctx)
}

// RetrieveLayer returns the layer carrying label with its current
// parameters.
func (s *Session) RetrieveLayer(ctx context.Context, label string) (graph.Layer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.retrieveGraph(ctx)
	if err != nil {
		return graph.Layer{}, err
	}
	return g.Layer(label)
}

// End finalizes the session and returns its final graph. Ending an
// uncompiled session returns its graph unchanged.
func (s *Session) End(ctx context.Context) (graph.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.op == nil {
		return s.graph, nil
	}
	return s.finalize(ctx)
}

func (s *Session) retrieveGraph(ctx context.Context) (graph.Graph, error) {
	if s.op == nil {
		return s.graph, nil
	}
	return s.op.RetrieveGraph(ctx)
}

// finalize synchronises the operation, keeps the resulting graph for the
// next compile and discards the operation and runner.
func (s *Session) finalize(ctx context.Context) (graph.Graph, error) {
	g, err := s.op.RetrieveGraph(ctx)
	if err != nil {
		return graph.Graph{}, err
	}

	s.graph = g
	s.op = nil
	s.runner = nil
	s.epoch = 0
	s.state = Finalized
	slog.Debug("session finalized", "kind", s.kind)
	return g, nil
}

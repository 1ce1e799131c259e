package api

import (
	"fmt"

	"github.com/mimic-ml/mimic/internal/dataset"
	"github.com/mimic-ml/mimic/internal/engine"
	"github.com/mimic-ml/mimic/internal/graph"
	"github.com/mimic-ml/mimic/internal/tensor"
)

// StatusError is an error with an HTTP status code and message.
type StatusError struct {
	StatusCode   int
	Status       string
	ErrorMessage string `json:"error"`
}

func (e StatusError) Error() string {
	switch {
	case e.Status != "" && e.ErrorMessage != "":
		return fmt.Sprintf("%s: %s", e.Status, e.ErrorMessage)
	case e.Status != "":
		return e.Status
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		return "something went wrong, please see the mimic server logs for details"
	}
}

// CreateSessionRequest is the request passed to [Client.CreateSession].
type CreateSessionRequest struct {
	// Backend names the execution backend. The server's default is used
	// when empty.
	Backend string          `json:"backend,omitempty"`
	Kind    engine.Kind     `json:"kind"`
	Graph   graph.Graph     `json:"graph"`
	DataSet dataset.DataSet `json:"dataset"`
	Epochs  int             `json:"epochs,omitempty"`
}

// SessionResponse describes one session held by the server.
type SessionResponse struct {
	ID       string          `json:"id"`
	Backend  string          `json:"backend"`
	Kind     engine.Kind     `json:"kind"`
	Progress engine.Progress `json:"progress"`
}

// ListSessionsResponse is the response from [Client.Sessions].
type ListSessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

// CompileRequest is the request passed to [Client.Compile]. A nil Device
// uses the server's default device.
type CompileRequest struct {
	Device *tensor.Device `json:"device,omitempty"`
}

// NextResponse carries the outputs of one batch. Done is set, with no
// outputs, once the session has finalized.
type NextResponse struct {
	Outputs []tensor.Tensor `json:"outputs,omitempty"`
	Done    bool            `json:"done"`
}

// GraphResponse carries a graph with its current parameters.
type GraphResponse struct {
	Graph graph.Graph `json:"graph"`
}

// LayerResponse carries one layer with its current parameters.
type LayerResponse struct {
	Layer graph.Layer `json:"layer"`
}

// BackendsResponse lists the backends a server can create sessions on.
type BackendsResponse struct {
	Backends []string `json:"backends"`
	Default  string   `json:"default"`
}

// VersionResponse is the response from [Client.Version].
type VersionResponse struct {
	Version string `json:"version"`
}

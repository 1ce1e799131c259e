// Package api implements the client-side API for driving sessions on a
// mimic server.
//
// Graphs, datasets and batch outputs travel in the protobuf wire format so
// that tensor bytes cross the process boundary unchanged. Everything else is
// JSON.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"

	"github.com/mimic-ml/mimic/internal/envconfig"
	"github.com/mimic-ml/mimic/internal/graph"
	"github.com/mimic-ml/mimic/internal/tensor"
	"github.com/mimic-ml/mimic/internal/wire"
	"github.com/mimic-ml/mimic/version"
)

// DoneHeader marks a protobuf next response whose session has finalized.
const DoneHeader = "Mimic-Done"

// Client talks to a mimic server.
type Client struct {
	base *url.URL
	http *http.Client
}

func checkError(resp *http.Response, body []byte) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	apiError := StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	if err := json.Unmarshal(body, &apiError); err != nil {
		apiError.ErrorMessage = string(body)
	}
	return apiError
}

// ClientFromEnvironment creates a client for the server named by
// MIMIC_HOST.
func ClientFromEnvironment() (*Client, error) {
	return &Client{
		base: envconfig.Host(),
		http: http.DefaultClient,
	}, nil
}

// NewClient creates a client for the server at base.
func NewClient(base *url.URL, http *http.Client) *Client {
	return &Client{
		base: base,
		http: http,
	}
}

// do sends reqData as JSON, or as-is when it is a []byte with contentType
// set, and decodes a JSON response into respData. A *[]byte respData
// receives the raw body with the returned header.
func (c *Client) do(ctx context.Context, method, path, contentType string, reqData, respData any) (http.Header, error) {
	var reqBody io.Reader
	switch reqData := reqData.(type) {
	case nil:
	case []byte:
		reqBody = bytes.NewReader(reqData)
	default:
		data, err := json.Marshal(reqData)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
		contentType = "application/json"
	}

	request, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), reqBody)
	if err != nil {
		return nil, err
	}

	if contentType == "" {
		contentType = "application/json"
	}
	accept := "application/json"
	if _, ok := respData.(*[]byte); ok {
		accept = wire.ContentType
	}
	request.Header.Set("Content-Type", contentType)
	request.Header.Set("Accept", accept)
	request.Header.Set("User-Agent", fmt.Sprintf("mimic/%s (%s %s) Go/%s", version.Version, runtime.GOARCH, runtime.GOOS, runtime.Version()))

	respObj, err := c.http.Do(request)
	if err != nil {
		return nil, err
	}
	defer respObj.Body.Close()

	respBody, err := io.ReadAll(respObj.Body)
	if err != nil {
		return nil, err
	}

	if err := checkError(respObj, respBody); err != nil {
		return nil, err
	}

	switch respData := respData.(type) {
	case nil:
	case *[]byte:
		*respData = respBody
	default:
		if len(respBody) > 0 {
			if err := json.Unmarshal(respBody, respData); err != nil {
				return nil, err
			}
		}
	}
	return respObj.Header, nil
}

// Session is a handle to a session held by the server.
type Session struct {
	ID     string
	client *Client
}

// CreateSession uploads a graph and dataset and returns a handle to the new
// session. The session starts uncompiled.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	body := wire.MarshalSession(wire.Session{
		Kind:    req.Kind,
		Graph:   req.Graph,
		DataSet: req.DataSet,
		Epochs:  req.Epochs,
	})

	path := "/api/sessions"
	if req.Backend != "" {
		path += "?backend=" + url.QueryEscape(req.Backend)
	}

	var resp SessionResponse
	if _, err := c.do(ctx, http.MethodPost, path, wire.ContentType, body, &resp); err != nil {
		return nil, err
	}
	return &Session{ID: resp.ID, client: c}, nil
}

// Attach returns a handle to an existing session.
func (c *Client) Attach(id string) *Session {
	return &Session{ID: id, client: c}
}

// Sessions lists the sessions held by the server.
func (c *Client) Sessions(ctx context.Context) (*ListSessionsResponse, error) {
	var resp ListSessionsResponse
	if _, err := c.do(ctx, http.MethodGet, "/api/sessions", "", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Backends lists the server's execution backends.
func (c *Client) Backends(ctx context.Context) (*BackendsResponse, error) {
	var resp BackendsResponse
	if _, err := c.do(ctx, http.MethodGet, "/api/backends", "", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Version returns the server's version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var resp VersionResponse
	if _, err := c.do(ctx, http.MethodGet, "/api/version", "", nil, &resp); err != nil {
		return "", err
	}
	return resp.Version, nil
}

func (s *Session) path(parts ...string) string {
	return (&url.URL{Path: "/api/sessions"}).JoinPath(append([]string{s.ID}, parts...)...).Path
}

// Progress reports the session's position.
func (s *Session) Progress(ctx context.Context) (*SessionResponse, error) {
	var resp SessionResponse
	if _, err := s.client.do(ctx, http.MethodGet, s.path(), "", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Compile compiles the session for device. A nil device uses the server's
// default.
func (s *Session) Compile(ctx context.Context, device *tensor.Device) error {
	_, err := s.client.do(ctx, http.MethodPost, s.path("compile"), "", CompileRequest{Device: device}, nil)
	return err
}

// Next executes the next batch. ok is false once the session has
// finalized.
func (s *Session) Next(ctx context.Context) (outputs []tensor.Tensor, ok bool, err error) {
	var body []byte
	header, err := s.client.do(ctx, http.MethodPost, s.path("next"), "", nil, &body)
	if err != nil {
		return nil, false, err
	}
	if header.Get(DoneHeader) == "true" {
		return nil, false, nil
	}
	outputs, err = wire.UnmarshalTensors(body)
	if err != nil {
		return nil, false, err
	}
	return outputs, true, nil
}

// Graph returns the session's graph with its current parameters.
func (s *Session) Graph(ctx context.Context) (graph.Graph, error) {
	var body []byte
	if _, err := s.client.do(ctx, http.MethodGet, s.path("graph"), "", nil, &body); err != nil {
		return graph.Graph{}, err
	}
	return wire.UnmarshalGraph(body)
}

// Layer returns the layer labelled label with its current parameters.
func (s *Session) Layer(ctx context.Context, label string) (graph.Layer, error) {
	var body []byte
	if _, err := s.client.do(ctx, http.MethodGet, s.path("layers", label), "", nil, &body); err != nil {
		return graph.Layer{}, err
	}
	return wire.UnmarshalLayer(body)
}

// End finalizes the session, removes it from the server and returns its
// final graph.
func (s *Session) End(ctx context.Context) (graph.Graph, error) {
	var body []byte
	if _, err := s.client.do(ctx, http.MethodDelete, s.path(), "", nil, &body); err != nil {
		return graph.Graph{}, err
	}
	return wire.UnmarshalGraph(body)
}

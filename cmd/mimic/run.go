package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mimic-ml/mimic/api"
	"github.com/mimic-ml/mimic/internal/engine"
	"github.com/mimic-ml/mimic/internal/envconfig"
	"github.com/mimic-ml/mimic/internal/graph"
	"github.com/mimic-ml/mimic/internal/logutil"
	"github.com/mimic-ml/mimic/internal/tensor"
)

// sessionRunner is the part of a session `mimic run` drives, whether it
// lives in this process or on a server.
type sessionRunner interface {
	Compile(ctx context.Context, device *tensor.Device) error
	Next(ctx context.Context) ([]tensor.Tensor, bool, error)
	End(ctx context.Context) (graph.Graph, error)
}

type localSession struct {
	*engine.Session
}

func (s localSession) Compile(ctx context.Context, device *tensor.Device) error {
	d := envconfig.Device()
	if device != nil {
		d = *device
	}
	return s.Session.Compile(ctx, d)
}

func (s localSession) Next(ctx context.Context) ([]tensor.Tensor, bool, error) {
	return s.ExecuteNext(ctx)
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run JOB",
		Short: "Run a session described by a JSON job file",
		Long: `Run a session described by a JSON job file holding "backend", "kind",
"graph", "dataset" and "epochs". Use - to read the job from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: RunHandler,
	}
	cmd.Flags().Bool("local", false, "Execute in this process instead of on the server")
	cmd.Flags().String("device", "", "Device to compile for: any, cpu or gpu")
	cmd.Flags().Int("epochs", 0, "Override the job's epoch count")
	cmd.Flags().Bool("quiet", false, "Do not print batch outputs")
	return cmd
}

func readJob(path string) (api.CreateSessionRequest, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return api.CreateSessionRequest{}, err
		}
		defer f.Close()
		r = f
	}

	var req api.CreateSessionRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return api.CreateSessionRequest{}, fmt.Errorf("job %s: %w", path, err)
	}
	return req, nil
}

func RunHandler(cmd *cobra.Command, args []string) error {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
	ctx := cmd.Context()

	req, err := readJob(args[0])
	if err != nil {
		return err
	}
	if n, _ := cmd.Flags().GetInt("epochs"); n > 0 {
		req.Epochs = n
	}

	var device *tensor.Device
	if s, _ := cmd.Flags().GetString("device"); s != "" {
		d, err := tensor.ParseDevice(s)
		if err != nil {
			return err
		}
		device = &d
	}

	var runner sessionRunner
	if local, _ := cmd.Flags().GetBool("local"); local {
		if req.Backend == "" {
			req.Backend = envconfig.Backend()
		}
		b, err := engine.NewBackend(req.Backend)
		if err != nil {
			return err
		}
		s, err := engine.NewSession(b, req.Kind, req.Graph, req.DataSet, engine.WithEpochs(req.Epochs))
		if err != nil {
			return err
		}
		runner = localSession{s}
	} else {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return err
		}
		s, err := client.CreateSession(ctx, req)
		if err != nil {
			return err
		}
		runner = s
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	return run(ctx, cmd.OutOrStdout(), runner, device, quiet)
}

func run(ctx context.Context, w io.Writer, s sessionRunner, device *tensor.Device, quiet bool) error {
	if err := s.Compile(ctx, device); err != nil {
		s.End(ctx) //nolint:errcheck
		return err
	}

	batches := 0
	for {
		out, ok, err := s.Next(ctx)
		if err != nil {
			s.End(ctx) //nolint:errcheck
			return err
		}
		if !ok {
			break
		}
		if !quiet {
			for i, t := range out {
				fmt.Fprintf(w, "batch %d output %d: %s\n", batches, i, summarize(&t))
			}
		}
		batches++
	}

	g, err := s.End(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%d batches\n", batches)
	table := newTable(w, "LAYER", "KIND", "WEIGHTS", "BIASES")
	for i, l := range g.Layers {
		table.Append([]string{l.Name(i), string(l.Kind), summarize(l.Weights), summarize(l.Biases)})
	}
	table.Render()
	return nil
}

// summarize prints a tensor's shape and its first few values.
func summarize(t *tensor.Tensor) string {
	if t == nil {
		return "-"
	}
	if t.IsPlaceholder() {
		return fmt.Sprintf("%v (placeholder)", []int(t.Shape))
	}
	values, err := t.Float32s()
	if err != nil {
		return err.Error()
	}

	const limit = 4
	parts := make([]string, 0, limit+1)
	for i, v := range values {
		if i == limit {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, fmt.Sprintf("%.4g", v))
	}
	return fmt.Sprintf("%v [%s]", []int(t.Shape), strings.Join(parts, " "))
}

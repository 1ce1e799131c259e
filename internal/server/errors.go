package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mimic-ml/mimic/internal/engine"
	"github.com/mimic-ml/mimic/internal/graph"
	"github.com/mimic-ml/mimic/internal/tensor"
	"github.com/mimic-ml/mimic/internal/wire"
)

var (
	errSessionNotFound = errors.New("session not found")
	errTooManySessions = errors.New("server busy, too many open sessions")
)

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errSessionNotFound), errors.Is(err, engine.ErrLayerNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNotCompiled):
		return http.StatusConflict
	case errors.Is(err, engine.ErrDeviceNotAvailable), errors.Is(err, errTooManySessions):
		return http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrMissingLabels),
		errors.Is(err, engine.ErrLayerConversion),
		errors.Is(err, engine.ErrInvalidWeights),
		errors.Is(err, engine.ErrMissingData),
		errors.Is(err, engine.ErrUnknownBackend),
		errors.Is(err, graph.ErrInvalidLayer),
		errors.Is(err, wire.ErrMalformed),
		errors.Is(err, tensor.ErrInvalidData),
		errors.Is(err, tensor.ErrShapeMismatch),
		errors.Is(err, tensor.ErrRankMismatch),
		errors.Is(err, tensor.ErrTypeMismatch),
		errors.Is(err, tensor.ErrOutOfRange),
		errors.Is(err, tensor.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func abort(c *gin.Context, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

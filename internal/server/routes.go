// Package server exposes engine sessions over HTTP so a graph can be driven
// from another process.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/mimic-ml/mimic/internal/envconfig"
	"github.com/mimic-ml/mimic/internal/logutil"
	"github.com/mimic-ml/mimic/internal/tensor"
	"github.com/mimic-ml/mimic/version"
)

// Server holds the open sessions.
type Server struct {
	addr net.Addr

	backend     string
	device      tensor.Device
	keepAlive   time.Duration
	maxSessions int

	// sem bounds concurrent compiles and batch executions.
	sem *semaphore.Weighted

	mu       sync.Mutex
	sessions map[string]*entry

	now func() time.Time
}

// NewServer creates a server configured from the environment.
func NewServer(addr net.Addr) *Server {
	return &Server{
		addr:        addr,
		backend:     envconfig.Backend(),
		device:      envconfig.Device(),
		keepAlive:   envconfig.KeepAlive(),
		maxSessions: int(envconfig.MaxSessions()),
		sem:         semaphore.NewWeighted(int64(envconfig.NumParallel())),
		sessions:    make(map[string]*entry),
		now:         time.Now,
	}
}

// GenerateRoutes returns the HTTP handler for the session API.
func (s *Server) GenerateRoutes() http.Handler {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery(), requestLogger())

	r.HEAD("/", func(c *gin.Context) { c.String(http.StatusOK, "mimic is running") })
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "mimic is running") })
	r.GET("/api/version", s.VersionHandler)
	r.GET("/api/backends", s.BackendsHandler)

	r.GET("/api/sessions", s.ListHandler)
	r.POST("/api/sessions", s.CreateHandler)
	r.GET("/api/sessions/:id", s.ProgressHandler)
	r.DELETE("/api/sessions/:id", s.EndHandler)
	r.POST("/api/sessions/:id/compile", s.CompileHandler)
	r.POST("/api/sessions/:id/next", s.NextHandler)
	r.GET("/api/sessions/:id/graph", s.GraphHandler)
	r.GET("/api/sessions/:id/layers/:label", s.LayerHandler)

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// Serve accepts connections on ln until SIGINT or SIGTERM, then ends every
// open session.
func Serve(ln net.Listener) error {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
	slog.Info("server config", "env", envconfig.Values())

	if envconfig.LogLevel() > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := NewServer(ln.Addr())
	srvr := &http.Server{Handler: s.GenerateRoutes()}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info(fmt.Sprintf("Listening on %s (version %s)", ln.Addr(), version.Version))
		if err := srvr.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		s.reapIdle(ctx)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srvr.Shutdown(shutdownCtx)
		s.endAll(shutdownCtx)
		return err
	})
	return g.Wait()
}

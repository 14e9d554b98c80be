// Package server exposes Kriya over HTTP with gin: the chat stream, the agent
// bus, the tasks view, the overview, the bridge participant endpoints, and a
// live activity feed.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/kriya/internal/agents"
	"github.com/zulandar/kriya/internal/bridge"
	"github.com/zulandar/kriya/internal/bus"
	"github.com/zulandar/kriya/internal/logging"
	"github.com/zulandar/kriya/internal/overview"
	"github.com/zulandar/kriya/internal/relay"
	"github.com/zulandar/kriya/internal/store"
	"go.uber.org/zap"
)

// Deps are the components the handlers call into.
type Deps struct {
	Store    *store.Store
	Agents   *agents.Directory
	Bus      *bus.Bus
	Bridge   *bridge.Queue
	Overview *overview.Builder
	Relay    *relay.Relay
	Logger   *zap.Logger
}

// Options tunes request handling.
type Options struct {
	UserHeader   string // trusted header naming the caller
	DefaultUser  string
	BridgeSecret string // empty disables the bridge endpoints

	EventPoll      time.Duration // activity feed poll interval
	EventHeartbeat time.Duration
}

// Server holds the wired handlers.
type Server struct {
	Deps
	opts Options
	log  *zap.Logger
}

// New returns a Server. Zero event intervals default to 3s and 15s.
func New(deps Deps, opts Options) *Server {
	if opts.UserHeader == "" {
		opts.UserHeader = "X-User"
	}
	if opts.DefaultUser == "" {
		opts.DefaultUser = "default"
	}
	if opts.EventPoll <= 0 {
		opts.EventPoll = 3 * time.Second
	}
	if opts.EventHeartbeat <= 0 {
		opts.EventHeartbeat = 15 * time.Second
	}
	return &Server{Deps: deps, opts: opts, log: logging.OrNop(deps.Logger)}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	s.registerRoutes(router)
	return router
}

// StartOpts holds listener settings.
type StartOpts struct {
	Port            int
	ShutdownTimeout time.Duration
	Out             io.Writer
}

// Start serves s until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, s *Server, opts StartOpts) error {
	if s == nil || s.Store == nil {
		return fmt.Errorf("server: store is required")
	}
	if opts.Port <= 0 {
		opts.Port = 3001
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("shutdown", zap.Error(err))
		}
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Kriya listening on http://localhost:%d\n", opts.Port)
	}
	s.log.Info("server started", zap.Int("port", opts.Port))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

package rest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oshokin/fire-sentinel/internal/domain/fire"
	"github.com/oshokin/fire-sentinel/internal/logger"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// StatusSource provides controller snapshots and change notifications.
type StatusSource interface {
	Snapshot() *fire.Status
	Subscribe() (<-chan *fire.Status, func())
}

// Server is the HTTP status API.
type Server struct {
	router  *gin.Engine
	source  StatusSource
	metrics http.Handler
	// notifierUp reports the alert transport connection; nil when there is none.
	notifierUp func() bool
}

// Option configures a Server.
type Option func(*Server)

// WithNotifierCheck reports the alert transport connection on /healthz.
func WithNotifierCheck(connected func() bool) Option {
	return func(s *Server) {
		s.notifierUp = connected
	}
}

// NewServer builds the router. A nil metrics handler disables /metrics.
func NewServer(ctx context.Context, source StatusSource, metrics http.Handler, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:  gin.New(),
		source:  source,
		metrics: metrics,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.router.Use(gin.Recovery(), requestLogger(logger.WithName(ctx, "http")))
	s.setupRoutes()

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.health)
	s.router.GET("/api/v1/status", s.status)
	s.router.GET("/ws", s.stream)

	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics))
	}
}

// Serve listens on address until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, address string) error {
	ctx = logger.WithName(ctx, "http")

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.InfoKV(ctx, "HTTP status server listening", "listen_address", lis.Addr().String())

	done := make(chan struct{})

	go func() {
		defer close(done)

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.WarnKV(ctx, "HTTP server shutdown incomplete", "error", shutdownErr)
		}
	}()

	if err = srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}

	<-done
	logger.Info(ctx, "HTTP status server stopped")

	return nil
}

// requestLogger logs each request at debug level.
func requestLogger(ctx context.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.DebugKV(ctx, "HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

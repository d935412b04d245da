// Package server exposes the moderator over HTTP for the chat-send
// pipeline.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/heibot/chatguard/moderation"
	"github.com/heibot/chatguard/visibility"
)

// Options configures the HTTP adapter.
type Options struct {
	// Renderer decides what each viewer receives. Nil uses visibility.NewRenderer().
	Renderer *visibility.Renderer

	Logger *slog.Logger

	// MaxBatch caps the number of messages per batch request.
	MaxBatch int
}

// Server is the HTTP adapter.
type Server struct {
	mod      *moderation.Moderator
	renderer *visibility.Renderer
	logger   *slog.Logger
	maxBatch int
	engine   *gin.Engine
}

// New creates a server in front of mod.
func New(mod *moderation.Moderator, opts Options) *Server {
	if opts.Renderer == nil {
		opts.Renderer = visibility.NewRenderer()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = 100
	}

	s := &Server{
		mod:      mod,
		renderer: opts.Renderer,
		logger:   opts.Logger.With("component", "server"),
		maxBatch: opts.MaxBatch,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.accessLog())
	s.routes(engine)
	s.engine = engine
	return s
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/healthz", s.handleHealth)

	v1 := r.Group("/v1")
	v1.POST("/moderate", s.handleModerate)
	v1.POST("/moderate/batch", s.handleModerateBatch)
	v1.POST("/preview", s.handlePreview)
	v1.GET("/rules", s.handleRules)
	v1.GET("/users/:id/violations", s.handleViolations)
	v1.DELETE("/users/:id/violations", s.handleResetViolations)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

// accessLog logs one line per request without bodies.
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.DebugContext(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// Package server exposes the submission pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/goliatone/go-formsheet/internal/telemetry"
	"github.com/goliatone/go-formsheet/pkg/submission"
)

const (
	msgSubmitted        = "Form data submitted successfully"
	msgInvalid          = "Invalid form data"
	msgFailed           = "Failed to submit form data"
	msgMethodNotAllowed = "Method not allowed"
)

// Submitter is the part of submission.Pipeline the server needs.
type Submitter interface {
	Submit(ctx context.Context, raw []byte) error
}

type failure struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type success struct {
	Message string `json:"message"`
}

// Config holds the HTTP settings.
type Config struct {
	Addr              string
	Mode              string
	BodyLimit         int64
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	ShutdownGrace     time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Server wires the gin engine around a Submitter.
type Server struct {
	cfg       Config
	submitter Submitter
	contract  *Contract
	metrics   *telemetry.Metrics
	logger    *zap.Logger
	engine    *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics exposes metrics on /metrics and records request metrics.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// New builds the server and its routes.
func New(ctx context.Context, submitter Submitter, cfg Config, opts ...Option) (*Server, error) {
	if submitter == nil {
		return nil, errors.New("server: submitter is required")
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = 1 << 20
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	contract, err := LoadContract(ctx)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:       cfg,
		submitter: submitter,
		contract:  contract,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.engine = s.routes()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	if s.cfg.Mode != "" {
		gin.SetMode(s.cfg.Mode)
	}
	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	engine.Use(recovery(s.logger), requestID(), tracing(), accessLog(s.logger))
	if s.metrics != nil {
		engine.Use(s.metrics.Middleware())
	}

	engine.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	engine.GET("/openapi.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", s.contract.JSON())
	})
	if s.metrics != nil {
		engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := engine.Group("/api")
	if s.cfg.RequestsPerSecond > 0 {
		api.Use(newIPLimiter(s.cfg.RequestsPerSecond, s.cfg.Burst).middleware())
	}
	api.POST("/submit", s.handleSubmit)

	engine.NoMethod(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, failure{Error: msgMethodNotAllowed})
	})
	engine.NoRoute(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusNotFound, failure{Error: "Not found"})
	})
	return engine
}

func (s *Server) handleSubmit(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.BodyLimit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.PureJSON(http.StatusRequestEntityTooLarge, failure{
				Error:   msgInvalid,
				Details: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		s.fail(c, submission.Wrap(submission.CodeMalformedInput, "read request body", err))
		return
	}

	if err := s.contract.ValidateSubmission(body); err != nil {
		s.fail(c, err)
		return
	}
	if err := s.submitter.Submit(c.Request.Context(), body); err != nil {
		s.fail(c, err)
		return
	}
	c.PureJSON(http.StatusOK, success{Message: msgSubmitted})
}

func (s *Server) fail(c *gin.Context, err error) {
	code := submission.CodeOf(err)
	_ = c.Error(err)

	message := msgFailed
	if code == submission.CodeMalformedInput {
		message = msgInvalid
	}
	details := err.Error()
	var serr *submission.Error
	if errors.As(err, &serr) {
		details = serr.Detail()
	}
	c.PureJSON(code.HTTPStatus(), failure{Error: message, Details: details})
}

// Run serves until ctx is cancelled, then drains in-flight requests for at
// most the configured grace period.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down", zap.Duration("grace", s.cfg.ShutdownGrace))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: serve: %w", err)
	}
	return nil
}

// Package http serves the fixd HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fixd/internal/generation"
	"github.com/fyrsmithlabs/fixd/internal/logging"
	"github.com/fyrsmithlabs/fixd/internal/metrics"
	"github.com/fyrsmithlabs/fixd/internal/remediation"
)

// Remediator runs remediation requests.
type Remediator interface {
	Remediate(ctx context.Context, req remediation.Request) (*remediation.Result, error)
	ModelName() string
}

// StatsProvider reports the request log summary.
type StatsProvider interface {
	Summary() metrics.Summary
}

// Corpus reports the number of loaded recipes.
type Corpus interface {
	Len() int
}

// Readiness reports whether a dependency can serve requests.
type Readiness interface {
	Ready() bool
}

// Deps are the components the server exposes. Only Remediator is required.
type Deps struct {
	Remediator Remediator
	Stats      StatsProvider
	Corpus     Corpus
	Embedder   Readiness
	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	Version  string
}

// Server provides the fixd HTTP endpoints.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	logger *zap.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// ReadTimeout and WriteTimeout bound a whole request, generation included.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// BodyLimit is an echo size string such as "1M". Empty disables the limit.
	BodyLimit string
}

// NewServer creates a new HTTP server.
func NewServer(deps Deps, logger *zap.Logger, cfg *Config) (*Server, error) {
	if deps.Remediator == nil {
		return nil, fmt.Errorf("remediator cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host:         "127.0.0.1",
			Port:         8000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 10 * time.Minute,
			BodyLimit:    "1M",
		}
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		},
	}))
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:   e,
		deps:   deps,
		logger: logger,
		config: cfg,
	}
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleInfo)
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/stats", s.handleStats)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))

	s.echo.POST("/local_fix", s.handleFix)
	v1 := s.echo.Group("/api/v1")
	v1.POST("/fix", s.handleFix)
}

func (s *Server) handleInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, InfoResponse{
		Name:    "fixd",
		Version: s.deps.Version,
		Model:   s.deps.Remediator.ModelName(),
		Endpoints: map[string]string{
			"fix":     "POST /local_fix",
			"fix_v1":  "POST /api/v1/fix",
			"health":  "GET /health",
			"stats":   "GET /stats",
			"metrics": "GET /metrics",
		},
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{
		Status:      "ok",
		ModelLoaded: true,
	}
	if s.deps.Corpus != nil {
		resp.Recipes = s.deps.Corpus.Len()
	}
	if s.deps.Embedder != nil {
		resp.EmbedderReady = s.deps.Embedder.Ready()
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStats(c echo.Context) error {
	if s.deps.Stats == nil {
		return c.JSON(http.StatusOK, metrics.Summary{})
	}
	return c.JSON(http.StatusOK, s.deps.Stats.Summary())
}

func (s *Server) handleFix(c echo.Context) error {
	var body FixRequest
	if err := c.Bind(&body); err != nil {
		s.logger.Warn("invalid fix request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body",
			Stage: string(remediation.StageValidate),
		})
	}

	req, err := remediation.NewRequest(body.Language, body.CWE, body.Code, body.UseRAG)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Stage: string(remediation.StageValidate),
		})
	}

	res, err := s.deps.Remediator.Remediate(c.Request().Context(), req)
	if err != nil {
		status, resp := errorResponse(err)
		return c.JSON(status, resp)
	}
	return c.JSON(http.StatusOK, res)
}

// errorResponse maps a pipeline error to a status and body.
func errorResponse(err error) (int, ErrorResponse) {
	resp := ErrorResponse{Error: err.Error()}
	var perr *remediation.PipelineError
	if errors.As(err, &perr) {
		resp.Stage = string(perr.Stage)
	}

	switch {
	case errors.Is(err, remediation.ErrInvalidRequest):
		return http.StatusBadRequest, resp
	case errors.Is(err, remediation.ErrServiceClosed):
		return http.StatusServiceUnavailable, resp
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, resp
	case errors.Is(err, generation.ErrGenerationFailed):
		return http.StatusBadGateway, resp
	default:
		return http.StatusInternalServerError, resp
	}
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server. It returns http.ErrServerClosed after
// Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

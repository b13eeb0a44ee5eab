// Package server assembles the prompt2json HTTP service: configuration
// driven routes, middleware, the transform processor and its cache.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/teilomillet/prompt2json/config"
	p2jerrors "github.com/teilomillet/prompt2json/errors"
	"github.com/teilomillet/prompt2json/server/cache"
	"github.com/teilomillet/prompt2json/server/circuitbreaker"
	"github.com/teilomillet/prompt2json/server/handlers"
	"github.com/teilomillet/prompt2json/server/metrics"
	"github.com/teilomillet/prompt2json/server/middleware"
	"github.com/teilomillet/prompt2json/server/processing"
	"github.com/teilomillet/prompt2json/server/routing"
	"github.com/teilomillet/prompt2json/server/static"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// visitorIdleTimeout is how long a silent client keeps its rate limit bucket.
const visitorIdleTimeout = 10 * time.Minute

// Server is the prompt2json HTTP server.
type Server struct {
	mu          sync.Mutex
	cfg         *config.Config
	httpServer  *http.Server
	router      *routing.Router
	processor   *processing.Processor
	rateLimiter *middleware.RateLimiter
	metrics     *metrics.Metrics
	logger      *zap.Logger
	level       *zap.AtomicLevel
}

// Option customizes a Server.
type Option func(*Server)

// WithLogLevel lets ApplyConfig change the level of the logger the server
// was built with.
func WithLogLevel(level zap.AtomicLevel) Option {
	return func(s *Server) {
		s.level = &level
	}
}

// WithMetrics uses m instead of a fresh metrics registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer wires every component described by cfg.
func NewServer(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewMetrics()
	}

	breaker, err := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
		Name:             "transform",
		MaxRequests:      cfg.CircuitBreaker.MaxRequests,
		Interval:         cfg.CircuitBreaker.Interval,
		Timeout:          cfg.CircuitBreaker.Timeout,
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
	}, logger, s.metrics.Registry())
	if err != nil {
		return nil, fmt.Errorf("create circuit breaker: %w", err)
	}

	s.processor, err = processing.NewProcessor(cache.New(cfg.Cache.MaxEntries), cfg.Cache.Enabled, breaker, s.metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("create processor: %w", err)
	}
	s.rateLimiter = middleware.NewRateLimiter(cfg.RateLimit, s.metrics)

	api := handlers.NewAPI(s.processor, logger, cfg.Server.MaxBodyBytes)
	assets := static.FS()
	handlerMap := map[string]http.Handler{
		"index":            handlers.Index(assets),
		"static":           handlers.Static("/static/", assets),
		"transform":        http.HandlerFunc(api.Transform),
		"transform_custom": http.HandlerFunc(api.TransformCustom),
		"cache_clear":      http.HandlerFunc(api.ClearCache),
		"health":           http.HandlerFunc(handlers.Health),
		"metrics":          s.metrics.Handler(),
	}
	named := map[string]routing.Middleware{
		"ratelimit": s.rateLimiter.Handler,
	}

	s.router, err = routing.NewRouter(cfg.Routes, handlerMap, named, logger,
		middleware.RequestID,
		middleware.RequestTimer,
		middleware.Logging(logger),
		middleware.PrometheusMetrics(s.metrics),
		p2jerrors.ErrorHandler(logger),
		middleware.CORS,
	)
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        s.router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		ErrorLog:       zap.NewStdLog(logger),
	}

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured port and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully
// within the configured shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("server started", zap.String("address", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	sweeper := time.NewTicker(time.Minute)
	defer sweeper.Stop()

	for {
		select {
		case <-sweeper.C:
			if n := s.rateLimiter.Sweep(visitorIdleTimeout); n > 0 {
				s.logger.Debug("forgot idle clients", zap.Int("count", n))
			}

		case <-ctx.Done():
			s.mu.Lock()
			timeout := s.cfg.Server.ShutdownTimeout
			s.mu.Unlock()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			s.logger.Info("shutting down server")
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("error during server shutdown: %w", err)
			}
			return <-errChan

		case err, ok := <-errChan:
			if ok {
				return err
			}
			return nil
		}
	}
}

// ApplyConfig applies the parts of cfg that can change at runtime: the log
// level, the cache and the rate limits. Listener settings and routes need a
// restart.
func (s *Server) ApplyConfig(cfg *config.Config) {
	s.mu.Lock()
	prev := s.cfg
	s.cfg = cfg
	s.mu.Unlock()

	if s.level != nil {
		if lvl, err := zapcore.ParseLevel(cfg.Logging.Level); err == nil {
			s.level.SetLevel(lvl)
		}
	}
	s.processor.ApplyCacheConfig(cfg.Cache.Enabled, cfg.Cache.MaxEntries)
	s.rateLimiter.Update(cfg.RateLimit)

	if prev.Server.Port != cfg.Server.Port || len(prev.Routes) != len(cfg.Routes) {
		s.logger.Warn("listener and route changes take effect after a restart")
	}
	s.logger.Info("configuration applied",
		zap.String("log_level", cfg.Logging.Level),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
		zap.Int("cache_max_entries", cfg.Cache.MaxEntries),
		zap.Bool("rate_limit_enabled", cfg.RateLimit.Enabled),
	)
}

// WatchConfig applies every configuration published by w until ctx is
// cancelled or w closes its channel.
func (s *Server) WatchConfig(ctx context.Context, w config.Watcher) {
	updates := w.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			s.ApplyConfig(cfg)
		}
	}
}

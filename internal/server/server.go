// internal/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"bookshelf/internal/books"
	"bookshelf/internal/chaos"
	"bookshelf/internal/config"
	"bookshelf/internal/history"
	"bookshelf/internal/middleware"
	"bookshelf/internal/observability"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Server wires the book service, its store and the HTTP router.
type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	telemetry *observability.Telemetry

	service  books.Service
	injector *chaos.Injector
	handler  http.Handler
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithTelemetry makes the server use the given providers and expose their
// metrics on /metrics.
func WithTelemetry(t *observability.Telemetry) Option {
	return func(s *Server) { s.telemetry = t }
}

func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	var (
		meterProvider  metric.MeterProvider = otel.GetMeterProvider()
		tracerProvider trace.TracerProvider = otel.GetTracerProvider()
	)
	if s.telemetry != nil {
		meterProvider = s.telemetry.MeterProvider
		tracerProvider = s.telemetry.TracerProvider
	}

	s.injector = chaos.NewInjector(chaos.WithInjectorLogger(s.logger))
	var store books.Store = books.NewMemoryStore()
	if cfg.Chaos.Enabled {
		store = chaos.NewStore(store, s.injector)
		for name, radius := range cfg.Chaos.Faults {
			fault, err := chaos.ParseFault(name)
			if err != nil {
				return nil, err
			}
			if err := s.injector.Enable(fault, radius); err != nil {
				return nil, err
			}
		}
	}

	service, err := books.NewService(store, history.NewLog(),
		books.WithRecomputeFinished(cfg.Books.RecomputeFinishedOnUpdate),
		books.WithLogger(s.logger),
		books.WithMeterProvider(meterProvider),
		books.WithTracerProvider(tracerProvider),
	)
	if err != nil {
		return nil, fmt.Errorf("create book service: %w", err)
	}
	s.service = service

	httpMetrics, err := middleware.NewHTTPMetrics(meterProvider.Meter("bookshelf/http"))
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics(httpMetrics))

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			s.logger.Error("Unable to write healthcheck", "err", err)
		}
	})
	if s.telemetry != nil && s.telemetry.MetricsHandler() != nil {
		r.Method(http.MethodGet, "/metrics", s.telemetry.MetricsHandler())
	}

	r.Group(func(r chi.Router) {
		if cfg.RateLimit.Enabled {
			r.Use(middleware.RateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst), s.logger))
		}
		books.NewHandler(service).Register(r)
	})

	s.handler = otelhttp.NewHandler(r, "bookshelf",
		otelhttp.WithTracerProvider(tracerProvider),
		otelhttp.WithMeterProvider(meterProvider),
	)
	return s, nil
}

// Handler returns the fully instrumented HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) Service() books.Service { return s.service }

// Injector controls fault injection. Faults only take effect when chaos is
// enabled in the configuration.
func (s *Server) Injector() *chaos.Injector { return s.injector }

// Run listens on the configured port and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("bookshelf server listening", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Server shutdown failed", "err", err)
			return err
		}
		s.logger.Info("Server stopped")
		return nil
	case err := <-serverErr:
		return err
	}
}

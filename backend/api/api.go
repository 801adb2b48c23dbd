// Package api serves the dashboard's HTTP surface: the streaming chat
// endpoint and the health of the REST API behind it.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/furisto/switchboard/backend/analytics"
	"github.com/furisto/switchboard/backend/health"
	"github.com/furisto/switchboard/backend/stream"
	"github.com/furisto/switchboard/shared/listener"
)

// Streamer opens one agent response stream per chat query.
type Streamer interface {
	StreamAgentResponse(ctx context.Context, query, conversationID string) *stream.Stream
}

type HealthChecker interface {
	Check(ctx context.Context) health.Result
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAllowedOrigins enables CORS for the given browser origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithRegistry exposes registry on /metrics.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = registry
	}
}

// WithStreamMetrics records the bytes written by chat responses in m.
func WithStreamMetrics(m *stream.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithAnalytics reports chat usage to client.
func WithAnalytics(client analytics.Enqueuer) Option {
	return func(s *Server) {
		s.analytics = client
	}
}

func WithShutdownTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = timeout
	}
}

type Server struct {
	agent           Streamer
	health          HealthChecker
	logger          *slog.Logger
	allowedOrigins  []string
	registry        *prometheus.Registry
	metrics         *stream.Metrics
	analytics       analytics.Enqueuer
	shutdownTimeout time.Duration
	router          chi.Router
}

func New(agent Streamer, checker HealthChecker, opts ...Option) *Server {
	s := &Server{
		agent:           agent,
		health:          checker,
		logger:          slog.Default(),
		shutdownTimeout: listener.DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}

	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	if len(s.allowedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   s.allowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}).Handler)
	}

	r.Get("/healthz", s.handleLiveness)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Get("/health", s.handleHealth)
	})

	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on l until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("http server listening", "address", l.Addr().String(), "network", l.Addr().Network())
	return listener.Serve(ctx, server, l, s.shutdownTimeout)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.String("size", humanize.Bytes(uint64(ww.BytesWritten()))),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("remote_addr", r.RemoteAddr),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.health.Check(r.Context()))
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

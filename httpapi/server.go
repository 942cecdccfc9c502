// Package httpapi exposes settlement to the browser UI over JSON/HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/vitwit/stablepay/logger"
	"github.com/vitwit/stablepay/settlement"
	"github.com/vitwit/stablepay/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Service is the settlement surface the handlers call into.
type Service interface {
	Settle(ctx context.Context, invoiceID, payer, sourceToken string) (*types.SettledInvoice, error)
	Preview(ctx context.Context, invoiceID, payer, sourceToken string) (*settlement.Preview, error)
	Abandon(invoiceID string) bool
	Invoice(ctx context.Context, id string) (*types.Invoice, error)
	Tokens() []types.Token
	Fund(ctx context.Context, address string) ([]string, error)
	Ping(ctx context.Context) error
}

type Server struct {
	svc         Service
	logger      logger.Logger
	gatherer    prometheus.Gatherer
	corsOrigins []string
	timeout     time.Duration
}

type Option func(*Server)

func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithGatherer exposes g at /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithRequestTimeout bounds every request. Settlement waits for receipts, so
// keep it above the settlement timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewServer(svc Service, opts ...Option) *Server {
	s := &Server{
		svc:     svc,
		logger:  logger.NoopLogger{},
		timeout: 3 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the routed, CORS-wrapped and instrumented handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(middleware.Timeout(s.timeout))

	r.Get("/healthz", s.health)
	r.Get("/tokens", s.listTokens)
	r.Post("/faucet", s.fund)

	r.Route("/invoices/{id}", func(r chi.Router) {
		r.Get("/", s.getInvoice)
		r.Get("/quote", s.quote)
		r.Post("/settle", s.settle)
		r.Delete("/attempt", s.abandon)
	})

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
			ErrorHandling: promhttp.HTTPErrorOnError,
		}))
	}

	origins := s.corsOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	return otelhttp.NewHandler(c.Handler(r), "stablepay")
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.Debug("http request", map[string]any{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		})
	})
}

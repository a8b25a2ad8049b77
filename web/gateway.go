// Package web is the REST gateway in front of the daemon. It also serves a
// live websocket copy of relayed events along with health and metrics.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/heptiolabs/healthcheck"
	"github.com/mbocsi/sigbridge/broker"
	"github.com/mbocsi/sigbridge/metrics"
	"github.com/mbocsi/sigbridge/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

const (
	Name    = "sigbridge"
	Version = "0.1.0"
)

type Option func(*Gateway)

// WithBaseURL sets the externally visible URL reported by GET / and used as
// the server URL of the API description.
func WithBaseURL(url string) Option {
	return func(g *Gateway) {
		g.baseURL = url
	}
}

// WithMaxBodyBytes limits the size of action request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(g *Gateway) {
		g.maxBodyBytes = n
	}
}

func WithCORSOrigins(origins []string) Option {
	return func(g *Gateway) {
		g.corsOrigins = origins
	}
}

// WithRateLimit limits gateway actions to r requests per second. Zero disables it.
func WithRateLimit(r float64, burst int) Option {
	return func(g *Gateway) {
		if r <= 0 {
			g.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

// WithMetrics records gateway requests on m and serves gatherer on /metrics.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(g *Gateway) {
		g.metrics = m
		g.gatherer = gatherer
	}
}

// WithReadinessCheck adds a check to GET /ready.
func WithReadinessCheck(name string, check healthcheck.Check) Option {
	return func(g *Gateway) {
		g.health.AddReadinessCheck(name, check)
	}
}

type Gateway struct {
	services *services.ServiceContainer
	broker   *broker.Broker
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	health   healthcheck.Handler
	upgrader websocket.Upgrader
	apiDoc   *openapi3.T

	baseURL      string
	corsOrigins  []string
	limiter      *rate.Limiter
	maxBodyBytes int64

	server *http.Server
}

func NewGateway(serviceContainer *services.ServiceContainer, b *broker.Broker, opts ...Option) *Gateway {
	g := &Gateway{
		services:     serviceContainer,
		broker:       b,
		health:       healthcheck.NewHandler(),
		baseURL:      "http://localhost",
		corsOrigins:  []string{"*"},
		maxBodyBytes: 16 << 20,
	}
	g.upgrader = websocket.Upgrader{
		CheckOrigin: g.checkOrigin,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.apiDoc = openAPIDocument(g.baseURL)
	return g
}

// Routes returns the HTTP routes for the gateway
func (g *Gateway) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: g.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}).Handler)

	r.Get("/", g.HandleIndex)
	r.Get("/docs", g.HandleDocs)
	r.Get("/docs/openapi.json", g.HandleOpenAPI)
	r.Get("/events", g.HandleEvents)
	r.Get("/live", g.health.LiveEndpoint)
	r.Get("/ready", g.health.ReadyEndpoint)
	if g.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(g.gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if g.limiter != nil {
			r.Use(rateLimit(g.limiter))
		}
		r.Post("/send", g.HandleSend)
		r.Post("/react", g.HandleReact)
		r.Post("/receive", g.HandleReceipt)
		r.Post("/typing", g.HandleTyping)
		r.Post("/v2/send", g.HandleSendCompat)
	})
	return r
}

// Start serves the gateway on addr until Shutdown is called.
func (g *Gateway) Start(addr string) error {
	slog.Info("Starting gateway", "addr", addr, "url", g.baseURL)

	g.server = &http.Server{
		Addr:              addr,
		Handler:           g.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	err := g.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down gateway")
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range g.corsOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"deepseek-proxy/internal/handlers"
	"deepseek-proxy/internal/metrics"
	"deepseek-proxy/internal/middleware"
)

const (
	HealthPath = "/api/health"
	UsagePath  = "/api/usage"
)

type Options struct {
	MaxBodyBytes    int64
	RequestDeadline time.Duration
}

type Handlers struct {
	Proxy  *handlers.ProxyHandler
	Health *handlers.HealthHandler
	Usage  *handlers.UsageHandler
}

// Endpoints lists the routes reported by the health payload.
func Endpoints() []string {
	return []string{
		"POST " + handlers.ProxyPath,
		"GET " + HealthPath,
		"GET " + UsagePath,
	}
}

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, h Handlers, opts Options) {
	r.Use(metrics.Middleware)

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())
	r.Use(middleware.AllowOrigin("*"))
	r.Use(middleware.MaxBodySize(opts.MaxBodyBytes))
	r.Use(middleware.Timeout(opts.RequestDeadline))

	// The proxy answers every method itself: OPTIONS preflight, 405 otherwise.
	r.Handle(handlers.ProxyPath, h.Proxy)
	r.Handle("/", h.Proxy)

	// Liveness answers any method, HEAD and OPTIONS included.
	r.Handle(HealthPath, h.Health)
	if h.Usage != nil {
		r.Method(http.MethodGet, UsagePath, h.Usage)
	}

	r.Handle("/metrics", metrics.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Endpoint not found. Use /api/deepseek"}`))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = w.Write([]byte(`{"error":"Method not allowed"}`))
	})
}

package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"litlens/internal/handlers"
	"litlens/internal/metrics"
	"litlens/internal/middleware"
)

// Options carries the router tunables that come from configuration.
type Options struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

func (o Options) withDefaults() Options {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 90 * time.Second
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 64 * 1024
	}
	return o
}

// SetupRouter wires middleware and routes onto r.
func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, books *handlers.BookHandler, opts Options) {
	opts = opts.withDefaults()

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(middleware.MaxBodySize(opts.MaxBodyBytes))

	// routes
	r.Route("/api/books/{id}", func(r chi.Router) {
		r.Get("/analysis", books.GetAnalysis)
		r.Get("/text", books.GetText)
		r.Post("/chat", books.Chat)
		r.Get("/cache", books.CacheStatus)
		r.Delete("/cache", books.ClearCache)
	})

	// health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())
}

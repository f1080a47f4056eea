package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gatherly/pushpipe/internal/api/handler"
	apimw "github.com/gatherly/pushpipe/internal/api/middleware"
	"github.com/gatherly/pushpipe/internal/breaker"
	changehandler "github.com/gatherly/pushpipe/internal/handler"
	"github.com/gatherly/pushpipe/internal/notify"
	"github.com/gatherly/pushpipe/internal/region"
	"github.com/gatherly/pushpipe/internal/store"
)

// Deps bundles everything the HTTP surface needs; main builds one and hands
// it over.
type Deps struct {
	Stores       *store.Registry
	Router       *region.Router
	ChangeMux    *changehandler.Mux
	Sender       *notify.Sender
	Breaker      *breaker.Breaker
	Registry     prometheus.Gatherer
	LegacySecret string
	Logger       *zap.Logger
}

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(d.Logger))

	// --- handler instances ---
	th := handler.NewTokenHandler(d.Stores, d.Router, d.Logger)
	eh := handler.NewEventHandler(d.Router, d.Logger)
	ch := handler.NewChangeHandler(d.ChangeMux, d.Logger)
	jh := handler.NewJobHandler(d.Stores, d.Logger)
	nh := handler.NewNotifyHandler(d.Sender, d.LegacySecret, d.Logger)
	mh := handler.NewMetricsHandler(d.Stores, d.Breaker)
	hh := handler.NewHealthHandler(d.Stores)

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/tokens", th.Register)
		r.Post("/events", eh.Register)
		r.Post("/notify", nh.Send)

		r.Get("/jobs", jh.List)
		r.Get("/jobs/{id}", jh.GetByID)

		// JSON metrics snapshot
		r.Get("/metrics", mh.GetMetrics)
	})

	// Trigger-runtime facing surface; non-2xx responses are redelivered.
	r.Post("/internal/v1/changes/{collection}", ch.Ingest)

	// Kept for pre-pipeline callers until they migrate to /api/v1/notify.
	r.Post("/legacy/notify", nh.SendLegacy)

	return r
}

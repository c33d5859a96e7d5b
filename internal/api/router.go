package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Harshitk-cp/factgraph/internal/api/handlers"
	mw "github.com/Harshitk-cp/factgraph/internal/api/middleware"
	"github.com/Harshitk-cp/factgraph/internal/buildconfig"
	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/Harshitk-cp/factgraph/internal/metrics"
	"github.com/Harshitk-cp/factgraph/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	Store      domain.GraphStore
	Clients    domain.ClientStore
	Runner     *service.Runner
	Query      *service.QueryService
	ClientSvc  *service.ClientService
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
	AdminToken string
	RateRPS    float64
	RateBurst  int
	Logger     *zap.Logger
}

// App holds the router.
type App struct {
	Router    *chi.Mux
	startTime time.Time
}

func NewApp(d Deps) *App {
	clientHandler := handlers.NewClientHandler(d.ClientSvc)
	batchHandler := handlers.NewBatchHandler(d.Runner)
	runHandler := handlers.NewRunHandler(d.Runner)
	entityHandler := handlers.NewEntityHandler(d.Query)

	r := chi.NewRouter()
	app := &App{Router: r, startTime: time.Now()}

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Metrics(d.Metrics))
	r.Use(mw.Logging(d.Logger))
	r.Use(middleware.Recoverer)
	if d.RateRPS > 0 {
		r.Use(mw.RateLimit(d.RateRPS, d.RateBurst))
	}

	// Health and metrics (no auth)
	r.Get("/health", app.healthHandler(d.Store))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		// Client registration (admin bootstrap)
		r.With(mw.AdminAuth(d.AdminToken)).Post("/clients", clientHandler.Create)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(mw.APIKeyAuth(d.Clients))

			r.Post("/batches", batchHandler.Submit)
			r.Post("/runs", runHandler.Run)
			r.Post("/inference/rebuild", runHandler.Rebuild)

			r.Route("/entities", func(r chi.Router) {
				r.Get("/", entityHandler.List)
				r.Get("/{key}", entityHandler.Get)
				r.Get("/{key}/provenance", entityHandler.Provenance)
			})
			r.Get("/claims", entityHandler.SourceClaims)
			r.Get("/relationships", entityHandler.Relationships)
		})
	})

	return app
}

func (app *App) healthHandler(gs domain.GraphStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		body := map[string]any{
			"version":        buildconfig.Version(),
			"commit":         buildconfig.Commit(),
			"uptime_seconds": time.Since(app.startTime).Seconds(),
		}
		status := http.StatusOK
		if err := gs.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "error"
			body["error"] = err.Error()
		} else {
			body["status"] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

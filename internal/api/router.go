package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/Storyloop/internal/loop"
)

func NewRouter(svc *loop.Service, sw *loop.Sweeper, adminToken string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(120))

	autonomy := NewAutonomyHandler(svc)
	runs := NewRunsHandler(svc)
	admin := NewAdminHandler(svc, sw)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(UserIDMiddleware)

		r.Get("/stories/{id}/autonomy", autonomy.Get)
		r.Post("/stories/{id}/autonomy/evaluate", autonomy.Evaluate)
		r.Post("/stories/{id}/autonomy/execute", autonomy.Execute)
		r.Post("/autonomy/evaluate-batch", autonomy.EvaluateBatch)

		r.Post("/stories/{id}/runs", runs.Create)
		r.Get("/stories/{id}/runs", runs.List)
		r.Post("/stories/{id}/runs/close-stale", runs.CloseStale)
		r.Patch("/runs/{id}/outcome", runs.RecordOutcome)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(adminToken))
			r.Get("/stats", admin.Stats)
			r.Get("/features", admin.Features)
			r.Post("/sweeper/run", admin.Sweep)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

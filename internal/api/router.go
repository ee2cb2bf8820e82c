package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

type RouterConfig struct {
	Scheduler *scheduling.Scheduler
	Logger    zerolog.Logger
	Gatherer  prometheus.Gatherer // nil disables /metrics
	PgPool    *pgxpool.Pool       // nil when the CSV store is used
	Redis     *redis.Client       // nil with the local lock
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoverMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	h := NewHandler(cfg.Scheduler, cfg.Logger)

	r.Route("/doctors/{doctorID}", func(r chi.Router) {
		r.Post("/availability", h.submitAvailability)
		r.Patch("/availability", h.editAvailability)
		r.Get("/availability", h.viewAvailability)
		r.Get("/appointments/pending", h.pendingAppointments)
		r.Get("/schedule", h.monthSchedule)
	})

	r.Post("/appointments", h.bookAppointment)
	r.Route("/appointments/{id}", func(r chi.Router) {
		r.Get("/", h.getAppointment)
		r.Post("/accept", h.transition(h.acceptAppointment))
		r.Post("/decline", h.transition(h.declineAppointment))
		r.Post("/cancel", h.transition(h.cancelAppointment))
		r.Post("/outcome", h.recordOutcome)
	})

	r.Get("/patients/{patientID}/appointments", h.patientAppointments)
	r.Get("/admin/reconcile", h.reconcile)

	return r
}

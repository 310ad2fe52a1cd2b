package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/medagenda/booking-api/internal/booking"
)

type RouterConfig struct {
	Service *booking.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client // nil when the cache is disabled
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	r.Get("/", statusHandler)
	r.Get("/horarios", listSlotsHandler(cfg.Service))
	r.Post("/agendar", createAppointmentHandler(cfg.Service))
	r.Post("/cancelar/{appointmentID}", cancelAppointmentHandler(cfg.Service))
	r.Get("/pagamento", paymentInfoHandler)
	r.Post("/pacientes/", createPatientHandler(cfg.Service))
	r.Get("/pacientes/meus-agendamentos/", patientAppointmentsHandler(cfg.Service))

	if cfg.PgPool != nil {
		health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
		r.Get("/health/live", health.Liveness)
		r.Get("/health/ready", health.Readiness)
	}

	r.Handle("/metrics", promhttp.Handler())

	return r
}

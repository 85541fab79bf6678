package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/reckon-app/apiserver/internal/logging"
)

const readinessTimeout = 2 * time.Second

const (
	checkHealthy   = "healthy"
	checkUnhealthy = "unhealthy"
	checkDisabled  = "disabled"
)

// Pinger checks a dependency is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// BackendChecker checks an optional backend. *mq.MQ and *storage.Storage
// satisfy it.
type BackendChecker interface {
	Ping(ctx context.Context) error
}

// HealthChecks are the dependencies reported by the detailed check. Nil
// fields are reported as disabled.
type HealthChecks struct {
	DB      Pinger
	Events  BackendChecker
	Storage BackendChecker
}

// DetailedHealth is the /health/detailed payload.
type DetailedHealth struct {
	Status      string            `json:"status"`
	Environment string            `json:"environment"`
	Version     string            `json:"version"`
	Checks      map[string]string `json:"checks"`
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	db          Pinger
	events      BackendChecker
	storage     BackendChecker
	environment string
	version     string
	log         logging.Logger
	now         func() time.Time
}

func NewHealthHandler(checks HealthChecks, environment, version string, log logging.Logger) *HealthHandler {
	if log == nil {
		log = logging.Nop()
	}
	return &HealthHandler{
		db:          checks.DB,
		events:      checks.Events,
		storage:     checks.Storage,
		environment: environment,
		version:     version,
		log:         log,
		now:         time.Now,
	}
}

// HealthRouter registers the probe routes, the root welcome payload and the
// legacy /healthz alias.
func HealthRouter(r chi.Router, handler *HealthHandler) {
	r.Get("/", handler.Root)
	r.Get("/healthz", handler.Health)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", handler.Health)
		r.Get("/live", handler.Live)
		r.Get("/ready", handler.Ready)
		r.Get("/detailed", handler.Detailed)
	})
}

func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to Reckon API",
		"version": h.version,
	})
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      checkHealthy,
		"environment": h.environment,
		"version":     h.version,
	})
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "alive",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if h.db == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not ready",
			"database": "disconnected",
		})
		return
	}
	if err := h.db.PingContext(ctx); err != nil {
		h.log.Error(ctx, "readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not ready",
			"database": "disconnected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "ready",
		"database":    "connected",
		"environment": h.environment,
	})
}

// Detailed pings every configured dependency. Any failure marks the whole
// service unhealthy but the response stays 200 so the payload is readable.
func (h *HealthHandler) Detailed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	report := DetailedHealth{
		Status:      checkHealthy,
		Environment: h.environment,
		Version:     h.version,
		Checks:      make(map[string]string, 3),
	}

	var db func(context.Context) error
	if h.db != nil {
		db = h.db.PingContext
	}
	var events func(context.Context) error
	if h.events != nil {
		events = h.events.Ping
	}
	var objects func(context.Context) error
	if h.storage != nil {
		objects = h.storage.Ping
	}

	for name, ping := range map[string]func(context.Context) error{
		"database": db,
		"events":   events,
		"storage":  objects,
	} {
		if ping == nil {
			report.Checks[name] = checkDisabled
			continue
		}
		if err := ping(ctx); err != nil {
			h.log.Error(ctx, "health check failed", "check", name, "error", err)
			report.Checks[name] = checkUnhealthy
			report.Status = checkUnhealthy
			continue
		}
		report.Checks[name] = checkHealthy
	}

	writeJSON(w, http.StatusOK, report)
}

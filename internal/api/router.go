package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/inconshreveable/log15"

	"github.com/hackgods/doctor-day-scheduling/internal/readmodel"
)

type RouterConfig struct {
	Service        CommandService
	AvailableSlots readmodel.AvailableSlots
	Dependencies   []Dependency
	Logger         log15.Logger
	Env            string
	Version        string
	// Now resolves "today"; defaults to time.Now.
	Now func() time.Time
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger.New("component", "http")

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))

	// Health endpoints
	health := NewHealthHandler(cfg.Dependencies, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	h := &handlers{svc: cfg.Service, slots: cfg.AvailableSlots, now: cfg.Now, logger: logger}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/doctor/schedule", h.scheduleDay)
		r.Post("/days/{dayId}/slots", h.scheduleSlot)
		r.Post("/days/{dayId}/cancel", h.cancelDay)
		r.Post("/days/{dayId}/archive", h.archiveDay)
		r.Put("/slots/{dayId}/book", h.bookSlot)
		r.Put("/slots/{dayId}/cancel-booking", h.cancelBooking)
		r.Get("/slots/today/available", h.availableToday)
		r.Get("/slots/{date}/available", h.availableOn)
		r.Post("/calendar/{date}/day-started", h.dayStarted)
	})

	return r
}

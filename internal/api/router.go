package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system", s.handleSystem)

		r.Get("/status", s.handleStatus)
		r.Get("/config", s.handleConfig)

		r.Route("/sensors", func(r chi.Router) {
			r.Get("/", s.handleSensors)
			r.Get("/history", s.handleSensorHistory)
		})

		r.Route("/plants", func(r chi.Router) {
			r.Get("/", s.handleListPlants)
			r.Post("/", s.handleCreatePlant)
			r.Route("/{position}", func(r chi.Router) {
				r.Get("/", s.handleGetPlant)
				r.Patch("/", s.handleUpdatePlant)
				r.Post("/water", s.handleWaterPlant)
				r.Get("/events", s.handlePlantEvents)
			})
		})

		r.Get("/species", s.handleListSpecies)

		r.Post("/water/all", s.handleWaterAll)
		r.Get("/watering-events", s.handleListEvents)

		r.Route("/monitoring", func(r chi.Router) {
			r.Post("/start", s.handleStartMonitoring)
			r.Post("/stop", s.handleStopMonitoring)
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

package server

import (
	"github.com/go-chi/chi/v5"

	"github.com/merdocx/easy-pass-bot-sub000/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	// Health endpoints
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)

	// Version endpoint
	s.router.Get("/version", handlers.VersionHandler)

	// Metrics endpoint (in server package to access HandleError)
	s.router.Get("/metrics", MetricsHandler)

	// Operational and pass lifecycle API
	s.router.Route("/api/v1", func(r chi.Router) {
		if s.ops != nil {
			r.Get("/archive/stats", s.ops.ArchiveStats)
			r.Get("/archive/passes", s.ops.ArchiveList)
			r.Post("/archive/passes/{id}/restore", s.ops.ArchiveRestore)
			r.Get("/breakers", s.ops.BreakerStats)
			r.Get("/throttle/stats", s.ops.ThrottleStats)
			r.Post("/throttle/{actor}/reset", s.ops.ThrottleReset)
			r.Get("/cache/stats", s.ops.CacheStats)
		}
		if s.passes != nil {
			r.Post("/passes", s.passes.Create)
			r.Get("/passes", s.passes.List)
			r.Get("/passes/lookup", s.passes.Lookup)
			r.Post("/passes/{id}/use", s.passes.Use)
			r.Post("/passes/{id}/cancel", s.passes.Cancel)
		}
	})
}

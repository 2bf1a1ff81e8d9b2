package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		// Public route (no auth required)
		r.Get("/health", h.Health)

		r.Group(func(r chi.Router) {
			// Auth is optional: an empty configured key leaves the API open
			// for standalone/dev use.
			if h.apiKey != "" {
				r.Use(AuthMiddleware(h.apiKey))
			}

			r.Post("/init", h.Init)
			r.Post("/user/onboarding", h.Onboarding)

			r.Post("/habits", h.CreateHabit)
			r.Put("/habits/{id}", h.UpdateHabit)
			r.Delete("/habits/{id}", h.DeleteHabit)

			r.Post("/tasks", h.CreateTask)
			r.Put("/tasks/{id}", h.UpdateTask)
			r.Delete("/tasks/{id}", h.DeleteTask)

			r.Post("/plans", h.SetPlan)

			r.Post("/chat", h.SaveMessage)
			r.Get("/chat/{telegramId}", h.ChatHistory)

			r.Post("/coach/plan", h.CoachPlan)
			r.Post("/coach/chat", h.CoachChat)

			r.Get("/admin/stats", h.AdminStats)
		})
	})

	return r
}

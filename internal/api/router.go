package api

import (
	"net/http"

	"github.com/fitduel/fitduel-backend/internal/api/handlers"
	"github.com/fitduel/fitduel-backend/internal/api/middleware"
	"github.com/fitduel/fitduel-backend/internal/config"
	"github.com/fitduel/fitduel-backend/internal/service"
	"github.com/fitduel/fitduel-backend/internal/websocket"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(services *service.Services, hub *websocket.Hub, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.CORS)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(services.Auth)
	battleHandler := handlers.NewBattleHandler(services.Battle)
	wsHandler := handlers.NewWebSocketHandler(hub, services.Auth)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)

			// Protected auth routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(services.Auth))
				r.Get("/me", authHandler.Me)
				r.Post("/logout", authHandler.Logout)
			})
		})

		// Protected battle routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(services.Auth))

			r.Route("/battles", func(r chi.Router) {
				r.Post("/", battleHandler.Create)
				r.Post("/quick", battleHandler.CreateQuick)
				r.Get("/", battleHandler.List)
				r.Get("/{id}", battleHandler.Get)
				r.Get("/{id}/performances", battleHandler.GetPerformances)
				r.Post("/{id}/accept", battleHandler.Accept)
				r.Post("/{id}/decline", battleHandler.Decline)
				r.Post("/{id}/start", battleHandler.Start)
				r.Post("/{id}/reps", battleHandler.SubmitReps)
				r.Post("/{id}/complete", battleHandler.Complete)
				r.Post("/{id}/cancel", battleHandler.Cancel)
			})
		})

		// WebSocket endpoint
		r.Get("/ws", wsHandler.Handle)
	})

	return r
}

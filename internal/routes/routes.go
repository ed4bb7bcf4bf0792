package routes

import (
	"net/http"

	"github.com/fintrackhq/fintrack/internal/app"
	"github.com/fintrackhq/fintrack/internal/handler"
	"github.com/fintrackhq/fintrack/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	health := handler.NewHealthHandler()
	auth := handler.NewAuthHandler(app.AuthService)
	goal := handler.NewGoalHandler(app.GoalService)

	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /api/health", health.Health)

	rateLimiter := middleware.RateLimitAuth()
	mux.HandleFunc("POST /api/auth/register", rateLimiter(auth.Register))
	mux.HandleFunc("POST /api/auth/login", rateLimiter(auth.Login))

	// Protected
	requireAuth := middleware.RequireAuth(app.AuthService)

	mux.HandleFunc("GET /api/auth/me", requireAuth(auth.Me))

	mux.HandleFunc("GET /api/goals", requireAuth(goal.List))
	mux.HandleFunc("POST /api/goals", requireAuth(goal.Create))
	mux.HandleFunc("GET /api/goals/stats", requireAuth(goal.Stats))
	mux.HandleFunc("GET /api/goals/export", requireAuth(goal.Export))
	mux.HandleFunc("GET /api/goals/{id}", requireAuth(goal.Get))
	mux.HandleFunc("PUT /api/goals/{id}", requireAuth(goal.Update))
	mux.HandleFunc("DELETE /api/goals/{id}", requireAuth(goal.Delete))
	mux.HandleFunc("PATCH /api/goals/{id}/progress", requireAuth(goal.Contribute))

	// Global middleware - executed in order (top to bottom)
	return middleware.Chain(
		mux,
		middleware.CORS(app.Cfg.CORSOrigins),
		middleware.RequestLogging,
	)
}

package routes

import (
	"time"

	"lostfound/api/handler"
	"lostfound/api/middleware"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type Router struct {
	Echo           *echo.Echo
	Auth           *handler.AuthHandler
	Reset          *handler.ResetHandler
	Health         *handler.HealthHandler
	AuthMiddleware middleware.AuthMiddleware
	AuthRate       *middleware.RateLimiter
	LoginRate      *middleware.RateLimiter
	ResetRate      *middleware.RateLimiter
}

func NewRouter(
	e *echo.Echo,
	authHandler *handler.AuthHandler,
	resetHandler *handler.ResetHandler,
	healthHandler *handler.HealthHandler,
	authMiddleware middleware.AuthMiddleware,
) *Router {
	return &Router{
		Echo:           e,
		Auth:           authHandler,
		Reset:          resetHandler,
		Health:         healthHandler,
		AuthMiddleware: authMiddleware,
		AuthRate:       middleware.NewRateLimiter(rate.Limit(5), 10, 5*time.Minute),
		LoginRate:      middleware.NewRateLimiter(rate.Limit(2), 4, 10*time.Minute),
		ResetRate:      middleware.NewRateLimiter(rate.Every(12*time.Second), 5, 30*time.Minute),
	}
}

func (r *Router) RegisterRoutes() {
	e := r.Echo

	e.GET("/healthz", r.Health.Health)

	e.POST("/auth/register", r.Auth.Register, r.AuthRate.Middleware())
	e.POST("/auth/login", r.Auth.Login, r.LoginRate.Middleware())
	e.GET("/me", r.Auth.Me, r.AuthMiddleware.RequireAuth)

	reset := e.Group("/reset")
	reset.POST("/request", r.Reset.Request, r.ResetRate.Middleware())
	reset.POST("/complete", r.Reset.Complete, r.AuthRate.Middleware())
	reset.GET("/complete-page/:token", r.Reset.CompletePage)
}

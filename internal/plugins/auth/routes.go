package auth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aarangop/note-rags-web-ui/internal/middleware"
)

// RegisterRoutes sets up the auth routes. Register and login are public and
// rate-limited per IP against credential stuffing: 10 login attempts and 5
// registrations per minute.
func RegisterRoutes(e *echo.Echo, h *Handler, service AuthService) {
	g := e.Group("/api/v1/auth")

	g.POST("/login", h.Login, middleware.RateLimit(10, time.Minute))
	g.POST("/register", h.Register, middleware.RateLimit(5, time.Minute))
	g.POST("/logout", h.Logout)
	g.GET("/me", h.Me, RequireAuth(service))
}

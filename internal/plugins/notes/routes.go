package notes

import (
	"github.com/labstack/echo/v4"

	"github.com/aarangop/note-rags-web-ui/internal/plugins/auth"
)

// RegisterRoutes sets up the note CRUD routes. All routes require an
// authenticated user and only ever touch that user's notes.
func RegisterRoutes(e *echo.Echo, h *Handler, authSvc auth.AuthService) {
	g := e.Group("/api/v1/notes", auth.RequireAuth(authSvc))

	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

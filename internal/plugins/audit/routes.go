package audit

import (
	"github.com/labstack/echo/v4"

	"github.com/aarangop/note-rags-web-ui/internal/plugins/auth"
)

// RegisterRoutes sets up the activity routes. Both require authentication;
// note history is further limited to the note's owner inside the handler.
func RegisterRoutes(e *echo.Echo, h *Handler, authSvc auth.AuthService) {
	authMw := auth.RequireAuth(authSvc)

	e.GET("/api/v1/notes/:id/activity", h.NoteHistory, authMw)
	e.GET("/api/v1/activity", h.Activity, authMw)
}

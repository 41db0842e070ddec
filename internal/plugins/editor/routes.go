package editor

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aarangop/note-rags-web-ui/internal/plugins/auth"
)

// RegisterRoutes sets up editing-session routes. All of them require an
// authenticated user who owns the note.
func RegisterRoutes(e *echo.Echo, h *Handler, authSvc auth.AuthService) {
	authMw := auth.RequireAuth(authSvc)

	g := e.Group("/api/v1/notes/:id", authMw)
	g.POST("/session", h.OpenSession)
	g.DELETE("/session", h.CloseSession)
	g.PUT("/draft", h.PutDraft, bodyLimitMiddleware(MaxDraftBytes+MaxDraftBytes/10))
	g.POST("/save", h.Save)
	g.GET("/status", h.Status)
	g.GET("/events", h.Events)

	// HTMX fragment polled by the editor page.
	e.GET("/notes/:id/save-indicator", h.Indicator, authMw)
}

// bodyLimitMiddleware returns middleware that rejects request bodies exceeding
// the given size in bytes. Applied before the handler reads the body into memory.
func bodyLimitMiddleware(maxBytes int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().ContentLength > maxBytes {
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
					fmt.Sprintf("request body too large; maximum is %d KB", maxBytes/1024))
			}
			c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, maxBytes)
			return next(c)
		}
	}
}

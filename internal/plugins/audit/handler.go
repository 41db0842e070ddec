package audit

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/aarangop/note-rags-web-ui/internal/apperror"
	"github.com/aarangop/note-rags-web-ui/internal/plugins/auth"
	"github.com/aarangop/note-rags-web-ui/internal/plugins/notes"
)

// NoteOwner checks note ownership before history is shown.
type NoteOwner interface {
	GetForUser(ctx context.Context, id int64, userID string) (*notes.Note, error)
}

// Handler handles HTTP requests for audit log operations. Handlers are thin:
// bind request, call service, render response. No business logic lives here.
type Handler struct {
	service AuditService
	notes   NoteOwner
}

// NewHandler creates a new audit handler.
func NewHandler(service AuditService, noteOwner NoteOwner) *Handler {
	return &Handler{service: service, notes: noteOwner}
}

// NoteHistory returns a note's activity (GET /api/v1/notes/:id/activity).
func (h *Handler) NoteHistory(c echo.Context) error {
	noteID, err := notes.NoteIDParam(c)
	if err != nil {
		return err
	}
	userID := auth.GetUserID(c)
	if userID == "" {
		return apperror.NewMissingContext()
	}

	ctx := c.Request().Context()
	if _, err := h.notes.GetForUser(ctx, noteID, userID); err != nil {
		return err
	}

	result, err := h.service.NoteHistory(ctx, noteID, pageParam(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// Activity returns the caller's activity feed (GET /api/v1/activity).
func (h *Handler) Activity(c echo.Context) error {
	userID := auth.GetUserID(c)
	if userID == "" {
		return apperror.NewMissingContext()
	}

	result, err := h.service.UserActivity(c.Request().Context(), userID, pageParam(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// pageParam reads ?page=; anything unparsable means the first page.
func pageParam(c echo.Context) int {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	return page
}

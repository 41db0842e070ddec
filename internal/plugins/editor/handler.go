package editor

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aarangop/note-rags-web-ui/internal/apperror"
	"github.com/aarangop/note-rags-web-ui/internal/middleware"
	"github.com/aarangop/note-rags-web-ui/internal/plugins/auth"
	"github.com/aarangop/note-rags-web-ui/internal/plugins/notes"
)

// Handler serves editing sessions over HTTP.
type Handler struct {
	manager *Manager
}

// NewHandler creates a new editor handler backed by the given manager.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// target returns the caller's user id and the :id note.
func target(c echo.Context) (string, int64, error) {
	noteID, err := notes.NoteIDParam(c)
	if err != nil {
		return "", 0, err
	}
	userID := auth.GetUserID(c)
	if userID == "" {
		return "", 0, apperror.NewMissingContext()
	}
	return userID, noteID, nil
}

// OpenSession starts editing a note (POST /api/v1/notes/:id/session).
func (h *Handler) OpenSession(c echo.Context) error {
	userID, noteID, err := target(c)
	if err != nil {
		return err
	}

	info, err := h.manager.Open(c.Request().Context(), userID, noteID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, info)
}

// CloseSession stops editing a note (DELETE /api/v1/notes/:id/session).
func (h *Handler) CloseSession(c echo.Context) error {
	userID, noteID, err := target(c)
	if err != nil {
		return err
	}

	if err := h.manager.Close(userID, noteID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// PutDraft stores new content and schedules a save
// (PUT /api/v1/notes/:id/draft).
func (h *Handler) PutDraft(c echo.Context) error {
	userID, noteID, err := target(c)
	if err != nil {
		return err
	}

	var req DraftRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return apperror.NewBadRequest("invalid JSON body")
	}
	if req.Content == nil {
		return apperror.NewBadRequest("content is required")
	}

	if err := h.manager.Edit(c.Request().Context(), userID, noteID, *req.Content); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "queued"})
}

// Save persists the draft immediately (POST /api/v1/notes/:id/save).
func (h *Handler) Save(c echo.Context) error {
	userID, noteID, err := target(c)
	if err != nil {
		return err
	}

	view, err := h.manager.Save(c.Request().Context(), userID, noteID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// Status reports the save state (GET /api/v1/notes/:id/status).
func (h *Handler) Status(c echo.Context) error {
	userID, noteID, err := target(c)
	if err != nil {
		return err
	}

	view, err := h.manager.Status(c.Request().Context(), userID, noteID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// Indicator renders the save badge fragment (GET /notes/:id/save-indicator).
func (h *Handler) Indicator(c echo.Context) error {
	userID, noteID, err := target(c)
	if err != nil {
		return err
	}

	view, err := h.manager.Status(c.Request().Context(), userID, noteID)
	if err != nil {
		return err
	}
	return middleware.Render(c, http.StatusOK, SaveIndicator(view, middleware.GetCSRFToken(c)))
}

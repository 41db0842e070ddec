package notes

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/aarangop/note-rags-web-ui/internal/apperror"
	"github.com/aarangop/note-rags-web-ui/internal/plugins/auth"
)

// Handler handles HTTP requests for note operations. Handlers are thin:
// bind request, call service, render response. No business logic lives here.
type Handler struct {
	service  NoteService
	activity ActivityRecorder
}

// NewHandler creates a new note handler backed by the given service.
func NewHandler(service NoteService) *Handler {
	return &Handler{service: service}
}

// SetActivity makes the handler report note mutations to r.
func (h *Handler) SetActivity(r ActivityRecorder) {
	h.activity = r
}

// record reports a mutation when an activity recorder is set.
func (h *Handler) record(c echo.Context, noteID int64, action string, details map[string]any) {
	if h.activity != nil {
		h.activity.Record(c.Request().Context(), auth.GetUserID(c), noteID, action, details)
	}
}

// List returns a page of the caller's notes (GET /api/v1/notes?page=&size=).
func (h *Handler) List(c echo.Context) error {
	page, err := queryInt(c, "page")
	if err != nil {
		return err
	}
	size, err := queryInt(c, "size")
	if err != nil {
		return err
	}

	result, err := h.service.List(c.Request().Context(), auth.GetUserID(c), page, size)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// Create adds a new note (POST /api/v1/notes).
func (h *Handler) Create(c echo.Context) error {
	var req CreateNoteRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return apperror.NewBadRequest("invalid JSON body")
	}

	note, err := h.service.Create(c.Request().Context(), auth.GetUserID(c), req)
	if err != nil {
		return err
	}
	h.record(c, note.ID, ActionCreated, map[string]any{"title": note.Title})
	return c.JSON(http.StatusCreated, note)
}

// Get returns one note (GET /api/v1/notes/:id).
func (h *Handler) Get(c echo.Context) error {
	id, err := NoteIDParam(c)
	if err != nil {
		return err
	}

	note, err := h.service.GetForUser(c.Request().Context(), id, auth.GetUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, note)
}

// Update applies a partial update (PUT /api/v1/notes/:id).
func (h *Handler) Update(c echo.Context) error {
	id, err := NoteIDParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	if _, err := h.service.GetForUser(ctx, id, auth.GetUserID(c)); err != nil {
		return err
	}

	var req UpdateNoteRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return apperror.NewBadRequest("invalid JSON body")
	}

	note, err := h.service.Update(ctx, id, req)
	if err != nil {
		return err
	}
	h.record(c, id, ActionUpdated, updatedFields(req))
	return c.JSON(http.StatusOK, note)
}

// Delete removes a note (DELETE /api/v1/notes/:id).
func (h *Handler) Delete(c echo.Context) error {
	id, err := NoteIDParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	if _, err := h.service.GetForUser(ctx, id, auth.GetUserID(c)); err != nil {
		return err
	}
	if err := h.service.Delete(ctx, id); err != nil {
		return err
	}
	h.record(c, id, ActionDeleted, nil)
	return c.NoContent(http.StatusNoContent)
}

// NoteIDParam parses the :id path parameter. Other plugins mounted under
// /notes/:id reuse it.
func NoteIDParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NewBadRequest("invalid note id")
	}
	return id, nil
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.NewBadRequest(name + " must be an integer")
	}
	return v, nil
}

// updatedFields lists the fields a partial update touched.
func updatedFields(req UpdateNoteRequest) map[string]any {
	var fields []string
	if req.Title != nil {
		fields = append(fields, "title")
	}
	if req.Content != nil {
		fields = append(fields, "content")
	}
	if req.Metadata != nil {
		fields = append(fields, "metadata")
	}
	return map[string]any{"fields": fields}
}

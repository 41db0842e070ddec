package notes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestNoteIDParam(t *testing.T) {
	e := echo.New()
	tests := []struct {
		raw    string
		want   int64
		wantOK bool
	}{
		{"12", 12, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(tt.raw)

		got, err := NoteIDParam(c)
		if tt.wantOK {
			if err != nil || got != tt.want {
				t.Errorf("NoteIDParam(%q) = %d, %v", tt.raw, got, err)
			}
			continue
		}
		assertAppError(t, err, http.StatusBadRequest)
	}
}

func TestHandlerCreate_InvalidJSON(t *testing.T) {
	h := NewHandler(newTestNoteService(t, &mockNoteRepo{}))
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notes", strings.NewReader("{"))
	c := e.NewContext(req, httptest.NewRecorder())

	assertAppError(t, h.Create(c), http.StatusBadRequest)
}

func TestHandlerList_BadQuery(t *testing.T) {
	h := NewHandler(newTestNoteService(t, &mockNoteRepo{}))
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notes?page=two", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	assertAppError(t, h.List(c), http.StatusBadRequest)
}

func TestHandlerCreate_Created(t *testing.T) {
	h := NewHandler(newTestNoteService(t, &mockNoteRepo{}))
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notes",
		strings.NewReader(`{"title":"Inbox","content":"todo"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"file_path":"inbox.md"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

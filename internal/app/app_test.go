package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/aarangop/note-rags-web-ui/internal/apperror"
	"github.com/aarangop/note-rags-web-ui/internal/config"
	"github.com/aarangop/note-rags-web-ui/internal/database/dbtest"
)

func newTestApp(t *testing.T) (*App, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := &config.Config{
		Env:     "test",
		BaseURL: "http://localhost:8080",
		Auth:    config.AuthConfig{SessionTTL: time.Hour},
		AutoSave: config.AutoSaveConfig{
			Debounce:      time.Hour,
			RetryAttempts: 0,
			RetryDelay:    time.Millisecond,
			SavedGrace:    time.Millisecond,
			DraftTTL:      time.Hour,
		},
	}
	a := New(cfg, dbtest.NewSQLite(t), rdb)
	if err := a.RegisterRoutes(); err != nil {
		t.Fatalf("RegisterRoutes: %v", err)
	}
	t.Cleanup(func() { a.Editor.Shutdown(context.Background()) })
	return a, mr
}

func request(t *testing.T, a *App, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

func TestAutoSaveFlow(t *testing.T) {
	a, _ := newTestApp(t)

	rec := request(t, a, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "ada@example.com", "display_name": "Ada", "password": "correct horse",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rec.Code, rec.Body)
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil || login.Token == "" {
		t.Fatalf("register body %s: %v", rec.Body, err)
	}

	rec = request(t, a, http.MethodPost, "/api/v1/notes", login.Token, map[string]string{
		"title": "Journal", "content": "day one",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create note: %d %s", rec.Code, rec.Body)
	}
	var created struct {
		ID int64 `json:"id"`
	}
	json.Unmarshal(rec.Body.Bytes(), &created)
	base := "/api/v1/notes/" + strconv.FormatInt(created.ID, 10)

	rec = request(t, a, http.MethodPut, base+"/draft", login.Token, map[string]string{"content": "day two"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("draft: %d %s", rec.Code, rec.Body)
	}

	rec = request(t, a, http.MethodGet, base+"/status", login.Token, nil)
	if !strings.Contains(rec.Body.String(), `"status":"unsaved"`) {
		t.Errorf("status before save: %s", rec.Body)
	}

	rec = request(t, a, http.MethodPost, base+"/save", login.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("save: %d %s", rec.Code, rec.Body)
	}

	rec = request(t, a, http.MethodGet, base, login.Token, nil)
	if !strings.Contains(rec.Body.String(), `"content":"day two"`) {
		t.Errorf("note after save: %s", rec.Body)
	}

	// The auto-save entry is written asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec = request(t, a, http.MethodGet, base+"/activity", login.Token, nil)
		body := rec.Body.String()
		if strings.Contains(body, `"action":"note.autosaved"`) {
			if !strings.Contains(body, `"action":"note.created"`) {
				t.Errorf("activity missing creation: %s", body)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("activity never showed the auto-save: %d %s", rec.Code, body)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHealthz(t *testing.T) {
	a, mr := newTestApp(t)

	rec := request(t, a, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d %s", rec.Code, rec.Body)
	}

	mr.SetError("LOADING")
	rec = request(t, a, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("healthz with failing redis: %d %s", rec.Code, rec.Body)
	}
	mr.SetError("")
}

func TestErrorHandler(t *testing.T) {
	a, _ := newTestApp(t)
	a.Echo.GET("/api/v1/boom", func(c echo.Context) error {
		return apperror.NewInternal(errors.New("table notes is locked"))
	})
	a.Echo.GET("/boom", func(c echo.Context) error {
		return apperror.NewNotFound("no <such> note")
	})

	rec := request(t, a, http.MethodGet, "/api/v1/boom", "", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("api status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "locked") {
		t.Errorf("internal error leaked: %s", rec.Body)
	}

	rec = request(t, a, http.MethodGet, "/boom", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("html status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "no &lt;such&gt; note") {
		t.Errorf("html body = %s", rec.Body)
	}

	rec = request(t, a, http.MethodGet, "/api/v1/missing", "", nil)
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), `"type":"http_error"`) {
		t.Errorf("router 404: %d %s", rec.Code, rec.Body)
	}
}

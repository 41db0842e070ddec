package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aarangop/note-rags-web-ui/internal/apperror"
)

const testSessionCookie = "notes_session"

func okHandler(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

// run executes mw+okHandler against req and returns the handler error.
func run(e *echo.Echo, mw echo.MiddlewareFunc, req *http.Request) (*httptest.ResponseRecorder, error) {
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, mw(okHandler)(c)
}

func assertHTTPStatus(t *testing.T, err error, code int) {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError %d, got %v", code, err)
	}
	if he.Code != code {
		t.Errorf("expected status %d, got %d", code, he.Code)
	}
}

// --- CSRF ---

func TestCSRF_SafeMethodIssuesCookie(t *testing.T) {
	e := echo.New()
	rec, err := run(e, CSRF(testSessionCookie), httptest.NewRequest(http.MethodGet, "/api/v1/notes", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Error("expected CSRF cookie to be set")
	}
}

func TestCSRF_BearerRequestSkipsCheck(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/notes/1/draft", nil)
	req.Header.Set("Authorization", "Bearer abc")
	req.AddCookie(&http.Cookie{Name: testSessionCookie, Value: "session"})

	if _, err := run(e, CSRF(testSessionCookie), req); err != nil {
		t.Fatalf("bearer request rejected: %v", err)
	}
}

func TestCSRF_CookieSessionRequiresToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notes/1/save", nil)
	req.AddCookie(&http.Cookie{Name: testSessionCookie, Value: "session"})
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "token-a"})

	_, err := run(e, CSRF(testSessionCookie), req)
	assertHTTPStatus(t, err, http.StatusForbidden)
}

func TestCSRF_CookieSessionWithMatchingToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notes/1/save", nil)
	req.AddCookie(&http.Cookie{Name: testSessionCookie, Value: "session"})
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "token-a"})
	req.Header.Set(csrfHeaderName, "token-a")

	if _, err := run(e, CSRF(testSessionCookie), req); err != nil {
		t.Fatalf("matching token rejected: %v", err)
	}
}

func TestCSRF_MismatchedToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/notes/1", nil)
	req.AddCookie(&http.Cookie{Name: testSessionCookie, Value: "session"})
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "token-a"})
	req.Header.Set(csrfHeaderName, "token-b")

	_, err := run(e, CSRF(testSessionCookie), req)
	assertHTTPStatus(t, err, http.StatusForbidden)
}

// --- RateLimit ---

func TestRateLimit_BlocksAfterBurst(t *testing.T) {
	e := echo.New()
	mw := RateLimit(2, time.Minute)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		if _, err := run(e, mw, req); err != nil {
			t.Fatalf("request %d rejected: %v", i+1, err)
		}
	}

	_, err := run(e, mw, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil))
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 AppError, got %v", err)
	}
}

func TestRateLimit_PerIP(t *testing.T) {
	e := echo.New()
	mw := RateLimit(1, time.Minute)

	first := httptest.NewRequest(http.MethodPost, "/", nil)
	first.RemoteAddr = "10.0.0.1:1234"
	second := httptest.NewRequest(http.MethodPost, "/", nil)
	second.RemoteAddr = "10.0.0.2:1234"

	if _, err := run(e, mw, first); err != nil {
		t.Fatalf("first IP rejected: %v", err)
	}
	if _, err := run(e, mw, second); err != nil {
		t.Fatalf("second IP rejected: %v", err)
	}
}

// --- RequestID ---

func TestRequestID_GeneratesAndEchoes(t *testing.T) {
	e := echo.New()
	rec, err := run(e, RequestID(), httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("expected X-Request-ID on response")
	}
}

func TestRequestID_KeepsValidIncomingID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "3f2b8c1e-6a7d-4e2f-9b1a-0c4d5e6f7a8b")

	rec, _ := run(e, RequestID(), req)
	if got := rec.Header().Get(requestIDHeader); got != "3f2b8c1e-6a7d-4e2f-9b1a-0c4d5e6f7a8b" {
		t.Errorf("request id = %q", got)
	}
}

// --- TrustedProxies ---

func TestIPExtractor_TrustsOnlyConfiguredProxies(t *testing.T) {
	extract := buildIPExtractor([]string{"10.0.0.0/8"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.1.2.3")
	if got := extract(req); got != "203.0.113.9" {
		t.Errorf("trusted proxy: got %q", got)
	}

	req.RemoteAddr = "198.51.100.7:5555"
	if got := extract(req); got != "198.51.100.7" {
		t.Errorf("untrusted peer: got %q", got)
	}
}

// --- Recovery ---

func TestRecovery_APIPanicReturnsJSON(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/notes", nil), rec)

	err := Recovery()(func(echo.Context) error { panic("boom") })(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, echo.MIMEApplicationJSON) {
		t.Errorf("content type = %q", ct)
	}
}

package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// csrfTokenLength is the number of random bytes in a CSRF token (32 bytes = 64 hex chars).
const csrfTokenLength = 32

// csrfCookieName is the name of the cookie that stores the CSRF token.
const csrfCookieName = "notes_csrf"

// csrfHeaderName is the header clients echo the token in.
const csrfHeaderName = "X-CSRF-Token"

// csrfFormField is the hidden form field name for plain form submissions.
const csrfFormField = "csrf_token"

// CSRF returns middleware that implements the double-submit cookie pattern
// for requests authenticated by the session cookie named sessionCookie.
//
//  1. On every request, if no CSRF cookie exists, generate one and set it.
//  2. Requests carrying a Bearer token or no session cookie pass through:
//     the browser cannot attach either on a forged request.
//  3. On mutating requests, the X-CSRF-Token header (or csrf_token form
//     field) must match the cookie, otherwise 403.
func CSRF(sessionCookie string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			cookie, err := req.Cookie(csrfCookieName)
			if err != nil || cookie.Value == "" {
				token, genErr := generateCSRFToken()
				if genErr != nil {
					return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate CSRF token")
				}

				c.SetCookie(&http.Cookie{
					Name:     csrfCookieName,
					Value:    token,
					Path:     "/",
					HttpOnly: false, // Must be readable by JS to echo it back.
					Secure:   req.TLS != nil || req.Header.Get("X-Forwarded-Proto") == "https",
					SameSite: http.SameSiteLaxMode,
				})
				c.Set("csrf_token", token)
				cookie = nil
			} else {
				c.Set("csrf_token", cookie.Value)
			}

			if isSafeMethod(req.Method) || !usesSessionCookie(req, sessionCookie) {
				return next(c)
			}

			// A freshly issued cookie cannot have been echoed yet.
			if cookie == nil {
				return echo.NewHTTPError(http.StatusForbidden, "invalid or missing CSRF token")
			}

			submittedToken := req.Header.Get(csrfHeaderName)
			if submittedToken == "" {
				submittedToken = req.FormValue(csrfFormField)
			}

			if submittedToken == "" || subtle.ConstantTimeCompare([]byte(submittedToken), []byte(cookie.Value)) != 1 {
				return echo.NewHTTPError(http.StatusForbidden, "invalid or missing CSRF token")
			}

			return next(c)
		}
	}
}

// usesSessionCookie reports whether the request would be authenticated by
// the session cookie rather than an Authorization header.
func usesSessionCookie(req *http.Request, sessionCookie string) bool {
	if strings.HasPrefix(req.Header.Get("Authorization"), "Bearer ") {
		return false
	}
	ck, err := req.Cookie(sessionCookie)
	return err == nil && ck.Value != ""
}

// isSafeMethod returns true for HTTP methods that should not change state.
func isSafeMethod(method string) bool {
	return method == http.MethodGet ||
		method == http.MethodHead ||
		method == http.MethodOptions
}

// generateCSRFToken generates a cryptographically random hex-encoded token.
func generateCSRFToken() (string, error) {
	b := make([]byte, csrfTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GetCSRFToken retrieves the CSRF token from the Echo context.
func GetCSRFToken(c echo.Context) string {
	if token, ok := c.Get("csrf_token").(string); ok {
		return token
	}
	return ""
}

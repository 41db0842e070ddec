package auth

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/aarangop/note-rags-web-ui/internal/apperror"
)

// SessionCookieName is the HTTP cookie used to store the session token.
const SessionCookieName = "notes_session"

// Handler handles HTTP requests for authentication (register, login, logout).
// Handlers are thin: they bind the request, call the service, and write the
// response. No business logic lives here.
type Handler struct {
	service AuthService
}

// NewHandler creates a new auth handler with the given service.
func NewHandler(service AuthService) *Handler {
	return &Handler{service: service}
}

// Register creates an account and logs it in (POST /api/v1/auth/register).
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return apperror.NewBadRequest("invalid JSON body")
	}
	if msg := validateRegisterRequest(&req); msg != "" {
		return apperror.NewValidation(msg)
	}

	ctx := c.Request().Context()
	if _, err := h.service.Register(ctx, RegisterInput{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
	}); err != nil {
		return err
	}

	token, user, err := h.service.Login(ctx, LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		return err
	}
	return h.writeLogin(c, http.StatusCreated, token, user)
}

// Login authenticates and starts a session (POST /api/v1/auth/login).
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return apperror.NewBadRequest("invalid JSON body")
	}
	if req.Email == "" || req.Password == "" {
		return apperror.NewValidation("email and password are required")
	}

	token, user, err := h.service.Login(c.Request().Context(), LoginInput(req))
	if err != nil {
		return err
	}
	return h.writeLogin(c, http.StatusOK, token, user)
}

// Logout destroys the session and clears the cookie (POST /api/v1/auth/logout).
func (h *Handler) Logout(c echo.Context) error {
	if token, _ := sessionToken(c); token != "" {
		// The cookie is cleared even if Redis is unreachable.
		_ = h.service.DestroySession(c.Request().Context(), token)
	}
	clearSessionCookie(c)
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated user (GET /api/v1/auth/me).
func (h *Handler) Me(c echo.Context) error {
	userID := GetUserID(c)
	if userID == "" {
		return apperror.NewMissingContext()
	}
	user, err := h.service.GetUser(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (h *Handler) writeLogin(c echo.Context, status int, token string, user *User) error {
	ttl := h.service.SessionTTL()
	setSessionCookie(c, token, ttl)
	return c.JSON(status, LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(ttl),
		User:      user,
	})
}

// --- Cookie helpers ---

// getSessionToken reads the session token from the cookie.
func getSessionToken(c echo.Context) string {
	cookie, err := c.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	return cookie.Value
}

// setSessionCookie sets the session cookie on the response. The cookie is
// HttpOnly, Secure behind TLS, and SameSite=Lax.
func setSessionCookie(c echo.Context, token string, ttl time.Duration) {
	req := c.Request()
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   req.TLS != nil || req.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})
}

// clearSessionCookie removes the session cookie by setting MaxAge to -1.
func clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// --- Validation helpers ---

// validateRegisterRequest performs server-side validation on the
// registration payload. Returns an error message or empty string.
func validateRegisterRequest(req *RegisterRequest) string {
	if req.Email == "" {
		return "email is required"
	}
	if len(req.Email) > 255 {
		return "email must be at most 255 characters"
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return "email is invalid"
	}
	names := utf8.RuneCountInString(req.DisplayName)
	if names < 2 {
		return "display name must be at least 2 characters"
	}
	if names > 100 {
		return "display name must be at most 100 characters"
	}
	if len(req.Password) < 8 {
		return "password must be at least 8 characters"
	}
	if len(req.Password) > 128 {
		return "password must be at most 128 characters"
	}
	return ""
}

// ValidateRegistration exposes the registration rules to the user-add CLI.
func ValidateRegistration(email, displayName, password string) string {
	return validateRegisterRequest(&RegisterRequest{Email: email, DisplayName: displayName, Password: password})
}

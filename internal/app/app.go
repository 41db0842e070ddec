// Package app is the application bootstrap and dependency injection root.
// It holds the shared infrastructure (DB pool, Redis client, Echo instance)
// and wires the auth, notes, audit and editor plugins together.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/aarangop/note-rags-web-ui/internal/apperror"
	"github.com/aarangop/note-rags-web-ui/internal/config"
	"github.com/aarangop/note-rags-web-ui/internal/middleware"
	"github.com/aarangop/note-rags-web-ui/internal/plugins/auth"
	"github.com/aarangop/note-rags-web-ui/internal/plugins/editor"
)

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go and used to register all routes.
type App struct {
	// Config holds the loaded application configuration.
	Config *config.Config

	// DB is the SQL connection pool shared by all plugins.
	DB *sql.DB

	// Redis holds sessions, drafts and the save-status projection.
	Redis *redis.Client

	// Echo is the HTTP server instance.
	Echo *echo.Echo

	// Editor owns the open editing sessions. Set by RegisterRoutes.
	Editor *editor.Manager
}

// New creates a new App instance with the given dependencies and configures
// the Echo server with global middleware and error handling.
func New(cfg *config.Config, db *sql.DB, rdb *redis.Client) *App {
	e := echo.New()

	// Disable Echo's default banner and startup message -- we log our own.
	e.HideBanner = true
	e.HidePort = true

	// c.RealIP() must resolve the client behind a reverse proxy, since rate
	// limiting keys on it.
	middleware.TrustedProxies(e, middleware.DefaultTrustedCIDRs)

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		Echo:   e,
	}

	app.setupMiddleware()
	e.HTTPErrorHandler = app.errorHandler

	return app
}

// setupMiddleware registers global middleware on the Echo instance.
// Order matters: outermost (recovery) runs first, innermost (CSRF) runs last.
func (a *App) setupMiddleware() {
	// Panic recovery -- must be outermost to catch panics from all other middleware.
	a.Echo.Use(middleware.Recovery())

	// Request id before logging so every log line can carry it.
	a.Echo.Use(middleware.RequestID())
	a.Echo.Use(middleware.RequestLogger())

	a.Echo.Use(middleware.SecurityHeaders())
	a.Echo.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   []string{a.Config.BaseURL},
		AllowCredentials: true,
	}))

	// CSRF -- double-submit cookie on cookie-authenticated mutations.
	a.Echo.Use(middleware.CSRF(auth.SessionCookieName))
}

// errorHandler is the custom Echo error handler. It maps domain errors
// (AppError) to HTTP responses: JSON for API requests, an HTML error
// fragment for everything else.
//
// HTMX requests get HX-Retarget and HX-Reswap so the fragment replaces the
// body instead of landing in a partial target.
func (a *App) errorHandler(err error, c echo.Context) {
	// Don't double-write if response is already committed.
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "An unexpected error occurred"
	errType := "internal_error"

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
		message = appErr.Message
		errType = appErr.Type

		// Log internal errors with the underlying cause.
		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
				slog.String("request_id", middleware.GetRequestID(c)),
			)
		}
	} else {
		// Echo's built-in HTTP errors (e.g., 404 from router, 413 from body limit).
		var echoErr *echo.HTTPError
		if errors.As(err, &echoErr) {
			code = echoErr.Code
			errType = "http_error"
			if msg, ok := echoErr.Message.(string); ok {
				message = msg
			} else {
				message = defaultErrorMessage(code)
			}
		} else {
			slog.Error("unhandled error",
				slog.Any("error", err),
				slog.String("path", c.Request().URL.Path),
				slog.String("request_id", middleware.GetRequestID(c)),
			)
		}
	}

	if middleware.IsAPI(c) {
		c.JSON(code, map[string]string{
			"error":   http.StatusText(code),
			"type":    errType,
			"message": message,
		})
		return
	}

	if middleware.IsHTMX(c) {
		c.Response().Header().Set("HX-Retarget", "body")
		c.Response().Header().Set("HX-Reswap", "innerHTML")
	}

	middleware.Render(c, code, ErrorFragment(code, message))
}

// defaultErrorMessage returns a user-friendly message for common HTTP status codes
// when no specific message was provided by the error.
func defaultErrorMessage(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "The request was invalid or cannot be processed."
	case http.StatusUnauthorized:
		return "You need to log in to access this page."
	case http.StatusForbidden:
		return "You don't have permission to access this resource."
	case http.StatusNotFound:
		return "The page you're looking for doesn't exist or has been moved."
	case http.StatusMethodNotAllowed:
		return "This action is not allowed."
	case http.StatusRequestEntityTooLarge:
		return "The request body is too large."
	case http.StatusTooManyRequests:
		return "You're making too many requests. Please slow down."
	case http.StatusServiceUnavailable:
		return "The service is temporarily unavailable. Please try again later."
	default:
		return "An unexpected error occurred."
	}
}

// Start begins listening for HTTP requests on the configured port.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting notes server",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
	)
	return a.Echo.Start(addr)
}

// Shutdown stops accepting requests, then flushes every open editing
// session so no draft is lost.
func (a *App) Shutdown(ctx context.Context) error {
	httpErr := a.Echo.Shutdown(ctx)

	var flushErr error
	if a.Editor != nil {
		flushErr = a.Editor.Shutdown(ctx)
	}
	return errors.Join(httpErr, flushErr)
}

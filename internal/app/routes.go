package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aarangop/note-rags-web-ui/internal/plugins/audit"
	"github.com/aarangop/note-rags-web-ui/internal/plugins/auth"
	"github.com/aarangop/note-rags-web-ui/internal/plugins/editor"
	"github.com/aarangop/note-rags-web-ui/internal/plugins/notes"
)

// healthTimeout bounds each dependency ping in /healthz.
const healthTimeout = 2 * time.Second

// RegisterRoutes builds every plugin and registers its routes. This is the
// single place where plugins are wired together.
func (a *App) RegisterRoutes() error {
	e := a.Echo

	// Health check for container orchestration.
	e.GET("/healthz", a.healthz)

	// --- Auth plugin ---
	userRepo := auth.NewUserRepository(a.DB)
	authService := auth.NewAuthService(userRepo, a.Redis, a.Config.Auth.SessionTTL)
	auth.RegisterRoutes(e, auth.NewHandler(authService), authService)

	// --- Notes plugin ---
	validator, err := notes.NewMetadataValidator()
	if err != nil {
		return fmt.Errorf("building metadata validator: %w", err)
	}
	noteService := notes.NewNoteService(notes.NewNoteRepository(a.DB), validator)

	// --- Audit plugin (activity log) ---
	auditService := audit.NewAuditService(audit.NewAuditRepository(a.DB))
	audit.RegisterRoutes(e, audit.NewHandler(auditService, noteService), authService)

	notesHandler := notes.NewHandler(noteService)
	notesHandler.SetActivity(auditService)
	notes.RegisterRoutes(e, notesHandler, authService)

	// --- Editor plugin (auto-save) ---
	store := editor.NewStore(a.Redis, a.Config.AutoSave.DraftTTL)
	a.Editor = editor.NewManager(noteService, store, a.Config.AutoSave, editor.WithActivity(auditService))
	editor.RegisterRoutes(e, editor.NewHandler(a.Editor), authService)

	return nil
}

// healthz reports whether the database and Redis answer.
func (a *App) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	checks := map[string]string{"database": "ok", "redis": "ok"}
	status := http.StatusOK

	if err := a.DB.PingContext(ctx); err != nil {
		checks["database"] = "unavailable"
		status = http.StatusServiceUnavailable
	}
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		checks["redis"] = "unavailable"
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusOK {
		checks["status"] = "ok"
	} else {
		checks["status"] = "degraded"
	}
	return c.JSON(status, checks)
}

package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aarangop/note-rags-web-ui/internal/apperror"
	"github.com/aarangop/note-rags-web-ui/internal/plugins/notes"
)

// perPage is the number of entries returned per page.
const perPage = 50

// recordTimeout bounds a best-effort write made by Record.
const recordTimeout = 5 * time.Second

// AuditService handles business logic for the audit log.
type AuditService interface {
	notes.ActivityRecorder

	// Log validates and persists an entry.
	Log(ctx context.Context, entry *Entry) error

	// NoteHistory returns one page of a note's activity.
	NoteHistory(ctx context.Context, noteID int64, page int) (*ActivityPage, error)

	// UserActivity returns one page of the user's activity across notes.
	UserActivity(ctx context.Context, userID string, page int) (*ActivityPage, error)
}

// auditService implements AuditService.
type auditService struct {
	repo AuditRepository
}

// NewAuditService creates a new audit service with the given repository.
func NewAuditService(repo AuditRepository) AuditService {
	return &auditService{repo: repo}
}

// Log validates and persists an audit entry. Missing required fields cause
// a validation error. Write failures are logged via slog as well.
func (s *auditService) Log(ctx context.Context, entry *Entry) error {
	if entry.UserID == "" {
		return apperror.NewBadRequest("user ID is required for audit entry")
	}
	if entry.NoteID <= 0 {
		return apperror.NewBadRequest("note ID is required for audit entry")
	}
	if entry.Action == "" {
		return apperror.NewBadRequest("action is required for audit entry")
	}

	if err := s.repo.Log(ctx, entry); err != nil {
		slog.Error("failed to write audit log entry",
			slog.Int64("note_id", entry.NoteID),
			slog.String("action", entry.Action),
			slog.Any("error", err),
		)
		return apperror.NewInternal(fmt.Errorf("writing audit entry: %w", err))
	}
	return nil
}

// Record is the fire-and-forget form of Log. It detaches from ctx's
// cancellation so a finished request still gets its entry written.
func (s *auditService) Record(ctx context.Context, userID string, noteID int64, action string, details map[string]any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	_ = s.Log(ctx, &Entry{
		UserID:  userID,
		NoteID:  noteID,
		Action:  action,
		Details: details,
	})
}

// NoteHistory returns a note's activity. Pages are 1-indexed; invalid page
// numbers are clamped to 1.
func (s *auditService) NoteHistory(ctx context.Context, noteID int64, page int) (*ActivityPage, error) {
	if page < 1 {
		page = 1
	}
	entries, total, err := s.repo.ListByNote(ctx, noteID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing note activity: %w", err))
	}
	return &ActivityPage{Items: entries, Page: page, Total: total}, nil
}

// UserActivity returns the user's activity feed.
func (s *auditService) UserActivity(ctx context.Context, userID string, page int) (*ActivityPage, error) {
	if page < 1 {
		page = 1
	}
	entries, total, err := s.repo.ListByUser(ctx, userID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing user activity: %w", err))
	}
	return &ActivityPage{Items: entries, Page: page, Total: total}, nil
}

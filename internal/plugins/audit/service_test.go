package audit

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/aarangop/note-rags-web-ui/internal/apperror"
	"github.com/aarangop/note-rags-web-ui/internal/plugins/notes"
)

// mockAuditRepo implements AuditRepository for service tests.
type mockAuditRepo struct {
	logFn        func(ctx context.Context, entry *Entry) error
	listByNoteFn func(ctx context.Context, noteID int64, limit, offset int) ([]Entry, int, error)
	listByUserFn func(ctx context.Context, userID string, limit, offset int) ([]Entry, int, error)
}

func (m *mockAuditRepo) Log(ctx context.Context, entry *Entry) error {
	if m.logFn != nil {
		return m.logFn(ctx, entry)
	}
	return nil
}

func (m *mockAuditRepo) ListByNote(ctx context.Context, noteID int64, limit, offset int) ([]Entry, int, error) {
	if m.listByNoteFn != nil {
		return m.listByNoteFn(ctx, noteID, limit, offset)
	}
	return nil, 0, nil
}

func (m *mockAuditRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Entry, int, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID, limit, offset)
	}
	return nil, 0, nil
}

func assertAppError(t *testing.T, err error, wantCode int) {
	t.Helper()
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	if appErr.Code != wantCode {
		t.Errorf("expected status %d, got %d (%s)", wantCode, appErr.Code, appErr.Message)
	}
}

func TestLog_Validation(t *testing.T) {
	svc := NewAuditService(&mockAuditRepo{})
	tests := []struct {
		name  string
		entry Entry
	}{
		{"missing user", Entry{NoteID: 1, Action: notes.ActionCreated}},
		{"missing note", Entry{UserID: "u", Action: notes.ActionCreated}},
		{"missing action", Entry{UserID: "u", NoteID: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := tt.entry
			assertAppError(t, svc.Log(context.Background(), &entry), http.StatusBadRequest)
		})
	}
}

func TestLog_RepoError(t *testing.T) {
	svc := NewAuditService(&mockAuditRepo{
		logFn: func(context.Context, *Entry) error { return errors.New("disk full") },
	})
	err := svc.Log(context.Background(), &Entry{UserID: "u", NoteID: 1, Action: notes.ActionUpdated})
	assertAppError(t, err, http.StatusInternalServerError)
}

func TestRecord_SurvivesCancelledContext(t *testing.T) {
	var got *Entry
	svc := NewAuditService(&mockAuditRepo{
		logFn: func(ctx context.Context, entry *Entry) error {
			if ctx.Err() != nil {
				t.Errorf("repo saw cancelled context: %v", ctx.Err())
			}
			got = entry
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Record(ctx, "user-1", 7, notes.ActionAutosaved, map[string]any{"bytes": 12})

	if got == nil {
		t.Fatal("expected entry to be logged")
	}
	if got.UserID != "user-1" || got.NoteID != 7 || got.Action != notes.ActionAutosaved {
		t.Errorf("entry = %+v", got)
	}
	if got.Details["bytes"] != 12 {
		t.Errorf("details = %v", got.Details)
	}
}

func TestRecord_SwallowsErrors(t *testing.T) {
	svc := NewAuditService(&mockAuditRepo{
		logFn: func(context.Context, *Entry) error { return errors.New("boom") },
	})
	// Must not panic; nothing is returned.
	svc.Record(context.Background(), "user-1", 7, notes.ActionAutosaveFailed, nil)
}

func TestNoteHistory_Paging(t *testing.T) {
	var gotLimit, gotOffset int
	svc := NewAuditService(&mockAuditRepo{
		listByNoteFn: func(_ context.Context, noteID int64, limit, offset int) ([]Entry, int, error) {
			gotLimit, gotOffset = limit, offset
			return []Entry{{NoteID: noteID}}, 51, nil
		},
	})

	page, err := svc.NoteHistory(context.Background(), 3, 2)
	if err != nil {
		t.Fatalf("NoteHistory: %v", err)
	}
	if gotLimit != perPage || gotOffset != perPage {
		t.Errorf("limit/offset = %d/%d", gotLimit, gotOffset)
	}
	if page.Page != 2 || page.Total != 51 || len(page.Items) != 1 {
		t.Errorf("page = %+v", page)
	}

	page, err = svc.NoteHistory(context.Background(), 3, -4)
	if err != nil {
		t.Fatalf("NoteHistory: %v", err)
	}
	if page.Page != 1 || gotOffset != 0 {
		t.Errorf("invalid page not clamped: page=%d offset=%d", page.Page, gotOffset)
	}
}

func TestUserActivity_RepoError(t *testing.T) {
	svc := NewAuditService(&mockAuditRepo{
		listByUserFn: func(context.Context, string, int, int) ([]Entry, int, error) {
			return nil, 0, errors.New("connection reset")
		},
	})
	_, err := svc.UserActivity(context.Background(), "user-1", 1)
	assertAppError(t, err, http.StatusInternalServerError)
}

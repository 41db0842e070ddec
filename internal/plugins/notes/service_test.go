package notes

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aarangop/note-rags-web-ui/internal/apperror"
)

// --- Mock Repository ---

// mockNoteRepo implements NoteRepository for testing.
type mockNoteRepo struct {
	createFn     func(ctx context.Context, note *Note) error
	findByIDFn   func(ctx context.Context, id int64) (*Note, error)
	updateFn     func(ctx context.Context, note *Note) error
	deleteFn     func(ctx context.Context, id int64) error
	listByUserFn func(ctx context.Context, userID string, offset, limit int) ([]Note, int, error)
}

func (m *mockNoteRepo) Create(ctx context.Context, note *Note) error {
	if m.createFn != nil {
		return m.createFn(ctx, note)
	}
	note.ID = 1
	return nil
}

func (m *mockNoteRepo) FindByID(ctx context.Context, id int64) (*Note, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, apperror.NewNotFound("note not found")
}

func (m *mockNoteRepo) Update(ctx context.Context, note *Note) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, note)
	}
	return nil
}

func (m *mockNoteRepo) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockNoteRepo) ListByUser(ctx context.Context, userID string, offset, limit int) ([]Note, int, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID, offset, limit)
	}
	return []Note{}, 0, nil
}

// --- Test Helpers ---

var fixedNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func newTestNoteService(t *testing.T, repo *mockNoteRepo) *noteService {
	t.Helper()
	validator, err := NewMetadataValidator()
	if err != nil {
		t.Fatalf("NewMetadataValidator: %v", err)
	}
	return &noteService{
		repo:      repo,
		validator: validator,
		now:       func() time.Time { return fixedNow },
	}
}

func assertAppError(t *testing.T, err error, expectedCode int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", expectedCode)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected status %d, got %d (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

func strPtr(s string) *string { return &s }

func storedNote() *Note {
	return &Note{
		ID:           7,
		UserID:       "user-1",
		Title:        "Groceries",
		Content:      "- eggs",
		FilePath:     "groceries.md",
		DocumentType: DocumentTypeNote,
		Metadata:     map[string]any{},
		CreatedAt:    fixedNow.Add(-time.Hour),
		UpdatedAt:    fixedNow.Add(-time.Hour),
	}
}

// --- Create ---

func TestCreate_Defaults(t *testing.T) {
	var saved *Note
	repo := &mockNoteRepo{
		createFn: func(ctx context.Context, note *Note) error {
			saved = note
			note.ID = 42
			return nil
		},
	}
	svc := newTestNoteService(t, repo)

	note, err := svc.Create(context.Background(), "user-1", CreateNoteRequest{Content: "# hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved == nil || note.ID != 42 {
		t.Fatalf("note not persisted: %+v", note)
	}
	if note.Title != "Untitled" {
		t.Errorf("Title = %q, want Untitled", note.Title)
	}
	if note.FilePath != "untitled.md" {
		t.Errorf("FilePath = %q, want untitled.md", note.FilePath)
	}
	if note.DocumentType != DocumentTypeNote {
		t.Errorf("DocumentType = %q", note.DocumentType)
	}
	if note.Metadata == nil {
		t.Error("expected empty metadata map, got nil")
	}
	if !note.CreatedAt.Equal(fixedNow) || !note.UpdatedAt.Equal(fixedNow) {
		t.Errorf("timestamps = %v / %v", note.CreatedAt, note.UpdatedAt)
	}
}

func TestCreate_SanitizesTitleAndDerivesPath(t *testing.T) {
	svc := newTestNoteService(t, &mockNoteRepo{})

	note, err := svc.Create(context.Background(), "user-1", CreateNoteRequest{
		Title:        "<b>Trip</b>   Plans 2026",
		DocumentType: DocumentTypePDF,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if note.Title != "Trip Plans 2026" {
		t.Errorf("Title = %q", note.Title)
	}
	if note.FilePath != "trip-plans-2026.pdf" {
		t.Errorf("FilePath = %q", note.FilePath)
	}
}

func TestCreate_KeepsContentVerbatim(t *testing.T) {
	svc := newTestNoteService(t, &mockNoteRepo{})
	content := "<script>alert(1)</script>\n\n```go\nx := 1\n```"

	note, err := svc.Create(context.Background(), "user-1", CreateNoteRequest{Title: "x", Content: content})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if note.Content != content {
		t.Errorf("content was modified: %q", note.Content)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := newTestNoteService(t, &mockNoteRepo{
		createFn: func(ctx context.Context, note *Note) error {
			t.Fatal("Create must not reach the repository")
			return nil
		},
	})

	tests := []struct {
		name string
		req  CreateNoteRequest
		code int
	}{
		{"bad document type", CreateNoteRequest{DocumentType: "docx"}, http.StatusUnprocessableEntity},
		{"absolute path", CreateNoteRequest{FilePath: "/etc/passwd"}, http.StatusUnprocessableEntity},
		{"escaping path", CreateNoteRequest{FilePath: "notes/../../secret.md"}, http.StatusUnprocessableEntity},
		{"long title", CreateNoteRequest{Title: strings.Repeat("a", MaxTitleLength+1)}, http.StatusBadRequest},
		{"empty metadata key", CreateNoteRequest{Metadata: map[string]any{"": "x"}}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "user-1", tt.req)
			assertAppError(t, err, tt.code)
		})
	}
}

func TestCreate_RepoErrorIsInternal(t *testing.T) {
	svc := newTestNoteService(t, &mockNoteRepo{
		createFn: func(ctx context.Context, note *Note) error { return errors.New("disk full") },
	})

	_, err := svc.Create(context.Background(), "user-1", CreateNoteRequest{Title: "x"})
	assertAppError(t, err, http.StatusInternalServerError)
}

// --- Update ---

func TestUpdate_ContentOnly(t *testing.T) {
	var saved *Note
	repo := &mockNoteRepo{
		findByIDFn: func(ctx context.Context, id int64) (*Note, error) { return storedNote(), nil },
		updateFn: func(ctx context.Context, note *Note) error {
			saved = note
			return nil
		},
	}
	svc := newTestNoteService(t, repo)

	note, err := svc.Update(context.Background(), 7, UpdateNoteRequest{Content: strPtr("- eggs\n- milk")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved == nil {
		t.Fatal("expected repo.Update to be called")
	}
	if note.Content != "- eggs\n- milk" {
		t.Errorf("Content = %q", note.Content)
	}
	if note.Title != "Groceries" {
		t.Errorf("Title changed to %q", note.Title)
	}
	if !note.UpdatedAt.Equal(fixedNow) {
		t.Errorf("UpdatedAt = %v, want %v", note.UpdatedAt, fixedNow)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc := newTestNoteService(t, &mockNoteRepo{})

	_, err := svc.Update(context.Background(), 99, UpdateNoteRequest{Content: strPtr("x")})
	assertAppError(t, err, http.StatusNotFound)
}

func TestUpdate_RepoErrorIsInternal(t *testing.T) {
	svc := newTestNoteService(t, &mockNoteRepo{
		findByIDFn: func(ctx context.Context, id int64) (*Note, error) { return storedNote(), nil },
		updateFn:   func(ctx context.Context, note *Note) error { return errors.New("deadlock") },
	})

	_, err := svc.Update(context.Background(), 7, UpdateNoteRequest{Content: strPtr("x")})
	assertAppError(t, err, http.StatusInternalServerError)
}

// --- GetForUser / List ---

func TestGetForUser_HidesOtherUsersNotes(t *testing.T) {
	svc := newTestNoteService(t, &mockNoteRepo{
		findByIDFn: func(ctx context.Context, id int64) (*Note, error) { return storedNote(), nil },
	})

	if _, err := svc.GetForUser(context.Background(), 7, "user-1"); err != nil {
		t.Fatalf("owner lookup: %v", err)
	}
	_, err := svc.GetForUser(context.Background(), 7, "user-2")
	assertAppError(t, err, http.StatusNotFound)
}

func TestList_Pagination(t *testing.T) {
	var gotOffset, gotLimit int
	svc := newTestNoteService(t, &mockNoteRepo{
		listByUserFn: func(ctx context.Context, userID string, offset, limit int) ([]Note, int, error) {
			gotOffset, gotLimit = offset, limit
			return []Note{*storedNote()}, 25, nil
		},
	})

	page, err := svc.List(context.Background(), "user-1", 3, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotOffset != 24 || gotLimit != DefaultPageSize {
		t.Errorf("offset/limit = %d/%d, want 24/%d", gotOffset, gotLimit, DefaultPageSize)
	}
	if page.Pages != 3 || page.Total != 25 || page.Page != 3 {
		t.Errorf("page = %+v", page)
	}
}

func TestList_RejectsBadBounds(t *testing.T) {
	svc := newTestNoteService(t, &mockNoteRepo{})

	_, err := svc.List(context.Background(), "user-1", -1, 10)
	assertAppError(t, err, http.StatusBadRequest)

	_, err = svc.List(context.Background(), "user-1", 1, MaxPageSize+1)
	assertAppError(t, err, http.StatusBadRequest)
}

package notes

import (
	"context"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aarangop/note-rags-web-ui/internal/apperror"
	"github.com/aarangop/note-rags-web-ui/internal/sanitize"
)

// NoteService defines the business logic contract for notes.
type NoteService interface {
	Create(ctx context.Context, userID string, req CreateNoteRequest) (*Note, error)
	GetByID(ctx context.Context, id int64) (*Note, error)
	Update(ctx context.Context, id int64, req UpdateNoteRequest) (*Note, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, userID string, page, size int) (*NotesPage, error)

	// GetForUser returns the note only if userID owns it. Other users get
	// NotFound so note ids cannot be probed.
	GetForUser(ctx context.Context, id int64, userID string) (*Note, error)
}

// noteService implements NoteService.
type noteService struct {
	repo      NoteRepository
	validator *MetadataValidator
	now       func() time.Time
}

// NewNoteService creates a new note service.
func NewNoteService(repo NoteRepository, validator *MetadataValidator) NoteService {
	return &noteService{
		repo:      repo,
		validator: validator,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create validates and persists a new note.
func (s *noteService) Create(ctx context.Context, userID string, req CreateNoteRequest) (*Note, error) {
	title, err := cleanTitle(req.Title)
	if err != nil {
		return nil, err
	}

	docType := strings.TrimSpace(req.DocumentType)
	if docType == "" {
		docType = DocumentTypeNote
	}
	if docType != DocumentTypeNote && docType != DocumentTypePDF {
		return nil, apperror.NewValidation("document_type must be \"note\" or \"pdf\"")
	}

	filePath, err := cleanFilePath(req.FilePath, title, docType)
	if err != nil {
		return nil, err
	}

	if err := s.validator.Validate(req.Metadata); err != nil {
		return nil, err
	}
	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	now := s.now()
	note := &Note{
		UserID:       userID,
		Title:        title,
		Content:      req.Content,
		FilePath:     filePath,
		DocumentType: docType,
		Metadata:     metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, note); err != nil {
		return nil, apperror.NewInternal(err)
	}

	slog.Info("note created",
		slog.Int64("note_id", note.ID),
		slog.String("user_id", userID),
	)
	return note, nil
}

// GetByID retrieves a note by ID.
func (s *noteService) GetByID(ctx context.Context, id int64) (*Note, error) {
	note, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, wrapRepoError(err)
	}
	return note, nil
}

// GetForUser retrieves a note owned by userID.
func (s *noteService) GetForUser(ctx context.Context, id int64, userID string) (*Note, error) {
	note, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if note.UserID != userID {
		return nil, apperror.NewNotFound("note not found")
	}
	return note, nil
}

// Update applies a partial update. Content is stored verbatim.
func (s *noteService) Update(ctx context.Context, id int64, req UpdateNoteRequest) (*Note, error) {
	note, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		title, err := cleanTitle(*req.Title)
		if err != nil {
			return nil, err
		}
		note.Title = title
	}
	if req.Content != nil {
		note.Content = *req.Content
	}
	if req.Metadata != nil {
		if err := s.validator.Validate(req.Metadata); err != nil {
			return nil, err
		}
		note.Metadata = req.Metadata
	}
	note.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, note); err != nil {
		return nil, wrapRepoError(err)
	}
	return note, nil
}

// Delete removes a note.
func (s *noteService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return wrapRepoError(err)
	}
	slog.Info("note deleted", slog.Int64("note_id", id))
	return nil
}

// List returns one page of the user's notes. Zero page or size take the
// defaults; out-of-range values are rejected.
func (s *noteService) List(ctx context.Context, userID string, page, size int) (*NotesPage, error) {
	if page == 0 {
		page = DefaultPage
	}
	if size == 0 {
		size = DefaultPageSize
	}
	if page < 1 {
		return nil, apperror.NewBadRequest("page must be at least 1")
	}
	if size < 1 || size > MaxPageSize {
		return nil, apperror.NewBadRequest("size must be between 1 and 100")
	}

	items, total, err := s.repo.ListByUser(ctx, userID, (page-1)*size, size)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	return &NotesPage{
		Items: items,
		Page:  page,
		Size:  size,
		Total: total,
		Pages: (total + size - 1) / size,
	}, nil
}

// --- Helpers ---

// cleanTitle strips markup and applies the "Untitled" default and length cap.
func cleanTitle(raw string) (string, error) {
	title := sanitize.Text(raw)
	if title == "" {
		title = "Untitled"
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", apperror.NewBadRequest("title must be 200 characters or less")
	}
	return title, nil
}

// nonSlug matches runs of characters not allowed in generated file names.
var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// cleanFilePath validates a client-supplied relative path, or derives one
// from the title when none is given.
func cleanFilePath(raw, title, docType string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
		if slug == "" {
			slug = "untitled"
		}
		ext := ".md"
		if docType == DocumentTypePDF {
			ext = ".pdf"
		}
		return slug + ext, nil
	}

	cleaned := path.Clean(strings.ReplaceAll(raw, "\\", "/"))
	if path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", apperror.NewValidation("file_path must be a relative path inside the notes directory")
	}
	if len(cleaned) > MaxFilePathLength {
		return "", apperror.NewValidation("file_path must be 512 characters or less")
	}
	return cleaned, nil
}

// wrapRepoError passes AppErrors through and hides everything else behind a
// generic internal error.
func wrapRepoError(err error) error {
	if _, ok := err.(*apperror.AppError); ok {
		return err
	}
	return apperror.NewInternal(err)
}

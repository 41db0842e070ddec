package notes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aarangop/note-rags-web-ui/internal/apperror"
)

// NoteRepository defines the data access contract for note operations.
// All SQL lives in the concrete implementation and runs unchanged on
// MariaDB and SQLite.
type NoteRepository interface {
	// Create inserts note and sets note.ID.
	Create(ctx context.Context, note *Note) error
	FindByID(ctx context.Context, id int64) (*Note, error)
	Update(ctx context.Context, note *Note) error
	Delete(ctx context.Context, id int64) error

	// ListByUser returns one page of a user's notes, most recently updated
	// first, and the user's total note count.
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]Note, int, error)
}

// noteRepository implements NoteRepository with hand-written SQL.
type noteRepository struct {
	db *sql.DB
}

// NewNoteRepository creates a new note repository backed by the given DB pool.
func NewNoteRepository(db *sql.DB) NoteRepository {
	return &noteRepository{db: db}
}

// noteColumns is the SELECT column list for notes queries.
const noteColumns = `id, user_id, title, content, file_path, document_type,
	metadata, created_at, updated_at`

// Create inserts a new note into the database.
func (r *noteRepository) Create(ctx context.Context, note *Note) error {
	metadata, err := encodeMetadata(note.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO notes
		(user_id, title, content, file_path, document_type, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		note.UserID, note.Title, note.Content, note.FilePath,
		note.DocumentType, metadata, note.CreatedAt, note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting note: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading note id: %w", err)
	}
	note.ID = id
	return nil
}

// FindByID retrieves a note by its ID.
// Returns apperror.NotFound if no note exists with this ID.
func (r *noteRepository) FindByID(ctx context.Context, id int64) (*Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id = ?`
	return scanNote(r.db.QueryRowContext(ctx, query, id))
}

// Update saves title, content, metadata and updated_at of an existing note.
func (r *noteRepository) Update(ctx context.Context, note *Note) error {
	metadata, err := encodeMetadata(note.Metadata)
	if err != nil {
		return err
	}

	query := `UPDATE notes
		SET title = ?, content = ?, metadata = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		note.Title, note.Content, metadata, note.UpdatedAt, note.ID,
	)
	if err != nil {
		return fmt.Errorf("updating note: %w", err)
	}

	// MariaDB reports 0 affected rows when nothing changed, so existence is
	// checked separately.
	if n, _ := result.RowsAffected(); n == 0 {
		if _, err := r.FindByID(ctx, note.ID); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a note.
func (r *noteRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting note: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperror.NewNotFound("note not found")
	}
	return nil
}

// ListByUser returns a page of notes owned by userID and the total count.
func (r *noteRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]Note, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notes WHERE user_id = ?`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting notes: %w", err)
	}

	query := `SELECT ` + noteColumns + ` FROM notes
		WHERE user_id = ?
		ORDER BY updated_at DESC, id DESC
		LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing notes: %w", err)
	}
	defer rows.Close()

	notes := []Note{}
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		notes = append(notes, *note)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating notes: %w", err)
	}
	return notes, total, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanNote reads one row in noteColumns order.
func scanNote(row scanner) (*Note, error) {
	var (
		note     Note
		metadata sql.NullString
	)
	err := row.Scan(
		&note.ID, &note.UserID, &note.Title, &note.Content, &note.FilePath,
		&note.DocumentType, &metadata, &note.CreatedAt, &note.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("note not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scanning note: %w", err)
	}

	note.Metadata = map[string]any{}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &note.Metadata); err != nil {
			return nil, fmt.Errorf("decoding note metadata: %w", err)
		}
	}
	return &note, nil
}

// encodeMetadata marshals metadata for the JSON/TEXT column. Empty metadata
// is stored as NULL.
func encodeMetadata(metadata map[string]any) (sql.NullString, error) {
	if len(metadata) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding note metadata: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

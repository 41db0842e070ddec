package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// AuditRepository defines the data access contract for audit log operations.
// All SQL lives in the concrete implementation -- no SQL leaks out.
type AuditRepository interface {
	// Log inserts a new entry and sets entry.ID.
	Log(ctx context.Context, entry *Entry) error

	// ListByNote returns one page of a note's entries, most recent first,
	// and the note's total entry count.
	ListByNote(ctx context.Context, noteID int64, limit, offset int) ([]Entry, int, error)

	// ListByUser returns one page of a user's entries across all notes.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Entry, int, error)
}

// auditRepository implements AuditRepository with SQL that runs on MariaDB
// and SQLite alike.
type auditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new repository backed by the given DB pool.
func NewAuditRepository(db *sql.DB) AuditRepository {
	return &auditRepository{db: db}
}

// Log inserts a new audit entry. The details map is serialized to JSON
// before storage. Nil details are stored as SQL NULL.
func (r *auditRepository) Log(ctx context.Context, entry *Entry) error {
	query := `INSERT INTO audit_log (user_id, note_id, action, details, created_at)
	          VALUES (?, ?, ?, ?, ?)`

	var details sql.NullString
	if len(entry.Details) > 0 {
		data, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshaling audit details: %w", err)
		}
		details = sql.NullString{String: string(data), Valid: true}
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx, query,
		entry.UserID, entry.NoteID, entry.Action, details, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting audit entry id: %w", err)
	}
	entry.ID = id
	return nil
}

// ListByNote returns a page of entries for one note.
func (r *auditRepository) ListByNote(ctx context.Context, noteID int64, limit, offset int) ([]Entry, int, error) {
	return r.list(ctx, "note_id = ?", noteID, limit, offset)
}

// ListByUser returns a page of entries recorded for one user.
func (r *auditRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Entry, int, error) {
	return r.list(ctx, "user_id = ?", userID, limit, offset)
}

// list runs the count and page queries for a single-column filter.
func (r *auditRepository) list(ctx context.Context, where string, arg any, limit, offset int) ([]Entry, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_log WHERE `+where, arg,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting audit entries: %w", err)
	}

	query := `SELECT id, user_id, note_id, action, details, created_at
	          FROM audit_log
	          WHERE ` + where + `
	          ORDER BY created_at DESC, id DESC
	          LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, arg, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanAuditRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// scanAuditRows scans rows from an audit_log query into an Entry slice.
// Expects columns: id, user_id, note_id, action, details, created_at.
func scanAuditRows(rows *sql.Rows) ([]Entry, error) {
	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var detailsJSON sql.NullString
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.NoteID, &e.Action, &detailsJSON, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		if detailsJSON.Valid && detailsJSON.String != "" {
			if err := json.Unmarshal([]byte(detailsJSON.String), &e.Details); err != nil {
				// Non-fatal: a bad row must not break the feed.
				e.Details = map[string]any{"_parse_error": "invalid JSON"}
			}
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit rows: %w", err)
	}
	return entries, nil
}

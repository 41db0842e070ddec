// Package notes stores users' markdown notes and exposes them over the JSON
// API. Every note belongs to exactly one user; other users never see it.
//
// The editor plugin saves drafts through NoteService.Update, so Update is
// the persistence operation behind auto-save.
package notes

import (
	"context"
	"time"
)

// Document types accepted in Note.DocumentType.
const (
	DocumentTypeNote = "note"
	DocumentTypePDF  = "pdf"
)

// Field limits.
const (
	MaxTitleLength    = 200
	MaxFilePathLength = 512
)

// Activity actions reported to an ActivityRecorder.
const (
	ActionCreated        = "note.created"
	ActionUpdated        = "note.updated"
	ActionDeleted        = "note.deleted"
	ActionAutosaved      = "note.autosaved"
	ActionAutosaveFailed = "note.autosave_failed"
)

// ActivityRecorder receives a record of note mutations. Recording is best
// effort and never fails the caller.
type ActivityRecorder interface {
	Record(ctx context.Context, userID string, noteID int64, action string, details map[string]any)
}

// Pagination defaults for List.
const (
	DefaultPage     = 1
	DefaultPageSize = 12
	MaxPageSize     = 100
)

// Note is a single markdown note.
type Note struct {
	ID           int64          `json:"id"`
	UserID       string         `json:"user_id"`
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	FilePath     string         `json:"file_path"`
	DocumentType string         `json:"document_type"`
	Metadata     map[string]any `json:"metadata"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NotesPage is one page of a user's notes, newest first.
type NotesPage struct {
	Items []Note `json:"items"`
	Page  int    `json:"page"`
	Size  int    `json:"size"`
	Total int    `json:"total"`
	Pages int    `json:"pages"`
}

// --- Request DTOs ---

// CreateNoteRequest holds the data submitted when creating a note.
type CreateNoteRequest struct {
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	FilePath     string         `json:"file_path"`
	DocumentType string         `json:"document_type,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// UpdateNoteRequest is a partial update. Nil fields are left unchanged.
type UpdateNoteRequest struct {
	Title    *string        `json:"title,omitempty"`
	Content  *string        `json:"content,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

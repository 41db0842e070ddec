// Package editor hosts live editing sessions. Each open note gets an
// auto-save controller that persists the user's Redis draft through the
// notes service and projects its save status into Redis, where the JSON
// status endpoint, the save indicator fragment and the websocket event
// stream read it.
package editor

import "time"

// StatusUnsaved is reported by StatusView when no save is running but the
// draft differs from the persisted note.
const StatusUnsaved = "unsaved"

// MaxDraftBytes caps the size of a single draft upload.
const MaxDraftBytes = 1 << 20

// SessionInfo identifies an open editing session.
type SessionInfo struct {
	ID       string    `json:"session_id"`
	NoteID   int64     `json:"note_id"`
	OpenedAt time.Time `json:"opened_at"`
}

// StatusView is the save state shown to the client.
type StatusView struct {
	NoteID            int64      `json:"note_id"`
	Status            string     `json:"status"`
	Error             string     `json:"error,omitempty"`
	LastSaved         *time.Time `json:"last_saved,omitempty"`
	HasUnsavedChanges bool       `json:"has_unsaved_changes"`
}

// Event is published on the note's Redis channel for every status change.
type Event struct {
	NoteID    int64      `json:"note_id"`
	Status    string     `json:"status"`
	Error     string     `json:"error,omitempty"`
	LastSaved *time.Time `json:"last_saved,omitempty"`
	At        time.Time  `json:"at"`
}

// DraftRequest is the body of PUT /api/v1/notes/:id/draft.
type DraftRequest struct {
	Content *string `json:"content"`
}

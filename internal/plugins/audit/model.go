// Package audit keeps the activity log of every note: creation, manual
// edits, deletion and the outcome of each auto-save. Entries are written
// best effort by the notes and editor plugins and read back as a per-note
// history and a per-user feed.
//
// The log only observes; it never changes note data.
package audit

import "time"

// Entry is one recorded action. Details holds action-specific metadata
// such as the saved content size or the failure message.
type Entry struct {
	ID        int64          `json:"id"`
	UserID    string         `json:"user_id"`
	NoteID    int64          `json:"note_id"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ActivityPage is one page of entries, newest first.
type ActivityPage struct {
	Items []Entry `json:"items"`
	Page  int     `json:"page"`
	Total int     `json:"total"`
}

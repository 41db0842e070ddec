package editor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/aarangop/note-rags-web-ui/internal/apperror"
	"github.com/aarangop/note-rags-web-ui/internal/autosave"
	"github.com/aarangop/note-rags-web-ui/internal/plugins/notes"
)

// storeTimeout bounds each Redis write made on behalf of a listener.
const storeTimeout = 5 * time.Second

// listenerBuffer is how many projection writes may be pending per session.
const listenerBuffer = 64

// projection is one queued write. Exactly one field is set.
type projection struct {
	event    *Event
	saved    *string
	activity *activity
}

// activity is an entry for the note's activity log.
type activity struct {
	action  string
	details map[string]any
}

// sessionListener receives auto-save events for one note. The controller
// calls it under its lock, so Redis and activity writes happen on a
// separate goroutine in the order the events arrived.
type sessionListener struct {
	noteID   int64
	userID   string
	store    *Store
	recorder notes.ActivityRecorder
	clock    clockwork.Clock
	logger   *slog.Logger

	writes chan projection
	done   chan struct{}

	mu        sync.Mutex
	persisted string
	lastErr   string
	lastSaved *time.Time
	closed    bool
}

var _ autosave.Listener[*notes.Note] = (*sessionListener)(nil)

func newSessionListener(noteID int64, userID, persisted string, store *Store, recorder notes.ActivityRecorder, clock clockwork.Clock, logger *slog.Logger) *sessionListener {
	l := &sessionListener{
		noteID:    noteID,
		userID:    userID,
		store:     store,
		recorder:  recorder,
		clock:     clock,
		logger:    logger,
		writes:    make(chan projection, listenerBuffer),
		done:      make(chan struct{}),
		persisted: persisted,
	}
	go l.run()
	return l
}

// SaveSucceeded records the saved content and clears the error.
func (l *sessionListener) SaveSucceeded(note *notes.Note) {
	now := l.clock.Now().UTC()

	l.mu.Lock()
	l.persisted = note.Content
	l.lastErr = ""
	l.lastSaved = &now
	l.mu.Unlock()

	content := note.Content
	l.enqueue(projection{saved: &content})
	l.enqueue(projection{activity: &activity{
		action:  notes.ActionAutosaved,
		details: map[string]any{"bytes": len(content)},
	}})
}

// SaveFailed keeps a client-safe description of err.
func (l *sessionListener) SaveFailed(err error) {
	msg := apperror.SafeMessage(err)
	if errors.Is(err, autosave.ErrContentUnavailable) {
		msg = "the draft could not be read"
	}

	l.mu.Lock()
	l.lastErr = msg
	ev := Event{
		NoteID:    l.noteID,
		Status:    autosave.StatusError.String(),
		Error:     msg,
		LastSaved: l.lastSaved,
		At:        l.clock.Now().UTC(),
	}
	l.mu.Unlock()

	l.enqueue(projection{event: &ev})
	l.enqueue(projection{activity: &activity{
		action:  notes.ActionAutosaveFailed,
		details: map[string]any{"error": msg},
	}})
}

// StatusChanged projects the new status into Redis. The error status is
// projected by SaveFailed, which always follows it and carries the message.
func (l *sessionListener) StatusChanged(status autosave.Status) {
	if status == autosave.StatusError {
		return
	}

	l.mu.Lock()
	ev := Event{
		NoteID:    l.noteID,
		Status:    status.String(),
		LastSaved: l.lastSaved,
		At:        l.clock.Now().UTC(),
	}
	l.mu.Unlock()

	l.enqueue(projection{event: &ev})
}

// snapshot returns the persisted content, last error and last save time.
func (l *sessionListener) snapshot() (persisted, lastErr string, lastSaved *time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.persisted, l.lastErr, l.lastSaved
}

func (l *sessionListener) enqueue(p projection) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.writes <- p:
	default:
		l.logger.Warn("autosave projection dropped, writer is behind")
	}
}

// close stops accepting writes and waits for queued ones to finish.
func (l *sessionListener) close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.writes)
	l.mu.Unlock()
	<-l.done
}

func (l *sessionListener) run() {
	defer close(l.done)
	for p := range l.writes {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		var err error
		switch {
		case p.event != nil:
			err = l.store.Record(ctx, *p.event)
		case p.saved != nil:
			err = l.store.ClearDraftIf(ctx, l.noteID, *p.saved)
		case p.activity != nil && l.recorder != nil:
			l.recorder.Record(ctx, l.userID, l.noteID, p.activity.action, p.activity.details)
		}
		cancel()
		if err != nil {
			l.logger.Warn("autosave projection failed", slog.Any("error", err))
		}
	}
}

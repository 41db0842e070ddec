package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/aarangop/note-rags-web-ui/internal/apperror"
	"github.com/aarangop/note-rags-web-ui/internal/autosave"
	"github.com/aarangop/note-rags-web-ui/internal/config"
	"github.com/aarangop/note-rags-web-ui/internal/plugins/notes"
)

// saveTimeout bounds one call to the notes service.
const saveTimeout = 10 * time.Second

// ErrShuttingDown is returned by Open and Edit once Shutdown has started.
var ErrShuttingDown = apperror.NewUnavailable("the server is shutting down", nil)

// NoteStore is the part of notes.NoteService the editor needs.
type NoteStore interface {
	GetForUser(ctx context.Context, id int64, userID string) (*notes.Note, error)
	Update(ctx context.Context, id int64, req notes.UpdateNoteRequest) (*notes.Note, error)
}

// session is one open note.
type session struct {
	info     SessionInfo
	userID   string
	ctrl     *autosave.Controller[*notes.Note]
	listener *sessionListener
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock sets the clock handed to every controller.
func WithClock(clock clockwork.Clock) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithActivity reports auto-save outcomes to r.
func WithActivity(r notes.ActivityRecorder) Option {
	return func(m *Manager) { m.activity = r }
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// Manager owns one auto-save controller per open note.
type Manager struct {
	notes    NoteStore
	store    *Store
	activity notes.ActivityRecorder
	cfg      autosave.Config
	clock    clockwork.Clock
	logger   *slog.Logger

	// ctx is handed to controllers and cancelled when Shutdown finishes.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[int64]*session
	closed   bool
}

// NewManager creates a session manager using the configured auto-save
// timings.
func NewManager(noteStore NoteStore, store *Store, cfg config.AutoSaveConfig, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		notes: noteStore,
		store: store,
		cfg: autosave.Config{
			DebounceDelay: cfg.Debounce,
			RetryAttempts: cfg.RetryAttempts,
			RetryDelay:    cfg.RetryDelay,
			SavedGrace:    cfg.SavedGrace,
		},
		clock:    clockwork.NewRealClock(),
		logger:   slog.Default(),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[int64]*session),
	}
	// A zero retry count in the environment means "no retries"; the
	// controller reads zero as "use the default".
	if cfg.RetryAttempts == 0 {
		m.cfg.RetryAttempts = -1
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open starts an editing session for a note the user owns and returns it.
// Opening an already open note returns the existing session. A draft left
// over from an earlier session is queued for saving.
func (m *Manager) Open(ctx context.Context, userID string, noteID int64) (*SessionInfo, error) {
	sess, err := m.open(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}
	info := sess.info
	return &info, nil
}

func (m *Manager) open(ctx context.Context, userID string, noteID int64) (*session, error) {
	if sess, err := m.lookup(userID, noteID); sess != nil || err != nil {
		return sess, err
	}

	note, err := m.notes.GetForUser(ctx, noteID, userID)
	if err != nil {
		return nil, err
	}
	draft, hasDraft, err := m.store.Draft(ctx, noteID)
	if err != nil {
		return nil, apperror.NewUnavailable("drafts are unavailable", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrShuttingDown
	}
	// Another request may have opened it while the note was loading.
	if sess, ok := m.sessions[noteID]; ok {
		return sess, nil
	}

	sess := m.newSessionLocked(userID, note)
	if hasDraft && draft != note.Content {
		sess.ctrl.QueueSave()
	}
	return sess, nil
}

// newSessionLocked wires a controller to the note's draft and the notes
// service.
func (m *Manager) newSessionLocked(userID string, note *notes.Note) *session {
	noteID := note.ID
	logger := m.logger.With(slog.String("user_id", userID))
	listener := newSessionListener(noteID, userID, note.Content, m.store, m.activity, m.clock,
		logger.With(slog.Int64("note_id", noteID)))

	source := autosave.ContentSourceFunc(func(ctx context.Context) (string, error) {
		draft, ok, err := m.store.Draft(ctx, noteID)
		if err != nil {
			return "", err
		}
		if !ok {
			persisted, _, _ := listener.snapshot()
			return persisted, nil
		}
		return draft, nil
	})

	saver := autosave.SaverFunc[*notes.Note](func(ctx context.Context, content string) (*notes.Note, error) {
		ctx, cancel := context.WithTimeout(ctx, saveTimeout)
		defer cancel()
		return m.notes.Update(ctx, noteID, notes.UpdateNoteRequest{Content: &content})
	})

	sess := &session{
		info: SessionInfo{
			ID:       uuid.NewString(),
			NoteID:   noteID,
			OpenedAt: m.clock.Now().UTC(),
		},
		userID:   userID,
		listener: listener,
		ctrl: autosave.New[*notes.Note](noteID, source, saver, listener, m.cfg,
			autosave.WithClock(m.clock),
			autosave.WithLogger(logger),
			autosave.WithContext(m.ctx),
			autosave.WithBaseline(note.Content),
		),
	}
	m.sessions[noteID] = sess

	logger.Info("editing session opened",
		slog.Int64("note_id", noteID),
		slog.String("session_id", sess.info.ID),
	)
	return sess
}

// lookup returns the open session for noteID. A session held by another
// user is reported as a missing note.
func (m *Manager) lookup(userID string, noteID int64) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrShuttingDown
	}
	sess, ok := m.sessions[noteID]
	if !ok {
		return nil, nil
	}
	if sess.userID != userID {
		return nil, apperror.NewNotFound("note not found")
	}
	return sess, nil
}

// Edit stores new editor content as the note's draft and schedules a save.
// The session is opened on demand.
func (m *Manager) Edit(ctx context.Context, userID string, noteID int64, content string) error {
	if len(content) > MaxDraftBytes {
		return apperror.NewValidation("content must be 1 MiB or less")
	}

	sess, err := m.open(ctx, userID, noteID)
	if err != nil {
		return err
	}
	if err := m.store.PutDraft(ctx, noteID, content); err != nil {
		return apperror.NewUnavailable("drafts are unavailable", err)
	}
	sess.ctrl.QueueSave()
	return nil
}

// Save persists the current draft now and waits for the outcome.
func (m *Manager) Save(ctx context.Context, userID string, noteID int64) (*StatusView, error) {
	sess, err := m.open(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}

	if err := sess.ctrl.ForceSave(ctx); err != nil {
		return nil, saveError(err)
	}
	return m.sessionStatus(ctx, sess)
}

// saveError maps a forced-save failure to an AppError.
func saveError(err error) error {
	var appErr *apperror.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, autosave.ErrContentUnavailable):
		return apperror.NewUnavailable("the draft could not be read", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperror.NewUnavailable("the save did not finish in time", err)
	default:
		return apperror.NewUnavailable("the note could not be saved", err)
	}
}

// Status reports the note's save state. Notes without an open session are
// described from the last recorded status and the stored draft.
func (m *Manager) Status(ctx context.Context, userID string, noteID int64) (*StatusView, error) {
	sess, err := m.lookup(userID, noteID)
	if err != nil && !errors.Is(err, ErrShuttingDown) {
		return nil, err
	}
	if sess != nil {
		return m.sessionStatus(ctx, sess)
	}

	note, err := m.notes.GetForUser(ctx, noteID, userID)
	if err != nil {
		return nil, err
	}
	view := &StatusView{NoteID: noteID, Status: autosave.StatusIdle.String()}

	last, err := m.store.LastEvent(ctx, noteID)
	if err != nil {
		return nil, apperror.NewUnavailable("save status is unavailable", err)
	}
	if last != nil {
		view.LastSaved = last.LastSaved
		if last.Status == autosave.StatusError.String() {
			view.Status, view.Error = last.Status, last.Error
		}
	}

	if err := m.applyDraft(ctx, view, note.Content); err != nil {
		return nil, err
	}
	return view, nil
}

func (m *Manager) sessionStatus(ctx context.Context, sess *session) (*StatusView, error) {
	persisted, lastErr, lastSaved := sess.listener.snapshot()
	status := sess.ctrl.Status()

	view := &StatusView{
		NoteID:    sess.info.NoteID,
		Status:    status.String(),
		LastSaved: lastSaved,
	}
	if status == autosave.StatusError {
		view.Error = lastErr
	}
	if err := m.applyDraft(ctx, view, persisted); err != nil {
		return nil, err
	}
	return view, nil
}

// applyDraft sets HasUnsavedChanges and turns an idle status into
// StatusUnsaved when the draft differs from persisted.
func (m *Manager) applyDraft(ctx context.Context, view *StatusView, persisted string) error {
	draft, ok, err := m.store.Draft(ctx, view.NoteID)
	if err != nil {
		return apperror.NewUnavailable("drafts are unavailable", err)
	}
	view.HasUnsavedChanges = ok && draft != persisted
	if view.HasUnsavedChanges && view.Status == autosave.StatusIdle.String() {
		view.Status = StatusUnsaved
	}
	return nil
}

// Close ends the user's session for noteID. Pending debounced saves are
// dropped; the draft stays in Redis and is picked up by the next Open.
func (m *Manager) Close(userID string, noteID int64) error {
	m.mu.Lock()
	sess, ok := m.sessions[noteID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	if sess.userID != userID {
		m.mu.Unlock()
		return apperror.NewNotFound("note not found")
	}
	delete(m.sessions, noteID)
	m.mu.Unlock()

	m.destroy(sess)
	m.logger.Info("editing session closed",
		slog.Int64("note_id", noteID),
		slog.String("session_id", sess.info.ID),
	)
	return nil
}

func (m *Manager) destroy(sess *session) {
	sess.ctrl.Destroy()
	sess.listener.close()
}

// Shutdown force-saves every open session, then destroys them. Open and
// Edit fail once Shutdown has started. ctx bounds the whole flush.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sessions := make([]*session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[int64]*session)
	m.mu.Unlock()

	var (
		wg     sync.WaitGroup
		errMu  sync.Mutex
		failed []error
	)
	for _, sess := range sessions {
		wg.Add(1)
		go func(sess *session) {
			defer wg.Done()
			if err := sess.ctrl.ForceSave(ctx); err != nil {
				m.logger.Error("flushing draft on shutdown failed",
					slog.Int64("note_id", sess.info.NoteID),
					slog.Any("error", err),
				)
				errMu.Lock()
				failed = append(failed, fmt.Errorf("note %d: %w", sess.info.NoteID, err))
				errMu.Unlock()
			}
			m.destroy(sess)
		}(sess)
	}
	wg.Wait()
	m.cancel()

	m.logger.Info("editing sessions flushed", slog.Int("sessions", len(sessions)), slog.Int("failed", len(failed)))
	return errors.Join(failed...)
}

// OpenSessions returns the number of open sessions.
func (m *Manager) OpenSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

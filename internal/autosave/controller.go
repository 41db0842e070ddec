package autosave

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// pendingSave is a queued save. Debounced saves carry no waiters; forced saves
// that target identical content share one entry and are settled together.
type pendingSave struct {
	content string
	waiters []chan error
}

// settle delivers err to every waiter exactly once.
func (p *pendingSave) settle(err error) {
	for _, w := range p.waiters {
		w <- err
	}
	p.waiters = nil
}

// Option customizes a Controller.
type Option func(*options)

type options struct {
	clock    clockwork.Clock
	logger   *slog.Logger
	ctx      context.Context
	baseline *string
}

// WithClock sets the clock used for debounce, backoff and grace timers.
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithLogger sets the logger. The controller adds a note_id attribute.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithContext sets the context passed to the ContentSource and Saver for
// debounced saves and retries. Cancelling it aborts pending backoff waits.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

// WithBaseline seeds the last persisted content, typically with the content
// the note was loaded with, so an untouched note is never re-saved.
func WithBaseline(content string) Option {
	return func(o *options) { o.baseline = &content }
}

// Controller owns the save lifecycle of one note. Create it when an editing
// session opens and Destroy it when the session ends.
type Controller[T any] struct {
	noteID   int64
	source   ContentSource
	saver    Saver[T]
	listener Listener[T]
	cfg      Config
	clock    clockwork.Clock
	logger   *slog.Logger
	ctx      context.Context

	// Read without the lock so listeners can query them mid-transition.
	status    atomic.Value // Status
	lastSaved atomic.Int64 // unix nanos, 0 = never

	mu          sync.Mutex
	lastContent *string
	debounce    clockwork.Timer
	debounceGen uint64
	queue       []*pendingSave
	inflight    *pendingSave
	processing  bool
	destroyed   bool
}

// New creates a controller for noteID in the idle state. The initial status
// is not reported to the listener.
func New[T any](noteID int64, source ContentSource, saver Saver[T], listener Listener[T], cfg Config, opts ...Option) *Controller[T] {
	o := options{
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Controller[T]{
		noteID:      noteID,
		source:      source,
		saver:       saver,
		listener:    listener,
		cfg:         cfg.withDefaults(),
		clock:       o.clock,
		logger:      o.logger.With(slog.Int64("note_id", noteID)),
		ctx:         o.ctx,
		lastContent: o.baseline,
	}
	c.status.Store(StatusIdle)
	return c
}

// NoteID returns the note this controller saves.
func (c *Controller[T]) NoteID() int64 { return c.noteID }

// Config returns the effective configuration after defaults were applied.
func (c *Controller[T]) Config() Config { return c.cfg }

// Status returns the current save status.
func (c *Controller[T]) Status() Status {
	return c.status.Load().(Status)
}

// LastSaved returns the time of the last confirmed save, if any.
func (c *Controller[T]) LastSaved() (time.Time, bool) {
	ns := c.lastSaved.Load()
	if ns == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, ns), true
}

// QueueSave signals that the content changed. It restarts the debounce timer
// and clears a stale error status. Errors surface only through the listener.
func (c *Controller[T]) QueueSave() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return
	}
	c.stopDebounceLocked()

	if c.Status() == StatusError {
		c.setStatusLocked(StatusIdle)
	}

	c.debounceGen++
	gen := c.debounceGen
	c.debounce = c.clock.AfterFunc(c.cfg.DebounceDelay, func() { c.fireDebounce(gen) })
}

// ForceSave saves the current content now, superseding any scheduled save.
// It returns nil right away when the content is already persisted, and
// otherwise blocks until the save holding this content completes. Concurrent
// calls for identical content share one save. If ctx ends first, ForceSave
// returns ctx.Err() and the save itself carries on.
func (c *Controller[T]) ForceSave(ctx context.Context) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	c.stopDebounceLocked()
	if c.Status() == StatusError {
		c.setStatusLocked(StatusIdle)
	}
	c.mu.Unlock()

	content, err := c.source.CurrentContent(ctx)

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrContentUnavailable, err)
		c.failLocked(err)
		c.mu.Unlock()
		return err
	}
	if c.isPersistedLocked(content) {
		c.mu.Unlock()
		return nil
	}

	item := c.findLocked(content)
	if item == nil {
		item = &pendingSave{content: content}
		c.queue = append(c.queue, item)
	}
	done := make(chan error, 1)
	item.waiters = append(item.waiters, done)
	c.startLocked()
	c.mu.Unlock()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Destroy stops the debounce timer and rejects all further work. A save that
// is already running finishes on its own.
func (c *Controller[T]) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return
	}
	c.destroyed = true
	c.stopDebounceLocked()
	c.logger.Debug("autosave controller destroyed", slog.Int("queued", len(c.queue)))
}

// fireDebounce runs when a debounce timer expires.
func (c *Controller[T]) fireDebounce(gen uint64) {
	c.mu.Lock()
	if c.destroyed || gen != c.debounceGen {
		c.mu.Unlock()
		return
	}
	c.debounce = nil
	c.mu.Unlock()

	content, err := c.source.CurrentContent(c.ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return
	}
	if err != nil {
		c.failLocked(fmt.Errorf("%w: %w", ErrContentUnavailable, err))
		return
	}
	if c.isPersistedLocked(content) {
		return
	}
	c.queue = append(c.queue, &pendingSave{content: content})
	c.startLocked()
}

// startLocked launches the drain goroutine unless one is already running.
func (c *Controller[T]) startLocked() {
	if c.processing || len(c.queue) == 0 || c.destroyed {
		return
	}
	c.processing = true
	go c.drain()
}

// drain works through the queue one save at a time.
func (c *Controller[T]) drain() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.queue) > 0 && !c.destroyed {
		item := c.queue[0]
		c.queue = c.queue[1:]

		if c.isPersistedLocked(item.content) {
			item.settle(nil)
			continue
		}
		// Only the newest content is worth writing.
		if c.hasNewerLocked(item.content) {
			item.settle(nil)
			continue
		}

		if c.Status() != StatusSaving {
			c.setStatusLocked(StatusSaving)
		}
		c.inflight = item
		c.mu.Unlock()

		record, err := c.saveWithRetry(item.content)

		c.mu.Lock()
		c.inflight = nil

		if err != nil {
			c.logger.Error("autosave failed", slog.Any("error", err))
			c.setStatusLocked(StatusError)
			c.listener.SaveFailed(err)
			item.settle(err)
			for _, rest := range c.queue {
				rest.settle(err)
			}
			c.queue = nil
			break
		}

		content := item.content
		c.lastContent = &content
		c.lastSaved.Store(c.clock.Now().UnixNano())
		c.listener.SaveSucceeded(record)
		c.setStatusLocked(StatusSaved)
		item.settle(nil)
		c.clock.AfterFunc(c.cfg.SavedGrace, c.revertSaved)
	}

	if c.destroyed {
		for _, rest := range c.queue {
			rest.settle(ErrDestroyed)
		}
		c.queue = nil
	}
	c.processing = false
}

// saveWithRetry calls the saver until it succeeds or the retry budget is
// spent, waiting RetryDelay * 2^attempt between attempts.
func (c *Controller[T]) saveWithRetry(content string) (T, error) {
	for attempt := 0; ; attempt++ {
		record, err := c.saver.Save(c.ctx, content)
		if err == nil {
			return record, nil
		}
		if attempt >= c.cfg.RetryAttempts {
			var zero T
			return zero, err
		}

		delay := c.cfg.backoff(attempt)
		c.logger.Warn("autosave attempt failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", c.cfg.RetryAttempts+1),
			slog.Duration("backoff", delay),
			slog.Any("error", err),
		)

		select {
		case <-c.clock.After(delay):
		case <-c.ctx.Done():
			var zero T
			return zero, fmt.Errorf("waiting to retry save: %w", c.ctx.Err())
		}
	}
}

// revertSaved moves saved back to idle once the grace window passes, unless
// another save has started or is waiting.
func (c *Controller[T]) revertSaved() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed || c.Status() != StatusSaved || len(c.queue) > 0 || c.inflight != nil {
		return
	}
	c.setStatusLocked(StatusIdle)
}

// failLocked reports a content-access error. It is not retried.
func (c *Controller[T]) failLocked(err error) {
	c.logger.Error("autosave content unavailable", slog.Any("error", err))
	c.setStatusLocked(StatusError)
	c.listener.SaveFailed(err)
}

func (c *Controller[T]) setStatusLocked(s Status) {
	c.status.Store(s)
	c.listener.StatusChanged(s)
}

func (c *Controller[T]) stopDebounceLocked() {
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
	// Invalidate a timer that already fired but has not taken the lock yet.
	c.debounceGen++
}

func (c *Controller[T]) isPersistedLocked(content string) bool {
	return c.lastContent != nil && *c.lastContent == content
}

// hasNewerLocked reports whether a queued item carries different content.
func (c *Controller[T]) hasNewerLocked(content string) bool {
	for _, next := range c.queue {
		if next.content != content {
			return true
		}
	}
	return false
}

// findLocked returns the in-flight or queued save for content, if any.
func (c *Controller[T]) findLocked(content string) *pendingSave {
	if c.inflight != nil && c.inflight.content == content {
		return c.inflight
	}
	for _, item := range c.queue {
		if item.content == content {
			return item
		}
	}
	return nil
}

// Package autosave reconciles a live-edited note with a remote persistence
// operation. A Controller debounces edit signals, serializes saves so at most
// one is in flight, skips and coalesces redundant content, retries failing
// saves with exponential backoff, and projects a Status for the UI.
//
// The controller owns no notes. It reads the current content through a
// ContentSource, writes it through a Saver, and reports every transition to
// a Listener.
package autosave

import (
	"context"
	"errors"
	"time"
)

// Status is the UI-facing save state of a single note.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusSaving Status = "saving"
	StatusSaved  Status = "saved"
	StatusError  Status = "error"
)

// String implements fmt.Stringer.
func (s Status) String() string { return string(s) }

// Default timings. DefaultSavedGrace is how long "saved" is shown before the
// status reverts to "idle".
const (
	DefaultDebounceDelay = 2 * time.Second
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = time.Second
	DefaultSavedGrace    = 100 * time.Millisecond
)

// Config controls debounce and retry timing. Zero-valued fields take the
// defaults. RetryAttempts follows the go-redis MaxRetries convention: 0 means
// the default of 3, a negative value disables retries.
type Config struct {
	// DebounceDelay is the quiet period after the last QueueSave before a
	// save is attempted.
	DebounceDelay time.Duration

	// RetryAttempts is the number of retries after the first failed attempt.
	RetryAttempts int

	// RetryDelay is the backoff before the first retry. Each further retry
	// doubles it.
	RetryDelay time.Duration

	// SavedGrace is how long StatusSaved is held before reverting to idle.
	SavedGrace time.Duration
}

// DefaultConfig returns the stock timings: 2s debounce, 3 retries starting at
// 1s, 100ms saved grace.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: DefaultDebounceDelay,
		RetryAttempts: DefaultRetryAttempts,
		RetryDelay:    DefaultRetryDelay,
		SavedGrace:    DefaultSavedGrace,
	}
}

// withDefaults merges c over DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DebounceDelay > 0 {
		d.DebounceDelay = c.DebounceDelay
	}
	switch {
	case c.RetryAttempts < 0:
		d.RetryAttempts = 0
	case c.RetryAttempts > 0:
		d.RetryAttempts = c.RetryAttempts
	}
	if c.RetryDelay > 0 {
		d.RetryDelay = c.RetryDelay
	}
	if c.SavedGrace > 0 {
		d.SavedGrace = c.SavedGrace
	}
	return d
}

// backoff returns the wait before retry number attempt+1.
func (c Config) backoff(attempt int) time.Duration {
	return c.RetryDelay << attempt
}

var (
	// ErrContentUnavailable wraps errors returned by a ContentSource. These
	// are local state errors and are never retried.
	ErrContentUnavailable = errors.New("autosave: content unavailable")

	// ErrDestroyed is returned to forced saves that were still queued when
	// the controller was destroyed.
	ErrDestroyed = errors.New("autosave: controller destroyed")
)

// ContentSource supplies the note's current editor content.
type ContentSource interface {
	CurrentContent(ctx context.Context) (string, error)
}

// ContentSourceFunc adapts a function to ContentSource.
type ContentSourceFunc func(ctx context.Context) (string, error)

// CurrentContent calls f(ctx).
func (f ContentSourceFunc) CurrentContent(ctx context.Context) (string, error) { return f(ctx) }

// Saver persists content and returns the saved record. Timeouts are the
// saver's responsibility.
type Saver[T any] interface {
	Save(ctx context.Context, content string) (T, error)
}

// SaverFunc adapts a function to Saver.
type SaverFunc[T any] func(ctx context.Context, content string) (T, error)

// Save calls f(ctx, content).
func (f SaverFunc[T]) Save(ctx context.Context, content string) (T, error) { return f(ctx, content) }

// Listener receives controller events. Methods are called synchronously with
// the transition while the controller's lock is held: they may read Status
// and LastSaved but must not call QueueSave, ForceSave or Destroy.
type Listener[T any] interface {
	SaveSucceeded(record T)
	SaveFailed(err error)
	StatusChanged(status Status)
}

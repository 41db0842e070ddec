package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

func draftKey(noteID int64) string      { return "draft:" + strconv.FormatInt(noteID, 10) }
func statusKey(noteID int64) string     { return "autosave:" + strconv.FormatInt(noteID, 10) }
func eventsChannel(noteID int64) string { return statusKey(noteID) + ":events" }

// Hash fields of the status projection.
const (
	fieldStatus    = "status"
	fieldError     = "error"
	fieldLastSaved = "last_saved"
	fieldAt        = "at"
)

// clearDraftScript deletes the draft only if it still holds the saved
// content, so an edit that lands mid-save survives.
var clearDraftScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Store keeps drafts and the save-status projection in Redis.
type Store struct {
	rdb      *redis.Client
	draftTTL time.Duration
}

// NewStore creates a Redis-backed draft and status store. Drafts and status
// hashes expire after draftTTL without activity.
func NewStore(rdb *redis.Client, draftTTL time.Duration) *Store {
	return &Store{rdb: rdb, draftTTL: draftTTL}
}

// PutDraft stores the latest editor content for a note.
func (s *Store) PutDraft(ctx context.Context, noteID int64, content string) error {
	if err := s.rdb.Set(ctx, draftKey(noteID), content, s.draftTTL).Err(); err != nil {
		return fmt.Errorf("storing draft: %w", err)
	}
	return nil
}

// Draft returns the stored draft and whether one exists.
func (s *Store) Draft(ctx context.Context, noteID int64) (string, bool, error) {
	content, err := s.rdb.Get(ctx, draftKey(noteID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading draft: %w", err)
	}
	return content, true, nil
}

// ClearDraftIf removes the draft when it equals content.
func (s *Store) ClearDraftIf(ctx context.Context, noteID int64, content string) error {
	if err := clearDraftScript.Run(ctx, s.rdb, []string{draftKey(noteID)}, content).Err(); err != nil {
		return fmt.Errorf("clearing draft: %w", err)
	}
	return nil
}

// Record writes ev into the note's status hash and publishes it on the
// note's events channel in one transaction.
func (s *Store) Record(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding status event: %w", err)
	}

	key := statusKey(ev.NoteID)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fields := map[string]any{
			fieldStatus: ev.Status,
			fieldAt:     ev.At.UTC().Format(time.RFC3339Nano),
		}
		if ev.LastSaved != nil {
			fields[fieldLastSaved] = ev.LastSaved.UTC().Format(time.RFC3339Nano)
		}
		pipe.HSet(ctx, key, fields)
		if ev.Error == "" {
			pipe.HDel(ctx, key, fieldError)
		} else {
			pipe.HSet(ctx, key, fieldError, ev.Error)
		}
		pipe.Expire(ctx, key, s.draftTTL)
		pipe.Publish(ctx, eventsChannel(ev.NoteID), payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("recording status: %w", err)
	}
	return nil
}

// LastEvent returns the most recently recorded status of a note, or nil if
// none is stored.
func (s *Store) LastEvent(ctx context.Context, noteID int64) (*Event, error) {
	fields, err := s.rdb.HGetAll(ctx, statusKey(noteID)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading status: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	ev := &Event{
		NoteID: noteID,
		Status: fields[fieldStatus],
		Error:  fields[fieldError],
	}
	if at, err := time.Parse(time.RFC3339Nano, fields[fieldAt]); err == nil {
		ev.At = at
	}
	if raw, ok := fields[fieldLastSaved]; ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			ev.LastSaved = &t
		}
	}
	return ev, nil
}

// Subscribe opens a subscription to the note's status events. The caller
// must Close it.
func (s *Store) Subscribe(ctx context.Context, noteID int64) *redis.PubSub {
	return s.rdb.Subscribe(ctx, eventsChannel(noteID))
}

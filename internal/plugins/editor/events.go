package editor

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/aarangop/note-rags-web-ui/internal/apperror"
	"github.com/aarangop/note-rags-web-ui/internal/plugins/auth"
	"github.com/aarangop/note-rags-web-ui/internal/plugins/notes"
)

// Websocket timings.
const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// upgrader keeps gorilla's default same-origin check.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Events streams the note's save status over a websocket
// (GET /api/v1/notes/:id/events). The first frame is the current
// StatusView; every later frame is an Event.
func (h *Handler) Events(c echo.Context) error {
	noteID, err := notes.NoteIDParam(c)
	if err != nil {
		return err
	}
	userID := auth.GetUserID(c)
	if userID == "" {
		return apperror.NewMissingContext()
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	view, err := h.manager.Status(ctx, userID, noteID)
	if err != nil {
		return err
	}

	pubsub := h.manager.store.Subscribe(ctx, noteID)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return apperror.NewUnavailable("status events are unavailable", err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		slog.Debug("websocket upgrade failed", slog.Any("error", err))
		return nil
	}
	defer conn.Close()

	if err := writeJSON(conn, view); err != nil {
		return nil
	}

	// Reading is only needed to notice the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	events := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-events:
			if !ok {
				return nil
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return nil
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		}
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

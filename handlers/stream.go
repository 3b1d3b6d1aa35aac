package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"initium-core/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// StreamInterval is how often the stream checks for a changed user aggregate.
var StreamInterval = 2 * time.Second

// StreamUser pushes the user aggregate as a `user` event whenever it changes, and a `sync` event
// whenever the session's sync status changes.
func StreamUser(state *services.AppState, session *services.SessionState, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("X-Accel-Buffering", "no") // nginx

		done := c.Context().Done()
		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			ticker := time.NewTicker(StreamInterval)
			defer ticker.Stop()
			pumpUser(w, ticker.C, done, state, session, log)
		})
		return nil
	}
}

// pumpUser writes events until a flush fails or done closes. Idle ticks write a comment line so a
// disconnected client surfaces as a flush error.
func pumpUser(w *bufio.Writer, tick <-chan time.Time, done <-chan struct{}, state *services.AppState, session *services.SessionState, log *zap.Logger) {
	var lastUser time.Time
	var lastStatus services.SyncStatus
	first := true

	send := func(event string, v any) {
		payload, err := json.Marshal(v)
		if err != nil {
			log.Error("SSE encode error", zap.String("event", event), zap.Error(err))
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	}

	// Initial keepalive (comment event)
	w.WriteString(":\n\n")
	if err := w.Flush(); err != nil {
		return
	}

	for {
		u := state.User()
		st := session.Status()
		wrote := false
		if first || !u.UpdatedAt.Equal(lastUser) {
			lastUser = u.UpdatedAt
			send("user", u)
			wrote = true
		}
		if first || !sameStatus(st, lastStatus) {
			lastStatus = st
			send("sync", st)
			wrote = true
		}
		first = false
		if !wrote {
			w.WriteString(":\n\n")
		}
		if err := w.Flush(); err != nil {
			// Client disconnected
			log.Debug("SSE client gone", zap.Error(err))
			return
		}

		select {
		case <-tick:
		case <-done:
			return
		}
	}
}

func sameStatus(a, b services.SyncStatus) bool {
	if a.Identity != b.Identity || a.Syncing != b.Syncing || a.LastError != b.LastError {
		return false
	}
	if a.LastSync == nil || b.LastSync == nil {
		return a.LastSync == b.LastSync
	}
	return a.LastSync.Equal(*b.LastSync)
}

package app

import (
	"fmt"
	"net/http"
	"time"

	"teambeat/api/internal/live"
)

// pingInterval keeps intermediaries from timing out idle SSE streams.
const pingInterval = 30 * time.Second

// handleEvents streams board events to the client over SSE. The
// connection stays open until the client disconnects or the server
// shuts down.
func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request, sess Session, boardID string) {
	if err := s.service.CheckBoardAccess(r.Context(), boardID, sess); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "Streaming is not supported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	broadcaster := s.service.Broadcaster()
	registry := broadcaster.Registry()
	conn := registry.Join(boardID, sess.UserID)
	defer registry.Leave(boardID, conn)

	tracker := s.service.Presence()
	tracker.Touch(boardID, sess.UserID, sess.DisplayName, "viewing")
	broadcaster.Emit(boardID, live.EventUserJoined, map[string]any{
		"user_id":      sess.UserID,
		"display_name": sess.DisplayName,
	}, sess.UserID)
	defer func() {
		tracker.Leave(boardID, sess.UserID)
		broadcaster.Emit(boardID, live.EventUserLeft, map[string]any{
			"user_id":      sess.UserID,
			"display_name": sess.DisplayName,
		}, sess.UserID)
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case payload, open := <-conn.Messages():
			if !open {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

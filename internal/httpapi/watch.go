package httpapi

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// handleWatch upgrades the request to a WebSocket and streams every message
// appended to the conversation, as JSON text frames. The stream closes when
// the client disconnects or the conversation is deleted.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.Get(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}

	feed, cancel := s.orch.Watch(id)
	defer cancel()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept failed", "conversation", id, "error", err)
		return
	}
	defer conn.CloseNow()

	s.metrics.WatcherConnected(r.Context(), 1)
	defer s.metrics.WatcherConnected(context.WithoutCancel(r.Context()), -1)

	// CloseRead handles control frames and cancels the context when the
	// client goes away.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case msg, ok := <-feed:
			if !ok {
				// Conversation deleted.
				conn.Close(websocket.StatusNormalClosure, "conversation ended")
				return
			}
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				return
			}
		}
	}
}

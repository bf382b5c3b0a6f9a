package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/logger"
)

// requestIDHeader carries the id a client needs for POST /api/chat/cancel.
const requestIDHeader = "X-Request-ID"

// streamChat relays a chat stream as server-sent events, one JSON event
// per "data:" frame. A client that disconnects cancels the request.
func (s *Server) streamChat(w http.ResponseWriter, r *http.Request, req domain.ChatRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "streaming unsupported"})
		return
	}

	handle, err := s.ports.Chat.ChatStream(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	defer handle.Cancel()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set(requestIDHeader, handle.ID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-handle.Events:
			if !ok {
				return
			}
			if err := writeEvent(w, event); err != nil {
				logger.Debug("Stream %s: client gone: %v", handle.ID, err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event domain.StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

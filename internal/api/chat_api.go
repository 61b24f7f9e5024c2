package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"innoviahub/internal/metrics"
)

// ChatRequest is the request body for POST /api/chat.
type ChatRequest struct {
	Question string `json:"question"`
}

// handleChat runs one assistant round: oracle proposal, then either a
// booking through the reservation engine or a pass-through reply.
// POST /api/chat
func (s *HTTPServer) handleChat(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("chat")

	userID, _ := identity(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var req ChatRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil || req.Question == "" {
		writeError(w, http.StatusBadRequest, `invalid request payload; expected JSON: {"question": "text"}`)
		return
	}

	result, err := s.bridge.Ask(r.Context(), userID, req.Question)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// Recovered booking failures keep the structured shape but signal
	// the conflict-class outcome in the status code.
	status := http.StatusOK
	if !result.Success {
		status = http.StatusConflict
	}
	writeJSON(w, status, result)
}

// handleEvents streams slot occupancy changes to the observer as
// server-sent events. A dropped connection simply misses events; clients
// reconcile with a full catalog refresh on reconnect.
// GET /api/events
func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("events")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	id, ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

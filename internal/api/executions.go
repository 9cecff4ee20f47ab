package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/athenamock/internal/model"
	"github.com/seantiz/athenamock/internal/store"
)

// historyResponse is the JSON response for GET /v1/executions/{id}/history.
type historyResponse struct {
	QueryExecutionID string             `json:"query_execution_id"`
	Transitions      []model.Transition `json:"transitions"`
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	transitions, err := s.journal.ListTransitions(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "execution not found")
		return
	}
	if err != nil {
		s.logger.Error("list transitions", "query_execution_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get history")
		return
	}

	s.writeJSON(w, http.StatusOK, historyResponse{
		QueryExecutionID: id,
		Transitions:      transitions,
	})
}

// handleStreamEvents streams an execution's transitions as server-sent events
// until its advancer exits.
func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	st, ok := s.states.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "execution not found")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if st.Terminal() {
		w.WriteHeader(http.StatusOK)
		return
	}

	// Lifecycles outlast the server write timeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	// A topic closed between the state check and here yields a closed channel.
	ch, unsub := s.engine.Broker().Subscribe(id)
	defer unsub()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case tr, ok := <-ch:
			if !ok {
				_ = writeSSEEvent(w, "done", "stream complete")
				if canFlush {
					flusher.Flush()
				}
				return
			}
			if err := writeSSETransition(w, tr); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

// writeSSETransition writes tr as a "transition" event with a JSON payload.
func writeSSETransition(w http.ResponseWriter, tr model.Transition) error {
	data, err := json.Marshal(tr)
	if err != nil {
		return err
	}
	return writeSSEEvent(w, "transition", string(data))
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}

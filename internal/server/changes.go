package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/joseph-ayodele/jobtracker/internal/common"
	"github.com/joseph-ayodele/jobtracker/internal/notify"
)

const heartbeatInterval = 25 * time.Second

// handleChanges streams change signals as server-sent events. Each event names the
// changed table; clients refetch on receipt and may miss signals without harm.
func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok || s.broker == nil {
		writeError(w, r, s.logger, common.DependencyError(common.CodeDependency, "streaming unsupported", nil))
		return
	}
	ctx := r.Context()
	events, err := s.broker.Subscribe(ctx)
	if err != nil {
		writeError(w, r, s.logger, common.DependencyError(common.CodeDependency, "subscribe to changes", err))
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closing:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			// Identity events stay server-side.
			if ev.Topic == notify.TopicIdentities {
				continue
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Warn("changes.encode.failed", "topic", ev.Topic, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Topic, data); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

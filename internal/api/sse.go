package api

import (
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/gwlsn/dvdarchive/internal/logger"
)

// Events handles GET /api/events, streaming every Notifier.Publish
// call to the client as an SSE event. Grounded on the teacher's
// JobStream handler: the same flusher check, SSE headers, and
// subscribe/unsubscribe-around-a-buffered-channel shape, generalized
// from job-queue events to spec §7's (event_kind, message) notification
// channel — the sole coupling this repo exposes between the core and a
// GUI.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := h.Notifier.Subscribe()
	defer h.Notifier.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, ev.marshal()); err != nil {
				logger.Debug("api: sse write failed, client likely disconnected", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

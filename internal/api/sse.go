package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// sseKeepAlive keeps idle streams from being reaped by proxies and lets a
// dead client be noticed between flag changes.
const sseKeepAlive = 25 * time.Second

// sseEvents streams agent snapshots as "snapshot" events: the current one
// first, then one per change.
func (h *Handlers) sseEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")

	id := uuid.NewString()
	ch := h.events.Subscribe(id)
	defer h.events.Unsubscribe(id)
	slog.Debug("api: sse client connected", "sub", id, "subscribers", h.events.SubscriberCount())

	w.WriteHeader(http.StatusOK)
	// Subscribe primes the channel once anything has been published; before
	// that, send the agent's current view.
	if _, ok := h.events.Last(); !ok {
		sendSnapshot(w, flusher, h.sync.Snapshot())
	} else {
		flusher.Flush()
	}

	ping := time.NewTicker(sseKeepAlive)
	defer ping.Stop()

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			sendSnapshot(w, flusher, snap)
		case <-ping.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			slog.Debug("api: sse client gone", "sub", id)
			return
		}
	}
}

func sendSnapshot(w http.ResponseWriter, flusher http.Flusher, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data)
	flusher.Flush()
}

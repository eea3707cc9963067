package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/metaco/metaco/internal/models"
)

const maxToggleBody = 4 << 10

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *Handlers) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sync.Snapshot())
}

// toggle sets the flag from {"enabled": bool}, or flips it when the body is
// empty. The change is applied optimistically and synced in the background,
// so the response carries an unconfirmed snapshot.
func (h *Handlers) toggle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxToggleBody+1))
	if err != nil {
		writeError(w, models.ErrBadRequest("read body: "+err.Error()))
		return
	}
	if len(body) > maxToggleBody {
		writeError(w, models.ErrInvalidPayload.Wrap(errBodyTooLarge))
		return
	}

	if len(bytes.TrimSpace(body)) == 0 {
		if _, err := h.sync.Flip(r.Context()); err != nil {
			writeError(w, models.ErrUnavailable("toggle not queued: "+err.Error()))
			return
		}
		writeJSON(w, http.StatusAccepted, h.sync.Snapshot())
		return
	}

	var req toggleRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, models.ErrInvalidPayload.Wrap(err))
		return
	}
	if req.Enabled == nil {
		writeError(w, models.ErrInvalidPayload.Wrap(errMissingEnabled))
		return
	}

	if err := h.sync.Toggle(r.Context(), *req.Enabled); err != nil {
		writeError(w, models.ErrUnavailable("toggle not queued: "+err.Error()))
		return
	}
	writeJSON(w, http.StatusAccepted, h.sync.Snapshot())
}

func (h *Handlers) syncNow(w http.ResponseWriter, r *http.Request) {
	h.sync.Refresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

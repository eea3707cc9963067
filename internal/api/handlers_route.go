package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/metaco/metaco/internal/models"
	"github.com/metaco/metaco/internal/router"
)

var (
	errBodyTooLarge   = errors.New("body too large")
	errMissingEnabled = errors.New("missing enabled field")
)

type forwardRequest struct {
	Query string `json:"query"`
}

func routeError(err error) error {
	switch {
	case errors.Is(err, router.ErrBlocked):
		return models.ErrBlocked(err.Error())
	case errors.Is(err, router.ErrEmptyQuery):
		return models.ErrBadRequest("query is required")
	default:
		return err
	}
}

// route reports where a query would go without forwarding it.
func (h *Handlers) route(w http.ResponseWriter, r *http.Request) {
	d, err := h.router.Route(r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, routeError(err))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handlers) forward(w http.ResponseWriter, r *http.Request) {
	var req forwardRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, models.ErrInvalidPayload.Wrap(err))
		return
	}
	d, err := h.router.Forward(req.Query)
	if err != nil {
		writeError(w, routeError(err))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handlers) getSilos(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"silos":   h.router.Table().Silos(),
		"default": router.DefaultDestination,
	})
}

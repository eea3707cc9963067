// Package api implements the local HTTP API the extension popup and other
// UIs use to read and toggle the metaCo flag.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/metaco/metaco/internal/identity"
	"github.com/metaco/metaco/internal/models"
	"github.com/metaco/metaco/internal/router"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	sync   Syncer
	router QueryRouter
	events EventBus
	info   InfoFunc
}

// Syncer is the part of the sync agent the handlers use.
type Syncer interface {
	Snapshot() models.Snapshot
	Toggle(ctx context.Context, enabled bool) error
	Flip(ctx context.Context) (bool, error)
	Refresh()
}

// QueryRouter picks destinations for queries.
type QueryRouter interface {
	Route(query string) (router.Decision, error)
	Forward(query string) (router.Decision, error)
	Table() *router.Table
}

// EventBus is the interface for subscribing to snapshot events.
type EventBus interface {
	Subscribe(id string) <-chan models.Snapshot
	Unsubscribe(id string)
	Last() (models.Snapshot, bool)
	SubscriberCount() int
}

// InfoFunc reports agent identity.
type InfoFunc func() identity.Info

var (
	errRouteNotFound    = &models.AppError{Code: "NOT_FOUND", Message: "no such endpoint", Status: http.StatusNotFound}
	errMethodNotAllowed = &models.AppError{Code: "METHOD_NOT_ALLOWED", Message: "method not allowed", Status: http.StatusMethodNotAllowed}
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an AppError as a JSON response.
func writeError(w http.ResponseWriter, err error) {
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		writeJSON(w, appErr.Status, appErr)
		return
	}
	writeJSON(w, http.StatusInternalServerError, models.ErrInternal(err.Error()))
}

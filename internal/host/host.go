// Package host implements the native messaging host: one framed request in,
// one framed response out, then the process exits.
package host

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/metaco/metaco/internal/config"
	"github.com/metaco/metaco/internal/framing"
	"github.com/metaco/metaco/internal/models"
)

// Opener locates the state store. It is called once per request, after the
// request has been decoded, so path resolution failures become responses.
type Opener func() (config.Store, error)

// OpenDefault opens the platform state store.
func OpenDefault() (config.Store, error) {
	return config.OpenDefault()
}

// Handler answers host requests against a state store.
type Handler struct {
	open Opener
}

// NewHandler creates a Handler using open to reach the store.
func NewHandler(open Opener) *Handler {
	return &Handler{open: open}
}

// Handle performs one request. It never panics: any fault is converted into
// a failure response.
func (h *Handler) Handle(req models.Request) (resp models.Response) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("host: recovered from panic", "type", req.Type, "panic", r)
			resp = models.Failure(fmt.Errorf("%v", r))
		}
	}()

	store, err := h.open()
	if err != nil {
		return models.Failure(err)
	}

	switch req.Type {
	case models.TypeRead:
		state, err := store.Read()
		if err != nil {
			slog.Debug("host: read failed", "path", store.Path(), "err", err)
			return models.Failure(err)
		}
		return models.Response{Success: true, Data: &state}

	case models.TypeWrite:
		state, err := models.ParseState(req.Data)
		if err != nil {
			slog.Debug("host: rejecting write payload", "err", err)
			return models.Failure(models.ErrInvalidPayload)
		}
		if err := store.Write(state); err != nil {
			slog.Warn("host: write failed", "path", store.Path(), "err", err)
			return models.Failure(err)
		}
		slog.Debug("host: state written", "path", store.Path(), "enabled", state.Enabled)
		return models.Response{Success: true}

	default:
		return models.Failure(models.ErrUnknownMessageType)
	}
}

// ServeOnce decodes exactly one request from in and writes exactly one
// response to out. If the request cannot be decoded nothing is written and
// the decode error is returned.
func (h *Handler) ServeOnce(in io.Reader, out io.Writer) error {
	raw, err := framing.ReadFrame(in)
	if err != nil {
		return err
	}
	resp := h.Handle(models.ParseRequest(raw))
	return framing.Encode(out, resp)
}

// Run serves one exchange on in/out using the platform store and returns a
// process exit code. A peer that closes without sending anything exits cleanly.
func Run(in io.Reader, out io.Writer) int {
	err := NewHandler(OpenDefault).ServeOnce(in, out)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, framing.ErrTruncatedHeader):
		slog.Debug("host: no request received", "err", err)
		return 0
	default:
		slog.Error("host: exchange failed", "err", err)
		return 1
	}
}

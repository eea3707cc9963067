package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/metaco/metaco/internal/framing"
	"github.com/metaco/metaco/internal/host"
)

// LocalDialer runs the host handler in-process over pipes. Each Dial serves
// exactly one exchange, the same contract as a spawned host.
type LocalDialer struct {
	handler *host.Handler
}

// NewLocalDialer returns a dialer serving requests with h.
func NewLocalDialer(h *host.Handler) *LocalDialer {
	return &LocalDialer{handler: h}
}

// Dial starts a goroutine acting as a single-shot host.
func (d *LocalDialer) Dial(ctx context.Context) (Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		err := d.handler.ServeOnce(reqR, respW)
		if err != nil && !errors.Is(err, framing.ErrTruncatedHeader) && !errors.Is(err, io.ErrClosedPipe) {
			slog.Debug("agent: local host exchange failed", "err", err)
		}
		respW.Close()
		reqR.Close()
	}()

	return &pipeChannel{
		w:    reqW,
		r:    respR,
		done: done,
		terminate: func() {
			reqR.CloseWithError(io.ErrClosedPipe)
			respW.CloseWithError(io.ErrClosedPipe)
		},
	}, nil
}

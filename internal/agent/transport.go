package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/metaco/metaco/internal/framing"
	"github.com/metaco/metaco/internal/models"
)

var (
	// ErrDisconnected means the host went away without answering.
	ErrDisconnected = errors.New("agent: host disconnected")
	// ErrTimeout means the host did not answer within the request timeout.
	ErrTimeout = errors.New("agent: request timed out")
	// ErrHostNotFound means the host binary could not be started.
	ErrHostNotFound = errors.New("agent: host binary not found")
)

// closeTimeout bounds how long Close waits for the peer to exit on its own.
const closeTimeout = 3 * time.Second

// Channel is a duplex link to one host instance.
type Channel interface {
	// Exchange sends one request and waits for its response.
	Exchange(ctx context.Context, req models.Request) (models.Response, error)
	// Close releases the link and waits for the peer to go away.
	Close() error
}

// Dialer establishes channels to freshly started hosts.
type Dialer interface {
	Dial(ctx context.Context) (Channel, error)
}

// pipeChannel speaks the framing protocol over a writer/reader pair. done
// closes when the peer has exited; terminate forces it to.
type pipeChannel struct {
	w         io.WriteCloser
	r         io.ReadCloser
	done      <-chan struct{}
	terminate func()

	mu     sync.Mutex
	busy   bool
	closed bool
}

type exchangeResult struct {
	resp models.Response
	err  error
}

func (c *pipeChannel) Exchange(ctx context.Context, req models.Request) (models.Response, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return models.Response{}, ErrDisconnected
	}
	if c.busy {
		c.mu.Unlock()
		return models.Response{}, fmt.Errorf("agent: exchange already in flight")
	}
	c.busy = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	resultCh := make(chan exchangeResult, 1)
	go func() {
		if err := framing.Encode(c.w, req); err != nil {
			resultCh <- exchangeResult{err: fmt.Errorf("%w: %v", ErrDisconnected, err)}
			return
		}
		// The host is single-shot; closing our side tells it no more requests follow.
		_ = c.w.Close()

		var resp models.Response
		if err := framing.Decode(c.r, &resp); err != nil {
			if errors.Is(err, framing.ErrTruncatedHeader) {
				err = fmt.Errorf("%w: %v", ErrDisconnected, err)
			}
			resultCh <- exchangeResult{err: err}
			return
		}
		resultCh <- exchangeResult{resp: resp}
	}()

	select {
	case res := <-resultCh:
		return res.resp, res.err
	case <-ctx.Done():
		c.terminate()
		return models.Response{}, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}
}

func (c *pipeChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	_ = c.w.Close()
	select {
	case <-c.done:
	case <-time.After(closeTimeout):
		c.terminate()
		<-c.done
	}
	return c.r.Close()
}

// Package agent implements the client side of the metaCo sync protocol: it
// keeps a cached copy of the enabled flag in step with the host's state file
// by polling with read requests and sending write requests on toggles.
//
// The host is single-shot, so every request goes to a freshly dialed channel
// that is closed once the response arrives.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/metaco/metaco/internal/models"
)

const toggleQueueSize = 16

// Publisher receives a snapshot after every change the agent makes.
// Publish is called with the agent's lock held and must not block.
type Publisher interface {
	Publish(models.Snapshot)
}

// Options tunes the sync loop.
type Options struct {
	PollInterval   time.Duration
	RequestTimeout time.Duration
	SpawnRate      float64 // host dials per second
	SpawnBurst     int
}

// DefaultOptions returns a 5s poll with a matching request timeout.
func DefaultOptions() Options {
	return Options{
		PollInterval:   5 * time.Second,
		RequestTimeout: 5 * time.Second,
		SpawnRate:      10,
		SpawnBurst:     4,
	}
}

// Agent is the client sync agent. All host traffic happens on the goroutine
// running Run, so requests never overlap.
type Agent struct {
	dialer  Dialer
	pub     Publisher
	opts    Options
	limiter *rate.Limiter

	toggles chan bool
	refresh chan struct{}

	mu      sync.RWMutex
	snap    models.Snapshot
	conn    ConnState
	pending int // writes queued or in flight
}

// New creates an agent. pub may be nil.
func New(dialer Dialer, pub Publisher, opts Options) *Agent {
	def := DefaultOptions()
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = opts.PollInterval
	}
	if opts.SpawnRate <= 0 {
		opts.SpawnRate = def.SpawnRate
	}
	if opts.SpawnBurst <= 0 {
		opts.SpawnBurst = def.SpawnBurst
	}
	return &Agent{
		dialer:  dialer,
		pub:     pub,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.SpawnRate), opts.SpawnBurst),
		toggles: make(chan bool, toggleQueueSize),
		refresh: make(chan struct{}, 1),
		snap:    models.Snapshot{Connection: Disconnected.String()},
	}
}

// Enabled returns the cached flag.
func (a *Agent) Enabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap.Enabled
}

// Snapshot returns a copy of the agent's current view.
func (a *Agent) Snapshot() models.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshotLocked()
}

// Conn returns the current link state.
func (a *Agent) Conn() ConnState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.conn
}

// Toggle sets the cached flag optimistically and queues a write to the host.
// It returns once the write is queued, not when it is acknowledged.
func (a *Agent) Toggle(ctx context.Context, enabled bool) error {
	_, err := a.toggle(ctx, func(bool) bool { return enabled })
	return err
}

// Flip inverts the cached flag and queues the write, returning the new value.
func (a *Agent) Flip(ctx context.Context) (bool, error) {
	return a.toggle(ctx, func(cur bool) bool { return !cur })
}

func (a *Agent) toggle(ctx context.Context, next func(bool) bool) (bool, error) {
	a.mu.Lock()
	enabled := next(a.snap.Enabled)
	a.pending++
	a.snap.Enabled = enabled
	a.snap.Confirmed = false
	a.publishLocked()
	a.mu.Unlock()

	select {
	case a.toggles <- enabled:
	case <-ctx.Done():
		a.mu.Lock()
		a.pending--
		a.snap.LastError = "toggle not queued: " + ctx.Err().Error()
		a.publishLocked()
		a.mu.Unlock()
		// The optimistic value was never queued; let the next read settle it.
		a.Refresh()
		return false, ctx.Err()
	}

	slog.Info("agent: toggle", "enabled", enabled)
	return enabled, nil
}

// Refresh asks Run to issue a read as soon as it is idle. Repeated calls
// before that read happens collapse into one.
func (a *Agent) Refresh() {
	select {
	case a.refresh <- struct{}{}:
	default:
	}
}

// Run performs an initial read, then polls on a fixed interval and applies
// queued toggles until ctx is cancelled. A tick that arrives while a request
// is in flight is held by the ticker and served afterwards; further ticks
// during that time are dropped.
func (a *Agent) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.opts.PollInterval)
	defer ticker.Stop()

	slog.Info("agent: started", "poll", a.opts.PollInterval, "timeout", a.opts.RequestTimeout)
	a.read(ctx)

	for {
		select {
		case <-ctx.Done():
			a.setConn(Disconnected)
			slog.Info("agent: stopped")
			return ctx.Err()
		case enabled := <-a.toggles:
			a.write(ctx, enabled)
		case <-a.refresh:
			a.read(ctx)
		case <-ticker.C:
			a.read(ctx)
		}
	}
}

func (a *Agent) read(ctx context.Context) {
	resp, err := a.exchange(ctx, models.NewReadRequest())

	a.mu.Lock()
	now := time.Now()
	switch {
	case err != nil:
		a.snap.LastError = err.Error()
	case !resp.Success:
		a.snap.LastError = resp.Error
	case resp.Data == nil:
		a.snap.LastError = "read response without data"
	case a.pending > 0:
		// A newer local toggle is queued; its write will settle the flag.
		a.snap.LastSync = &now
		a.snap.LastError = ""
	default:
		if a.snap.Enabled != resp.Data.Enabled {
			slog.Info("agent: flag changed on host", "enabled", resp.Data.Enabled)
		}
		a.snap.Enabled = resp.Data.Enabled
		a.snap.Confirmed = true
		a.snap.LastSync = &now
		a.snap.LastError = ""
	}
	a.publishLocked()
	a.mu.Unlock()

	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("agent: read failed", "err", err)
		}
	} else if !resp.Success {
		slog.Debug("agent: host rejected read", "error", resp.Error)
	}
}

func (a *Agent) write(ctx context.Context, enabled bool) {
	resp, err := a.exchange(ctx, models.NewWriteRequest(models.State{Enabled: enabled}))

	a.mu.Lock()
	a.pending--
	now := time.Now()
	switch {
	case err != nil:
		a.snap.LastError = err.Error()
	case !resp.Success:
		a.snap.LastError = resp.Error
	default:
		a.snap.LastSync = &now
		a.snap.LastError = ""
		if a.pending == 0 {
			a.snap.Enabled = enabled
			a.snap.Confirmed = true
		}
	}
	a.publishLocked()
	a.mu.Unlock()

	switch {
	case err != nil:
		slog.Warn("agent: write failed, cached flag left unconfirmed", "enabled", enabled, "err", err)
	case !resp.Success:
		slog.Warn("agent: host rejected write, cached flag left unconfirmed", "enabled", enabled, "error", resp.Error)
	default:
		slog.Debug("agent: write acknowledged", "enabled", enabled)
	}
}

// exchange dials a fresh host, performs one request, and closes the channel.
func (a *Agent) exchange(ctx context.Context, req models.Request) (models.Response, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return models.Response{}, fmt.Errorf("agent: spawn limiter: %w", err)
	}

	reqID := uuid.NewString()
	log := slog.With("req", reqID, "type", req.Type)

	ctx, cancel := context.WithTimeout(ctx, a.opts.RequestTimeout)
	defer cancel()

	ch, err := a.dialer.Dial(ctx)
	if err != nil {
		a.setConn(Disconnected)
		return models.Response{}, err
	}
	a.setConn(Connected)
	defer func() {
		if err := ch.Close(); err != nil {
			log.Debug("agent: close channel", "err", err)
		}
		a.setConn(Disconnected)
		log.Debug("agent: host channel closed")
	}()

	a.setConn(AwaitingResponse)
	start := time.Now()
	resp, err := ch.Exchange(ctx, req)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			log.Warn("agent: host did not answer in time", "timeout", a.opts.RequestTimeout)
		}
		return models.Response{}, err
	}
	a.setConn(Connected)
	log.Debug("agent: exchange complete", "success", resp.Success, "elapsed", time.Since(start))
	return resp, nil
}

func (a *Agent) setConn(s ConnState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conn = s
	a.snap.Connection = s.String()
}

func (a *Agent) snapshotLocked() models.Snapshot {
	snap := a.snap
	if a.snap.LastSync != nil {
		t := *a.snap.LastSync
		snap.LastSync = &t
	}
	return snap
}

// publishLocked hands the current snapshot to the publisher. It runs with
// a.mu held so subscribers see snapshots in the order the state changed;
// Publisher implementations must not block or call back into the agent.
func (a *Agent) publishLocked() {
	if a.pub != nil {
		a.pub.Publish(a.snapshotLocked())
	}
}

package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaco/metaco/internal/events"
	"github.com/metaco/metaco/internal/models"
	"github.com/metaco/metaco/internal/notify"
)

type recorder struct {
	mu    sync.Mutex
	calls []bool
	err   error
}

func (r *recorder) Notify(_ context.Context, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, enabled)
	return r.err
}

func (r *recorder) got() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.calls...)
}

func runWatch(t *testing.T, snaps []models.Snapshot, n notify.Notifier) {
	t.Helper()
	ch := make(chan models.Snapshot, len(snaps))
	for _, s := range snaps {
		ch <- s
	}
	close(ch)

	done := make(chan struct{})
	go func() {
		notify.Watch(context.Background(), ch, n)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after channel close")
	}
}

func TestWatch_NotifiesOnConfirmedTransitions(t *testing.T) {
	rec := &recorder{}
	runWatch(t, []models.Snapshot{
		{Enabled: false, Confirmed: true}, // baseline
		{Enabled: false, Confirmed: true},
		{Enabled: true, Confirmed: false}, // optimistic, ignored
		{Enabled: true, Confirmed: true},
		{Enabled: true, Confirmed: true},
		{Enabled: false, Confirmed: true},
	}, rec)

	assert.Equal(t, []bool{true, false}, rec.got())
}

func TestWatch_UnconfirmedNeverNotifies(t *testing.T) {
	rec := &recorder{}
	runWatch(t, []models.Snapshot{
		{Enabled: true},
		{Enabled: false},
		{Enabled: true},
	}, rec)
	assert.Empty(t, rec.got())
}

func TestWatch_KeepsGoingAfterDeliveryFailure(t *testing.T) {
	rec := &recorder{err: errors.New("no bus")}
	runWatch(t, []models.Snapshot{
		{Enabled: true, Confirmed: true},
		{Enabled: false, Confirmed: true},
		{Enabled: true, Confirmed: true},
	}, rec)
	assert.Equal(t, []bool{false, true}, rec.got())
}

func TestWatch_StopsOnContextCancel(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe("notify")
	defer bus.Unsubscribe("notify")

	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		notify.Watch(ctx, ch, rec)
		close(done)
	}()

	bus.Publish(models.Snapshot{Enabled: false, Confirmed: true})
	bus.Publish(models.Snapshot{Enabled: true, Confirmed: true})
	require.Eventually(t, func() bool { return len(rec.got()) == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop")
	}
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "metaCo is ON", notify.Summary(true))
	assert.Equal(t, "metaCo is OFF", notify.Summary(false))
	assert.NotEqual(t, notify.Body(true), notify.Body(false))
	assert.NoError(t, notify.Log{}.Notify(context.Background(), true))
}

func TestSelect_WithoutDesktop(t *testing.T) {
	assert.IsType(t, notify.Log{}, notify.Select(false))
}

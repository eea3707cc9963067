// Package notify tells the user when the synced enabled flag changes.
package notify

import (
	"context"
	"log/slog"

	"github.com/metaco/metaco/internal/models"
)

// Notifier delivers one flag-change notice.
type Notifier interface {
	Notify(ctx context.Context, enabled bool) error
}

// Summary returns the notification title for a flag value.
func Summary(enabled bool) string {
	if enabled {
		return "metaCo is ON"
	}
	return "metaCo is OFF"
}

// Body returns the notification text for a flag value.
func Body(enabled bool) string {
	if enabled {
		return "Queries are routed to your silos."
	}
	return "Queries are blocked until metaCo is turned back on."
}

// Log writes notices to the process log. Used when no desktop bus is available.
type Log struct{}

func (Log) Notify(_ context.Context, enabled bool) error {
	slog.Info("notify: "+Summary(enabled), "enabled", enabled)
	return nil
}

// Watch calls n each time the confirmed flag in snaps changes value. The
// first confirmed value only sets the baseline. Unconfirmed snapshots are
// skipped, so an optimistic toggle does not notify until the host agrees.
// Watch returns when ctx is done or snaps is closed.
func Watch(ctx context.Context, snaps <-chan models.Snapshot, n Notifier) {
	var (
		known bool
		last  bool
	)
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			if !snap.Confirmed {
				continue
			}
			if known && snap.Enabled == last {
				continue
			}
			first := !known
			known, last = true, snap.Enabled
			if first {
				continue
			}
			if err := n.Notify(ctx, snap.Enabled); err != nil {
				slog.Warn("notify: delivery failed", "err", err)
			}
		}
	}
}

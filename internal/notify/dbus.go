package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	notifyDest   = "org.freedesktop.Notifications"
	notifyPath   = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyMethod = notifyDest + ".Notify"

	appName       = "metaCo"
	expireDefault = int32(-1)
)

// DBus posts desktop notifications over the session bus. Each notice
// replaces the previous one so toggling back and forth does not stack popups.
type DBus struct {
	Icon string

	mu     sync.Mutex
	lastID uint32
}

// NewDBus returns a notifier using the freedesktop notification service.
func NewDBus() *DBus {
	return &DBus{Icon: "dialog-information"}
}

// Available reports whether a notification service is reachable on the session bus.
func (d *DBus) Available() bool {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return false
	}
	defer conn.Close()

	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return false
	}
	for _, n := range names {
		if n == notifyDest {
			return true
		}
	}
	// Services may be activatable without currently owning a name.
	var activatable []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListActivatableNames", 0).Store(&activatable); err != nil {
		return false
	}
	for _, n := range activatable {
		if n == notifyDest {
			return true
		}
	}
	return false
}

func (d *DBus) Notify(ctx context.Context, enabled bool) error {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("notify: connect session bus: %w", err)
	}
	defer conn.Close()

	d.mu.Lock()
	replaces := d.lastID
	d.mu.Unlock()

	obj := conn.Object(notifyDest, notifyPath)
	call := obj.CallWithContext(ctx, notifyMethod, 0,
		appName,
		replaces,
		d.Icon,
		Summary(enabled),
		Body(enabled),
		[]string{},
		map[string]dbus.Variant{},
		expireDefault,
	)
	if call.Err != nil {
		return fmt.Errorf("notify: %s: %w", notifyMethod, call.Err)
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("notify: read notification id: %w", err)
	}
	d.mu.Lock()
	d.lastID = id
	d.mu.Unlock()
	return nil
}

// Select returns a DBus notifier when the desktop has a notification
// service, and Log otherwise.
func Select(desktop bool) Notifier {
	if desktop {
		if d := NewDBus(); d.Available() {
			return d
		}
	}
	return Log{}
}

package infra

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/overlay_mon/internal/domain"
)

const (
	notificationsDest   = "org.freedesktop.Notifications"
	notificationsPath   = "/org/freedesktop/Notifications"
	notifyMethod        = "org.freedesktop.Notifications.Notify"
	closeMethod         = "org.freedesktop.Notifications.CloseNotification"
	notificationAppName = "overlaymon"
	notificationIcon    = "dialog-information"
)

// busObject is the part of dbus.BusObject the notifier calls.
type busObject interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// DBusNotifier shows the monitoring status as a resident desktop
// notification through org.freedesktop.Notifications.
type DBusNotifier struct {
	conn   *dbus.Conn
	obj    busObject
	logger *zap.Logger

	mu sync.Mutex
	id uint32 // current notification, 0 if none
}

// NewDBusNotifier connects to the session bus.
func NewDBusNotifier(logger *zap.Logger) (*DBusNotifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	n := newDBusNotifier(conn.Object(notificationsDest, notificationsPath), logger)
	n.conn = conn
	return n, nil
}

func newDBusNotifier(obj busObject, logger *zap.Logger) *DBusNotifier {
	return &DBusNotifier{obj: obj, logger: logger}
}

// ShowStatus creates the notification, or replaces the one already shown.
func (n *DBusNotifier) ShowStatus(title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	hints := map[string]dbus.Variant{
		"resident":  dbus.MakeVariant(true),
		"transient": dbus.MakeVariant(false),
		"urgency":   dbus.MakeVariant(byte(0)),
	}
	call := n.obj.Call(notifyMethod, 0,
		notificationAppName, n.id, notificationIcon, title, body,
		[]string{}, hints, int32(0))
	if call.Err != nil {
		return fmt.Errorf("failed to show status notification: %w", call.Err)
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("failed to read notification id: %w", err)
	}
	n.id = id
	n.logger.Debug("status notification shown", zap.Uint32("id", id))
	return nil
}

// ClearStatus closes the notification if one is shown.
func (n *DBusNotifier) ClearStatus() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.id == 0 {
		return nil
	}
	id := n.id
	n.id = 0
	if call := n.obj.Call(closeMethod, 0, id); call.Err != nil {
		return fmt.Errorf("failed to close status notification: %w", call.Err)
	}
	return nil
}

// Close drops the bus connection.
func (n *DBusNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}

var _ domain.StatusNotifier = (*DBusNotifier)(nil)

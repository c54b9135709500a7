// Package notify delivers desktop notifications for connection events over
// the org.freedesktop.Notifications D-Bus interface.
package notify

import (
	"github.com/godbus/dbus/v5"

	"github.com/tunnelguard/tunnelguard/common"
)

const (
	notifyDest   = "org.freedesktop.Notifications"
	notifyPath   = "/org/freedesktop/Notifications"
	notifyMethod = "org.freedesktop.Notifications.Notify"

	urgencyNormal   = byte(1)
	urgencyCritical = byte(2)
)

// DBusNotifier implements common.Notifier over the session bus. A nil or
// failed connection degrades to no-ops so notification problems never break
// the connection workflow.
type DBusNotifier struct {
	conn *dbus.Conn
}

// NewDBusNotifier connects to the session bus. The returned notifier is
// usable even when the connection fails; it just stops delivering.
func NewDBusNotifier() *DBusNotifier {
	conn, err := dbus.SessionBus()
	if err != nil {
		common.LogWarn("Session bus unavailable, desktop notifications disabled: %v", err)
		return &DBusNotifier{}
	}
	return &DBusNotifier{conn: conn}
}

// Notify implements common.Notifier.
func (n *DBusNotifier) Notify(title, message string) error {
	return n.send(title, message, urgencyNormal)
}

// NotifyError implements common.Notifier.
func (n *DBusNotifier) NotifyError(title, message string) error {
	return n.send(title, message, urgencyCritical)
}

func (n *DBusNotifier) send(title, message string, urgency byte) error {
	if n.conn == nil {
		return nil
	}

	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(urgency),
	}
	call := n.conn.Object(notifyDest, notifyPath).Call(notifyMethod, 0,
		common.AppName,           // app_name
		uint32(0),                // replaces_id
		"network-vpn",            // app_icon
		title,                    // summary
		message,                  // body
		[]string{},               // actions
		hints,                    // hints
		int32(common.NotifyTimeout.Milliseconds()), // expire_timeout
	)
	if call.Err != nil {
		common.LogWarn("Desktop notification failed: %v", call.Err)
		return call.Err
	}
	return nil
}

// NoopNotifier discards notifications. Used when notifications are disabled
// in the configuration.
type NoopNotifier struct{}

// Notify implements common.Notifier.
func (NoopNotifier) Notify(title, message string) error { return nil }

// NotifyError implements common.Notifier.
func (NoopNotifier) NotifyError(title, message string) error { return nil }

// ForConfig selects the notifier matching the user's preference.
func ForConfig(enabled bool) common.Notifier {
	if !enabled {
		return NoopNotifier{}
	}
	return NewDBusNotifier()
}

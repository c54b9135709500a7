package common

// Logger is the interface for leveled logging. AppLogger satisfies it; tests
// may substitute their own implementation.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...interface{})
	// Info logs an informational message.
	Info(msg string, args ...interface{})
	// Warn logs a warning message.
	Warn(msg string, args ...interface{})
	// Error logs an error message.
	Error(msg string, args ...interface{})
}

// Notifier sends desktop notifications for connection events.
type Notifier interface {
	// Notify sends a notification with the given title and message.
	Notify(title, message string) error
	// NotifyError sends a high-urgency notification.
	NotifyError(title, message string) error
}

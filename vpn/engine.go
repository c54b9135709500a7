package vpn

// Engine event names. The orchestrator maps each to a deterministic status
// transition; unrecognized events are logged and ignored.
const (
	EventConnected      = "CONNECTED"
	EventDisconnected   = "DISCONNECTED"
	EventReconnecting   = "RECONNECTING"
	EventAuthFailed     = "AUTH_FAILED"
	EventCertVerifyFail = "CERT_VERIFY_FAIL"
	EventTLSError       = "TLS_ERROR"
	EventClientRestart  = "CLIENT_RESTART"

	// Transient progress events. They never end an attempt.
	EventConnecting = "CONNECTING"
	EventPaused     = "PAUSED"
	EventResumed    = "RESUMED"
)

// EventSink receives asynchronous callbacks from an Engine. The orchestrator
// implements it; engines must tolerate callbacks racing with Stop.
type EventSink interface {
	// OnEvent delivers a named engine event with optional detail text.
	OnEvent(name, info string)
	// OnLog delivers an engine log line with a numeric severity
	// (0=fatal, 1=error, 2=warning, 3=info, >3=debug).
	OnLog(level int, text string)
}

// Engine is the interface to the underlying VPN transport. The engine's
// internals (handshake, key exchange, packet encapsulation) are opaque to
// this package; the orchestrator only starts, stops, and steers it, and
// consumes its callbacks.
type Engine interface {
	// Start begins tunnel establishment asynchronously and registers sink
	// for events and logs. It returns an error only for failures detected
	// before the attempt is underway; everything later arrives via sink.
	Start(cfg *ConnectionConfig, sink EventSink) error
	// Stop tears down the tunnel or aborts establishment. Idempotent.
	Stop()
	// Pause suspends the tunnel, keeping state for a later Resume.
	Pause(reason string)
	// Resume re-establishes a paused tunnel.
	Resume()
	// Reconnect tears the tunnel down and re-dials after delaySeconds.
	Reconnect(delaySeconds int)
}

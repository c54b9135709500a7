package vpn

// ConnectionStatus represents the current state of the VPN connection.
type ConnectionStatus int

const (
	// StatusDisconnected indicates no active connection. Initial state.
	StatusDisconnected ConnectionStatus = iota
	// StatusConnecting indicates a connection attempt is in progress.
	StatusConnecting
	// StatusConnected indicates an established tunnel.
	StatusConnected
	// StatusError indicates the last attempt failed.
	StatusError
)

// String returns a human-readable representation of the connection status.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "Disconnected"
	case StatusConnecting:
		return "Connecting..."
	case StatusConnected:
		return "Connected"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// terminal reports whether the status ends a connection attempt. Any
// status other than Connecting does: Connected and Error are outcomes,
// and Disconnected means the engine dropped or the user cancelled.
func (s ConnectionStatus) terminal() bool {
	return s != StatusConnecting
}

package vpn

// ConnectionConfig is the immutable per-attempt tunnel configuration handed
// to the engine. It is built once from validated text and never mutated
// afterwards, so the worker and status callbacks may read it without
// locking.
type ConnectionConfig struct {
	// Content is the raw tunnel configuration text, inline style.
	Content string
	// CompressionMode selects the engine's compression behavior.
	CompressionMode string
	// TCPQueueLimit caps the engine's TCP output queue.
	TCPQueueLimit int

	// Optional endpoint overrides. Empty means use the config's values.
	ServerOverride string
	PortOverride   string
	ProtoOverride  string

	// Security-relevant flags, all conservative by default.
	AllowLocalLAN     bool
	PersistTunnel     bool
	AutologinSessions bool
	DisableClientCert bool

	// SSLDebugLevel controls TLS layer verbosity. 0 in production.
	SSLDebugLevel int
}

// NewConnectionConfig materializes a ConnectionConfig from raw configuration
// text with conservative defaults.
func NewConnectionConfig(content string) *ConnectionConfig {
	return &ConnectionConfig{
		Content:         content,
		CompressionMode: "adaptive",
		TCPQueueLimit:   64,
	}
}

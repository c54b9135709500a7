package common

import "time"

// Application metadata.
const (
	// AppName is the display name of the application.
	AppName = "TunnelGuard"
	// ConfigDirName is the name of the configuration directory under ~/.config.
	ConfigDirName = "tunnelguard"
)

// File names used by the application.
const (
	ConfigFileName   = "config.yaml"
	ProfilesDBName   = "profiles.db"
	LogFileName      = "tunnelguard.log"
	ProfileConfigExt = ".ovpn"
)

// Default timeouts and intervals.
const (
	// ConnectTimeout is the ceiling on tunnel establishment. A connect
	// attempt that sees no terminal engine event within this window fails.
	ConnectTimeout = 30 * time.Second
	// ReconnectDelay is the fixed backoff applied before the engine
	// re-dials during an explicit reconnect.
	ReconnectDelay = 5 * time.Second
	// NotifyTimeout is how long desktop notifications stay on screen.
	NotifyTimeout = 5 * time.Second
	// HealthCheckInterval is how often an established tunnel is probed
	// for connectivity.
	HealthCheckInterval = 30 * time.Second
)

// Package vpn implements TunnelGuard's connection lifecycle.
//
// The package is organized around four pieces:
//
//   - Orchestrator: the connection state machine. It owns the status, runs
//     one worker goroutine per connect attempt, enforces the establishment
//     timeout, and drives the security policy on every transition.
//   - Engine: the interface to the underlying VPN transport. The real
//     OpenVPNEngine wraps an openvpn process; SimulatedEngine reproduces the
//     engine's event sequence for tests and demo mode.
//   - ValidateConfig: the structural acceptance check over raw tunnel
//     configuration text.
//   - ProfileStore: SQLite-backed persistence for named tunnel profiles.
//
// # Connection flow
//
//  1. A caller invokes Orchestrator.Connect with a config path.
//  2. The worker validates the text, materializes a ConnectionConfig, and
//     asks the engine to start the tunnel.
//  3. The engine reports progress through the EventSink callbacks; each
//     terminal event maps deterministically to a status transition.
//  4. Every transition applies its traffic-gate side effect, so egress is
//     blocked whenever the tunnel is not established.
//
// # Thread safety
//
// All exported types are safe for concurrent use. The orchestrator
// serializes status, the last-error buffer, and the in-progress flag behind
// a single mutex.
package vpn

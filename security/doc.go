// Package security implements the fail-safe network policy for TunnelGuard.
//
// The PolicyCoordinator is the single writer of traffic-gate state. It is
// driven exclusively by the connection orchestrator's transition handler and
// maintains the invariant that outbound traffic is blocked whenever the
// tunnel is not established, unless the user has explicitly overridden
// protection.
//
// TrafficGate abstracts the platform packet filter. The iptables-backed gate
// shells out to the system firewall; tests inject a recording fake.
package security

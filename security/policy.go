package security

import (
	"sync"

	"github.com/tunnelguard/tunnelguard/common"
)

// PolicyCoordinator owns the security state of the application and is the
// only component allowed to drive the TrafficGate. It starts blocked: until
// the orchestrator reports an established tunnel, no general egress is
// permitted.
//
// All operations are idempotent. Gate failures are logged and absorbed here;
// they never propagate to the connection state machine. Failing to install a
// blocking rule leaves the coordinator in the blocked state regardless, so
// the conservative answer is always recorded.
type PolicyCoordinator struct {
	mu         sync.Mutex
	gate       TrafficGate
	blocked    bool
	killSwitch bool
	override   bool
}

// NewPolicyCoordinator creates a coordinator around the given gate and
// immediately installs the blocking rule set (fail-safe default).
func NewPolicyCoordinator(gate TrafficGate) *PolicyCoordinator {
	pc := &PolicyCoordinator{
		gate:    gate,
		blocked: true,
	}
	if err := gate.Block(false); err != nil {
		common.LogWarn("Initial traffic block failed: %v", err)
	}
	return pc
}

// Block installs the traffic filter. A no-op observable-state-wise when
// already blocked, but the gate is still invoked so a retry can repair a
// partial failure. Skipped entirely while the user override is active.
func (pc *PolicyCoordinator) Block() {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.override {
		common.LogDebug("Traffic block skipped: user override active")
		return
	}
	pc.blocked = true
	if err := pc.gate.Block(pc.killSwitch); err != nil {
		common.LogWarn("Failed to install traffic block: %v", err)
	}
}

// Unblock removes the traffic filter. Unblock failures are logged loudly:
// they leave the user blocked, which is safe but confusing.
func (pc *PolicyCoordinator) Unblock() {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if err := pc.gate.Unblock(); err != nil {
		common.LogError("Failed to remove traffic block, egress remains blocked: %v", err)
		pc.blocked = true
		return
	}
	pc.blocked = false
}

// AllowOverride records an explicit user request for unprotected
// communication and opens the gate regardless of connection status.
func (pc *PolicyCoordinator) AllowOverride() {
	pc.mu.Lock()
	pc.override = true
	pc.mu.Unlock()
	common.LogInfo("Communication allowed without VPN (user override)")
	pc.Unblock()
}

// ClearOverride drops the override flag. The next Block call takes effect
// again; the caller decides when that happens.
func (pc *PolicyCoordinator) ClearOverride() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.override = false
}

// EnableKillSwitch switches blocking to the strict rule set. If currently
// blocked, the rules are reinstalled in kill-switch mode right away.
func (pc *PolicyCoordinator) EnableKillSwitch() {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.killSwitch = true
	if pc.blocked && !pc.override {
		if err := pc.gate.Block(true); err != nil {
			common.LogWarn("Failed to tighten traffic block: %v", err)
		}
	}
	common.LogInfo("Kill switch enabled")
}

// DisableKillSwitch reverts to the basic blocking rule set.
func (pc *PolicyCoordinator) DisableKillSwitch() {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.killSwitch = false
	if pc.blocked && !pc.override {
		if err := pc.gate.Block(false); err != nil {
			common.LogWarn("Failed to relax traffic block: %v", err)
		}
	}
	common.LogInfo("Kill switch disabled")
}

// Blocked reports whether general egress is currently blocked.
func (pc *PolicyCoordinator) Blocked() bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.blocked
}

// KillSwitchEnabled reports whether strict blocking is active.
func (pc *PolicyCoordinator) KillSwitchEnabled() bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.killSwitch
}

// OverrideActive reports whether the user override is set.
func (pc *PolicyCoordinator) OverrideActive() bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.override
}

// Shutdown removes all rules and resets state. Called at orchestrator
// teardown so the machine is not left firewalled after the process exits.
func (pc *PolicyCoordinator) Shutdown() {
	pc.mu.Lock()
	pc.override = false
	pc.mu.Unlock()
	pc.Unblock()
}

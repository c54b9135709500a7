package security

import (
	"errors"
	"sync"
	"testing"
)

// fakeGate records every call and can be told to fail.
type fakeGate struct {
	mu         sync.Mutex
	blockCalls []bool // killSwitch argument per call
	unblockN   int
	blockErr   error
	unblockErr error
}

func (g *fakeGate) Block(killSwitch bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.blockCalls = append(g.blockCalls, killSwitch)
	return g.blockErr
}

func (g *fakeGate) Unblock() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unblockN++
	return g.unblockErr
}

func (g *fakeGate) blocks() []bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]bool(nil), g.blockCalls...)
}

func (g *fakeGate) unblocks() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unblockN
}

func TestCoordinatorBlockedByDefault(t *testing.T) {
	gate := &fakeGate{}
	pc := NewPolicyCoordinator(gate)

	if !pc.Blocked() {
		t.Error("coordinator must start blocked")
	}
	if len(gate.blocks()) != 1 {
		t.Errorf("gate.Block calls = %d, want 1 at construction", len(gate.blocks()))
	}
}

func TestBlockIsIdempotentButRetriesGate(t *testing.T) {
	gate := &fakeGate{}
	pc := NewPolicyCoordinator(gate)

	pc.Block()
	pc.Block()

	if !pc.Blocked() {
		t.Error("state should remain blocked")
	}
	// Construction plus two explicit calls: the gate is driven every time
	// so a retry can repair a partial rule installation.
	if got := len(gate.blocks()); got != 3 {
		t.Errorf("gate.Block calls = %d, want 3", got)
	}
}

func TestUnblockFailureStaysBlocked(t *testing.T) {
	gate := &fakeGate{unblockErr: errors.New("rule removal denied")}
	pc := NewPolicyCoordinator(gate)

	pc.Unblock()

	if !pc.Blocked() {
		t.Error("failed unblock must leave the conservative blocked state recorded")
	}
}

func TestUnblockSuccess(t *testing.T) {
	gate := &fakeGate{}
	pc := NewPolicyCoordinator(gate)

	pc.Unblock()

	if pc.Blocked() {
		t.Error("coordinator should be unblocked after successful Unblock")
	}
	if gate.unblocks() != 1 {
		t.Errorf("gate.Unblock calls = %d, want 1", gate.unblocks())
	}
}

func TestOverrideSuppressesBlocking(t *testing.T) {
	gate := &fakeGate{}
	pc := NewPolicyCoordinator(gate)

	pc.AllowOverride()
	before := len(gate.blocks())

	pc.Block()

	if pc.Blocked() {
		t.Error("Block must be a no-op while override is active")
	}
	if got := len(gate.blocks()); got != before {
		t.Errorf("gate.Block called %d times during override, want %d", got, before)
	}

	pc.ClearOverride()
	pc.Block()
	if !pc.Blocked() {
		t.Error("Block must take effect again after ClearOverride")
	}
}

func TestKillSwitchTightensActiveBlock(t *testing.T) {
	gate := &fakeGate{}
	pc := NewPolicyCoordinator(gate)

	pc.EnableKillSwitch()

	blocks := gate.blocks()
	if len(blocks) == 0 || !blocks[len(blocks)-1] {
		t.Error("enabling the kill switch while blocked should reinstall strict rules")
	}
	if !pc.KillSwitchEnabled() {
		t.Error("KillSwitchEnabled should report true")
	}

	pc.Block()
	blocks = gate.blocks()
	if !blocks[len(blocks)-1] {
		t.Error("subsequent blocks must use kill-switch mode")
	}

	pc.DisableKillSwitch()
	blocks = gate.blocks()
	if blocks[len(blocks)-1] {
		t.Error("disabling the kill switch while blocked should reinstall basic rules")
	}
}

func TestBlockFailureStillRecordsBlocked(t *testing.T) {
	gate := &fakeGate{blockErr: errors.New("iptables missing")}
	pc := NewPolicyCoordinator(gate)

	pc.Block()

	if !pc.Blocked() {
		t.Error("gate failure must not clear the blocked state")
	}
}

func TestShutdownUnblocksAndClearsOverride(t *testing.T) {
	gate := &fakeGate{}
	pc := NewPolicyCoordinator(gate)
	pc.AllowOverride()

	pc.Shutdown()

	if pc.OverrideActive() {
		t.Error("Shutdown should clear the override flag")
	}
	if pc.Blocked() {
		t.Error("Shutdown should remove all rules")
	}
}

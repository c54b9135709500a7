package security

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/tunnelguard/tunnelguard/common"
)

// TrafficGate is the platform fail-safe network switch. Implementations must
// be idempotent: repeated Block or Unblock calls are safe and converge on the
// requested state.
type TrafficGate interface {
	// Block installs the traffic-filter rule set. In kill-switch mode
	// everything except loopback is dropped; basic mode drops new general
	// egress but is not guaranteed leak-proof.
	Block(killSwitch bool) error
	// Unblock removes the rules installed by Block.
	Unblock() error
}

// NoopGate is a TrafficGate that does nothing. Used in simulation mode and
// on platforms without a supported packet filter.
type NoopGate struct{}

// Block implements TrafficGate.
func (NoopGate) Block(killSwitch bool) error { return nil }

// Unblock implements TrafficGate.
func (NoopGate) Unblock() error { return nil }

// chainName is the dedicated iptables chain owned by TunnelGuard. Keeping
// the rules in one chain makes removal a single detach-flush-delete.
const chainName = "TUNNELGUARD"

// lanNetworks are the RFC 1918 ranges permitted when LAN access is allowed
// while blocking.
var lanNetworks = []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}

// IptablesGate implements TrafficGate by shelling out to iptables.
type IptablesGate struct {
	// AllowLAN permits RFC 1918 destinations while blocking.
	AllowLAN bool
	// TunInterface is the tunnel interface whose egress stays allowed in
	// basic mode, so an established tunnel keeps working while the gate
	// closes around it during reconnects.
	TunInterface string

	run func(args ...string) error
}

// NewIptablesGate creates an iptables-backed gate.
func NewIptablesGate(allowLAN bool) *IptablesGate {
	return &IptablesGate{
		AllowLAN:     allowLAN,
		TunInterface: "tun0",
		run:          runIptables,
	}
}

func runIptables(args ...string) error {
	out, err := exec.Command("iptables", args...).CombinedOutput()
	if err != nil {
		return common.WrapError(common.ErrFirewallRule,
			fmt.Sprintf("iptables %s: %v: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out))))
	}
	return nil
}

// Block installs the egress filter. The chain is rebuilt from scratch on
// every call, which makes the operation idempotent and lets a retry repair a
// partially installed rule set.
func (g *IptablesGate) Block(killSwitch bool) error {
	// Ignore the error: the chain may already exist.
	_ = g.run("-N", chainName)

	if err := g.run("-F", chainName); err != nil {
		return err
	}
	if err := g.run("-A", chainName, "-o", "lo", "-j", "ACCEPT"); err != nil {
		return err
	}
	if !killSwitch {
		// Basic mode keeps the tunnel itself and existing flows alive.
		if err := g.run("-A", chainName, "-o", g.TunInterface, "-j", "ACCEPT"); err != nil {
			return err
		}
		if err := g.run("-A", chainName, "-m", "state", "--state", "ESTABLISHED,RELATED", "-j", "ACCEPT"); err != nil {
			return err
		}
	}
	if g.AllowLAN {
		for _, network := range lanNetworks {
			if err := g.run("-A", chainName, "-d", network, "-j", "ACCEPT"); err != nil {
				return err
			}
		}
	}
	if err := g.run("-A", chainName, "-j", "DROP"); err != nil {
		return err
	}

	// Attach the chain to OUTPUT exactly once.
	if err := g.run("-C", "OUTPUT", "-j", chainName); err != nil {
		return g.run("-I", "OUTPUT", "1", "-j", chainName)
	}
	return nil
}

// Unblock detaches and removes the chain. Missing-chain errors are treated
// as already-unblocked.
func (g *IptablesGate) Unblock() error {
	if err := g.run("-C", "OUTPUT", "-j", chainName); err == nil {
		if err := g.run("-D", "OUTPUT", "-j", chainName); err != nil {
			return err
		}
	}
	if err := g.run("-F", chainName); err != nil {
		return nil // chain never existed
	}
	return g.run("-X", chainName)
}

// Package cli implements the terminal interface: profile management,
// foreground connections, and status reporting.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/tunnelguard/tunnelguard/common"
	"github.com/tunnelguard/tunnelguard/config"
	"github.com/tunnelguard/tunnelguard/keyring"
	"github.com/tunnelguard/tunnelguard/notify"
	"github.com/tunnelguard/tunnelguard/security"
	"github.com/tunnelguard/tunnelguard/vpn"
)

// Options selects CLI behavior from command-line flags.
type Options struct {
	// Simulate uses the simulated engine and no traffic gate. Useful for
	// trying the workflow without openvpn or root.
	Simulate bool
	// KillSwitch forces strict blocking regardless of the config file.
	KillSwitch bool
}

// CLI wires the profile store, credential store, and configuration together
// for terminal commands. The connection stack (gate, policy, engine,
// orchestrator) is only built when a command actually connects, so read-only
// commands never touch the firewall.
type CLI struct {
	cfg      *config.Config
	store    *vpn.ProfileStore
	creds    *keyring.Store
	notifier common.Notifier
	opts     Options

	orc    *vpn.Orchestrator
	health *vpn.HealthMonitor
}

// New loads configuration and opens the profile store.
func New(opts Options) (*CLI, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	store, err := vpn.NewProfileStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open profile store: %w", err)
	}
	dir, err := common.ConfigDir()
	if err != nil {
		store.Close()
		return nil, err
	}
	if cfg.Verbose {
		common.GetLogger().SetLevel(common.LevelDebug)
	}

	return &CLI{
		cfg:      cfg,
		store:    store,
		creds:    keyring.NewStore(dir),
		notifier: notify.ForConfig(cfg.ShowNotifications),
		opts:     opts,
	}, nil
}

// Close releases the profile store and tears down any active connection.
func (c *CLI) Close() {
	if c.health != nil {
		c.health.Stop()
	}
	if c.orc != nil {
		c.orc.Close()
	}
	c.store.Close()
}

// ListProfiles prints the profile table.
func (c *CLI) ListProfiles() error {
	profiles, err := c.store.List()
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		fmt.Println("No VPN profiles configured.")
		fmt.Println("Add one with: tunnelguard --add-profile NAME --config FILE")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tUSERNAME\tLAST USED")
	fmt.Fprintln(w, "--\t----\t--------\t---------")
	for _, p := range profiles {
		lastUsed := "never"
		if !p.LastUsed.IsZero() {
			lastUsed = p.LastUsed.Format("2006-01-02 15:04")
		}
		username := p.Username
		if username == "" {
			username = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", shortID(p.ID), p.Name, username, lastUsed)
	}
	return w.Flush()
}

// AddProfile validates and registers a new profile. When username is set and
// savePassword is true, the password is prompted for and stored in the
// keyring.
func (c *CLI) AddProfile(name, configPath, username string, savePassword bool) error {
	if name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}
	if configPath == "" {
		return fmt.Errorf("config file path cannot be empty")
	}

	p := &vpn.Profile{
		Name:         name,
		ConfigPath:   configPath,
		Username:     username,
		SavePassword: savePassword && username != "",
	}
	if err := c.store.Add(p); err != nil {
		return err
	}

	if p.SavePassword {
		password, err := promptPassword(fmt.Sprintf("Password for %s: ", username))
		if err != nil {
			return err
		}
		if err := c.creds.Set(p.ID, password); err != nil {
			fmt.Printf("Warning: could not store password: %v\n", err)
		}
	}

	fmt.Printf("✓ Profile %q added (%s)\n", p.Name, shortID(p.ID))
	return nil
}

// RemoveProfile deletes a profile and its stored credential.
func (c *CLI) RemoveProfile(nameOrID string) error {
	p, err := c.store.Find(nameOrID)
	if err != nil {
		return fmt.Errorf("profile not found: %s", nameOrID)
	}
	if err := c.store.Remove(p.ID); err != nil {
		return err
	}
	c.creds.Delete(p.ID)
	fmt.Printf("✓ Profile %q removed\n", p.Name)
	return nil
}

// Connect establishes a connection to the named profile and keeps it up
// until ctx is cancelled. The traffic gate stays closed whenever the tunnel
// is not established.
func (c *CLI) Connect(ctx context.Context, nameOrID string) error {
	p, err := c.store.Find(nameOrID)
	if err != nil {
		return fmt.Errorf("profile not found: %s", nameOrID)
	}

	orc, err := c.buildStack(p)
	if err != nil {
		return err
	}

	fmt.Printf("Connecting to %s...\n", p.Name)
	attempt := orc.Connect(p.ConfigPath)

	select {
	case <-attempt.Done():
	case <-ctx.Done():
		attempt.Cancel()
		<-attempt.Done()
	}

	if !attempt.Result() {
		if msg := orc.LastError(); msg != "" {
			return fmt.Errorf("connection failed: %s", msg)
		}
		return fmt.Errorf("connection failed")
	}

	fmt.Printf("✓ Connected to %s\n", p.Name)
	c.store.MarkUsed(p.ID)
	c.notifier.Notify(common.AppName, "Connected to "+p.Name)

	// Foreground: hold the tunnel until interrupted.
	<-ctx.Done()
	fmt.Println("\nDisconnecting...")
	orc.Disconnect()
	return nil
}

// StartConnect begins a connection attempt without waiting for the outcome.
// Watch mode uses it and then follows the transitions live.
func (c *CLI) StartConnect(nameOrID string) error {
	p, err := c.store.Find(nameOrID)
	if err != nil {
		return fmt.Errorf("profile not found: %s", nameOrID)
	}
	orc, err := c.buildStack(p)
	if err != nil {
		return err
	}
	orc.Connect(p.ConfigPath)
	c.store.MarkUsed(p.ID)
	return nil
}

// Disconnect tears down the in-process connection, if any.
func (c *CLI) Disconnect() error {
	if c.orc == nil {
		fmt.Println("No active connection.")
		return nil
	}
	c.orc.Disconnect()
	fmt.Println("✓ Disconnected")
	return nil
}

// Pause suspends the in-process tunnel.
func (c *CLI) Pause() error {
	if c.orc == nil {
		fmt.Println("No active connection. Use the watch view (--watch) to control a live connection.")
		return nil
	}
	c.orc.Pause()
	fmt.Println("✓ Connection paused")
	return nil
}

// Resume re-establishes a paused in-process tunnel.
func (c *CLI) Resume() error {
	if c.orc == nil {
		fmt.Println("No active connection. Use the watch view (--watch) to control a live connection.")
		return nil
	}
	c.orc.Resume()
	fmt.Println("Resuming connection...")
	return nil
}

// Reconnect re-dials the in-process tunnel.
func (c *CLI) Reconnect() error {
	if c.orc == nil {
		fmt.Println("No active connection. Use the watch view (--watch) to control a live connection.")
		return nil
	}
	c.orc.Reconnect()
	fmt.Println("Reconnecting...")
	return nil
}

// Status prints the connection status and profile summary.
func (c *CLI) Status() error {
	if c.orc != nil {
		status := c.orc.Status()
		fmt.Printf("Status: %s\n", status)
		if msg := c.orc.LastError(); msg != "" && status != vpn.StatusConnected {
			fmt.Printf("Detail: %s\n", msg)
		}
		return nil
	}

	profiles, err := c.store.List()
	if err != nil {
		return err
	}
	fmt.Println("No active connection in this process.")
	fmt.Printf("%d profile(s) configured.\n", len(profiles))
	return nil
}

// AllowInsecure records the explicit user request to communicate without the
// tunnel. Requires an active stack; without one there is nothing blocking.
func (c *CLI) AllowInsecure() error {
	if c.orc == nil {
		fmt.Println("No connection stack active; traffic is not being blocked.")
		return nil
	}
	c.orc.AllowCommunicationWithoutVPN()
	fmt.Println("⚠ Communication without VPN allowed until the next connection attempt.")
	return nil
}

// Orchestrator exposes the active orchestrator, or nil. The watch UI uses it.
func (c *CLI) Orchestrator() *vpn.Orchestrator { return c.orc }

// buildStack assembles gate, policy, engine, and orchestrator for a
// connection. Building the policy coordinator closes the gate immediately.
func (c *CLI) buildStack(p *vpn.Profile) (*vpn.Orchestrator, error) {
	if c.orc != nil {
		return c.orc, nil
	}

	var gate security.TrafficGate
	var engine vpn.Engine

	if c.opts.Simulate {
		gate = security.NoopGate{}
		engine = vpn.NewSimulatedEngine()
	} else {
		if !vpn.Available() {
			return nil, fmt.Errorf("openvpn is not installed on this system")
		}
		gate = security.NewIptablesGate(c.cfg.AllowLAN)
		ovpn := vpn.NewOpenVPNEngine()
		if p.Username != "" {
			password, err := c.resolvePassword(p)
			if err != nil {
				return nil, err
			}
			ovpn.SetCredentials(p.Username, password)
		}
		engine = ovpn
	}

	policy := security.NewPolicyCoordinator(gate)
	if c.cfg.KillSwitch || c.opts.KillSwitch {
		policy.EnableKillSwitch()
	}

	orc := vpn.NewOrchestrator(engine, policy, vpn.Options{
		ConnectTimeout: time.Duration(c.cfg.ConnectTimeoutSeconds) * time.Second,
		ReconnectDelay: time.Duration(c.cfg.ReconnectDelaySeconds) * time.Second,
	})
	orc.Subscribe(func(status vpn.ConnectionStatus, message string) {
		if status == vpn.StatusError {
			c.notifier.NotifyError(common.AppName, message)
		}
	})
	c.orc = orc

	// The simulated engine has no real tunnel to probe; health monitoring
	// only makes sense against the live stack.
	if c.cfg.AutoReconnect && !c.opts.Simulate {
		monitor := vpn.NewHealthMonitor(orc, vpn.HealthConfig{
			CheckInterval: time.Duration(c.cfg.HealthCheckIntervalSeconds) * time.Second,
			AutoReconnect: true,
		})
		monitor.SetOnStateChange(func(oldState, newState vpn.HealthState) {
			if newState == vpn.HealthUnhealthy {
				c.notifier.NotifyError(common.AppName, "VPN tunnel is not passing traffic")
			}
		})
		monitor.Start()
		c.health = monitor
	}
	return orc, nil
}

// resolvePassword fetches the saved password or prompts for one.
func (c *CLI) resolvePassword(p *vpn.Profile) (string, error) {
	if p.SavePassword {
		if password, err := c.creds.Get(p.ID); err == nil {
			return password, nil
		}
		common.LogWarn("No saved password for %s, prompting", p.Name)
	}
	return promptPassword(fmt.Sprintf("Password for %s: ", p.Username))
}

func promptPassword(prompt string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("cannot prompt for password: stdin is not a terminal")
	}
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(password)), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// PrintHelp prints CLI usage help.
func PrintHelp() {
	fmt.Println(`TunnelGuard - VPN connection manager

Usage:
  tunnelguard [OPTIONS]

Options:
  --version              Show version and exit
  --verbose              Enable verbose logging
  --list                 List all VPN profiles
  --add-profile NAME     Add a profile (requires --config)
  --config FILE          Tunnel configuration file for --add-profile
  --username USER        Username for --add-profile
  --save-password        Store the password in the system keyring
  --remove-profile NAME  Remove a profile
  --connect NAME         Connect to a profile and stay in the foreground
  --disconnect           Disconnect the active connection
  --pause                Pause the active connection
  --resume               Resume a paused connection
  --reconnect            Tear down and re-dial the active connection
  --status               Show connection status
  --watch                Connect with a live status display
  --simulate             Use the simulated engine (no openvpn, no firewall)
  --kill-switch          Block all non-tunnel traffic while not connected
  --allow-insecure       Allow communication without VPN
  --help                 Show this help message

Examples:
  tunnelguard --add-profile "Work VPN" --config ~/work.ovpn --username alice
  tunnelguard --connect "Work VPN"
  tunnelguard --connect "Work VPN" --watch
  tunnelguard --connect demo --simulate`)
}

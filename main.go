// Package main is the entry point for TunnelGuard, a VPN connection manager
// for Linux. It drives an OpenVPN tunnel (or a simulated engine), enforces a
// fail-safe traffic policy while the tunnel is down, and manages connection
// profiles with credentials in the system keyring.
//
// Usage:
//
//	tunnelguard [options]
//
// Environment:
//
//	Connecting for real requires OpenVPN in PATH and enough privilege to
//	manage iptables rules. Use --simulate to try the workflow without either.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tunnelguard/tunnelguard/cli"
	"github.com/tunnelguard/tunnelguard/common"
	"github.com/tunnelguard/tunnelguard/tui"
)

// Build-time variables injected via ldflags (-X main.appVersion=x.y.z)
var (
	appVersion = "dev"
	buildTime  = "unknown"
	commitSHA  = "unknown"
)

var (
	showVersion = flag.Bool("version", false, "Show version and exit")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	showHelp    = flag.Bool("help", false, "Show help message")

	listProfiles  = flag.Bool("list", false, "List all VPN profiles")
	addProfile    = flag.String("add-profile", "", "Add a profile with the given name (requires --config)")
	configFile    = flag.String("config", "", "Tunnel configuration file for --add-profile")
	username      = flag.String("username", "", "Username for --add-profile")
	savePassword  = flag.Bool("save-password", false, "Store the password in the system keyring")
	removeProfile = flag.String("remove-profile", "", "Remove a profile by name or ID")

	connectProfile = flag.String("connect", "", "Connect to a profile by name or ID")
	disconnectVPN  = flag.Bool("disconnect", false, "Disconnect the active connection")
	pauseVPN       = flag.Bool("pause", false, "Pause the active connection")
	resumeVPN      = flag.Bool("resume", false, "Resume a paused connection")
	reconnectVPN   = flag.Bool("reconnect", false, "Tear down and re-dial the active connection")
	showStatus     = flag.Bool("status", false, "Show current connection status")
	watchMode      = flag.Bool("watch", false, "Show a live status display while connected")
	simulate       = flag.Bool("simulate", false, "Use the simulated engine (no openvpn, no firewall)")
	killSwitch     = flag.Bool("kill-switch", false, "Block all non-tunnel traffic while not connected")
	allowInsecure  = flag.Bool("allow-insecure", false, "Allow communication without VPN")
)

func main() {
	flag.Parse()

	if *showHelp {
		cli.PrintHelp()
		return
	}
	if *showVersion {
		fmt.Printf("%s v%s\n", common.AppName, appVersion)
		if buildTime != "unknown" {
			fmt.Printf("  Build:  %s\n", buildTime)
			fmt.Printf("  Commit: %s\n", commitSHA)
		}
		return
	}

	logLevel := common.LevelInfo
	if *verbose {
		logLevel = common.LevelDebug
	}
	if err := common.InitLogger(common.LogConfig{
		Level:      logLevel,
		EnableFile: true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}
	defer common.CloseLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	app, err := cli.New(cli.Options{
		Simulate:   *simulate,
		KillSwitch: *killSwitch,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := run(ctx, app); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, app *cli.CLI) error {
	switch {
	case *listProfiles:
		return app.ListProfiles()

	case *addProfile != "":
		return app.AddProfile(*addProfile, *configFile, *username, *savePassword)

	case *removeProfile != "":
		return app.RemoveProfile(*removeProfile)

	case *connectProfile != "":
		if *watchMode {
			return connectAndWatch(ctx, app, *connectProfile)
		}
		return app.Connect(ctx, *connectProfile)

	case *disconnectVPN:
		return app.Disconnect()

	case *pauseVPN:
		return app.Pause()

	case *resumeVPN:
		return app.Resume()

	case *reconnectVPN:
		return app.Reconnect()

	case *allowInsecure:
		return app.AllowInsecure()

	case *showStatus:
		return app.Status()

	default:
		cli.PrintHelp()
		return nil
	}
}

// connectAndWatch starts the attempt and hands the terminal to the live
// status view. The view owns disconnect and quit.
func connectAndWatch(ctx context.Context, app *cli.CLI, nameOrID string) error {
	go func() {
		<-ctx.Done()
		if orc := app.Orchestrator(); orc != nil {
			orc.Disconnect()
		}
	}()

	if err := app.StartConnect(nameOrID); err != nil {
		return err
	}
	return tui.Run(app.Orchestrator(), nameOrID)
}

// setupSignalHandler cancels the context on SIGINT/SIGTERM so a foreground
// connection tears down cleanly.
func setupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		common.LogInfo("Received signal %v, shutting down", sig)
		cancel()
	}()
}

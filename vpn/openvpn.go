package vpn

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/tunnelguard/tunnelguard/common"
)

// OpenVPNEngine drives a classic openvpn process as the tunnel transport.
// The engine owns the process lifecycle; connection semantics (timeouts,
// retries, status) belong to the orchestrator.
type OpenVPNEngine struct {
	// BinaryPath is the openvpn executable. Defaults to "openvpn" in PATH.
	BinaryPath string

	mu       sync.Mutex
	cmd      *exec.Cmd
	sink     EventSink
	cfg      *ConnectionConfig
	username string
	password string
	stopping bool
	paused   bool
	tmpFiles []string
}

// NewOpenVPNEngine creates an engine around the system openvpn binary.
func NewOpenVPNEngine() *OpenVPNEngine {
	return &OpenVPNEngine{BinaryPath: "openvpn"}
}

// Available reports whether an openvpn binary can be found in PATH.
func Available() bool {
	_, err := exec.LookPath("openvpn")
	return err == nil
}

// SetCredentials supplies the username/password pair handed to openvpn via
// a transient auth file. Call before Start.
func (e *OpenVPNEngine) SetCredentials(username, password string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.username = username
	e.password = password
}

// Start implements Engine: it materializes the config on disk, launches the
// process, and begins translating its output into events.
func (e *OpenVPNEngine) Start(cfg *ConnectionConfig, sink EventSink) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd != nil {
		return common.ErrAlreadyConnected
	}

	configFile, err := e.writeTempFile("tunnel-*.ovpn", cfg.Content)
	if err != nil {
		return common.WrapError(err, "failed to stage configuration")
	}

	args := []string{"--config", configFile, "--verb", "3"}
	if cfg.ServerOverride != "" {
		remote := []string{"--remote", cfg.ServerOverride}
		if cfg.PortOverride != "" {
			remote = append(remote, cfg.PortOverride)
			if cfg.ProtoOverride != "" {
				remote = append(remote, cfg.ProtoOverride)
			}
		}
		args = append(args, remote...)
	}
	if cfg.PersistTunnel {
		args = append(args, "--persist-tun")
	}
	if e.username != "" {
		authFile, err := e.writeTempFile("auth-*", e.username+"\n"+e.password+"\n")
		if err != nil {
			return common.WrapError(err, "failed to stage credentials")
		}
		args = append(args, "--auth-user-pass", authFile)
	}

	cmd := exec.Command(e.BinaryPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		e.removeTempFiles()
		return common.WrapError(common.ErrEngineStart, err.Error())
	}
	common.LogInfo("openvpn process started (pid %d)", cmd.Process.Pid)

	e.cmd = cmd
	e.sink = sink
	e.cfg = cfg
	e.stopping = false
	e.paused = false

	go e.scanOutput(sink, stdout, 3)
	go e.scanOutput(sink, stderr, 1)
	go e.waitProcess(cmd, sink)
	return nil
}

// writeTempFile stages content in a private temp file tracked for cleanup.
// Caller holds e.mu.
func (e *OpenVPNEngine) writeTempFile(pattern, content string) (string, error) {
	dir := filepath.Join(os.TempDir(), common.ConfigDirName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := f.Chmod(0600); err != nil {
		return "", err
	}
	if _, err := io.WriteString(f, content); err != nil {
		return "", err
	}
	e.tmpFiles = append(e.tmpFiles, f.Name())
	return f.Name(), nil
}

// removeTempFiles deletes staged files. Caller holds e.mu.
func (e *OpenVPNEngine) removeTempFiles() {
	for _, path := range e.tmpFiles {
		os.Remove(path)
	}
	e.tmpFiles = nil
}

// scanOutput reads process output line by line, forwards each line to the
// log callback, and emits the event a line implies, if any.
func (e *OpenVPNEngine) scanOutput(sink EventSink, pipe io.Reader, level int) {
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		line := scanner.Text()
		sink.OnLog(level, line)
		if event, info := classifyLine(line); event != "" {
			sink.OnEvent(event, info)
		}
	}
}

// classifyLine maps an openvpn output line onto the engine event
// vocabulary. Lines that carry no lifecycle meaning return "".
func classifyLine(line string) (event, info string) {
	switch {
	case strings.Contains(line, "Initialization Sequence Completed"):
		return EventConnected, ""
	case strings.Contains(line, "AUTH_FAILED"):
		return EventAuthFailed, line
	case strings.Contains(line, "VERIFY ERROR"),
		strings.Contains(line, "certificate verify failed"):
		return EventCertVerifyFail, line
	case strings.Contains(line, "TLS Error"),
		strings.Contains(line, "TLS handshake failed"):
		return EventTLSError, line
	case strings.Contains(line, "Restart pause"):
		return EventReconnecting, line
	case strings.Contains(line, "process restarting"):
		return EventClientRestart, line
	default:
		return "", ""
	}
}

// waitProcess reaps the process and reports the link loss unless the stop
// was requested by us.
func (e *OpenVPNEngine) waitProcess(cmd *exec.Cmd, sink EventSink) {
	err := cmd.Wait()

	e.mu.Lock()
	requested := e.stopping
	paused := e.paused
	if e.cmd == cmd {
		e.cmd = nil
	}
	e.removeTempFiles()
	e.mu.Unlock()

	if requested || paused {
		sink.OnLog(3, "openvpn process stopped")
		return
	}
	if err != nil {
		sink.OnEvent(EventDisconnected, fmt.Sprintf("VPN process exited: %v", err))
		return
	}
	sink.OnEvent(EventDisconnected, "VPN process exited")
}

// Stop implements Engine. Idempotent; SIGTERM lets openvpn tear the tunnel
// down cleanly.
func (e *OpenVPNEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopping = true
	e.terminateLocked()
}

// terminateLocked signals the process. Caller holds e.mu.
func (e *OpenVPNEngine) terminateLocked() {
	if e.cmd == nil || e.cmd.Process == nil {
		return
	}
	if err := e.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		e.cmd.Process.Kill()
	}
}

// Pause implements Engine. Classic openvpn has no native pause, so the
// process is stopped while the staged configuration is kept for Resume.
func (e *OpenVPNEngine) Pause(reason string) {
	e.mu.Lock()
	if e.cmd == nil {
		e.mu.Unlock()
		return
	}
	e.paused = true
	e.terminateLocked()
	sink := e.sink
	e.mu.Unlock()

	if sink != nil {
		sink.OnEvent(EventPaused, reason)
	}
}

// Resume implements Engine, re-dialing with the retained configuration.
func (e *OpenVPNEngine) Resume() {
	e.mu.Lock()
	cfg, sink := e.cfg, e.sink
	paused := e.paused
	e.paused = false
	e.mu.Unlock()

	if !paused || cfg == nil || sink == nil {
		return
	}
	sink.OnEvent(EventResumed, "Connection resumed")
	if err := e.Start(cfg, sink); err != nil {
		sink.OnLog(1, "resume failed: "+err.Error())
	}
}

// Reconnect implements Engine: stop, back off, re-dial.
func (e *OpenVPNEngine) Reconnect(delaySeconds int) {
	e.mu.Lock()
	cfg, sink := e.cfg, e.sink
	e.mu.Unlock()
	if cfg == nil || sink == nil {
		return
	}

	sink.OnEvent(EventReconnecting, "Attempting to reconnect")
	e.Stop()

	go func() {
		time.Sleep(time.Duration(delaySeconds) * time.Second)
		e.mu.Lock()
		e.stopping = false
		e.mu.Unlock()
		if err := e.Start(cfg, sink); err != nil {
			sink.OnLog(1, "reconnect failed: "+err.Error())
		}
	}()
}

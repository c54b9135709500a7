package vpn

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tunnelguard/tunnelguard/common"
	"github.com/tunnelguard/tunnelguard/security"
)

const validTestConfig = `client
dev tun
proto udp
remote vpn.example.com 1194
verify-x509-name vpn.example.com name
<cert>
MIIB...
</cert>
`

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.ovpn")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func newTestOrchestrator(t *testing.T, engine Engine, opts Options) (*Orchestrator, *security.PolicyCoordinator) {
	t.Helper()
	policy := security.NewPolicyCoordinator(security.NoopGate{})
	orc := NewOrchestrator(engine, policy, opts)
	t.Cleanup(orc.Close)
	return orc, policy
}

// waitForStatus polls until the orchestrator reaches the wanted status or the
// deadline passes.
func waitForStatus(t *testing.T, orc *Orchestrator, want ConnectionStatus) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if orc.Status() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("status = %v, want %v", orc.Status(), want)
}

func TestConnectSuccess(t *testing.T) {
	engine := NewSimulatedEngine()
	engine.StepDelay = time.Millisecond
	orc, policy := newTestOrchestrator(t, engine, Options{})

	if !policy.Blocked() {
		t.Fatal("traffic not blocked before first connection")
	}

	attempt := orc.Connect(writeTestConfig(t, validTestConfig))
	if !attempt.Result() {
		t.Fatalf("attempt failed: %s", orc.LastError())
	}
	if err := attempt.Err(); err != nil {
		t.Errorf("Err() = %v for a successful attempt", err)
	}
	if got := orc.Status(); got != StatusConnected {
		t.Errorf("Status() = %v, want %v", got, StatusConnected)
	}
	if policy.Blocked() {
		t.Error("traffic still blocked while connected")
	}
}

func TestConnectInvalidConfig(t *testing.T) {
	engine := NewSimulatedEngine()
	engine.StepDelay = time.Millisecond
	orc, policy := newTestOrchestrator(t, engine, Options{})

	// No remote directive.
	attempt := orc.Connect(writeTestConfig(t, "client\ndev tun\n<cert>\n</cert>\n"))
	if attempt.Result() {
		t.Fatal("attempt succeeded with invalid config")
	}
	if got := orc.Status(); got != StatusError {
		t.Errorf("Status() = %v, want %v", got, StatusError)
	}
	if msg := orc.LastError(); !strings.Contains(msg, "remote server") {
		t.Errorf("LastError() = %q, want remote server diagnostic", msg)
	}
	if err := attempt.Err(); !errors.Is(err, common.ErrConfigInvalid) {
		t.Errorf("Err() = %v, want ErrConfigInvalid", err)
	}
	if !policy.Blocked() {
		t.Error("traffic unblocked after failed attempt")
	}
}

func TestConnectUnreadableConfig(t *testing.T) {
	engine := NewSimulatedEngine()
	orc, _ := newTestOrchestrator(t, engine, Options{})

	attempt := orc.Connect(filepath.Join(t.TempDir(), "missing.ovpn"))
	if attempt.Result() {
		t.Fatal("attempt succeeded with missing config file")
	}
	if msg := orc.LastError(); !strings.Contains(msg, "Failed to read configuration file") {
		t.Errorf("LastError() = %q, want read failure diagnostic", msg)
	}
	if err := attempt.Err(); !errors.Is(err, common.ErrConfigUnreadable) {
		t.Errorf("Err() = %v, want ErrConfigUnreadable", err)
	}
}

func TestConnectAuthFailure(t *testing.T) {
	engine := NewSimulatedEngine()
	engine.StepDelay = time.Millisecond
	engine.FailEvent = EventAuthFailed
	orc, policy := newTestOrchestrator(t, engine, Options{})

	attempt := orc.Connect(writeTestConfig(t, validTestConfig))
	if attempt.Result() {
		t.Fatal("attempt succeeded despite auth failure")
	}
	if got := orc.Status(); got != StatusError {
		t.Errorf("Status() = %v, want %v", got, StatusError)
	}
	if msg := orc.LastError(); !strings.Contains(msg, "Authentication failed") {
		t.Errorf("LastError() = %q, want authentication diagnostic", msg)
	}
	if err := attempt.Err(); !errors.Is(err, common.ErrAuthFailed) {
		t.Errorf("Err() = %v, want ErrAuthFailed", err)
	}
	if !policy.Blocked() {
		t.Error("traffic unblocked after auth failure")
	}
}

func TestConnectTimeout(t *testing.T) {
	engine := NewSimulatedEngine()
	engine.StepDelay = time.Millisecond
	engine.Silent = true
	orc, policy := newTestOrchestrator(t, engine, Options{ConnectTimeout: 50 * time.Millisecond})

	start := time.Now()
	attempt := orc.Connect(writeTestConfig(t, validTestConfig))
	if attempt.Result() {
		t.Fatal("attempt succeeded despite silent engine")
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("attempt resolved after %v, before the timeout", elapsed)
	}
	if got := orc.Status(); got != StatusError {
		t.Errorf("Status() = %v, want %v", got, StatusError)
	}
	if msg := orc.LastError(); !strings.Contains(msg, "timeout") {
		t.Errorf("LastError() = %q, want timeout diagnostic", msg)
	}
	if err := attempt.Err(); !errors.Is(err, common.ErrTimeout) {
		t.Errorf("Err() = %v, want ErrTimeout", err)
	}
	if !policy.Blocked() {
		t.Error("traffic unblocked after timeout")
	}
}

func TestConnectRejectsConcurrentAttempt(t *testing.T) {
	engine := NewSimulatedEngine()
	engine.StepDelay = 20 * time.Millisecond
	orc, _ := newTestOrchestrator(t, engine, Options{})

	path := writeTestConfig(t, validTestConfig)
	first := orc.Connect(path)

	second := orc.Connect(path)
	select {
	case <-second.Done():
	case <-time.After(time.Second):
		t.Fatal("second attempt did not resolve immediately")
	}
	if second.Result() {
		t.Error("second attempt succeeded while first was in flight")
	}
	if err := second.Err(); !errors.Is(err, common.ErrAlreadyConnected) {
		t.Errorf("second.Err() = %v, want ErrAlreadyConnected", err)
	}

	if !first.Result() {
		t.Errorf("first attempt failed: %s", orc.LastError())
	}
}

func TestCancelDuringConnect(t *testing.T) {
	engine := NewSimulatedEngine()
	engine.StepDelay = time.Millisecond
	engine.Silent = true
	orc, _ := newTestOrchestrator(t, engine, Options{ConnectTimeout: 5 * time.Second})

	attempt := orc.Connect(writeTestConfig(t, validTestConfig))
	time.Sleep(10 * time.Millisecond)
	attempt.Cancel()

	if attempt.Result() {
		t.Fatal("cancelled attempt reported success")
	}
	if err := attempt.Err(); !errors.Is(err, common.ErrCancelled) {
		t.Errorf("Err() = %v, want ErrCancelled", err)
	}
	if got := orc.Status(); got != StatusDisconnected {
		t.Errorf("Status() = %v, want %v", got, StatusDisconnected)
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	engine := NewSimulatedEngine()
	engine.StepDelay = time.Millisecond
	orc, _ := newTestOrchestrator(t, engine, Options{})

	orc.Disconnect()
	orc.Disconnect()
	if got := orc.Status(); got != StatusDisconnected {
		t.Errorf("Status() = %v, want %v", got, StatusDisconnected)
	}

	if !orc.Connect(writeTestConfig(t, validTestConfig)).Result() {
		t.Fatalf("connect failed: %s", orc.LastError())
	}
	orc.Disconnect()
	orc.Disconnect()
	if got := orc.Status(); got != StatusDisconnected {
		t.Errorf("Status() = %v, want %v", got, StatusDisconnected)
	}
}

func TestAllowCommunicationWithoutVPN(t *testing.T) {
	engine := NewSimulatedEngine()
	engine.StepDelay = time.Millisecond
	orc, policy := newTestOrchestrator(t, engine, Options{})

	orc.AllowCommunicationWithoutVPN()
	if policy.Blocked() {
		t.Error("traffic still blocked after user override")
	}
	if got := orc.Status(); got != StatusDisconnected {
		t.Errorf("Status() = %v, want %v (override must not change status)", got, StatusDisconnected)
	}

	// A fresh connect withdraws the override.
	if !orc.Connect(writeTestConfig(t, validTestConfig)).Result() {
		t.Fatalf("connect failed: %s", orc.LastError())
	}
	if policy.OverrideActive() {
		t.Error("override still active after connect")
	}
	orc.Disconnect()
	if !policy.Blocked() {
		t.Error("traffic unblocked after disconnect with override withdrawn")
	}
}

func TestReconnect(t *testing.T) {
	engine := NewSimulatedEngine()
	engine.StepDelay = time.Millisecond
	orc, policy := newTestOrchestrator(t, engine, Options{ReconnectDelay: time.Second})

	if !orc.Connect(writeTestConfig(t, validTestConfig)).Result() {
		t.Fatalf("connect failed: %s", orc.LastError())
	}

	orc.Reconnect()
	if got := orc.Status(); got != StatusConnecting {
		t.Errorf("Status() = %v immediately after Reconnect, want %v", got, StatusConnecting)
	}
	if !policy.Blocked() {
		t.Error("traffic not blocked during reconnect window")
	}

	waitForStatus(t, orc, StatusConnected)
	if policy.Blocked() {
		t.Error("traffic still blocked after reconnect completed")
	}
}

func TestPauseResume(t *testing.T) {
	engine := NewSimulatedEngine()
	engine.StepDelay = time.Millisecond
	orc, policy := newTestOrchestrator(t, engine, Options{})

	if !orc.Connect(writeTestConfig(t, validTestConfig)).Result() {
		t.Fatalf("connect failed: %s", orc.LastError())
	}

	orc.Pause()
	if got := orc.Status(); got != StatusDisconnected {
		t.Errorf("Status() = %v after Pause, want %v", got, StatusDisconnected)
	}
	if !policy.Blocked() {
		t.Error("traffic not blocked while paused")
	}

	orc.Resume()
	waitForStatus(t, orc, StatusConnected)
	if policy.Blocked() {
		t.Error("traffic still blocked after resume")
	}
}

func TestSubscribe(t *testing.T) {
	engine := NewSimulatedEngine()
	engine.StepDelay = time.Millisecond
	orc, _ := newTestOrchestrator(t, engine, Options{})

	var mu sync.Mutex
	var seen []ConnectionStatus
	orc.Subscribe(func(status ConnectionStatus, message string) {
		mu.Lock()
		seen = append(seen, status)
		mu.Unlock()
	})

	if !orc.Connect(writeTestConfig(t, validTestConfig)).Result() {
		t.Fatalf("connect failed: %s", orc.LastError())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) == 0 {
		t.Fatal("subscriber saw no transitions")
	}
	if first := seen[0]; first != StatusConnecting {
		t.Errorf("first transition = %v, want %v", first, StatusConnecting)
	}
	if last := seen[len(seen)-1]; last != StatusConnected {
		t.Errorf("last transition = %v, want %v", last, StatusConnected)
	}
}

// The gate must always end up matching the status a racing pair of
// transitions settles on: a CONNECTED event from the engine racing a user
// disconnect may resolve either way, but never to a connected status with a
// closed gate or a disconnected status with an open one.
func TestGateFollowsStatusUnderConcurrentTransitions(t *testing.T) {
	engine := NewSimulatedEngine()
	engine.StepDelay = time.Millisecond
	orc, policy := newTestOrchestrator(t, engine, Options{})

	if !orc.Connect(writeTestConfig(t, validTestConfig)).Result() {
		t.Fatalf("connect failed: %s", orc.LastError())
	}

	for i := 0; i < 2000; i++ {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			orc.OnEvent(EventConnected, "VPN tunnel established successfully")
		}()
		go func() {
			defer wg.Done()
			orc.Disconnect()
		}()
		wg.Wait()

		status := orc.Status()
		blocked := policy.Blocked()
		if (status == StatusConnected) == blocked {
			t.Fatalf("iteration %d: status %v with gate blocked=%v", i, status, blocked)
		}
	}
}

func TestUnknownEventIgnored(t *testing.T) {
	engine := NewSimulatedEngine()
	orc, _ := newTestOrchestrator(t, engine, Options{})

	orc.OnEvent("INFO", "arbitrary control channel message")
	if got := orc.Status(); got != StatusDisconnected {
		t.Errorf("Status() = %v after unknown event, want %v", got, StatusDisconnected)
	}
}

func TestEngineStartFailure(t *testing.T) {
	orc, policy := newTestOrchestrator(t, failingEngine{}, Options{})

	attempt := orc.Connect(writeTestConfig(t, validTestConfig))
	if attempt.Result() {
		t.Fatal("attempt succeeded despite engine start failure")
	}
	if got := orc.Status(); got != StatusError {
		t.Errorf("Status() = %v, want %v", got, StatusError)
	}
	if msg := orc.LastError(); !strings.Contains(msg, "Failed to start connection") {
		t.Errorf("LastError() = %q, want start failure diagnostic", msg)
	}
	if err := attempt.Err(); !errors.Is(err, common.ErrEngineStart) {
		t.Errorf("Err() = %v, want ErrEngineStart", err)
	}
	if !policy.Blocked() {
		t.Error("traffic unblocked after engine start failure")
	}
}

func TestCloseScrubsLastError(t *testing.T) {
	engine := NewSimulatedEngine()
	engine.StepDelay = time.Millisecond
	engine.FailEvent = EventAuthFailed
	policy := security.NewPolicyCoordinator(security.NoopGate{})
	orc := NewOrchestrator(engine, policy, Options{})

	orc.Connect(writeTestConfig(t, validTestConfig)).Result()
	if orc.LastError() == "" {
		t.Fatal("expected a diagnostic before Close")
	}

	orc.Close()
	if msg := orc.LastError(); msg != "" {
		t.Errorf("LastError() = %q after Close, want empty", msg)
	}

	// Close is idempotent.
	orc.Close()
}

func TestConnectAfterClose(t *testing.T) {
	engine := NewSimulatedEngine()
	policy := security.NewPolicyCoordinator(security.NoopGate{})
	orc := NewOrchestrator(engine, policy, Options{})
	orc.Close()

	attempt := orc.Connect(writeTestConfig(t, validTestConfig))
	if attempt.Result() {
		t.Error("connect succeeded on a closed orchestrator")
	}
	if err := attempt.Err(); !errors.Is(err, common.ErrCancelled) {
		t.Errorf("Err() = %v, want ErrCancelled", err)
	}
}

// failingEngine rejects every start attempt.
type failingEngine struct{}

func (failingEngine) Start(cfg *ConnectionConfig, sink EventSink) error {
	return os.ErrPermission
}
func (failingEngine) Stop()                      {}
func (failingEngine) Pause(reason string)        {}
func (failingEngine) Resume()                    {}
func (failingEngine) Reconnect(delaySeconds int) {}

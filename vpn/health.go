package vpn

import (
	"net"
	"sync"
	"time"

	"github.com/tunnelguard/tunnelguard/common"
)

// HealthState represents the probed health of the established tunnel.
type HealthState int

const (
	HealthUnknown HealthState = iota
	HealthHealthy
	HealthDegraded
	HealthUnhealthy
)

// String returns a human-readable representation of the health state.
func (h HealthState) String() string {
	switch h {
	case HealthHealthy:
		return "Healthy"
	case HealthDegraded:
		return "Degraded"
	case HealthUnhealthy:
		return "Unhealthy"
	default:
		return "Unknown"
	}
}

// HealthConfig holds configuration for the health monitor.
type HealthConfig struct {
	// CheckInterval is how often to probe connectivity. Default 30s.
	CheckInterval time.Duration
	// ProbeTimeout caps a single connectivity probe. Default 5s.
	ProbeTimeout time.Duration
	// FailureThreshold is how many consecutive failed probes mark the
	// tunnel unhealthy. Default 3.
	FailureThreshold int
	// AutoReconnect re-dials through the orchestrator once the tunnel is
	// unhealthy.
	AutoReconnect bool
	// MaxReconnectAttempts bounds automatic re-dials (0 = unlimited). The
	// counter resets on the next healthy probe. Default 5.
	MaxReconnectAttempts int
	// TestHosts are dialed in order until one answers.
	TestHosts []string
}

// DefaultHealthConfig returns sensible defaults for health monitoring.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		CheckInterval:        30 * time.Second,
		ProbeTimeout:         5 * time.Second,
		FailureThreshold:     3,
		AutoReconnect:        true,
		MaxReconnectAttempts: 5,
		TestHosts: []string{
			"8.8.8.8:53",
			"1.1.1.1:53",
			"208.67.222.222:53",
		},
	}
}

// HealthSnapshot is a point-in-time copy of the monitor's state.
type HealthSnapshot struct {
	State             HealthState
	LastCheck         time.Time
	LastSuccess       time.Time
	Latency           time.Duration
	ConsecutiveFails  int
	ReconnectAttempts int
}

// HealthMonitor probes connectivity through the established tunnel and
// detects dead links the engine never reports. When the tunnel turns
// unhealthy it drives the orchestrator's reconnect, bounded by the
// configured attempt limit. Probes only run while the status is Connected.
type HealthMonitor struct {
	orc *Orchestrator
	cfg HealthConfig

	// probe dials one test host. Swapped out by tests.
	probe func(host string, timeout time.Duration) error

	mu                sync.Mutex
	running           bool
	stopChan          chan struct{}
	state             HealthState
	lastCheck         time.Time
	lastSuccess       time.Time
	latency           time.Duration
	consecutiveFails  int
	reconnectAttempts int
	onStateChange     func(oldState, newState HealthState)
}

// NewHealthMonitor creates a monitor around the orchestrator. Zero config
// fields select the defaults.
func NewHealthMonitor(orc *Orchestrator, cfg HealthConfig) *HealthMonitor {
	defaults := DefaultHealthConfig()
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = defaults.CheckInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaults.ProbeTimeout
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if len(cfg.TestHosts) == 0 {
		cfg.TestHosts = defaults.TestHosts
	}
	return &HealthMonitor{
		orc:   orc,
		cfg:   cfg,
		probe: dialProbe,
	}
}

func dialProbe(host string, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", host, timeout)
	if err != nil {
		return err
	}
	conn.Close()
	return nil
}

// SetOnStateChange sets a callback for health state transitions. Invoked
// outside the monitor's lock.
func (m *HealthMonitor) SetOnStateChange(callback func(oldState, newState HealthState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = callback
}

// Start begins the probing loop. No-op if already running.
func (m *HealthMonitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopChan = make(chan struct{})
	stop := m.stopChan
	m.mu.Unlock()

	common.LogInfo("Health monitor started (interval: %v)", m.cfg.CheckInterval)
	go m.runLoop(stop)
}

// Stop ends the probing loop. No-op if not running.
func (m *HealthMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopChan)
	m.mu.Unlock()

	common.LogInfo("Health monitor stopped")
}

// IsRunning reports whether the probing loop is active.
func (m *HealthMonitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Health returns a copy of the current monitor state.
func (m *HealthMonitor) Health() HealthSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return HealthSnapshot{
		State:             m.state,
		LastCheck:         m.lastCheck,
		LastSuccess:       m.lastSuccess,
		Latency:           m.latency,
		ConsecutiveFails:  m.consecutiveFails,
		ReconnectAttempts: m.reconnectAttempts,
	}
}

func (m *HealthMonitor) runLoop(stop chan struct{}) {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.check()
		}
	}
}

// check runs one probe round and applies its consequences. Exposed to the
// loop and to tests; a round against a disconnected tunnel is a no-op.
func (m *HealthMonitor) check() {
	if m.orc.Status() != StatusConnected {
		return
	}

	start := time.Now()
	err := m.probeAny()
	latency := time.Since(start)

	m.mu.Lock()
	m.lastCheck = time.Now()
	oldState := m.state

	if err != nil {
		m.consecutiveFails++
		m.latency = 0
		if m.consecutiveFails >= m.cfg.FailureThreshold {
			m.state = HealthUnhealthy
		} else {
			m.state = HealthDegraded
		}
	} else {
		m.consecutiveFails = 0
		m.lastSuccess = time.Now()
		m.latency = latency
		m.state = HealthHealthy
		m.reconnectAttempts = 0
	}

	newState := m.state
	fails := m.consecutiveFails
	callback := m.onStateChange

	reconnect := newState == HealthUnhealthy && m.cfg.AutoReconnect &&
		(m.cfg.MaxReconnectAttempts == 0 || m.reconnectAttempts < m.cfg.MaxReconnectAttempts)
	if reconnect {
		m.reconnectAttempts++
	}
	attempt := m.reconnectAttempts
	m.mu.Unlock()

	if err != nil {
		common.LogWarn("Health check failed (%d/%d): %v", fails, m.cfg.FailureThreshold, err)
	}
	if oldState != newState {
		common.LogInfo("Tunnel health changed: %s -> %s", oldState, newState)
		if callback != nil {
			callback(oldState, newState)
		}
	}

	if reconnect {
		common.LogInfo("Tunnel unhealthy, reconnecting (attempt %d)", attempt)
		m.orc.Reconnect()
	} else if newState == HealthUnhealthy && m.cfg.AutoReconnect {
		common.LogError("Tunnel unhealthy and reconnect attempts exhausted (%d)", attempt)
	}
}

// probeAny tries each test host until one answers.
func (m *HealthMonitor) probeAny() error {
	var lastErr error
	for _, host := range m.cfg.TestHosts {
		if err := m.probe(host, m.cfg.ProbeTimeout); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return common.WrapError(common.ErrTransport, "all connectivity probes failed: "+lastErr.Error())
}

package vpn

import (
	"sync"
	"time"
)

// SimulatedEngine reproduces the event sequence of a real VPN engine without
// touching the network: staged progress events, then CONNECTED. It backs the
// --simulate mode and the orchestrator tests.
type SimulatedEngine struct {
	// StepDelay is the pause between progress events.
	StepDelay time.Duration
	// FailEvent, when set, is emitted as the terminal event instead of
	// CONNECTED (e.g. EventAuthFailed).
	FailEvent string
	// FailInfo is the detail text attached to FailEvent.
	FailInfo string
	// Silent suppresses the terminal event entirely, leaving the attempt
	// to time out.
	Silent bool

	mu      sync.Mutex
	sink    EventSink
	cfg     *ConnectionConfig
	paused  bool
	running bool
	stop    chan struct{}
}

// NewSimulatedEngine returns a simulated engine with the default pacing.
func NewSimulatedEngine() *SimulatedEngine {
	return &SimulatedEngine{StepDelay: 200 * time.Millisecond}
}

var simulatedSteps = []string{
	"Resolving server address...",
	"Establishing TCP/UDP connection...",
	"Performing TLS handshake...",
	"Authenticating with server...",
	"Configuring tunnel interface...",
}

// Start implements Engine.
func (e *SimulatedEngine) Start(cfg *ConnectionConfig, sink EventSink) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil
	}
	e.sink = sink
	e.cfg = cfg
	e.running = true
	e.paused = false
	e.stop = make(chan struct{})

	go e.establish(sink, e.stop)
	return nil
}

func (e *SimulatedEngine) establish(sink EventSink, stop chan struct{}) {
	sink.OnLog(3, "simulated engine: connection initiated")
	for _, step := range simulatedSteps {
		select {
		case <-stop:
			return
		case <-time.After(e.StepDelay):
		}
		select {
		case <-stop:
			return
		default:
		}
		sink.OnEvent(EventConnecting, step)
		sink.OnLog(3, "connection step: "+step)
	}

	select {
	case <-stop:
		return
	default:
	}

	switch {
	case e.Silent:
		// Never report a terminal event; the orchestrator's timeout owns
		// this attempt.
	case e.FailEvent != "":
		sink.OnEvent(e.FailEvent, e.FailInfo)
	default:
		sink.OnEvent(EventConnected, "VPN tunnel established successfully")
		sink.OnLog(3, "simulated engine: connection established")
	}
}

// Stop implements Engine.
func (e *SimulatedEngine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stop)
	sink := e.sink
	e.mu.Unlock()

	if sink != nil {
		sink.OnLog(3, "simulated engine: stopped")
	}
}

// Pause implements Engine.
func (e *SimulatedEngine) Pause(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.paused = true
	if e.sink != nil {
		e.sink.OnLog(3, "simulated engine: paused: "+reason)
	}
}

// Resume implements Engine.
func (e *SimulatedEngine) Resume() {
	e.mu.Lock()
	if !e.running || !e.paused {
		e.mu.Unlock()
		return
	}
	e.paused = false
	sink := e.sink
	e.mu.Unlock()

	sink.OnEvent(EventConnected, "VPN tunnel re-established")
}

// Reconnect implements Engine. The simulated engine re-dials after the
// requested delay, compressed in tests by StepDelay-scale waits.
func (e *SimulatedEngine) Reconnect(delaySeconds int) {
	e.mu.Lock()
	sink := e.sink
	cfg := e.cfg
	e.mu.Unlock()
	if sink == nil {
		return
	}

	sink.OnEvent(EventReconnecting, "Attempting to reconnect")
	e.Stop()

	go func() {
		// Honor the requested backoff at a test-friendly scale.
		time.Sleep(time.Duration(delaySeconds) * e.StepDelay)
		e.Start(cfg, sink)
	}()
}

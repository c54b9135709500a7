package vpn

import (
	"os"
	"sync"
	"time"

	"github.com/tunnelguard/tunnelguard/common"
	"github.com/tunnelguard/tunnelguard/security"
)

// Orchestrator is the connection state machine. It owns the connection
// status, runs a single worker goroutine per connect attempt, enforces the
// establishment timeout, and applies the traffic-gate side effect of every
// transition through the security policy coordinator.
//
// The orchestrator composes an Engine rather than extending it: it hands
// itself to Engine.Start as the EventSink and translates engine events into
// status transitions.
type Orchestrator struct {
	engine Engine
	policy *security.PolicyCoordinator

	mu   sync.Mutex
	cond *sync.Cond
	// status and lastErr are the only mutable shared state; both live
	// behind mu. lastErr is kept as a byte buffer so teardown can
	// overwrite it in place.
	status     ConnectionStatus
	lastErr    []byte
	failure    error
	inProgress bool
	shouldStop bool
	timedOut   bool
	closed     bool
	attempt    *Attempt
	subscriber func(ConnectionStatus, string)
	current    *ConnectionConfig

	timeout        time.Duration
	reconnectDelay int
}

// Options tunes orchestrator behavior. Zero values select the defaults.
type Options struct {
	// ConnectTimeout caps tunnel establishment. Default 30s.
	ConnectTimeout time.Duration
	// ReconnectDelay is the fixed backoff handed to the engine on an
	// explicit reconnect. Default 5s.
	ReconnectDelay time.Duration
}

// NewOrchestrator creates an orchestrator around the given engine and
// policy coordinator. The coordinator must already be in its fail-safe
// blocked state (NewPolicyCoordinator guarantees that).
func NewOrchestrator(engine Engine, policy *security.PolicyCoordinator, opts Options) *Orchestrator {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = common.ConnectTimeout
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = common.ReconnectDelay
	}
	o := &Orchestrator{
		engine:         engine,
		policy:         policy,
		status:         StatusDisconnected,
		timeout:        opts.ConnectTimeout,
		reconnectDelay: int(opts.ReconnectDelay.Seconds()),
	}
	o.cond = sync.NewCond(&o.mu)
	return o
}

// Attempt is the handle returned by Connect. It resolves once the attempt
// reaches a terminal outcome.
type Attempt struct {
	orc  *Orchestrator
	ok   bool
	err  error
	done chan struct{}
}

// Done returns a channel closed when the attempt completes.
func (a *Attempt) Done() <-chan struct{} { return a.done }

// Result blocks until the attempt completes and reports whether the tunnel
// was established.
func (a *Attempt) Result() bool {
	<-a.done
	return a.ok
}

// Err blocks until the attempt completes and returns the typed failure, or
// nil when the tunnel was established. The error matches the common
// sentinels via errors.Is.
func (a *Attempt) Err() error {
	<-a.done
	return a.err
}

// Cancel aborts the attempt by disconnecting.
func (a *Attempt) Cancel() { a.orc.Disconnect() }

// finishedAttempt returns an already-resolved handle.
func finishedAttempt(o *Orchestrator, err error) *Attempt {
	a := &Attempt{orc: o, ok: err == nil, err: err, done: make(chan struct{})}
	close(a.done)
	return a
}

// Connect starts a connection attempt for the tunnel configuration at
// configPath. It never blocks the caller: the returned Attempt resolves when
// the attempt reaches a terminal outcome.
//
// Connect is not reentrant. While an attempt is in flight, further calls
// resolve to false immediately without spawning a second worker. The
// in-progress flag is checked and set under the status mutex, so two
// callers cannot both observe an idle orchestrator and both start workers.
func (o *Orchestrator) Connect(configPath string) *Attempt {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return finishedAttempt(o, common.ErrCancelled)
	}
	if o.inProgress {
		o.mu.Unlock()
		common.LogWarn("Connect rejected: attempt already in progress")
		return finishedAttempt(o, common.ErrAlreadyConnected)
	}
	o.inProgress = true
	o.shouldStop = false
	o.timedOut = false
	o.failure = nil
	a := &Attempt{orc: o, done: make(chan struct{})}
	o.attempt = a
	o.mu.Unlock()

	// A fresh connect withdraws any user override; protection is wanted
	// again, starting now.
	o.policy.ClearOverride()
	o.setStatus(StatusConnecting, "Starting connection...")

	go func() {
		err := o.performConnection(configPath)
		o.mu.Lock()
		o.inProgress = false
		o.mu.Unlock()
		a.ok = err == nil
		a.err = err
		close(a.done)
	}()
	return a
}

// performConnection is the worker body: validate, start the engine, wait.
func (o *Orchestrator) performConnection(configPath string) error {
	cfg, err := o.prepareConfiguration(configPath)
	if err != nil {
		return err
	}
	if err := o.engine.Start(cfg, o); err != nil {
		o.setStatus(StatusError, "Failed to start connection: "+err.Error())
		return common.WrapError(common.ErrEngineStart, err.Error())
	}
	return o.waitForCompletion()
}

// prepareConfiguration loads and validates the tunnel configuration and
// materializes the immutable per-attempt config.
func (o *Orchestrator) prepareConfiguration(configPath string) (*ConnectionConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		o.setStatus(StatusError, "Failed to read configuration file: "+err.Error())
		return nil, common.WrapError(common.ErrConfigUnreadable, err.Error())
	}

	result := ValidateConfig(string(data))
	if !result.IsValid {
		o.setStatus(StatusError, "Configuration validation failed: "+result.ErrorMessage)
		return nil, common.WrapError(common.ErrConfigInvalid, result.ErrorMessage)
	}
	for _, warning := range result.Warnings {
		common.LogWarn("%s", warning)
	}

	cfg := NewConnectionConfig(string(data))
	o.mu.Lock()
	o.current = cfg
	o.mu.Unlock()
	return cfg, nil
}

// waitForCompletion blocks the worker on the condition variable until a
// terminal status, cancellation, or the timeout. The timeout fires through
// time.AfterFunc, which broadcasts on the same condition variable; the wait
// predicate is always re-checked under the mutex, so an engine callback
// arriving just before the worker starts waiting cannot be lost.
func (o *Orchestrator) waitForCompletion() error {
	timer := time.AfterFunc(o.timeout, func() {
		o.mu.Lock()
		o.timedOut = true
		o.cond.Broadcast()
		o.mu.Unlock()
	})
	defer timer.Stop()

	o.mu.Lock()
	for !o.status.terminal() && !o.shouldStop && !o.timedOut {
		o.cond.Wait()
	}
	status := o.status
	stopped := o.shouldStop
	timedOut := o.timedOut
	failure := o.failure
	o.mu.Unlock()

	switch {
	case status == StatusConnected:
		return nil
	case stopped:
		o.setStatus(StatusDisconnected, "Connection cancelled by user")
		return common.ErrCancelled
	case status == StatusError:
		if failure != nil {
			return failure
		}
		return common.ErrTransport
	case timedOut:
		o.setStatus(StatusError, "Connection timeout - unable to establish VPN tunnel")
		o.engine.Stop()
		return common.ErrTimeout
	default:
		// Engine dropped to Disconnected during establishment; the
		// transition already carried its message.
		if failure != nil {
			return failure
		}
		return common.ErrTransport
	}
}

// Disconnect terminates the connection or aborts an attempt in flight.
// Calling it while already disconnected is a no-op.
func (o *Orchestrator) Disconnect() {
	o.mu.Lock()
	if o.status == StatusDisconnected && !o.inProgress {
		o.mu.Unlock()
		return
	}
	o.shouldStop = true
	o.cond.Broadcast()
	o.mu.Unlock()

	o.engine.Stop()
	o.setStatus(StatusDisconnected, "Disconnected")
}

// Pause suspends the tunnel. The connection counts as down while paused, so
// the gate closes.
func (o *Orchestrator) Pause() {
	o.engine.Pause("user requested pause")
	o.setStatus(StatusDisconnected, "Connection paused")
}

// Resume re-establishes a paused tunnel and restarts the establishment
// wait, including its timeout.
func (o *Orchestrator) Resume() {
	o.setStatus(StatusConnecting, "Resuming connection...")
	o.engine.Resume()
	o.startWaiter()
}

// Reconnect tears the tunnel down and re-dials after the configured
// backoff. The gate closes for the whole transition window.
func (o *Orchestrator) Reconnect() {
	o.setStatus(StatusConnecting, "Reconnecting...")
	o.engine.Reconnect(o.reconnectDelay)
	o.startWaiter()
}

// startWaiter spawns a worker that only waits for the outcome of an engine
// operation already underway (resume, reconnect). No-op if a worker is
// already in flight.
func (o *Orchestrator) startWaiter() {
	o.mu.Lock()
	if o.closed || o.inProgress {
		o.mu.Unlock()
		return
	}
	o.inProgress = true
	o.shouldStop = false
	o.timedOut = false
	o.failure = nil
	a := &Attempt{orc: o, done: make(chan struct{})}
	o.attempt = a
	o.mu.Unlock()

	go func() {
		err := o.waitForCompletion()
		o.mu.Lock()
		o.inProgress = false
		o.mu.Unlock()
		a.ok = err == nil
		a.err = err
		close(a.done)
	}()
}

// AllowCommunicationWithoutVPN records an explicit user request for
// unprotected communication. Status is unchanged; the gate opens until the
// next connect attempt withdraws the override.
func (o *Orchestrator) AllowCommunicationWithoutVPN() {
	o.policy.AllowOverride()
}

// Status returns the current connection status.
func (o *Orchestrator) Status() ConnectionStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// LastError returns the last human-readable diagnostic message.
func (o *Orchestrator) LastError() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return string(o.lastErr)
}

// Subscribe registers the status callback. At most one subscriber is held;
// the last writer wins. The callback is invoked synchronously on every
// transition, outside the status lock, so it may call back into the
// orchestrator without deadlocking.
func (o *Orchestrator) Subscribe(callback func(status ConnectionStatus, message string)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subscriber = callback
}

// setStatus performs a state transition: update the guarded status, wake
// all waiters, apply the security side effect, notify the subscriber. The
// gate call happens inside the critical section so concurrent transitions
// can never apply gate calls in the opposite order of the status writes;
// the coordinator has its own lock and never calls back in here. Only the
// subscriber callback runs outside the lock, so it may re-enter the
// orchestrator without deadlocking.
func (o *Orchestrator) setStatus(status ConnectionStatus, message string) {
	o.mu.Lock()
	o.status = status
	if message != "" {
		o.lastErr = append(o.lastErr[:0], message...)
	}
	o.cond.Broadcast()
	if status == StatusConnected {
		o.policy.Unblock()
	} else {
		o.policy.Block()
	}
	subscriber := o.subscriber
	o.mu.Unlock()

	if subscriber != nil {
		subscriber(status, message)
	}
	if message != "" {
		common.LogInfo("Status: %s (%s)", status, message)
	}
}

// OnEvent implements EventSink. Each named engine event maps to a
// deterministic transition; unrecognized events are logged and ignored.
func (o *Orchestrator) OnEvent(name, info string) {
	switch name {
	case EventConnected:
		o.setStatus(StatusConnected, "VPN connection established")
	case EventDisconnected:
		if info == "" {
			info = "Disconnected"
		}
		// A drop during establishment fails the attempt as a transport
		// error; a drop at any other time is just the link going away.
		o.mu.Lock()
		if o.status == StatusConnecting {
			o.failure = failureWith(common.ErrTransport, info)
		}
		o.mu.Unlock()
		o.setStatus(StatusDisconnected, info)
	case EventReconnecting:
		o.setStatus(StatusConnecting, "Reconnecting...")
	case EventAuthFailed:
		o.recordFailure(common.ErrAuthFailed)
		o.setStatus(StatusError, "Authentication failed")
	case EventCertVerifyFail:
		o.recordFailure(failureWith(common.ErrCertVerify, info))
		o.setStatus(StatusError, withDetail("Certificate verification failed", info))
	case EventTLSError:
		o.recordFailure(failureWith(common.ErrTransport, info))
		o.setStatus(StatusError, withDetail("TLS error", info))
	case EventClientRestart:
		o.setStatus(StatusConnecting, "Client restarting...")
	case EventConnecting:
		// Progress text only refreshes an attempt already underway; a late
		// progress event must not resurrect a cancelled attempt.
		o.mu.Lock()
		connecting := o.status == StatusConnecting
		o.mu.Unlock()
		if connecting {
			o.setStatus(StatusConnecting, info)
		}
	case EventPaused:
		o.setStatus(StatusDisconnected, "Connection paused")
	case EventResumed:
		o.setStatus(StatusConnecting, "Connection resumed")
	default:
		common.LogInfo("Unhandled engine event %s: %s", name, info)
	}
}

// recordFailure notes the typed cause of the attempt's failure before the
// status transition publishes it.
func (o *Orchestrator) recordFailure(err error) {
	o.mu.Lock()
	o.failure = err
	o.mu.Unlock()
}

func withDetail(msg, info string) string {
	if info == "" {
		return msg
	}
	return msg + ": " + info
}

// failureWith attaches engine detail text to a sentinel when there is any.
func failureWith(sentinel error, info string) error {
	if info == "" {
		return sentinel
	}
	return common.WrapError(sentinel, info)
}

// OnLog implements EventSink, routing engine log lines onto application
// levels. Debug output is suppressed unless the logger runs at debug level.
func (o *Orchestrator) OnLog(level int, text string) {
	switch common.LevelFromEngineSeverity(level) {
	case common.LevelError:
		common.LogError("engine: %s", text)
	case common.LevelWarn:
		common.LogWarn("engine: %s", text)
	case common.LevelInfo:
		common.LogInfo("engine: %s", text)
	default:
		common.LogDebug("engine: %s", text)
	}
}

// Close tears the orchestrator down: cancel any attempt, disconnect, join
// the worker, scrub the last-error buffer, and release the traffic gate.
// The status mutex is never held across the join, so a worker blocked on
// the condition variable can always wake and exit.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	status := o.status
	running := o.inProgress
	worker := o.attempt
	o.mu.Unlock()

	if status == StatusConnecting || status == StatusConnected {
		o.Disconnect()
	}
	if running && worker != nil {
		<-worker.done
	}

	// Best-effort scrub: overwrite the buffer in place. Other copies of the
	// string may still exist in memory.
	o.mu.Lock()
	for i := range o.lastErr {
		o.lastErr[i] = 0
	}
	o.lastErr = o.lastErr[:0]
	o.subscriber = nil
	o.mu.Unlock()

	o.policy.Shutdown()
}

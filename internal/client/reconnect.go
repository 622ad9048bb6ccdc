package client

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// State is the reconnection manager's lifecycle state.
type State int

const (
	// Disconnected is the initial state and the result of a manual disconnect.
	Disconnected State = iota
	// Connecting means a dial attempt is in flight.
	Connecting
	// Connected means the transport is up.
	Connected
	// Reconnecting means a retry is scheduled after an unexpected close.
	Reconnecting
	// Failed is terminal until a manual Connect: the retry budget ran out.
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Policy tunes the retry schedule. Factor 1.0 gives a fixed interval.
type Policy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Factor       float64
	MaxAttempts  int
}

// DefaultPolicy retries with a 1s initial delay doubling up to 30s, at
// most 10 attempts.
func DefaultPolicy() Policy {
	return Policy{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Factor:       2.0,
		MaxAttempts:  10,
	}
}

// Manager is the reconnection state machine, advanced by discrete events:
// Connect, TransportUp, TransportClosed, Disconnect, and the internal retry
// timer elapsing. Timers come from the injected clock, so tests drive the
// machine with a mock clock instead of real time.
type Manager struct {
	policy    Policy
	clk       clock.Clock
	log       zerolog.Logger
	onAttempt func(attempt int)
	onFailed  func()

	mu       sync.Mutex
	state    State
	attempts int
	delay    time.Duration
	retry    *clock.Timer
}

// NewManager constructs a manager in the Disconnected state. onAttempt is
// invoked (outside the manager's lock) for the manual connect and for every
// retry; attempt 0 is the manual connect.
func NewManager(policy Policy, clk clock.Clock, logger *zerolog.Logger, onAttempt func(attempt int)) *Manager {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if policy.Factor < 1.0 {
		policy.Factor = 1.0
	}
	return &Manager{
		policy:    policy,
		clk:       clk,
		log:       logger.With().Str("component", "reconnect").Logger(),
		onAttempt: onAttempt,
		delay:     policy.InitialDelay,
	}
}

// Connect requests a manual connection. Only valid from Disconnected or
// Failed; returns false otherwise.
func (m *Manager) Connect() bool {
	m.mu.Lock()
	if m.state != Disconnected && m.state != Failed {
		m.mu.Unlock()
		return false
	}
	m.state = Connecting
	m.attempts = 0
	m.delay = m.policy.InitialDelay
	m.mu.Unlock()

	if m.onAttempt != nil {
		m.onAttempt(0)
	}
	return true
}

// TransportUp records a successful dial and resets the retry budget.
func (m *Manager) TransportUp() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Connecting {
		return
	}
	m.state = Connected
	m.attempts = 0
	m.delay = m.policy.InitialDelay
	m.log.Debug().Msg("transport up")
}

// TransportClosed records an unexpected close or a failed dial. Schedules
// the next retry, or transitions to Failed once the budget is spent. A
// close after a manual Disconnect is ignored.
func (m *Manager) TransportClosed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case Disconnected, Failed, Reconnecting:
		return
	}

	m.attempts++
	if m.attempts > m.policy.MaxAttempts {
		m.state = Failed
		m.log.Warn().Int("attempts", m.policy.MaxAttempts).Msg("retry budget exhausted")
		if m.onFailed != nil {
			go m.onFailed()
		}
		return
	}

	m.state = Reconnecting
	delay := m.delay
	m.retry = m.clk.AfterFunc(delay, m.retryElapsed)
	m.delay = time.Duration(float64(m.delay) * m.policy.Factor)
	if m.delay > m.policy.MaxDelay {
		m.delay = m.policy.MaxDelay
	}
	m.log.Debug().Dur("delay", delay).Int("attempt", m.attempts).Msg("retry scheduled")
}

func (m *Manager) retryElapsed() {
	m.mu.Lock()
	if m.state != Reconnecting {
		m.mu.Unlock()
		return
	}
	m.state = Connecting
	attempt := m.attempts
	m.mu.Unlock()

	if m.onAttempt != nil {
		m.onAttempt(attempt)
	}
}

// SetOnFailed registers a callback fired (in its own goroutine) when the
// retry budget is exhausted. Must be set before the machine starts moving.
func (m *Manager) SetOnFailed(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFailed = fn
}

// Disconnect cancels any pending retry synchronously and returns to
// Disconnected. Idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	m.state = Disconnected
	m.attempts = 0
	m.delay = m.policy.InitialDelay
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns how many retries have been issued since the last
// successful connection.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

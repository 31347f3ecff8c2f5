package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the circuit breaker behavior
type Settings struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit
	FailureThreshold int
	// Cooldown is how long the circuit stays open before a single probe is let through
	Cooldown time.Duration
	// OnStateChange is called whenever the state changes, outside the lock
	OnStateChange func(name string, from, to State)
}

// Breaker protects an upstream from repeated calls while it is failing.
// Closed: calls pass. Open: calls fail fast with ErrOpen until Cooldown has
// elapsed. HalfOpen: exactly one probe passes; its outcome closes or
// re-opens the circuit.
type Breaker struct {
	name     string
	settings Settings
	now      func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	probing   bool
	successes uint64
	rejected  uint64
}

// New creates a new circuit breaker with the given settings
func New(name string, settings Settings) *Breaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}
	return &Breaker{
		name:     name,
		settings: settings,
		now:      time.Now,
	}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state, accounting for an elapsed cooldown
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.cooledDown() {
		return StateHalfOpen
	}
	return b.state
}

// Do runs fn if the breaker admits the call and records its outcome.
// Errors for which ignore returns true (for example client cancellations)
// are passed through without counting as upstream failures.
func (b *Breaker) Do(fn func() error, ignore func(error) bool) error {
	if err := b.allow(); err != nil {
		return err
	}

	err := fn()
	if err != nil && ignore != nil && ignore(err) {
		b.release()
		return err
	}
	b.record(err == nil)
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	var transition func()
	defer func() {
		b.mu.Unlock()
		if transition != nil {
			transition()
		}
	}()

	switch b.state {
	case StateOpen:
		if !b.cooledDown() {
			b.rejected++
			return ErrOpen
		}
		transition = b.setState(StateHalfOpen)
		b.probing = true
		return nil
	case StateHalfOpen:
		if b.probing {
			b.rejected++
			return ErrOpen
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

// release frees a half-open probe slot without judging the upstream
func (b *Breaker) release() {
	b.mu.Lock()
	b.probing = false
	b.mu.Unlock()
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	var transition func()
	defer func() {
		b.mu.Unlock()
		if transition != nil {
			transition()
		}
	}()

	b.probing = false
	if success {
		b.successes++
		b.failures = 0
		if b.state != StateClosed {
			transition = b.setState(StateClosed)
		}
		return
	}

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.settings.FailureThreshold {
		b.openedAt = b.now()
		if b.state != StateOpen {
			transition = b.setState(StateOpen)
		}
	}
}

// Stats is a snapshot of breaker counters
type Stats struct {
	State               string `json:"state"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	Successes           uint64 `json:"successes"`
	Rejected            uint64 `json:"rejected"`
}

// Stats returns a snapshot of the breaker counters
func (b *Breaker) Stats() Stats {
	state := b.State()
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		State:               state.String(),
		ConsecutiveFailures: b.failures,
		Successes:           b.successes,
		Rejected:            b.rejected,
	}
}

// cooledDown must be called with mu held
func (b *Breaker) cooledDown() bool {
	return !b.now().Before(b.openedAt.Add(b.settings.Cooldown))
}

// setState must be called with mu held; the returned func fires the callback
func (b *Breaker) setState(state State) func() {
	prev := b.state
	b.state = state
	if state == StateClosed {
		b.failures = 0
	}
	if b.settings.OnStateChange == nil || prev == state {
		return nil
	}
	cb, name := b.settings.OnStateChange, b.name
	return func() { cb(name, prev, state) }
}

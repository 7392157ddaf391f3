package breaker

import (
	"errors"
	"sync"
	"time"
)

// State enumerates the circuit breaker states.
type State int

const (
	// StateClosed allows all calls through and counts failures.
	StateClosed State = iota
	// StateOpen rejects calls until the cooldown elapses.
	StateOpen
	// StateHalfOpen allows a single probe call to test recovery.
	StateHalfOpen
)

// String renders the state for logs.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Allow when the circuit rejects the call.
var ErrOpen = errors.New("breaker: circuit open")

const (
	defaultFailureThreshold = 5
	defaultCooldown         = 30 * time.Second
)

// Breaker implements a circuit breaker guarding calls to an unreliable dependency.
// Consecutive failures trip the circuit open; after the cooldown a single probe is
// let through and its outcome decides whether the circuit closes again.
type Breaker struct {
	mu sync.Mutex

	threshold int
	cooldown  time.Duration
	clock     func() time.Time

	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// Option customises Breaker construction.
type Option func(*Breaker)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(b *Breaker) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// New constructs a Breaker with the provided failure threshold and cooldown.
func New(threshold int, cooldown time.Duration, opts ...Option) *Breaker {
	if threshold <= 0 {
		threshold = defaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}

	b := &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		clock:     time.Now,
		state:     StateClosed,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}

	return b
}

// Allow reports whether a call may proceed. It returns ErrOpen while the circuit
// is open. When the cooldown has elapsed the circuit moves to half-open and lets
// exactly one probe through; concurrent callers are rejected until the probe
// outcome is recorded.
func (b *Breaker) Allow() error {
	if b == nil {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.clock().Sub(b.openedAt) < b.cooldown {
			return ErrOpen
		}
		b.state = StateHalfOpen
		b.probing = true
		return nil
	case StateHalfOpen:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

// MarkSuccess records a successful call, closing the circuit from half-open and
// resetting the failure count.
func (b *Breaker) MarkSuccess() {
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probing = false
	b.state = StateClosed
}

// MarkFailure records a failed call. The circuit trips open when consecutive
// failures reach the threshold, or immediately when a half-open probe fails.
func (b *Breaker) MarkFailure() {
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.trip()
		return
	}

	b.failures++
	if b.failures >= b.threshold {
		b.trip()
	}
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	if b == nil {
		return StateClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.clock()
	b.failures = 0
	b.probing = false
}

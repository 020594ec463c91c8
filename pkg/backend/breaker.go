package backend

import (
	"errors"
	"sync"
	"time"
)

// Breaker states
const (
	StateClosed   State = iota // Normal operation, requests pass through
	StateOpen                  // Backend considered down, requests fail immediately
	StateHalfOpen              // Probing whether the backend recovered
)

// State is the current state of a Breaker
type State int

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpen:
		return "Open"
	case StateHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

var (
	// ErrCircuitOpen is returned when the breaker is open
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests is returned when the half-open probe budget is spent
	ErrTooManyRequests = errors.New("too many requests")
)

// Counts holds the request statistics of the current window
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Breaker stops calling the backend after a run of failures and probes it
// again after a cool-down
type Breaker struct {
	mu sync.Mutex

	maxRequests      uint32        // probes allowed in half-open state
	interval         time.Duration // window for counting failures while closed
	timeout          time.Duration // time spent open before probing
	failureThreshold float64       // failure ratio that opens the breaker
	minRequests      uint32        // requests needed before the ratio counts
	successThreshold uint32        // consecutive probe successes that close it

	state            State
	generation       uint64
	stateChangedAt   time.Time
	counts           Counts
	halfOpenRequests uint32

	now           func() time.Time
	onStateChange func(from, to State)
	isFailure     func(err error) bool
}

// BreakerOption configures a Breaker
type BreakerOption func(*Breaker)

// WithMaxRequests sets the number of probes allowed in half-open state
func WithMaxRequests(n uint32) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.maxRequests = n
		}
	}
}

// WithInterval sets the window for counting failures
func WithInterval(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		b.interval = d
	}
}

// WithOpenTimeout sets how long the breaker stays open
func WithOpenTimeout(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithFailureThreshold sets the failure ratio that opens the breaker
func WithFailureThreshold(threshold float64) BreakerOption {
	return func(b *Breaker) {
		if threshold > 0 && threshold <= 1.0 {
			b.failureThreshold = threshold
		}
	}
}

// WithMinRequests sets how many requests are needed before the failure
// ratio is considered
// Default: 10
func WithMinRequests(n uint32) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.minRequests = n
		}
	}
}

// WithSuccessThreshold sets the consecutive successes needed to close
func WithSuccessThreshold(n uint32) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// WithOnStateChange sets a callback for state changes
func WithOnStateChange(fn func(from, to State)) BreakerOption {
	return func(b *Breaker) {
		b.onStateChange = fn
	}
}

// WithIsFailure decides which errors count against the backend
func WithIsFailure(fn func(err error) bool) BreakerOption {
	return func(b *Breaker) {
		if fn != nil {
			b.isFailure = fn
		}
	}
}

// NewBreaker creates a closed breaker
func NewBreaker(opts ...BreakerOption) *Breaker {
	b := &Breaker{
		maxRequests:      1,
		interval:         60 * time.Second,
		timeout:          30 * time.Second,
		failureThreshold: 0.6,
		minRequests:      10,
		successThreshold: 1,
		state:            StateClosed,
		now:              time.Now,
		isFailure:        defaultIsFailure,
	}

	for _, opt := range opts {
		opt(b)
	}
	b.stateChangedAt = b.now()

	return b
}

// defaultIsFailure counts transport errors and 5xx responses. Client errors
// say nothing about backend health.
func defaultIsFailure(err error) bool {
	if err == nil {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == 429
	}
	return true
}

// Execute runs fn unless the breaker is open and records its outcome
func (b *Breaker) Execute(fn func() error) error {
	generation, err := b.beforeRequest()
	if err != nil {
		return err
	}

	err = fn()
	b.afterRequest(generation, err)
	return err
}

func (b *Breaker) beforeRequest() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, generation := b.currentState(b.now())

	if state == StateOpen {
		return generation, ErrCircuitOpen
	}

	if state == StateHalfOpen {
		if b.halfOpenRequests >= b.maxRequests {
			return generation, ErrTooManyRequests
		}
		b.halfOpenRequests++
	}

	b.counts.Requests++
	return generation, nil
}

func (b *Breaker) afterRequest(generation uint64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	state, currentGeneration := b.currentState(now)

	// State changed while the request was in flight
	if generation != currentGeneration {
		return
	}

	if b.isFailure(err) {
		b.counts.TotalFailures++
		b.counts.ConsecutiveFailures++
		b.counts.ConsecutiveSuccesses = 0

		switch state {
		case StateHalfOpen:
			b.setState(StateOpen, now)
		case StateClosed:
			if b.shouldOpen() {
				b.setState(StateOpen, now)
			}
		}
		return
	}

	b.counts.TotalSuccesses++
	b.counts.ConsecutiveSuccesses++
	b.counts.ConsecutiveFailures = 0

	if state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.successThreshold {
		b.setState(StateClosed, now)
	}
}

func (b *Breaker) currentState(now time.Time) (State, uint64) {
	switch b.state {
	case StateClosed:
		if b.interval > 0 && now.Sub(b.stateChangedAt) > b.interval {
			b.counts = Counts{}
			b.stateChangedAt = now
		}
	case StateOpen:
		if now.Sub(b.stateChangedAt) >= b.timeout {
			b.setState(StateHalfOpen, now)
		}
	}

	return b.state, b.generation
}

func (b *Breaker) shouldOpen() bool {
	if b.counts.Requests < b.minRequests {
		return false
	}

	failureRate := float64(b.counts.TotalFailures) / float64(b.counts.Requests)
	return failureRate >= b.failureThreshold
}

func (b *Breaker) setState(newState State, now time.Time) {
	if b.state == newState {
		return
	}

	oldState := b.state
	b.state = newState
	b.stateChangedAt = now
	b.generation++
	b.counts = Counts{}
	b.halfOpenRequests = 0

	if b.onStateChange != nil {
		b.onStateChange(oldState, newState)
	}
}

// State returns the current state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, _ := b.currentState(b.now())
	return state
}

// Counts returns the counts of the current window
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.counts
}

// Reset closes the breaker
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.setState(StateClosed, b.now())
}

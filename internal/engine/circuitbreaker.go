package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultFailureThreshold = 5
	DefaultCooldown         = 60 * time.Second
)

// CircuitOpenError is returned when a call is rejected because the circuit
// for its key is open. Distinguishable from the wrapped operation's own
// errors via errors.As.
type CircuitOpenError struct {
	Key     string
	RetryAt time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for %q until %s", e.Key, e.RetryAt.Format(time.RFC3339))
}

// circuitState tracks one key. failures counts consecutive failures while the
// circuit is closed; openedUntil in the future means open. The two are
// mutually exclusive: failures is zeroed whenever openedUntil is set.
type circuitState struct {
	failures    int
	openedUntil time.Time
}

// CircuitBreaker guards external calls with a per-key fail-fast policy.
// State is in-memory and process-local; horizontally scaled instances trip
// independently.
type CircuitBreaker struct {
	mu               sync.Mutex
	states           map[string]*circuitState
	logger           *slog.Logger
	failureThreshold int
	cooldown         time.Duration
	now              func() time.Time
}

// CircuitState is a point-in-time view of one key's circuit, safe to serialize.
type CircuitState struct {
	Key       string `json:"key"`
	Open      bool   `json:"open"`
	Failures  int    `json:"failures"`
	OpenUntil string `json:"open_until,omitempty"`
}

// NewCircuitBreaker creates a breaker. Non-positive threshold or cooldown
// fall back to the defaults.
func NewCircuitBreaker(logger *slog.Logger, failureThreshold int, cooldown time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = DefaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &CircuitBreaker{
		states:           make(map[string]*circuitState),
		logger:           logger,
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		now:              time.Now,
	}
}

// Execute runs op unless the circuit for key is open. The wrapped operation's
// error passes through unchanged unless this call crosses the failure
// threshold, in which case only the circuit-open error is returned. The first
// call after cooldown expiry is allowed through: success resets the breaker,
// failure starts the count again from 1.
func Execute[T any](b *CircuitBreaker, ctx context.Context, key string, op func(context.Context) (T, error)) (T, error) {
	var zero T

	if allowed, retryAt := b.allow(key); !allowed {
		return zero, &CircuitOpenError{Key: key, RetryAt: retryAt}
	}

	result, err := op(ctx)
	if err == nil {
		b.recordSuccess(key)
		return result, nil
	}

	if retryAt, tripped := b.recordFailure(key, err); tripped {
		return zero, &CircuitOpenError{Key: key, RetryAt: retryAt}
	}
	return zero, err
}

func (b *CircuitBreaker) allow(key string) (bool, time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.states[key]
	if !ok {
		return true, time.Time{}
	}
	if s.openedUntil.After(b.now()) {
		return false, s.openedUntil
	}
	return true, time.Time{}
}

func (b *CircuitBreaker) recordSuccess(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.states[key]
	if !ok {
		return
	}
	if s.failures > 0 || !s.openedUntil.IsZero() {
		s.failures = 0
		s.openedUntil = time.Time{}
		b.logger.Info("circuit breaker reset", "key", key)
	}
}

// recordFailure increments the consecutive-failure count and opens the
// circuit once the threshold is reached.
func (b *CircuitBreaker) recordFailure(key string, cause error) (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.states[key]
	if !ok {
		s = &circuitState{}
		b.states[key] = s
	}

	s.failures++
	if s.failures >= b.failureThreshold {
		s.openedUntil = b.now().Add(b.cooldown)
		s.failures = 0
		b.logger.Warn("circuit breaker opened",
			"key", key,
			"threshold", b.failureThreshold,
			"open_until", s.openedUntil,
			"error", cause,
		)
		return s.openedUntil, true
	}
	return time.Time{}, false
}

// State returns the current circuit state for one key.
func (b *CircuitBreaker) State(key string) CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := CircuitState{Key: key}
	s, ok := b.states[key]
	if !ok {
		return state
	}

	state.Failures = s.failures
	if s.openedUntil.After(b.now()) {
		state.Open = true
		state.OpenUntil = s.openedUntil.Format(time.RFC3339)
	}
	return state
}

// States returns the state of every key the breaker has seen.
func (b *CircuitBreaker) States() []CircuitState {
	b.mu.Lock()
	keys := make([]string, 0, len(b.states))
	for key := range b.states {
		keys = append(keys, key)
	}
	b.mu.Unlock()

	states := make([]CircuitState, 0, len(keys))
	for _, key := range keys {
		states = append(states, b.State(key))
	}
	return states
}

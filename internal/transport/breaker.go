// Copyright 2025 The Uplink Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"sync"
	"time"

	"github.com/uplinkhq/uplink/pkg/envelope"
)

// CircuitState is the breaker's current mode.
type CircuitState string

const (
	// StateClosed lets all requests through.
	StateClosed CircuitState = "closed"
	// StateOpen rejects requests until the sleep window elapses.
	StateOpen CircuitState = "open"
	// StateHalfOpen lets a limited number of probes through.
	StateHalfOpen CircuitState = "half-open"
)

// BreakerConfig tunes a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit (default 5).
	FailureThreshold int `yaml:"failure_threshold"`

	// SleepWindow is how long the circuit stays open before allowing
	// probes (default 30s).
	SleepWindow time.Duration `yaml:"sleep_window"`

	// HalfOpenProbes is how many concurrent probes half-open admits
	// (default 1).
	HalfOpenProbes int `yaml:"half_open_probes"`
}

// DefaultBreakerConfig returns the default breaker tuning.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SleepWindow:      30 * time.Second,
		HalfOpenProbes:   1,
	}
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SleepWindow <= 0 {
		c.SleepWindow = 30 * time.Second
	}
	if c.HalfOpenProbes <= 0 {
		c.HalfOpenProbes = 1
	}
	return c
}

// Breaker is a per-integration circuit breaker. All methods are safe for
// concurrent use.
type Breaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
	probes   int
}

// NewBreaker returns a closed breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	return &Breaker{cfg: cfg.withDefaults(), now: time.Now, state: StateClosed}
}

// State returns the current state, applying the open-to-half-open timeout.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshLocked()
	return b.state
}

// Allow reserves permission for one request. It returns a CIRCUIT_OPEN
// error when the breaker rejects the request. A granted permission must be
// paired with exactly one RecordSuccess or RecordFailure.
func (b *Breaker) Allow() *Error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshLocked()

	switch b.state {
	case StateOpen:
		return &Error{
			Code:       envelope.CodeCircuitOpen,
			Message:    "circuit breaker is open",
			RetryAfter: b.cfg.SleepWindow - b.now().Sub(b.openedAt),
		}
	case StateHalfOpen:
		if b.probes >= b.cfg.HalfOpenProbes {
			return &Error{Code: envelope.CodeCircuitOpen, Message: "circuit breaker is half-open, probe limit reached"}
		}
		b.probes++
		return nil
	default:
		return nil
	}
}

// RecordSuccess notes a successful request. In half-open it closes the
// circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.probes = 0
	}
	b.failures = 0
}

// RecordFailure notes a failed request. In half-open it re-opens the
// circuit immediately; in closed it opens once the threshold is hit.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.open()
	default:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.open()
		}
	}
}

func (b *Breaker) open() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.failures = 0
	b.probes = 0
}

// refreshLocked moves open to half-open after the sleep window.
func (b *Breaker) refreshLocked() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.SleepWindow {
		b.state = StateHalfOpen
		b.probes = 0
	}
}

// BreakerRegistry hands out one breaker per key (integration id). Safe for
// concurrent use.
type BreakerRegistry struct {
	cfg BreakerConfig

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewBreakerRegistry returns a registry creating breakers with cfg.
func NewBreakerRegistry(cfg BreakerConfig) *BreakerRegistry {
	return &BreakerRegistry{cfg: cfg.withDefaults(), breakers: make(map[string]*Breaker)}
}

// Get returns the breaker for key, creating it on first use.
func (r *BreakerRegistry) Get(key string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[key]
	if !ok {
		b = NewBreaker(r.cfg)
		r.breakers[key] = b
	}
	return b
}

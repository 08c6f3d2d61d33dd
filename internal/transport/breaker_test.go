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
	"testing"
	"time"

	"github.com/uplinkhq/uplink/pkg/envelope"
)

func testBreaker(threshold int, sleep time.Duration) (*Breaker, *time.Time) {
	b := NewBreaker(BreakerConfig{FailureThreshold: threshold, SleepWindow: sleep, HalfOpenProbes: 1})
	clock := time.Now()
	b.now = func() time.Time { return clock }
	return b, &clock
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b, _ := testBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		b.RecordFailure()
	}
	if b.State() != StateClosed {
		t.Fatalf("state = %v, want closed below threshold", b.State())
	}
	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open at threshold", b.State())
	}

	err := b.Allow()
	if err == nil || err.Code != envelope.CodeCircuitOpen {
		t.Fatalf("Allow() = %v, want CIRCUIT_OPEN", err)
	}
	if err.RetryAfter <= 0 {
		t.Error("open breaker should hint at the remaining cooldown")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b, _ := testBreaker(3, time.Minute)
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	if b.State() != StateClosed {
		t.Error("non-consecutive failures must not open the circuit")
	}
}

func TestBreakerHalfOpenProbeLifecycle(t *testing.T) {
	b, clock := testBreaker(1, time.Minute)
	b.RecordFailure()

	*clock = clock.Add(2 * time.Minute)
	if b.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open after sleep window", b.State())
	}

	if err := b.Allow(); err != nil {
		t.Fatalf("first probe rejected: %v", err)
	}
	if err := b.Allow(); err == nil {
		t.Fatal("second concurrent probe should be rejected")
	}

	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed after successful probe", b.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b, clock := testBreaker(1, time.Minute)
	b.RecordFailure()
	*clock = clock.Add(2 * time.Minute)

	if err := b.Allow(); err != nil {
		t.Fatalf("probe rejected: %v", err)
	}
	b.RecordFailure()
	if b.State() != StateOpen {
		t.Errorf("state = %v, want open after failed probe", b.State())
	}
}

func TestBreakerRegistryConcurrentGet(t *testing.T) {
	registry := NewBreakerRegistry(DefaultBreakerConfig())

	var wg sync.WaitGroup
	results := make([]*Breaker, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = registry.Get("integration-1")
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatal("registry must return the same breaker per key")
		}
	}
}

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

package refdata

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCacheHitSkipsSource(t *testing.T) {
	calls := 0
	cache := NewCache(SourceFunc(func(ctx context.Context, tenantID, key string) (any, error) {
		calls++
		return []any{"open", "closed"}, nil
	}), time.Minute)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		data, err := cache.Get(ctx, "t1", "statuses")
		if err != nil {
			t.Fatal(err)
		}
		if len(data.([]any)) != 2 {
			t.Fatalf("data = %v", data)
		}
	}
	if calls != 1 {
		t.Errorf("source called %d times, want 1", calls)
	}
}

func TestCacheExpiryRefetches(t *testing.T) {
	calls := 0
	cache := NewCache(SourceFunc(func(ctx context.Context, tenantID, key string) (any, error) {
		calls++
		return calls, nil
	}), time.Minute)

	clock := time.Now()
	cache.now = func() time.Time { return clock }

	ctx := context.Background()
	if _, err := cache.Get(ctx, "t1", "k"); err != nil {
		t.Fatal(err)
	}
	clock = clock.Add(2 * time.Minute)
	data, err := cache.Get(ctx, "t1", "k")
	if err != nil {
		t.Fatal(err)
	}
	if data != 2 {
		t.Errorf("data = %v, want refetched value 2", data)
	}
}

func TestCacheStaleIfError(t *testing.T) {
	fail := false
	cache := NewCache(SourceFunc(func(ctx context.Context, tenantID, key string) (any, error) {
		if fail {
			return nil, errors.New("upstream down")
		}
		return "fresh", nil
	}), time.Minute)

	clock := time.Now()
	cache.now = func() time.Time { return clock }

	ctx := context.Background()
	if _, err := cache.Get(ctx, "t1", "k"); err != nil {
		t.Fatal(err)
	}

	fail = true
	clock = clock.Add(2 * time.Minute)
	data, err := cache.Get(ctx, "t1", "k")
	if err != nil {
		t.Fatalf("expected stale fallback, got error %v", err)
	}
	if data != "fresh" {
		t.Errorf("data = %v, want stale entry", data)
	}

	// With no stale entry the error surfaces.
	if _, err := cache.Get(ctx, "t1", "other"); err == nil {
		t.Error("expected error for cold key while source is down")
	}
}

func TestCacheTenantIsolation(t *testing.T) {
	cache := NewCache(SourceFunc(func(ctx context.Context, tenantID, key string) (any, error) {
		return tenantID + ":" + key, nil
	}), time.Minute)

	ctx := context.Background()
	a, _ := cache.Get(ctx, "t1", "k")
	b, _ := cache.Get(ctx, "t2", "k")
	if a == b {
		t.Errorf("tenants must not share cache entries: %v == %v", a, b)
	}
}

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

// Package refdata serves cached reference datasets (status lists, project
// keys, user directories) that get attached to successful invocations for
// agent context. Lookups are always best-effort.
package refdata

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long a fetched dataset stays fresh.
const DefaultTTL = 5 * time.Minute

// Source fetches a reference dataset by tenant and key.
type Source interface {
	FetchReferenceData(ctx context.Context, tenantID, key string) (any, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, tenantID, key string) (any, error)

func (f SourceFunc) FetchReferenceData(ctx context.Context, tenantID, key string) (any, error) {
	return f(ctx, tenantID, key)
}

type entry struct {
	data      any
	fetchedAt time.Time
}

// Cache is a TTL cache in front of a Source. When the source fails and a
// stale entry exists, the stale entry is served.
type Cache struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
}

// NewCache wraps source with a TTL cache; ttl <= 0 selects DefaultTTL.
func NewCache(source Source, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		source:  source,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// Get returns the dataset for (tenantID, key). Fresh cache hits skip the
// source; misses and expired entries refetch; a failed refetch falls back to
// the stale entry if one exists.
func (c *Cache) Get(ctx context.Context, tenantID, key string) (any, error) {
	cacheKey := tenantID + "\x00" + key

	c.mu.RLock()
	cached, ok := c.entries[cacheKey]
	c.mu.RUnlock()

	if ok && c.now().Sub(cached.fetchedAt) < c.ttl {
		return cached.data, nil
	}

	data, err := c.source.FetchReferenceData(ctx, tenantID, key)
	if err != nil {
		if ok {
			return cached.data, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.entries[cacheKey] = entry{data: data, fetchedAt: c.now()}
	c.mu.Unlock()
	return data, nil
}

// Invalidate drops a cached dataset.
func (c *Cache) Invalidate(tenantID, key string) {
	c.mu.Lock()
	delete(c.entries, tenantID+"\x00"+key)
	c.mu.Unlock()
}

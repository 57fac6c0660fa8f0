// Copyright 2026 The Lattice Authors
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

package validation

import (
	"sync"
	"time"
)

// schemaCache memoizes compiled schemas by canonical key. Entries are never
// evicted individually: the descriptor set of an application is finite, so
// the cache converges to it and stays hot. [schemaCache.Clear] resets the
// whole cache; the optional janitor (non-production) does so periodically
// when the cache grows past a threshold, as a development safety valve
// against descriptor churn from hot reloads.
type schemaCache struct {
	mu      sync.RWMutex
	entries map[string]*compiledSchema

	stop     chan struct{}
	stopOnce sync.Once
}

func newSchemaCache() *schemaCache {
	return &schemaCache{
		entries: make(map[string]*compiledSchema),
		stop:    make(chan struct{}),
	}
}

// get returns the compiled schema for the descriptor, compiling on miss.
// The hit flag is false when compilation ran (or failed).
func (c *schemaCache) get(d *Descriptor) (*compiledSchema, bool, error) {
	key := d.CanonicalKey()

	c.mu.RLock()
	cs, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return cs, true, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have compiled while we waited for the lock.
	if cs, ok := c.entries[key]; ok {
		return cs, true, nil
	}

	cs, err := compile(d)
	if err != nil {
		return nil, false, err
	}
	c.entries[key] = cs
	return cs, false, nil
}

// size returns the number of cached schemas.
func (c *schemaCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// clear drops every cached schema.
func (c *schemaCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*compiledSchema)
}

// janitor clears the cache when it exceeds maxEntries, checking every
// interval. It runs until close is called.
func (c *schemaCache) janitor(interval time.Duration, maxEntries int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if c.size() > maxEntries {
				c.clear()
			}
		case <-c.stop:
			return
		}
	}
}

// close stops the janitor, if one is running.
func (c *schemaCache) close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

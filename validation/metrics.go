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
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics tracks pipeline counters with atomics; the hot path never takes a
// lock for accounting. When a Prometheus registerer is supplied the counters
// are mirrored there as well.
type metrics struct {
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	attempts    atomic.Int64
	failures    atomic.Int64

	promHits     prometheus.Counter
	promMisses   prometheus.Counter
	promAttempts prometheus.Counter
	promFailures prometheus.Counter
}

// Stats is a point-in-time snapshot of the pipeline counters.
type Stats struct {
	// CacheHits counts validations served by an already-compiled schema.
	CacheHits int64 `json:"cacheHits"`
	// CacheMisses counts validations that compiled a schema first.
	CacheMisses int64 `json:"cacheMisses"`
	// Attempts counts validation runs, successful or not.
	Attempts int64 `json:"attempts"`
	// Failures counts validation runs that produced field failures.
	Failures int64 `json:"failures"`
	// CacheSize is the current number of compiled schemas held.
	CacheSize int `json:"cacheSize"`
	// HitRate is CacheHits over lookups, 0 when no lookups happened.
	HitRate float64 `json:"hitRate"`
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{}
	if reg == nil {
		return m, nil
	}

	m.promHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "validation_schema_cache_hits_total",
		Help: "Validations served by an already-compiled schema.",
	})
	m.promMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "validation_schema_cache_misses_total",
		Help: "Validations that compiled a schema before running.",
	})
	m.promAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "validation_attempts_total",
		Help: "Validation runs, successful or not.",
	})
	m.promFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "validation_failures_total",
		Help: "Validation runs that produced field failures.",
	})

	for _, c := range []prometheus.Collector{m.promHits, m.promMisses, m.promAttempts, m.promFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) hit() {
	m.cacheHits.Add(1)
	if m.promHits != nil {
		m.promHits.Inc()
	}
}

func (m *metrics) miss() {
	m.cacheMisses.Add(1)
	if m.promMisses != nil {
		m.promMisses.Inc()
	}
}

func (m *metrics) attempt() {
	m.attempts.Add(1)
	if m.promAttempts != nil {
		m.promAttempts.Inc()
	}
}

func (m *metrics) failure() {
	m.failures.Add(1)
	if m.promFailures != nil {
		m.promFailures.Inc()
	}
}

// snapshot captures the counters plus the supplied cache size.
func (m *metrics) snapshot(cacheSize int) Stats {
	hits := m.cacheHits.Load()
	misses := m.cacheMisses.Load()
	s := Stats{
		CacheHits:   hits,
		CacheMisses: misses,
		Attempts:    m.attempts.Load(),
		Failures:    m.failures.Load(),
		CacheSize:   cacheSize,
	}
	if lookups := hits + misses; lookups > 0 {
		s.HitRate = float64(hits) / float64(lookups)
	}
	return s
}

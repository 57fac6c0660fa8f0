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
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lattice-dev/lattice/logging"
)

const (
	defaultMaxBodyBytes    = 1 << 20
	defaultJanitorInterval = 10 * time.Minute
	defaultJanitorMax      = 50
)

// Option defines functional options for the validation pipeline.
type Option func(*config)

// config holds the pipeline configuration.
type config struct {
	logger          *logging.Config
	environment     string
	strict          bool
	sanitize        bool
	verboseErrors   bool
	verboseSet      bool
	abortEarly      bool
	maxBodyBytes    int64
	registerer      prometheus.Registerer
	janitorEnabled  bool
	janitorSet      bool
	janitorInterval time.Duration
	janitorMax      int
}

func defaultConfig() *config {
	return &config{
		strict:          true,
		sanitize:        true,
		maxBodyBytes:    defaultMaxBodyBytes,
		janitorInterval: defaultJanitorInterval,
		janitorMax:      defaultJanitorMax,
	}
}

// resolveDefaults applies environment-driven defaults after all options ran,
// so option ordering never matters.
func (c *config) resolveDefaults() {
	production := c.environment == "production"
	if !c.verboseSet {
		c.verboseErrors = !production
	}
	if !c.janitorSet {
		c.janitorEnabled = !production
	}
}

// WithLogger sets the structured logger used for pipeline diagnostics.
func WithLogger(logger *logging.Config) Option {
	return func(c *config) { c.logger = logger }
}

// WithEnvironment sets the deployment environment. Production disables
// verbose error payloads and the cache janitor unless overridden.
func WithEnvironment(env string) Option {
	return func(c *config) { c.environment = env }
}

// WithStrict controls the unknown-key policy for descriptors that do not
// set it themselves: strict pipelines (the default) reject undeclared keys,
// non-strict pipelines accept them.
func WithStrict(enabled bool) Option {
	return func(c *config) { c.strict = enabled }
}

// WithSanitize toggles the deep input sanitizer. Enabled by default.
func WithSanitize(enabled bool) Option {
	return func(c *config) { c.sanitize = enabled }
}

// WithVerboseErrors toggles the debug block on rendered validation errors.
// Defaults to enabled outside production.
func WithVerboseErrors(enabled bool) Option {
	return func(c *config) { c.verboseErrors = enabled; c.verboseSet = true }
}

// WithAbortEarly stops collecting failures after the first one.
func WithAbortEarly(enabled bool) Option {
	return func(c *config) { c.abortEarly = enabled }
}

// WithMaxBodyBytes caps the request body size read by [Pipeline.Body].
func WithMaxBodyBytes(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

// WithMetricsRegisterer mirrors the pipeline counters into a Prometheus
// registry. Without it the counters remain in-process only.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(c *config) { c.registerer = reg }
}

// WithCacheJanitor toggles the periodic cache reset. Defaults to enabled
// outside production.
func WithCacheJanitor(enabled bool) Option {
	return func(c *config) { c.janitorEnabled = enabled; c.janitorSet = true }
}

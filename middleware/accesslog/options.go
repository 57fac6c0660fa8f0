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

package accesslog

import "github.com/lattice-dev/lattice/logging"

// Format selects the emission body for access records. The field set is
// identical across formats; only the rendering differs.
type Format string

const (
	// FormatJSON carries the record as structured fields (production default).
	FormatJSON Format = "json"
	// FormatDev is a single interpolated line with every field (debug default
	// in non-production).
	FormatDev Format = "dev"
	// FormatCombined is a concise line: method, path, status, bytes, duration.
	FormatCombined Format = "combined"
)

// Option defines functional options for the access-log middleware.
type Option func(*config)

// config holds access-log configuration.
type config struct {
	logger *logging.Config

	environment      string
	format           Format
	formatSet        bool
	healthPath       string
	skipHealth       bool
	skipHealthSet    bool
	skipStaticAssets bool
	skipOptions      bool
}

// resolveDefaults derives environment-dependent defaults once all options
// are applied, so option ordering does not matter.
func (c *config) resolveDefaults() {
	if c.environment == "production" {
		if !c.skipHealthSet {
			c.skipHealth = true
		}
		if !c.formatSet {
			c.format = FormatJSON
		}
		return
	}
	if !c.formatSet && c.logger != nil && c.logger.Level() <= logging.LevelDebug {
		c.format = FormatDev
	}
}

// defaultConfig applies the non-production defaults; [WithEnvironment]
// derives the rest.
func defaultConfig() *config {
	return &config{
		format:           FormatCombined,
		healthPath:       "/health",
		skipHealth:       false,
		skipStaticAssets: true,
		skipOptions:      true,
	}
}

// WithLogger sets the structured logger that receives access records.
// Without a logger the middleware only maintains the request context.
func WithLogger(logger *logging.Config) Option {
	return func(c *config) { c.logger = logger }
}

// WithEnvironment derives format and skip defaults from the environment:
// production emits JSON and skips the health path; non-production at debug
// level emits the interpolated dev line.
func WithEnvironment(env string) Option {
	return func(c *config) { c.environment = env }
}

// WithFormat overrides the emission format regardless of environment.
func WithFormat(f Format) Option {
	return func(c *config) {
		c.format = f
		c.formatSet = true
	}
}

// WithSkipHealth controls the health-path skip rule, overriding the
// production default.
func WithSkipHealth(skip bool) Option {
	return func(c *config) {
		c.skipHealth = skip
		c.skipHealthSet = true
	}
}

// WithHealthPath overrides the path matched by the health skip rule.
func WithHealthPath(path string) Option {
	return func(c *config) {
		if path != "" {
			c.healthPath = path
		}
	}
}

// WithSkipStaticAssets controls the static-asset extension skip rule.
func WithSkipStaticAssets(skip bool) Option {
	return func(c *config) { c.skipStaticAssets = skip }
}

// WithSkipOptions controls the OPTIONS skip rule. OPTIONS requests are
// still logged when the logger level is debug.
func WithSkipOptions(skip bool) Option {
	return func(c *config) { c.skipOptions = skip }
}

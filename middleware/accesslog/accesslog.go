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

// Package accesslog emits exactly one record per completed HTTP request
// through the structured logger, with skip rules and status-derived
// severity.
package accesslog

import (
	"fmt"
	"math"
	"net/http"
	"regexp"
	"time"

	"github.com/lattice-dev/lattice/logging"
	"github.com/lattice-dev/lattice/middleware/requestctx"
)

// staticAssetPattern matches request paths for static assets, which are
// skipped by default.
var staticAssetPattern = regexp.MustCompile(`(?i)\.(css|js|png|jpg|jpeg|gif|ico|svg|woff|woff2|ttf|eot)$`)

// New creates the access-log middleware.
//
// The pre-hook stamps the request-context start instant and ensures a
// correlation id; the post-hook runs after the handler returns, when the
// wrapped response writer holds the final status and byte count, and emits
// the record. A panic inside the emission path is logged and never
// propagates.
//
//	r.Use(accesslog.New(accesslog.WithLogger(logger)))
func New(opts ...Option) func(http.Handler) http.Handler {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.resolveDefaults()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Pre-hook: start instant and correlation id.
			r, rc := requestctx.Ensure(r)
			w.Header().Set(requestctx.HeaderName, rc.ID)

			var ss statusSizer
			if existing, ok := w.(statusSizer); ok {
				ss = existing
			} else {
				wrapped := &responseWriter{ResponseWriter: w}
				w = wrapped
				ss = wrapped
			}

			next.ServeHTTP(w, r)

			// Post-hook: response fully produced.
			cfg.emit(r, rc, ss)
		})
	}
}

// emit applies the skip rules and writes the access record. Failures inside
// the access logger are recovered locally.
func (cfg *config) emit(r *http.Request, rc *requestctx.Context, ss statusSizer) {
	defer func() {
		if v := recover(); v != nil && cfg.logger != nil {
			cfg.logger.ErrorWithStack("access logger failure", fmt.Errorf("%v", v))
		}
	}()

	if cfg.logger == nil || cfg.skip(r) {
		return
	}

	status := ss.StatusCode()
	durationMs := roundMillis(rc.Duration())

	level := logging.LevelInfo
	switch {
	case status >= http.StatusInternalServerError:
		level = logging.LevelError
	case status >= http.StatusBadRequest:
		level = logging.LevelWarn
	}

	userAgent := r.UserAgent()
	if userAgent == "" {
		userAgent = "Unknown"
	}
	remoteUser := ""
	if u, _, ok := r.BasicAuth(); ok {
		remoteUser = u
	}

	switch cfg.format {
	case FormatDev:
		cfg.logger.Log(level, fmt.Sprintf("%s %s %s %d %db - %.2fms [%s] %q %q %q",
			r.Method, r.URL.RequestURI(), r.Proto, status, ss.Size(), durationMs,
			rc.ID, r.RemoteAddr, r.Referer(), userAgent))
	case FormatCombined:
		cfg.logger.Log(level, fmt.Sprintf("%s %s %d %db %.2fms",
			r.Method, r.URL.RequestURI(), status, ss.Size(), durationMs),
			"request_id", rc.ID)
	default: // FormatJSON
		cfg.logger.Log(level, "access",
			"timestamp", time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
			"request_id", rc.ID,
			"method", r.Method,
			"path", r.URL.RequestURI(),
			"proto", r.Proto,
			"status", status,
			"bytes", ss.Size(),
			"duration_ms", durationMs,
			"remote_addr", r.RemoteAddr,
			"remote_user", remoteUser,
			"referrer", r.Referer(),
			"user_agent", userAgent,
		)
	}
}

// skip evaluates the skip rules in order; the first match wins.
func (cfg *config) skip(r *http.Request) bool {
	if cfg.skipHealth && r.URL.Path == cfg.healthPath {
		return true
	}
	if cfg.skipStaticAssets && staticAssetPattern.MatchString(r.URL.Path) {
		return true
	}
	if cfg.skipOptions && r.Method == http.MethodOptions && cfg.logger.Level() > logging.LevelDebug {
		return true
	}
	return false
}

// roundMillis renders a duration as milliseconds with two decimal places.
func roundMillis(d time.Duration) float64 {
	ms := float64(d.Nanoseconds()) / 1e6
	return math.Round(ms*100) / 100
}

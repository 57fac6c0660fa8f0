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

// Package recovery catches panics escaping request handlers, logs them at
// error severity with the captured stack, and answers 500. It is the
// process-level uncaught-exception hook expressed as middleware; shutdown
// remains the application's decision.
package recovery

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/lattice-dev/lattice/logging"
	"github.com/lattice-dev/lattice/middleware/requestctx"
)

// Option defines functional options for the recovery middleware.
type Option func(*config)

// config holds the recovery middleware configuration.
type config struct {
	logger    *logging.Config
	stackSize int
	handler   func(w http.ResponseWriter, r *http.Request, v any)
}

// defaultConfig returns the default configuration.
func defaultConfig() *config {
	return &config{
		stackSize: 4 << 10,
		handler:   defaultHandler,
	}
}

// defaultHandler answers 500 with a minimal JSON body.
func defaultHandler(w http.ResponseWriter, r *http.Request, _ any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]any{
		"type":       "InternalError",
		"message":    "internal server error",
		"statusCode": http.StatusInternalServerError,
		"id":         requestctx.CorrelationID(r.Context()),
	})
}

// WithLogger sets the structured logger that receives panic records.
func WithLogger(logger *logging.Config) Option {
	return func(c *config) { c.logger = logger }
}

// WithStackSize caps the captured stack trace in bytes.
func WithStackSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.stackSize = n
		}
	}
}

// WithHandler overrides the response written after a recovered panic.
func WithHandler(fn func(w http.ResponseWriter, r *http.Request, v any)) Option {
	return func(c *config) {
		if fn != nil {
			c.handler = fn
		}
	}
}

// New returns a middleware that recovers panics from downstream handlers.
// Register it early in the chain, inside the access logger so the access
// record still observes the 500.
func New(opts ...Option) func(http.Handler) http.Handler {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}

				stack := debug.Stack()
				if len(stack) > cfg.stackSize {
					stack = stack[:cfg.stackSize]
				}
				if cfg.logger != nil {
					logging.FromContext(r.Context(), cfg.logger).Error("panic recovered",
						"error", fmt.Sprint(v),
						"stack", string(stack),
						"method", r.Method,
						"path", r.URL.Path,
					)
				}
				cfg.handler(w, r, v)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

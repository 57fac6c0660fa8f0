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

// Package validation turns declarative field descriptors into HTTP
// middleware. Descriptors are lowered to JSON Schema once, memoized by a
// canonical key, and validated on every request with coercion, defaults,
// and deep sanitization applied first.
//
//	pipeline := validation.MustNew(validation.WithLogger(logger))
//
//	createUser := validation.NewDescriptor(validation.Fields{
//		"name":  validation.String().MinLen(2).MaxLen(100).Required(),
//		"email": validation.Email().Required(),
//		"age":   validation.Int().Min(0).Max(150).Coerce(),
//	})
//
//	r.Handle("/users", pipeline.Body(createUser)(handler)).Methods("POST")
package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lattice-dev/lattice/logging"
	"github.com/lattice-dev/lattice/middleware/requestctx"
)

// Predicate is a custom cross-field check run after schema validation. The
// value map holds the validated output. Returning an error rejects the
// request; errors implementing HTTPStatus() int choose their status code,
// everything else renders as 400.
type Predicate func(ctx context.Context, value map[string]any) error

// Pipeline validates request bodies, query strings, and path parameters
// against descriptors. A Pipeline is safe for concurrent use and is meant to
// be created once per application.
type Pipeline struct {
	cfg     *config
	cache   *schemaCache
	metrics *metrics
}

// New creates a validation pipeline.
func New(opts ...Option) (*Pipeline, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.resolveDefaults()

	m, err := newMetrics(cfg.registerer)
	if err != nil {
		return nil, fmt.Errorf("register validation metrics: %w", err)
	}

	p := &Pipeline{
		cfg:     cfg,
		cache:   newSchemaCache(),
		metrics: m,
	}
	if cfg.janitorEnabled {
		go p.cache.janitor(cfg.janitorInterval, cfg.janitorMax)
	}
	return p, nil
}

// MustNew is like [New] but panics on error. Intended for program startup.
func MustNew(opts ...Option) *Pipeline {
	p, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("validation: %v", err))
	}
	return p
}

// Close stops the pipeline's background work.
func (p *Pipeline) Close() {
	p.cache.close()
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return p.metrics.snapshot(p.cache.size())
}

// ClearCache drops all compiled schemas. Subsequent validations recompile.
func (p *Pipeline) ClearCache() {
	p.cache.clear()
}

// CacheSize returns the number of compiled schemas currently held.
func (p *Pipeline) CacheSize() int {
	return p.cache.size()
}

// effective resolves the descriptor against the pipeline's unknown-key
// policy: a non-strict pipeline accepts undeclared keys on descriptors that
// did not opt in themselves. Called once per middleware construction so the
// relaxed variant keeps a stable canonical key.
func (p *Pipeline) effective(d *Descriptor) *Descriptor {
	if d == nil || p.cfg.strict || d.allowUnknown {
		return d
	}
	return &Descriptor{
		fields:       d.fields,
		allowUnknown: true,
		stripUnknown: d.stripUnknown,
	}
}

// validate runs the per-request algorithm for one request part and returns
// the validated output or a categorized error.
func (p *Pipeline) validate(r *http.Request, category Category, d *Descriptor, input map[string]any) (map[string]any, *Error) {
	p.metrics.attempt()

	cs, hit, err := p.cache.get(d)
	if hit {
		p.metrics.hit()
	} else {
		p.metrics.miss()
	}
	if err != nil {
		// A descriptor that fails to compile is a programming error; surface
		// it loudly instead of silently accepting input.
		p.metrics.failure()
		if p.cfg.logger != nil {
			p.cfg.logger.Error("descriptor compilation failed",
				"category", string(category), "error", err.Error())
		}
		verr := NewError(category, []FieldFailure{{Kind: "schema.compile", Message: err.Error()}})
		verr.status = http.StatusInternalServerError
		verr.CorrelationID = requestctx.CorrelationID(r.Context())
		return nil, verr
	}

	if p.cfg.sanitize {
		input = sanitize(input, d.fields)
	}

	output, failures := cs.Validate(input, p.cfg.abortEarly)
	if len(failures) > 0 {
		p.metrics.failure()
		verr := NewError(category, failures)
		verr.CorrelationID = requestctx.CorrelationID(r.Context())
		return nil, verr
	}
	return output, nil
}

// renderError writes the validation error in the stable wire shape. Nothing
// is written when the client already went away.
func (p *Pipeline) renderError(w http.ResponseWriter, r *http.Request, verr *Error) {
	if r.Context().Err() != nil {
		return
	}

	if p.cfg.logger != nil {
		logging.FromContext(r.Context(), p.cfg.logger).Warn("request validation failed",
			"category", string(verr.Category),
			"fields", len(verr.Failures),
			"method", r.Method,
			"path", r.URL.Path,
		)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(verr.HTTPStatus())

	if err := json.NewEncoder(w).Encode(verr.wireBody(p.cfg.verboseErrors)); err != nil && p.cfg.logger != nil {
		p.cfg.logger.Error("writing validation error response", "error", err.Error())
	}
}

// runPredicates executes custom checks against the validated value. A panic
// inside a predicate is converted to a 500-status custom-category error.
func (p *Pipeline) runPredicates(r *http.Request, value map[string]any, checks []Predicate) (verr *Error) {
	defer func() {
		if v := recover(); v != nil {
			if p.cfg.logger != nil {
				p.cfg.logger.ErrorWithStack("validation predicate panicked", fmt.Errorf("%v", v))
			}
			verr = NewError(CategoryCustom, []FieldFailure{{
				Kind:    "predicate.panic",
				Message: "internal validation error",
			}})
			verr.status = http.StatusInternalServerError
			verr.CorrelationID = requestctx.CorrelationID(r.Context())
		}
	}()

	for _, check := range checks {
		if err := check(r.Context(), value); err != nil {
			verr = NewError(CategoryCustom, []FieldFailure{{
				Kind:    "predicate",
				Message: err.Error(),
			}})
			if sc, ok := err.(statusCarrier); ok {
				verr.status = sc.HTTPStatus()
			}
			verr.CorrelationID = requestctx.CorrelationID(r.Context())
			return verr
		}
	}
	return nil
}

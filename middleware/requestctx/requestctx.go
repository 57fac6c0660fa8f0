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

// Package requestctx carries per-request identity and timing: a correlation
// id, a monotonic start instant, and a metadata bag shared by the access
// logger and the validation pipeline.
package requestctx

import (
	"context"
	"crypto/rand"
	"math/big"
	"net/http"
	"strconv"
	"time"
)

// HeaderName is the correlation id header accepted inbound and always set
// on responses.
const HeaderName = "X-Request-Id"

// maxInboundIDLength caps accepted client-supplied correlation ids.
const maxInboundIDLength = 128

// ctxKey is the private context key type for this package.
type ctxKey struct{}

// Context is the per-request container. It is created by the first
// middleware that touches the request and owned by that request's handling
// goroutine; it is never shared across requests.
type Context struct {
	// ID is the correlation id: accepted from the inbound X-Request-Id
	// header when syntactically acceptable, generated otherwise.
	ID string

	// Start is the instant the first middleware observed the request,
	// taken with monotonic clock readings so durations are drift-free.
	Start time.Time

	meta map[string]any
}

// Set stores an ad-hoc annotation on the request.
func (rc *Context) Set(key string, value any) {
	if rc.meta == nil {
		rc.meta = make(map[string]any)
	}
	rc.meta[key] = value
}

// Get returns an annotation previously stored with Set.
func (rc *Context) Get(key string) (any, bool) {
	v, ok := rc.meta[key]
	return v, ok
}

// Duration returns the elapsed time since the request was first observed.
func (rc *Context) Duration() time.Duration {
	return time.Since(rc.Start)
}

// From returns the request context stored in ctx, or nil.
func From(ctx context.Context) *Context {
	rc, _ := ctx.Value(ctxKey{}).(*Context)
	return rc
}

// CorrelationID returns the correlation id stored in ctx, or "".
func CorrelationID(ctx context.Context) string {
	if rc := From(ctx); rc != nil {
		return rc.ID
	}
	return ""
}

// Ensure returns the request bound to an existing request context, creating
// one when absent. Creation is idempotent: a second call returns the request
// unchanged with the existing context.
func Ensure(r *http.Request) (*http.Request, *Context) {
	if rc := From(r.Context()); rc != nil {
		return r, rc
	}

	rc := &Context{
		ID:    inboundOrNewID(r),
		Start: time.Now(),
	}
	return r.WithContext(context.WithValue(r.Context(), ctxKey{}, rc)), rc
}

// New returns a middleware that installs the request context and echoes the
// correlation id on the response.
//
// It is intended to run first in the chain so that the start instant covers
// the whole pipeline:
//
//	r.Use(requestctx.New())
func New() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, rc := Ensure(r)
			w.Header().Set(HeaderName, rc.ID)
			next.ServeHTTP(w, r)
		})
	}
}

// inboundOrNewID accepts the client-supplied correlation id when it is
// printable ASCII of acceptable length, and generates one otherwise.
func inboundOrNewID(r *http.Request) string {
	if id := r.Header.Get(HeaderName); acceptableID(id) {
		return id
	}
	return NewID()
}

// acceptableID reports whether an inbound id is printable ASCII and at most
// 128 characters.
func acceptableID(id string) bool {
	if id == "" || len(id) > maxInboundIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// base36Alphabet spells the digits of generated ids.
const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewID generates a correlation id: 9 base-36 characters of random entropy
// concatenated with the base-36 unix-millisecond timestamp, at least 17
// characters total.
func NewID() string {
	buf := make([]byte, 0, 20)
	for i := 0; i < 9; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(36))
		if err != nil {
			// crypto/rand failure is effectively fatal elsewhere; fall back
			// to a clock-derived digit rather than panicking in a request.
			n = big.NewInt(time.Now().UnixNano() % 36)
		}
		buf = append(buf, base36Alphabet[n.Int64()])
	}
	buf = strconv.AppendInt(buf, time.Now().UnixMilli(), 36)
	return string(buf)
}

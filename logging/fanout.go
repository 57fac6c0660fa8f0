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

package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// fanoutHandler dispatches each record to every sink whose minimum severity
// admits it. A record is delivered to an admitting sink exactly once; a sink
// failure is reported on stderr and never propagates to the caller.
type fanoutHandler struct {
	sinks []slog.Handler
}

// newFanoutHandler wraps the given sinks. At least one sink is required.
func newFanoutHandler(sinks ...slog.Handler) *fanoutHandler {
	return &fanoutHandler{sinks: sinks}
}

// Enabled reports true when any sink admits the level.
func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range h.sinks {
		if s.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle fans the record out. Records are cloned per sink because handlers
// may consume the attribute iterator.
func (h *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, s := range h.sinks {
		if !s.Enabled(ctx, r.Level) {
			continue
		}
		if err := s.Handle(ctx, r.Clone()); err != nil {
			// Sink failures are recovered locally: fall back to stderr.
			fmt.Fprintf(os.Stderr, "lattice/logging: sink write failed: %v: %s\n", err, r.Message)
		}
	}
	return nil
}

// WithAttrs implements [slog.Handler.WithAttrs].
func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sinks := make([]slog.Handler, len(h.sinks))
	for i, s := range h.sinks {
		sinks[i] = s.WithAttrs(attrs)
	}
	return &fanoutHandler{sinks: sinks}
}

// WithGroup implements [slog.Handler.WithGroup].
func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	sinks := make([]slog.Handler, len(h.sinks))
	for i, s := range h.sinks {
		sinks[i] = s.WithGroup(name)
	}
	return &fanoutHandler{sinks: sinks}
}

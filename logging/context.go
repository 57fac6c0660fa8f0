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
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/lattice-dev/lattice/middleware/requestctx"
)

// Correlation field names.
const (
	fieldRequestID = "request_id"
	fieldTraceID   = "trace_id"
	fieldSpanID    = "span_id"
)

// FromContext returns a request-scoped slog.Logger: the configured logger
// with the correlation id (and, when tracing is active, trace/span ids)
// attached to every record. This is how handler-side records join the
// access record for the same request.
func FromContext(ctx context.Context, cfg *Config) *slog.Logger {
	logger := cfg.Logger()

	if id := requestctx.CorrelationID(ctx); id != "" {
		logger = logger.With(fieldRequestID, id)
	}

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		logger = logger.With(
			fieldTraceID, sc.TraceID().String(),
			fieldSpanID, sc.SpanID().String(),
		)
	}

	return logger
}

// ContextLogger is a request-scoped logger façade used where a [Logger]
// interface value is expected.
type ContextLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

// NewContextLogger wraps cfg with the correlation attributes from ctx.
func NewContextLogger(ctx context.Context, cfg *Config) *ContextLogger {
	return &ContextLogger{logger: FromContext(ctx, cfg), ctx: ctx}
}

// Logger returns the underlying [slog.Logger].
func (cl *ContextLogger) Logger() *slog.Logger {
	return cl.logger
}

// With returns a [slog.Logger] with additional attributes.
func (cl *ContextLogger) With(args ...any) *slog.Logger {
	return cl.logger.With(args...)
}

// Debug logs a debug message with context.
func (cl *ContextLogger) Debug(msg string, args ...any) {
	cl.logger.DebugContext(cl.ctx, msg, args...)
}

// Info logs an info message with context.
func (cl *ContextLogger) Info(msg string, args ...any) {
	cl.logger.InfoContext(cl.ctx, msg, args...)
}

// Warn logs a warning message with context.
func (cl *ContextLogger) Warn(msg string, args ...any) {
	cl.logger.WarnContext(cl.ctx, msg, args...)
}

// Error logs an error message with context.
func (cl *ContextLogger) Error(msg string, args ...any) {
	cl.logger.ErrorContext(cl.ctx, msg, args...)
}

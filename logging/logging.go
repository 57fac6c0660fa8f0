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

// Package logging provides the structured application logger: leveled
// records with service metadata fanned out to a console sink and optional
// rotating-file sinks, plus a textual-line adapter for external producers.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level represents a log level.
type Level = slog.Level

// Log levels re-exported for callers.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Logger is the interface consumed by middleware and handlers.
type Logger interface {
	// Debug logs a debug message with structured attributes
	Debug(msg string, args ...any)

	// Info logs an informational message with structured attributes
	Info(msg string, args ...any)

	// Warn logs a warning message with structured attributes
	Warn(msg string, args ...any)

	// Error logs an error message with structured attributes
	Error(msg string, args ...any)
}

// Package-level cached context reused across log calls. slog requires a
// context but the logger does not use it for cancellation.
var bgCtx = context.Background()

// FileOptions configures the rotating-file sinks. When enabled, two sinks
// are produced: a general sink at info-and-above and an error sink at
// error-only, each with its own segment series and audit ledger.
type FileOptions struct {
	Enabled     bool
	Directory   string
	DatePattern string        // Go time layout for %DATE%, default "2006-01-02"
	MaxBytes    int64         // per-segment size cap, 0 = unbounded
	MaxFiles    int           // rotated segments to retain, 0 = all
	MaxAge      time.Duration // duration-based retention, 0 = unbounded
	Compress    bool          // gzip rotated segments
	Symlink     bool          // maintain app.log / error.log symlinks
}

// Config holds the logger configuration and its live state.
//
// Thread-safety: all logging methods are safe for concurrent use. A single
// record is written atomically per sink (each sink performs one Write per
// record and file sinks serialize writes under a mutex).
type Config struct {
	handlerType    HandlerType
	output         io.Writer
	level          Level
	consoleEnabled bool

	serviceName string
	environment string

	fileOpts FileOptions

	logger         atomic.Pointer[slog.Logger]
	levelVar       *slog.LevelVar
	mu             sync.Mutex // protects initialization and reconfiguration
	isShuttingDown atomic.Bool

	closers []io.Closer
	writers []*RotatingWriter
}

// Option is a functional option for configuring the logger.
type Option func(*Config)

// defaultConfig returns the default configuration.
func defaultConfig() *Config {
	return &Config{
		handlerType:    ConsoleHandler,
		output:         os.Stderr,
		level:          LevelInfo,
		consoleEnabled: true,
		serviceName:    "lattice",
		environment:    "development",
		levelVar:       new(slog.LevelVar),
	}
}

// New creates a logger from the given options.
//
// Every record carries the service name and environment tag. The console
// sink formats human-readable lines by default and JSON in production; file
// sinks always format JSON.
func New(opts ...Option) (*Config, error) {
	cfg := defaultConfig()

	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.initialize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustNew creates a logger or panics on error.
func MustNew(opts ...Option) *Config {
	cfg, err := New(opts...)
	if err != nil {
		panic("logging initialization failed: " + err.Error())
	}
	return cfg
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.output == nil {
		return ErrNilOutput
	}
	if !c.consoleEnabled && !c.fileOpts.Enabled {
		return ErrNoSinks
	}
	if c.serviceName == "" {
		return errors.New("service name cannot be empty")
	}
	if c.handlerType != JSONHandler && c.handlerType != ConsoleHandler {
		return fmt.Errorf("%w: %s", ErrInvalidHandler, c.handlerType)
	}
	if c.fileOpts.Enabled && c.fileOpts.Directory == "" {
		return errors.New("file logging requires a directory")
	}
	return nil
}

// initialize builds the sinks and installs the fan-out logger.
func (c *Config) initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.levelVar.Set(c.level)

	var sinks []slog.Handler

	if c.consoleEnabled {
		switch c.handlerType {
		case JSONHandler:
			sinks = append(sinks, newJSONHandler(c.output, c.levelVar))
		case ConsoleHandler:
			sinks = append(sinks, newConsoleHandler(c.output, &slog.HandlerOptions{Level: c.levelVar}))
		}
	}

	if c.fileOpts.Enabled {
		appSink, errSink, err := c.buildFileSinks()
		if err != nil {
			c.closeWriters()
			return err
		}
		sinks = append(sinks, appSink, errSink)
	}

	handler := slog.Handler(newFanoutHandler(sinks...))
	logger := slog.New(handler).With(
		"service", c.serviceName,
		"environment", c.environment,
	)
	c.logger.Store(logger)
	return nil
}

// buildFileSinks opens the general (info+) and error-only rotating sinks.
func (c *Config) buildFileSinks() (appSink, errSink slog.Handler, err error) {
	pattern := c.fileOpts.DatePattern
	if pattern == "" {
		pattern = "2006-01-02"
	}

	appWriter, err := NewRotatingWriter(RotateOptions{
		Directory:  c.fileOpts.Directory,
		Pattern:    "app-%DATE%.log",
		DateFormat: pattern,
		MaxBytes:   c.fileOpts.MaxBytes,
		MaxFiles:   c.fileOpts.MaxFiles,
		MaxAge:     c.fileOpts.MaxAge,
		Compress:   c.fileOpts.Compress,
		Symlink:    c.fileOpts.Symlink,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("general file sink: %w", err)
	}
	c.closers = append(c.closers, appWriter)
	c.writers = append(c.writers, appWriter)

	errWriter, err := NewRotatingWriter(RotateOptions{
		Directory:  c.fileOpts.Directory,
		Pattern:    "error-%DATE%.log",
		DateFormat: pattern,
		MaxBytes:   c.fileOpts.MaxBytes,
		MaxFiles:   c.fileOpts.MaxFiles,
		MaxAge:     c.fileOpts.MaxAge,
		Compress:   c.fileOpts.Compress,
		Symlink:    c.fileOpts.Symlink,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("error file sink: %w", err)
	}
	c.closers = append(c.closers, errWriter)
	c.writers = append(c.writers, errWriter)

	appLevel := LevelInfo
	if c.level > LevelInfo {
		appLevel = c.level
	}
	return newJSONHandler(appWriter, appLevel), newJSONHandler(errWriter, LevelError), nil
}

// closeWriters closes any opened file writers. Callers must hold c.mu.
func (c *Config) closeWriters() {
	for _, cl := range c.closers {
		cl.Close()
	}
	c.closers = nil
	c.writers = nil
}

// Logger returns the underlying slog.Logger. Safe for concurrent access.
func (c *Config) Logger() *slog.Logger {
	return c.logger.Load()
}

// With returns a logger with additional attributes.
func (c *Config) With(args ...any) *slog.Logger {
	return c.Logger().With(args...)
}

// log consolidates the shutdown and level checks for all severities.
func (c *Config) log(level slog.Level, msg string, args ...any) {
	if c.isShuttingDown.Load() {
		return
	}

	logger := c.Logger()
	if !logger.Enabled(bgCtx, level) {
		return
	}

	logger.Log(bgCtx, level, msg, args...)
}

// Debug logs a debug message with structured attributes.
func (c *Config) Debug(msg string, args ...any) {
	c.log(slog.LevelDebug, msg, args...)
}

// Info logs an informational message with structured attributes.
func (c *Config) Info(msg string, args ...any) {
	c.log(slog.LevelInfo, msg, args...)
}

// Warn logs a warning message with structured attributes.
func (c *Config) Warn(msg string, args ...any) {
	c.log(slog.LevelWarn, msg, args...)
}

// Error logs an error message with structured attributes.
func (c *Config) Error(msg string, args ...any) {
	c.log(slog.LevelError, msg, args...)
}

// Log emits a record at an arbitrary level; used by the access logger's
// status-to-severity mapping.
func (c *Config) Log(level Level, msg string, args ...any) {
	c.log(level, msg, args...)
}

// ErrorWithStack logs an error record carrying a captured stack string.
func (c *Config) ErrorWithStack(msg string, err error, extra ...any) {
	attrs := make([]any, 0, len(extra)+4)
	attrs = append(attrs, "error", err.Error(), fieldStack, captureStack(3))
	attrs = append(attrs, extra...)
	c.log(slog.LevelError, msg, attrs...)
}

// CapturePanic logs a recovered panic value at error severity with its
// stack and reports whether a panic was in flight. It never terminates the
// process; shutdown is the application's decision.
//
// Usage:
//
//	defer func() { logger.CapturePanic(recover()) }()
func (c *Config) CapturePanic(v any) bool {
	if v == nil {
		return false
	}
	c.log(slog.LevelError, "panic recovered",
		"error", fmt.Sprint(v),
		fieldStack, captureStack(4),
	)
	return true
}

// Go runs fn on a new goroutine with panic capture, the analogue of an
// unhandled-rejection hook for background work.
func (c *Config) Go(fn func()) {
	go func() {
		defer func() { c.CapturePanic(recover()) }()
		fn()
	}()
}

// captureStack captures a stack trace, skipping the given number of frames.
func captureStack(skip int) string {
	var buf strings.Builder
	pcs := make([]uintptr, 16)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		fmt.Fprintf(&buf, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return buf.String()
}

// SetLevel changes the minimum log level at runtime. File sinks keep their
// fixed floors (info+ general, error-only error sink).
func (c *Config) SetLevel(level Level) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.level = level
	c.levelVar.Set(level)
}

// Level returns the current minimum log level.
func (c *Config) Level() Level {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// ServiceName returns the service name.
func (c *Config) ServiceName() string {
	return c.serviceName
}

// Environment returns the environment tag.
func (c *Config) Environment() string {
	return c.environment
}

// FileWriters exposes the rotating writers, primarily for health checks and
// tests inspecting the audit ledger.
func (c *Config) FileWriters() []*RotatingWriter {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*RotatingWriter, len(c.writers))
	copy(out, c.writers)
	return out
}

// Shutdown stops accepting records and closes file sinks on a best-effort
// basis. Records arriving after Shutdown are dropped silently.
func (c *Config) Shutdown(_ context.Context) error {
	c.isShuttingDown.Store(true)

	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.closers = nil
	return firstErr
}

// Writer returns the textual-line adapter: an io.Writer that strips one
// trailing newline per write and emits an info-severity record whose message
// is the written line and whose metadata is empty. This is the integration
// seam for producers that can only emit preformatted lines.
func (c *Config) Writer() io.Writer {
	return &lineWriter{cfg: c}
}

// lineWriter adapts textual lines onto the structured logger.
type lineWriter struct {
	cfg *Config
}

// Write emits one info record per call.
func (w *lineWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSuffix(string(p), "\n")
	w.cfg.Info(msg)
	return len(p), nil
}

// Functional options.

// WithHandlerType sets the console sink formatter.
func WithHandlerType(t HandlerType) Option {
	return func(c *Config) { c.handlerType = t }
}

// WithJSONHandler selects structured JSON console output (production default).
func WithJSONHandler() Option {
	return WithHandlerType(JSONHandler)
}

// WithConsoleHandler selects human-readable console output (default).
func WithConsoleHandler() Option {
	return WithHandlerType(ConsoleHandler)
}

// WithOutput sets the console sink writer. Defaults to stderr.
func WithOutput(w io.Writer) Option {
	return func(c *Config) { c.output = w }
}

// WithConsole enables or disables the console sink.
func WithConsole(enabled bool) Option {
	return func(c *Config) { c.consoleEnabled = enabled }
}

// WithLevel sets the minimum log level.
func WithLevel(l Level) Option {
	return func(c *Config) { c.level = l }
}

// WithDebugLevel enables debug logging.
func WithDebugLevel() Option {
	return WithLevel(LevelDebug)
}

// WithServiceName sets the service name carried on every record.
func WithServiceName(name string) Option {
	return func(c *Config) {
		if name != "" {
			c.serviceName = name
		}
	}
}

// WithEnvironment sets the environment tag and the formatter default:
// production environments format console output as JSON.
func WithEnvironment(env string) Option {
	return func(c *Config) {
		if env == "" {
			return
		}
		c.environment = env
		if env == "production" {
			c.handlerType = JSONHandler
		}
	}
}

// WithFileSinks enables rotating-file sinks.
func WithFileSinks(opts FileOptions) Option {
	return func(c *Config) {
		opts.Enabled = true
		c.fileOpts = opts
	}
}

// ParseLevel converts a level name to a [Level]. Unknown names map to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

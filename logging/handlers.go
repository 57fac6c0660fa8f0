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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// HandlerType selects a sink formatter.
type HandlerType string

const (
	// JSONHandler emits one JSON object per record with a fixed key order:
	// timestamp, severity, message, service, environment, then metadata.
	JSONHandler HandlerType = "json"
	// ConsoleHandler emits human-readable "TIMESTAMP [SEVERITY]: MESSAGE"
	// lines with pretty-printed metadata.
	ConsoleHandler HandlerType = "console"
)

// isoTimestamp is ISO-8601 UTC with millisecond precision.
const isoTimestamp = "2006-01-02T15:04:05.000Z"

// ANSI color codes for the console formatter.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorDim    = "\033[2m"
)

// fieldStack carries a captured stack string; the console formatter renders
// it on a fresh line instead of inline with the metadata.
const fieldStack = "stack"

// consoleBuilderPool provides reusable [strings.Builder] instances for
// formatting console log entries.
var consoleBuilderPool = sync.Pool{
	New: func() any {
		return &strings.Builder{}
	},
}

// consoleHandler implements [slog.Handler] for human-readable output.
//
// Format: "TIMESTAMP [SEVERITY]: MESSAGE" followed by pretty-printed
// metadata and, when a stack attribute is present, the stack on a fresh
// line. Severity tokens are colorized when the output is a terminal.
//
// Thread-safe: each Handle call performs a single Write.
type consoleHandler struct {
	opts     *slog.HandlerOptions
	output   io.Writer
	colorize bool
	attrs    []slog.Attr
	groups   []string
}

// newConsoleHandler creates a console handler, enabling color only when the
// writer is a terminal.
func newConsoleHandler(w io.Writer, opts *slog.HandlerOptions) *consoleHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &consoleHandler{
		opts:     opts,
		output:   w,
		colorize: writerIsTerminal(w),
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle formats and writes a log record.
func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	b := consoleBuilderPool.Get().(*strings.Builder)
	b.Reset()
	defer consoleBuilderPool.Put(b)

	b.WriteString(r.Time.UTC().Format(isoTimestamp))
	b.WriteString(" [")
	if h.colorize {
		b.WriteString(h.levelColor(r.Level))
	}
	b.WriteString(strings.ToLower(r.Level.String()))
	if h.colorize {
		b.WriteString(colorReset)
	}
	b.WriteString("]: ")
	b.WriteString(r.Message)

	meta := make(map[string]any)
	stack := ""
	collect := func(a slog.Attr) {
		if a.Equal(slog.Attr{}) {
			return
		}
		if a.Key == fieldStack {
			stack = a.Value.String()
			return
		}
		meta[a.Key] = a.Value.Any()
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(a)
		return true
	})

	if len(meta) > 0 {
		b.WriteString(" ")
		if h.colorize {
			b.WriteString(colorDim)
		}
		if pretty, err := json.MarshalIndent(meta, "", "  "); err == nil {
			b.Write(pretty)
		} else {
			fmt.Fprintf(b, "%v", meta)
		}
		if h.colorize {
			b.WriteString(colorReset)
		}
	}

	if stack != "" {
		b.WriteString("\n")
		b.WriteString(stack)
	}

	b.WriteString("\n")

	_, err := h.output.Write([]byte(b.String()))
	return err
}

// WithAttrs implements [slog.Handler.WithAttrs].
func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)
	return &consoleHandler{
		opts:     h.opts,
		output:   h.output,
		colorize: h.colorize,
		attrs:    newAttrs,
		groups:   h.groups,
	}
}

// WithGroup implements [slog.Handler.WithGroup].
func (h *consoleHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups[len(h.groups)] = name
	return &consoleHandler{
		opts:     h.opts,
		output:   h.output,
		colorize: h.colorize,
		attrs:    h.attrs,
		groups:   newGroups,
	}
}

// levelColor returns the ANSI color code for a log level.
func (h *consoleHandler) levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return colorRed
	case level >= slog.LevelWarn:
		return colorYellow
	case level >= slog.LevelInfo:
		return colorGreen
	default:
		return colorBlue
	}
}

// writerIsTerminal reports whether w is bound to a terminal.
func writerIsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// newJSONHandler builds the structured formatter: timestamp, severity,
// message come first via attribute renames; service and environment ride as
// base attributes, followed by per-call metadata in insertion order.
func newJSONHandler(w io.Writer, level slog.Leveler) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: renameStandardAttrs,
	})
}

// renameStandardAttrs maps slog's built-in keys onto the wire names and
// normalizes their values.
func renameStandardAttrs(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		return slog.String("timestamp", a.Value.Time().UTC().Format(isoTimestamp))
	case slog.LevelKey:
		if lvl, ok := a.Value.Any().(slog.Level); ok {
			return slog.String("severity", strings.ToLower(lvl.String()))
		}
		return slog.String("severity", strings.ToLower(a.Value.String()))
	case slog.MessageKey:
		return slog.String("message", a.Value.String())
	}
	return a
}

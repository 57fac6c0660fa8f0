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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-dev/lattice/middleware/requestctx"
)

// syncBuffer is a goroutine-safe bytes.Buffer for capturing sink output.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Lines(t *testing.T) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.String()), "\n") {
		if line == "" {
			continue
		}
		var record map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &record), "line: %s", line)
		out = append(out, record)
	}
	return out
}

func TestJSONRecordShape(t *testing.T) {
	t.Parallel()

	buf := &syncBuffer{}
	logger, err := New(
		WithJSONHandler(),
		WithOutput(buf),
		WithServiceName("orders"),
		WithEnvironment("staging"),
	)
	require.NoError(t, err)

	logger.Warn("disk filling", "free_bytes", 1024)

	records := buf.Lines(t)
	require.Len(t, records, 1)
	record := records[0]

	assert.Equal(t, "warn", record["severity"])
	assert.Equal(t, "disk filling", record["message"])
	assert.Equal(t, "orders", record["service"])
	assert.Equal(t, "staging", record["environment"])
	assert.Equal(t, float64(1024), record["free_bytes"])

	ts, ok := record["timestamp"].(string)
	require.True(t, ok)
	_, err = time.Parse(isoTimestamp, ts)
	assert.NoError(t, err, "timestamp must be ISO-8601 UTC with milliseconds")
	assert.NotContains(t, record, "time")
	assert.NotContains(t, record, "level")
	assert.NotContains(t, record, "msg")
}

func TestLevelFilteringAndSetLevel(t *testing.T) {
	t.Parallel()

	buf := &syncBuffer{}
	logger, err := New(WithJSONHandler(), WithOutput(buf))
	require.NoError(t, err)

	logger.Debug("hidden")
	assert.Empty(t, buf.String(), "debug suppressed at info level")

	logger.SetLevel(LevelDebug)
	logger.Debug("visible")
	records := buf.Lines(t)
	require.Len(t, records, 1)
	assert.Equal(t, "debug", records[0]["severity"])
	assert.Equal(t, LevelDebug, logger.Level())
}

func TestConsoleFormat(t *testing.T) {
	t.Parallel()

	buf := &syncBuffer{}
	logger, err := New(WithConsoleHandler(), WithOutput(buf))
	require.NoError(t, err)

	logger.Info("server listening", "address", ":8080")

	out := buf.String()
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z \[info\]: server listening`, out)
	assert.Contains(t, out, `"address": ":8080"`, "metadata pretty-printed")
	assert.NotContains(t, out, "\033[", "no color codes when output is not a terminal")
}

func TestConsoleStackOnFreshLine(t *testing.T) {
	t.Parallel()

	buf := &syncBuffer{}
	logger, err := New(WithConsoleHandler(), WithOutput(buf))
	require.NoError(t, err)

	logger.ErrorWithStack("boom", errors.New("kaput"))

	out := buf.String()
	require.Contains(t, out, "[error]: boom")
	idx := strings.Index(out, "\n")
	require.Greater(t, idx, 0)
	assert.Contains(t, out[idx:], "logging.TestConsoleStackOnFreshLine",
		"stack rendered after the message line")
}

func TestFileSinksFanout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	console := &syncBuffer{}
	logger, err := New(
		WithJSONHandler(),
		WithOutput(console),
		WithFileSinks(FileOptions{Directory: dir}),
	)
	require.NoError(t, err)

	logger.Info("normal operation")
	logger.Error("something failed")
	require.NoError(t, logger.Shutdown(context.Background()))

	date := time.Now().Format("2006-01-02")
	appData, err := os.ReadFile(filepath.Join(dir, "app-"+date+".log"))
	require.NoError(t, err)
	errData, err := os.ReadFile(filepath.Join(dir, "error-"+date+".log"))
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(string(appData), "\n"), "general sink gets info and error")
	assert.Equal(t, 1, strings.Count(string(errData), "\n"), "error sink gets errors only")
	assert.Contains(t, string(errData), `"message":"something failed"`)

	// Console saw both records too: each sink receives each record once.
	assert.Len(t, console.Lines(t), 2)
}

func TestFileSinkFloorsIgnoreDebug(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := New(
		WithJSONHandler(),
		WithOutput(&syncBuffer{}),
		WithDebugLevel(),
		WithFileSinks(FileOptions{Directory: dir}),
	)
	require.NoError(t, err)

	logger.Debug("console only")
	require.NoError(t, logger.Shutdown(context.Background()))

	date := time.Now().Format("2006-01-02")
	appData, err := os.ReadFile(filepath.Join(dir, "app-"+date+".log"))
	require.NoError(t, err)
	assert.Empty(t, appData, "general file sink floor stays at info")
}

func TestWriterAdapter(t *testing.T) {
	t.Parallel()

	buf := &syncBuffer{}
	logger, err := New(WithJSONHandler(), WithOutput(buf))
	require.NoError(t, err)

	w := logger.Writer()
	n, err := w.Write([]byte("GET /health 200\n"))
	require.NoError(t, err)
	assert.Equal(t, len("GET /health 200\n"), n)

	records := buf.Lines(t)
	require.Len(t, records, 1)
	assert.Equal(t, "GET /health 200", records[0]["message"], "trailing newline stripped")
	assert.Equal(t, "info", records[0]["severity"])
}

func TestShutdownDropsRecords(t *testing.T) {
	t.Parallel()

	buf := &syncBuffer{}
	logger, err := New(WithJSONHandler(), WithOutput(buf))
	require.NoError(t, err)

	require.NoError(t, logger.Shutdown(context.Background()))
	logger.Info("late record")
	assert.Empty(t, buf.String())
}

func TestCapturePanic(t *testing.T) {
	t.Parallel()

	buf := &syncBuffer{}
	logger, err := New(WithJSONHandler(), WithOutput(buf))
	require.NoError(t, err)

	assert.False(t, logger.CapturePanic(nil))

	func() {
		defer func() { assert.True(t, logger.CapturePanic(recover())) }()
		panic("kaboom")
	}()

	records := buf.Lines(t)
	require.Len(t, records, 1)
	assert.Equal(t, "panic recovered", records[0]["message"])
	assert.Equal(t, "kaboom", records[0]["error"])
	assert.Contains(t, records[0], "stack")
}

func TestValidateRejectsBadConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []Option
	}{
		{"nil output", []Option{WithOutput(nil)}},
		{"no sinks", []Option{WithConsole(false)}},
		{"empty directory", []Option{WithFileSinks(FileOptions{})}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.opts...)
			assert.Error(t, err)
		})
	}
}

func TestFromContextAttachesRequestID(t *testing.T) {
	t.Parallel()

	buf := &syncBuffer{}
	logger, err := New(WithJSONHandler(), WithOutput(buf))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req, rc := requestctx.Ensure(req)

	FromContext(req.Context(), logger).Info("handled")

	records := buf.Lines(t)
	require.Len(t, records, 1)
	assert.Equal(t, rc.ID, records[0]["request_id"])
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" WARNING "))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}

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
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// datePlaceholder is substituted with the current date in file patterns.
const datePlaceholder = "%DATE%"

// RotateOptions configures a [RotatingWriter].
type RotateOptions struct {
	// Directory is the base directory for log segments. Created if missing.
	Directory string

	// Pattern is the segment filename pattern, e.g. "app-%DATE%.log".
	// Must contain the %DATE% placeholder.
	Pattern string

	// DateFormat is the Go time layout substituted for %DATE%.
	// Defaults to "2006-01-02" (daily granularity).
	DateFormat string

	// MaxBytes caps the size of a single segment. Zero disables size rotation.
	MaxBytes int64

	// MaxFiles caps the number of retained rotated segments. Zero keeps all.
	MaxFiles int

	// MaxAge prunes rotated segments older than this. Zero keeps all.
	MaxAge time.Duration

	// Compress gzips segments after rotation.
	Compress bool

	// Symlink maintains a stable symlink (pattern with "-%DATE%" removed)
	// pointing at the active segment.
	Symlink bool

	// now overrides the clock in tests.
	now func() time.Time
}

// auditEntry is one row of the rotation audit ledger.
type auditEntry struct {
	File       string    `json:"file"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
	Bytes      int64     `json:"bytes"`
	Records    int64     `json:"records"`
	Compressed bool      `json:"compressed"`
}

// RotatingWriter is an io.WriteCloser that writes to date-stamped segments,
// rotating on date boundaries and size caps.
//
// Each rotation closes the active segment, appends an entry to the audit
// ledger, optionally compresses the closed segment, opens a fresh segment,
// and prunes segments beyond retention. Rotation happens inline under the
// writer mutex: a record arriving during rotation lands on the new segment,
// never on the floor.
//
// One Write call is one record; writes are serialized, so records are never
// interleaved within a segment.
type RotatingWriter struct {
	opts RotateOptions

	mu       sync.Mutex
	file     *os.File
	path     string
	date     string
	bytes    int64
	records  int64
	started  time.Time
	rotSeq   int
	closed   bool
	auditMem []auditEntry
}

// NewRotatingWriter opens (or resumes) the active segment for today.
func NewRotatingWriter(opts RotateOptions) (*RotatingWriter, error) {
	if !strings.Contains(opts.Pattern, datePlaceholder) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, opts.Pattern)
	}
	if opts.DateFormat == "" {
		opts.DateFormat = "2006-01-02"
	}
	if opts.now == nil {
		opts.now = time.Now
	}

	if err := os.MkdirAll(opts.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	w := &RotatingWriter{opts: opts}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

// Write appends one record to the active segment, rotating first if the
// date rolled over or the segment would exceed the size cap.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, ErrLoggerShutdown
	}

	today := w.opts.now().Format(w.opts.DateFormat)
	sizeExceeded := w.opts.MaxBytes > 0 && w.bytes > 0 && w.bytes+int64(len(p)) > w.opts.MaxBytes
	if today != w.date || sizeExceeded {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.bytes += int64(n)
	if err == nil {
		w.records++
	}
	return n, err
}

// Close finalizes the active segment. Further writes fail with
// [ErrLoggerShutdown].
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}

// Path returns the path of the active segment.
func (w *RotatingWriter) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

// segmentName renders the pattern for the given date.
func (w *RotatingWriter) segmentName(date string) string {
	return strings.ReplaceAll(w.opts.Pattern, datePlaceholder, date)
}

// baseName is the pattern with the date placeholder removed, used for the
// symlink and audit ledger names ("app-%DATE%.log" -> "app").
func (w *RotatingWriter) baseName() string {
	name := strings.ReplaceAll(w.opts.Pattern, "-"+datePlaceholder, "")
	name = strings.ReplaceAll(name, datePlaceholder, "")
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// open starts a fresh (or resumed) active segment for the current date.
// Callers must hold w.mu or be the constructor.
func (w *RotatingWriter) open() error {
	now := w.opts.now()
	w.date = now.Format(w.opts.DateFormat)
	w.path = filepath.Join(w.opts.Directory, w.segmentName(w.date))

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log segment: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log segment: %w", err)
	}

	w.file = f
	w.bytes = info.Size()
	w.records = 0
	w.started = now

	if w.opts.Symlink {
		link := filepath.Join(w.opts.Directory, w.baseName()+".log")
		if link != w.path {
			os.Remove(link)
			// Best effort: some filesystems reject symlinks.
			_ = os.Symlink(filepath.Base(w.path), link)
		}
	}
	return nil
}

// rotate closes the active segment, records it in the audit ledger,
// optionally compresses it, opens the successor, and prunes retention.
// Callers must hold w.mu.
func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close log segment: %w", err)
	}

	closedPath := w.path
	entry := auditEntry{
		File:       closedPath,
		StartTime:  w.started,
		EndTime:    w.opts.now(),
		Bytes:      w.bytes,
		Records:    w.records,
		Compressed: w.opts.Compress,
	}

	// Size rotation within the same date: archive under a sequence suffix so
	// the active segment keeps its stable dated name.
	today := w.opts.now().Format(w.opts.DateFormat)
	if today == w.date {
		w.rotSeq++
		archived := archiveName(closedPath, w.rotSeq)
		if err := os.Rename(closedPath, archived); err != nil {
			return fmt.Errorf("archive log segment: %w", err)
		}
		closedPath = archived
		entry.File = archived
	} else {
		w.rotSeq = 0
	}

	if w.opts.Compress {
		if gz, err := compressFile(closedPath); err == nil {
			entry.File = gz
		} else {
			entry.Compressed = false
		}
	}

	if err := w.appendAudit(entry); err != nil {
		// The ledger is advisory; a write failure must not block logging.
		fmt.Fprintf(os.Stderr, "lattice/logging: audit ledger write failed: %v\n", err)
	}

	// Open the successor before pruning so the closed segment no longer
	// matches w.path and counts toward retention.
	if err := w.open(); err != nil {
		return err
	}
	w.prune()
	return nil
}

// archiveName inserts a sequence number before the extension:
// app-2026-08-23.log -> app-2026-08-23.3.log.
func archiveName(path string, seq int) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s.%d%s", strings.TrimSuffix(path, ext), seq, ext)
}

// compressFile gzips src to src+".gz" and removes the original.
func compressFile(src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	dst := src + ".gz"
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}

	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		gz.Close()
		out.Close()
		os.Remove(dst)
		return "", err
	}
	if err := gz.Close(); err != nil {
		out.Close()
		os.Remove(dst)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return "", err
	}

	in.Close()
	os.Remove(src)
	return dst, nil
}

// auditPath returns the ledger path, e.g. <dir>/app-audit.json.
func (w *RotatingWriter) auditPath() string {
	return filepath.Join(w.opts.Directory, w.baseName()+"-audit.json")
}

// appendAudit appends one entry to the JSON-array ledger on disk.
func (w *RotatingWriter) appendAudit(entry auditEntry) error {
	path := w.auditPath()

	var entries []auditEntry
	if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
		// A corrupt ledger is replaced rather than blocking rotation.
		_ = json.Unmarshal(data, &entries)
	}
	entries = append(entries, entry)
	w.auditMem = entries

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// AuditLedger returns the rotation ledger as recorded by this writer.
func (w *RotatingWriter) AuditLedger() []auditEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]auditEntry, len(w.auditMem))
	copy(out, w.auditMem)
	return out
}

// prune removes rotated segments beyond MaxFiles or older than MaxAge.
// The active segment is never pruned. Callers must hold w.mu.
func (w *RotatingWriter) prune() {
	if w.opts.MaxFiles <= 0 && w.opts.MaxAge <= 0 {
		return
	}

	prefix := w.baseName() + "-"
	dirEntries, err := os.ReadDir(w.opts.Directory)
	if err != nil {
		return
	}

	type candidate struct {
		path string
		mod  time.Time
	}
	var rotated []candidate
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		if strings.HasSuffix(name, "-audit.json") {
			continue
		}
		full := filepath.Join(w.opts.Directory, name)
		if full == w.path {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		rotated = append(rotated, candidate{path: full, mod: info.ModTime()})
	}

	sort.Slice(rotated, func(i, j int) bool { return rotated[i].mod.Before(rotated[j].mod) })

	cutoff := time.Time{}
	if w.opts.MaxAge > 0 {
		cutoff = w.opts.now().Add(-w.opts.MaxAge)
	}

	excess := 0
	if w.opts.MaxFiles > 0 && len(rotated) > w.opts.MaxFiles {
		excess = len(rotated) - w.opts.MaxFiles
	}

	for i, c := range rotated {
		if i < excess || (!cutoff.IsZero() && c.mod.Before(cutoff)) {
			os.Remove(c.path)
		}
	}
}

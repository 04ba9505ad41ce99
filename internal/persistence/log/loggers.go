// Package log writes compressed JSONL journals next to the snapshots: one
// line per settled quarter and one per player command.
package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"mentorsim.ai/internal/sim/model"
	"mentorsim.ai/internal/sim/session"
)

// JSONLZstdWriter appends JSON lines to a zstd stream, starting a new file
// every UTC day.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu     sync.Mutex
	curDay string
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{baseDir: baseDir, prefix: prefix, now: time.Now}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	day := w.now().UTC().Format("2006-01-02")
	if day != w.curDay {
		if err := w.rotateLocked(day); err != nil {
			return err
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.Flush()
}

// Path is the file currently written to, or "" before the first write.
func (w *JSONLZstdWriter) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.curDay == "" {
		return ""
	}
	return w.pathForDay(w.curDay)
}

func (w *JSONLZstdWriter) rotateLocked(day string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForDay(day)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f, w.enc, w.w = f, enc, bufio.NewWriterSize(enc, 32*1024)
	w.curDay = day
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err error
	if w.w != nil {
		err = w.w.Flush()
	}
	if w.enc != nil {
		err = errors.Join(err, w.enc.Close())
	}
	if w.f != nil {
		err = errors.Join(err, w.f.Close())
	}
	w.f, w.enc, w.w = nil, nil, nil
	return err
}

func (w *JSONLZstdWriter) pathForDay(day string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, day))
}

// ReadLines decodes every line of a journal written by JSONLZstdWriter.
// Files appended across restarts hold several zstd frames; the decoder
// reads them back to back.
func ReadLines(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []json.RawMessage
	jd := json.NewDecoder(dec)
	for {
		var raw json.RawMessage
		if err := jd.Decode(&raw); errors.Is(err, io.EOF) {
			return out, nil
		} else if err != nil {
			return out, err
		}
		out = append(out, raw)
	}
}

// QuarterEntry is one settled quarter.
type QuarterEntry struct {
	Time   string         `json:"time"`
	Report session.Report `json:"report"`
}

// QuarterLogger writes one entry per settled quarter.
type QuarterLogger struct{ w *JSONLZstdWriter }

func NewQuarterLogger(dataDir string) *QuarterLogger {
	return &QuarterLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "quarters"), "quarters")}
}

func (l *QuarterLogger) WriteQuarter(r session.Report) error {
	return l.w.Write(QuarterEntry{Time: l.w.now().UTC().Format(time.RFC3339), Report: r})
}
func (l *QuarterLogger) Close() error { return l.w.Close() }

// AuditEntry records one player command and how it ended.
type AuditEntry struct {
	Time    string        `json:"time"`
	Quarter model.Quarter `json:"quarter"`
	Actor   string        `json:"actor"`
	Command string        `json:"command"`
	Target  string        `json:"target,omitempty"`
	Detail  string        `json:"detail,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// AuditLogger writes audit entries.
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(dataDir string) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "audit"), "audit")}
}

func (l *AuditLogger) WriteAudit(e AuditEntry) error {
	if e.Time == "" {
		e.Time = l.w.now().UTC().Format(time.RFC3339Nano)
	}
	return l.w.Write(e)
}
func (l *AuditLogger) Close() error { return l.w.Close() }

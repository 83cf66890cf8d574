package log

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"outpost.gg/internal/protocol"
	"outpost.gg/internal/sim/world/events"
)

type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	// Each rotation appends a new zstd frame; readers decode concatenated
	// frames transparently.
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// EventEntry is one line of the event log.
type EventEntry struct {
	WorldID string         `json:"world_id"`
	Cursor  uint64         `json:"cursor"`
	Event   protocol.Event `json:"event"`
}

// EventLogger persists bus events. Events are queued so the publishing
// goroutine never waits on disk; when the queue is full the event is dropped
// and counted.
type EventLogger struct {
	w       *JSONLZstdWriter
	worldID string
	queue   chan EventEntry
	done    chan struct{}

	mu      sync.Mutex
	dropped uint64
	err     error
}

func NewEventLogger(worldDir, worldID string, queue int) *EventLogger {
	if queue <= 0 {
		queue = 1024
	}
	l := &EventLogger{
		w:       NewJSONLZstdWriter(filepath.Join(worldDir, "events"), "events"),
		worldID: worldID,
		queue:   make(chan EventEntry, queue),
		done:    make(chan struct{}),
	}
	go l.drain()
	return l
}

// Attach subscribes the logger to bus. The returned func unsubscribes.
func (l *EventLogger) Attach(bus *events.Bus) (cancel func()) {
	return bus.Subscribe(l.Record)
}

func (l *EventLogger) Record(it events.CursorItem) {
	e := EventEntry{WorldID: l.worldID, Cursor: it.Cursor, Event: it.Event.Wire()}
	select {
	case l.queue <- e:
	default:
		l.mu.Lock()
		l.dropped++
		l.mu.Unlock()
	}
}

func (l *EventLogger) drain() {
	defer close(l.done)
	for e := range l.queue {
		if err := l.w.Write(e); err != nil {
			l.mu.Lock()
			if l.err == nil {
				l.err = err
			}
			l.mu.Unlock()
		}
	}
}

// Dropped reports events lost to a full queue.
func (l *EventLogger) Dropped() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Close flushes queued events. Record must not be called afterwards.
func (l *EventLogger) Close() error {
	close(l.queue)
	<-l.done
	l.mu.Lock()
	werr := l.err
	l.mu.Unlock()
	return errors.Join(werr, l.w.Close())
}

type AuditEntry struct {
	Time    time.Time      `json:"time"`
	WorldID string         `json:"world_id"`
	Actor   string         `json:"actor"`
	Action  string         `json:"action"`
	Target  string         `json:"target,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// AuditLogger writes admin actions as JSONL (compressed).
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(worldDir string) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "audit"), "audit")}
}

func (l *AuditLogger) WriteAudit(v AuditEntry) error { return l.w.Write(v) }
func (l *AuditLogger) Close() error                  { return l.w.Close() }

// Files lists the log files for prefix under dir, oldest first.
func Files(dir, prefix string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// ReadEvents decodes every entry of one event log file.
func ReadEvents(path string) ([]EventEntry, error) {
	var out []EventEntry
	err := scanFile(path, func(line []byte) error {
		var e EventEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

func ReadAudit(path string) ([]AuditEntry, error) {
	var out []AuditEntry
	err := scanFile(path, func(line []byte) error {
		var e AuditEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

func scanFile(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()
	r := bufio.NewReader(dec)
	for {
		line, err := r.ReadBytes('\n')
		if line = bytes.TrimSpace(line); len(line) > 0 {
			if perr := fn(line); perr != nil {
				return fmt.Errorf("%s: %w", filepath.Base(path), perr)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

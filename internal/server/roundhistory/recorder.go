package roundhistory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/crashforbots/internal/fileutil"
)

const latestFilename = "latest.json"

// Recorder buffers completed rounds and appends them to day-stamped
// JSONL files with buffered writes.
type Recorder struct {
	cfg    Config
	logger *log.Logger
	clock  quartz.Clock

	mu                  sync.Mutex
	flushMu             sync.Mutex
	buffer              []*Record
	flushNotifier       func()
	consecutiveFailures int
	disabled            bool
}

// NewRecorder constructs a recorder writing into cfg.Dir.
func NewRecorder(cfg Config, logger *log.Logger) (*Recorder, error) {
	if cfg.Dir == "" {
		return nil, errors.New("roundhistory: Dir is required")
	}
	if cfg.FlushThreshold <= 0 {
		cfg.FlushThreshold = 10
	}
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("roundhistory: create dir: %w", err)
	}

	return &Recorder{
		cfg:    cfg,
		logger: logger.WithPrefix("roundhistory"),
		clock:  cfg.Clock,
		buffer: make([]*Record, 0, cfg.FlushThreshold),
	}, nil
}

// SetFlushNotifier registers a callback invoked when the recorder would
// like an async flush.
func (r *Recorder) SetFlushNotifier(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushNotifier = fn
}

// Append adds a completed round to the buffer. It never blocks on IO,
// so it is safe to call from an event subscriber.
func (r *Recorder) Append(record *Record) {
	var notifier func()

	r.mu.Lock()
	if r.disabled {
		r.mu.Unlock()
		return
	}
	r.buffer = append(r.buffer, record)
	if len(r.buffer) >= r.cfg.FlushThreshold && r.flushNotifier != nil {
		notifier = r.flushNotifier
	}
	r.mu.Unlock()

	if notifier != nil {
		notifier()
	}
}

// Flush writes buffered rounds to the current day file and refreshes
// the latest-round snapshot.
func (r *Recorder) Flush() error {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	r.mu.Lock()
	if r.disabled || len(r.buffer) == 0 {
		r.mu.Unlock()
		return nil
	}
	records := append([]*Record(nil), r.buffer...)
	r.mu.Unlock()

	file, err := os.OpenFile(r.dayPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	written := 0
	for _, record := range records {
		if err := writeRecord(file, record); err != nil {
			r.finalizeFlush(written)
			return err
		}
		written++
	}
	r.finalizeFlush(written)

	r.writeLatest(records[len(records)-1])
	return nil
}

// Close flushes remaining data.
func (r *Recorder) Close() error {
	return r.Flush()
}

// HandleFlushResult updates state after a flush attempt and returns
// whether the recorder was disabled along with the dropped round count.
func (r *Recorder) HandleFlushResult(err error) (disabled bool, dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.consecutiveFailures++
		if r.consecutiveFailures >= 3 {
			dropped = len(r.buffer)
			r.buffer = nil
			r.disabled = true
			return true, dropped
		}
		return false, 0
	}

	r.consecutiveFailures = 0
	return false, 0
}

// IsDisabled reports whether the recorder has been disabled.
func (r *Recorder) IsDisabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disabled
}

func (r *Recorder) dayPath() string {
	day := r.clock.Now().UTC().Format("2006-01-02")
	return filepath.Join(r.cfg.Dir, fmt.Sprintf("rounds-%s.jsonl", day))
}

func (r *Recorder) finalizeFlush(flushed int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if flushed <= 0 {
		return
	}
	if flushed >= len(r.buffer) {
		r.buffer = r.buffer[:0]
	} else {
		r.buffer = r.buffer[flushed:]
	}
}

// writeLatest refreshes the latest.json snapshot. Readers poll this
// file, so it is replaced atomically rather than rewritten in place.
func (r *Recorder) writeLatest(record *Record) {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		r.logger.Error("Failed to marshal latest round", "round", record.RoundID, "error", err)
		return
	}
	path := filepath.Join(r.cfg.Dir, latestFilename)
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		r.logger.Error("Failed to write latest round", "round", record.RoundID, "error", err)
	}
}

func writeRecord(file *os.File, record *Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if _, err := file.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

package journal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"

	"warden-hq/callisto/pkg/audit"
)

// Config contains configuration for the journal recorder.
type Config struct {
	// Enabled enables journaling. A disabled recorder drops everything.
	Enabled bool

	// Mode is the policy mode stamped onto every record.
	Mode string

	// Script is the hosted program path stamped onto every record.
	Script string

	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout is the timeout for writing a record to storage.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder journals audited events asynchronously so dispatch never waits
// on storage.
type Recorder struct {
	storage    Storage
	config     *Config
	recordChan chan *Record
	wg         sync.WaitGroup
	done       chan struct{}
	logger     *slog.Logger
}

// NewRecorder creates a recorder backed by the given storage.
func NewRecorder(storage Storage, config *Config) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = 1000
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}

	r := &Recorder{
		storage:    storage,
		config:     config,
		recordChan: make(chan *Record, config.AsyncBuffer),
		done:       make(chan struct{}),
		logger:     slog.Default().With("component", "journal.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Debug("journal recorder initialized",
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
	)

	return r
}

// Observer adapts the recorder to the audit bridge's observer hook.
// Recording failures are logged, never surfaced to the dispatch path.
func (r *Recorder) Observer() audit.Observer {
	return func(ev audit.Event, v audit.Verdict, _ time.Duration) {
		if err := r.Record(ev, v); err != nil {
			r.logger.Warn("could not journal event", "event", ev.Name, "error", err)
		}
	}
}

// Record enqueues one audited event for async writing. It returns
// immediately; a full channel drops the record with an error rather than
// stalling the runtime.
func (r *Recorder) Record(ev audit.Event, v audit.Verdict) error {
	if !r.config.Enabled {
		return nil
	}

	record := &Record{
		ID:           uuid.New().String(),
		RecordedTime: time.Now(),
		Event:        ev.Name,
		Args:         renderArgs(ev.Args),
		Verdict:      string(v),
		Mode:         r.config.Mode,
		Script:       r.config.Script,
	}

	select {
	case r.recordChan <- record:
		return nil
	case <-r.done:
		return NewRecorderError(record.ID, context.Canceled)
	default:
		r.logger.Warn("journal channel full, dropping record",
			"record_id", record.ID,
			"event", record.Event,
			"channel_capacity", r.config.AsyncBuffer,
		)
		return NewRecorderError(record.ID, context.DeadlineExceeded)
	}
}

// Close drains the async channel and waits for pending writes.
func (r *Recorder) Close() error {
	close(r.done)
	r.wg.Wait()
	r.logger.Debug("journal recorder shut down")
	return nil
}

// worker drains the record channel and writes to storage.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.recordChan:
			r.writeRecord(record)

		case <-r.done:
			for {
				select {
				case record := <-r.recordChan:
					r.writeRecord(record)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) writeRecord(record *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.storage.Store(ctx, record); err != nil {
		r.logger.Error("failed to store journal record",
			"record_id", record.ID,
			"event", record.Event,
			"error", err,
		)
		return
	}

	r.logger.Debug("event journaled",
		"record_id", record.ID,
		"event", record.Event,
		"verdict", record.Verdict,
	)
}

// renderArgs renders runtime values the way a Lua call site would look.
func renderArgs(args []lua.LValue) string {
	parts := make([]string, len(args))
	for i, a := range args {
		if a.Type() == lua.LTString {
			parts[i] = fmt.Sprintf("%q", lua.LVAsString(a))
		} else {
			parts[i] = lua.LVAsString(a)
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

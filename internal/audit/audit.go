package audit

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"clipforge/internal/digest"
	"clipforge/internal/logging"
	"clipforge/internal/services"
)

// Event is a single entry in the audit trail.
type Event struct {
	Timestamp float64        `json:"timestamp"`
	Datetime  string         `json:"datetime"`
	Type      string         `json:"type"`
	Details   map[string]any `json:"details"`
}

// Record is the root audit document for one process.
type Record struct {
	ProcessID           string   `json:"process_id"`
	StartTime           float64  `json:"start_time"`
	StartTimeHuman      string   `json:"start_time_human"`
	Hostname            string   `json:"hostname"`
	Status              string   `json:"status"`
	Events              []Event  `json:"events"`
	EndTime             *float64 `json:"end_time,omitempty"`
	Duration            *float64 `json:"duration,omitempty"`
	Error               string   `json:"error,omitempty"`
	HasValidationErrors bool     `json:"has_validation_errors,omitempty"`
}

// Trail records audit events for a single process and persists them on
// every write.
type Trail struct {
	mu       sync.Mutex
	record   Record
	dir      string
	jsonPath string
	logPath  string
	started  time.Time
	logger   *slog.Logger
	now      func() time.Time
}

// New creates the per-process log directory and writes the initial
// audit record before returning.
func New(logDir, processID string, logger *slog.Logger) (*Trail, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	dir := filepath.Join(logDir, processID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "audit", "init", "create log directory", err)
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	now := time.Now()
	trail := &Trail{
		record: Record{
			ProcessID:      processID,
			StartTime:      unixSeconds(now),
			StartTimeHuman: now.Format("2006-01-02 15:04:05"),
			Hostname:       hostname,
			Status:         "started",
			Events:         []Event{},
		},
		dir:      dir,
		jsonPath: filepath.Join(dir, "audit.json"),
		logPath:  filepath.Join(dir, "audit.log"),
		started:  now,
		logger:   logger.With(logging.String(logging.FieldComponent, "audit"), logging.String(logging.FieldProcessID, processID)),
		now:      time.Now,
	}
	if err := trail.flushLocked(); err != nil {
		return nil, err
	}
	trail.logger.Info("audit trail initialized", logging.String("path", trail.logPath))
	return trail, nil
}

// Dir returns the per-process log directory.
func (t *Trail) Dir() string {
	return t.dir
}

// RecordEvent appends an event and flushes both renderings.
func (t *Trail) RecordEvent(eventType string, details map[string]any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.appendLocked(eventType, details)
}

// RecordStart notes the beginning of work on a source.
func (t *Trail) RecordStart(sourceURL string) error {
	now := t.now()
	return t.RecordEvent("process_start", map[string]any{
		"source_url":       sourceURL,
		"start_time":       unixSeconds(now),
		"start_time_human": now.Format(time.RFC3339),
	})
}

// RecordFileOperation logs an operation on a file together with its
// digest. A missing file is recorded with null hash and size rather
// than failing the call.
func (t *Trail) RecordFileOperation(operation, path string, metadata map[string]any) error {
	details := map[string]any{
		"operation": operation,
		"path":      path,
		"metadata":  metadata,
	}
	if metadata == nil {
		details["metadata"] = map[string]any{}
	}
	fd, err := digest.File(path)
	if err != nil {
		t.logger.Warn("file operation on missing file", logging.String("path", path), logging.String("operation", operation))
		details["file_hash"] = nil
		details["file_size"] = nil
	} else {
		details["file_hash"] = fd.Hash
		details["file_size"] = fd.Size
	}
	return t.RecordEvent("file_"+operation, details)
}

// RecordTransformation logs a media transformation with input and
// output digests. Missing files yield null hashes.
func (t *Trail) RecordTransformation(kind, inputPath, outputPath string, parameters map[string]any) error {
	details := map[string]any{
		"type":        kind,
		"input_path":  inputPath,
		"output_path": outputPath,
		"parameters":  parameters,
		"timestamp":   unixSeconds(t.now()),
	}
	details["input_hash"] = optionalHash(inputPath)
	details["output_hash"] = optionalHash(outputPath)
	return t.RecordEvent("transformation", details)
}

// RecordValidation logs a validation outcome. Failed validations flip
// the trail-level validation error flag.
func (t *Trail) RecordValidation(kind string, valid bool, details map[string]any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !valid {
		t.record.HasValidationErrors = true
	}
	return t.appendLocked("validation", map[string]any{
		"type":     kind,
		"is_valid": valid,
		"details":  details,
	})
}

// Complete marks the trail finished and records the run duration.
func (t *Trail) Complete(result map[string]any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	end := unixSeconds(now)
	duration := now.Sub(t.started).Seconds()
	t.record.Status = "completed"
	t.record.EndTime = &end
	t.record.Duration = &duration
	return t.appendLocked("process_complete", map[string]any{
		"result":           result,
		"end_time":         end,
		"end_time_human":   now.Format("2006-01-02 15:04:05"),
		"duration_seconds": duration,
		"duration_human":   formatDuration(duration),
	})
}

// Fail records a terminal error. It never returns an error and is safe
// to call on a nil or partially initialized trail.
func (t *Trail) Fail(message string, details map[string]any) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record.Status = "error"
	t.record.Error = message
	if details == nil {
		details = map[string]any{}
	}
	err := t.appendLocked("error", map[string]any{
		"error":     message,
		"timestamp": unixSeconds(t.now()),
		"details":   details,
	})
	if err != nil {
		t.logger.Warn("failed to persist audit failure record", logging.Error(err))
	}
}

// Events returns a copy of the recorded events.
func (t *Trail) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	events := make([]Event, len(t.record.Events))
	copy(events, t.record.Events)
	return events
}

// Snapshot returns a copy of the root record.
func (t *Trail) Snapshot() Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	snapshot := t.record
	snapshot.Events = make([]Event, len(t.record.Events))
	copy(snapshot.Events, t.record.Events)
	return snapshot
}

func (t *Trail) appendLocked(eventType string, details map[string]any) error {
	now := t.now()
	t.record.Events = append(t.record.Events, Event{
		Timestamp: unixSeconds(now),
		Datetime:  now.Format(time.RFC3339Nano),
		Type:      eventType,
		Details:   details,
	})
	if err := t.flushLocked(); err != nil {
		return err
	}
	t.logger.Debug("audit event recorded", logging.String(logging.FieldEventType, eventType))
	return nil
}

func optionalHash(path string) any {
	fd, err := digest.File(path)
	if err != nil {
		return nil
	}
	return fd.Hash
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// formatDuration renders seconds as HH:MM:SS.
func formatDuration(seconds float64) string {
	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, total%60)
}

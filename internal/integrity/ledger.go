package integrity

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"clipforge/internal/digest"
	"clipforge/internal/logging"
	"clipforge/internal/services"
)

// Outcome classifies the result of a validation.
type Outcome string

const (
	// OutcomePass means the check ran and succeeded.
	OutcomePass Outcome = "pass"
	// OutcomeFail means the check ran and failed.
	OutcomeFail Outcome = "fail"
	// OutcomeNotApplicable means the check could not be performed, for
	// example a digest generation with no expected value to compare
	// against. Not applicable outcomes never count as success.
	OutcomeNotApplicable Outcome = "not_applicable"
)

// ValidationRecord is one entry in the integrity report.
type ValidationRecord struct {
	Timestamp float64        `json:"timestamp"`
	Type      string         `json:"type"`
	Outcome   Outcome        `json:"outcome"`
	Details   map[string]any `json:"details"`
}

// Statistics summarizes the ledger at report time.
type Statistics struct {
	TotalValidations      int     `json:"total_validations"`
	SuccessfulValidations int     `json:"successful_validations"`
	FailedValidations     int     `json:"failed_validations"`
	NotApplicable         int     `json:"not_applicable"`
	SuccessRate           float64 `json:"success_rate"`
}

// Report is the persisted integrity document for one process.
type Report struct {
	ProcessID   string             `json:"process_id"`
	Timestamp   float64            `json:"timestamp"`
	GeneratedAt *float64           `json:"generated_at,omitempty"`
	Validations []ValidationRecord `json:"validations"`
	Statistics  *Statistics        `json:"statistics,omitempty"`
}

// Ledger appends validation records and persists the report on every
// append.
type Ledger struct {
	mu         sync.Mutex
	report     Report
	reportPath string
	logger     *slog.Logger
	now        func() time.Time
}

// New creates the validation directory under the per-process log
// directory and initializes an empty report.
func New(logDir, processID string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	dir := filepath.Join(logDir, processID, "validation")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "integrity", "init", "create validation directory", err)
	}
	ledger := &Ledger{
		report: Report{
			ProcessID:   processID,
			Timestamp:   float64(time.Now().UnixNano()) / float64(time.Second),
			Validations: []ValidationRecord{},
		},
		reportPath: filepath.Join(dir, "integrity_report.json"),
		logger:     logger.With(logging.String(logging.FieldComponent, "integrity"), logging.String(logging.FieldProcessID, processID)),
		now:        time.Now,
	}
	return ledger, nil
}

// ReportPath returns the location of the persisted report.
func (l *Ledger) ReportPath() string {
	return l.reportPath
}

// HashFile digests a file and records the result. Missing files return
// a not-found error.
func (l *Ledger) HashFile(path string) (string, error) {
	fd, err := digest.File(path)
	if err != nil {
		l.record("file_hash_error", OutcomeFail, map[string]any{
			"file_path": path,
			"error":     err.Error(),
		})
		return "", err
	}
	l.record("file_hash", OutcomeNotApplicable, map[string]any{
		"file_path": path,
		"hash":      fd.Hash,
		"algorithm": fd.Algorithm,
		"file_size": fd.Size,
	})
	return fd.Hash, nil
}

// HashData digests a value's canonical serialization. Serialization
// failures fall back to the textual form, so this never errors.
func (l *Ledger) HashData(value any) string {
	hash := digest.Data(value)
	l.record("data_hash", OutcomeNotApplicable, map[string]any{
		"hash":      hash,
		"algorithm": digest.Algorithm,
	})
	return hash
}

// VerifyFile compares a file's digest against the expected value. The
// outcome is always recorded, including read failures.
func (l *Ledger) VerifyFile(path, expected string) bool {
	fd, err := digest.File(path)
	if err != nil {
		l.record("file_integrity_error", OutcomeFail, map[string]any{
			"file_path":     path,
			"expected_hash": expected,
			"error":         err.Error(),
		})
		return false
	}
	valid := fd.Hash == expected
	outcome := OutcomePass
	if !valid {
		outcome = OutcomeFail
		l.logger.Warn("file integrity check failed", logging.String("path", path))
	}
	l.record("file_integrity", outcome, map[string]any{
		"file_path":     path,
		"expected_hash": expected,
		"current_hash":  fd.Hash,
		"is_valid":      valid,
	})
	return valid
}

func (l *Ledger) record(validationType string, outcome Outcome, details map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.report.Validations = append(l.report.Validations, ValidationRecord{
		Timestamp: float64(l.now().UnixNano()) / float64(time.Second),
		Type:      validationType,
		Outcome:   outcome,
		Details:   details,
	})
	if err := l.saveLocked(); err != nil {
		l.logger.Warn("failed to persist integrity report", logging.Error(err))
	}
}

// GenerateReport recomputes statistics, persists the report, and
// returns a copy. Not applicable outcomes are excluded from the
// success rate on both sides of the division.
func (l *Ledger) GenerateReport() Report {
	l.mu.Lock()
	defer l.mu.Unlock()

	generated := float64(l.now().UnixNano()) / float64(time.Second)
	l.report.GeneratedAt = &generated

	stats := Statistics{TotalValidations: len(l.report.Validations)}
	for _, record := range l.report.Validations {
		switch record.Outcome {
		case OutcomePass:
			stats.SuccessfulValidations++
		case OutcomeFail:
			stats.FailedValidations++
		default:
			stats.NotApplicable++
		}
	}
	if decided := stats.SuccessfulValidations + stats.FailedValidations; decided > 0 {
		stats.SuccessRate = float64(stats.SuccessfulValidations) / float64(decided)
	}
	l.report.Statistics = &stats

	if err := l.saveLocked(); err != nil {
		l.logger.Warn("failed to persist integrity report", logging.Error(err))
	}

	snapshot := l.report
	snapshot.Validations = make([]ValidationRecord, len(l.report.Validations))
	copy(snapshot.Validations, l.report.Validations)
	return snapshot
}

func (l *Ledger) saveLocked() error {
	data, err := json.MarshalIndent(l.report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(l.reportPath, data, 0o644)
}

package manifest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"clipforge/internal/digest"
	"clipforge/internal/fileutil"
	"clipforge/internal/logging"
	"clipforge/internal/services"
)

// FileInfo describes a file referenced by an artifact entry.
type FileInfo struct {
	Path          string `json:"path"`
	Hash          string `json:"hash"`
	Size          int64  `json:"size"`
	HashAlgorithm string `json:"hash_algorithm"`
}

// Entry is one artifact in the manifest.
type Entry struct {
	ID        string         `json:"id"`
	Stage     string         `json:"stage"`
	Timestamp float64        `json:"timestamp"`
	Datetime  string         `json:"datetime"`
	Info      map[string]any `json:"info"`
}

// Document is the persisted manifest for one process.
type Document struct {
	ProcessID         string         `json:"process_id"`
	CreationTime      float64        `json:"creation_time"`
	CreationTimeHuman string         `json:"creation_time_human"`
	Artifacts         []Entry        `json:"artifacts"`
	FinalReport       map[string]any `json:"final_report,omitempty"`
	FinalReportHash   string         `json:"final_report_hash,omitempty"`
}

// Manager records artifacts for a single process and persists the
// manifest on every mutation.
type Manager struct {
	mu           sync.Mutex
	document     Document
	outputDir    string
	manifestPath string
	logger       *slog.Logger
	now          func() time.Time
}

// New creates the process output directory and writes the initial
// manifest.
func New(outputDir, processID string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	dir := filepath.Join(outputDir, processID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "manifest", "init", "create output directory", err)
	}
	now := time.Now()
	manager := &Manager{
		document: Document{
			ProcessID:         processID,
			CreationTime:      unixSeconds(now),
			CreationTimeHuman: now.Format(time.RFC3339),
			Artifacts:         []Entry{},
		},
		outputDir:    dir,
		manifestPath: filepath.Join(dir, "artifacts_manifest.json"),
		logger:       logger.With(logging.String(logging.FieldComponent, "manifest"), logging.String(logging.FieldProcessID, processID)),
		now:          time.Now,
	}
	if err := manager.save(); err != nil {
		return nil, err
	}
	return manager, nil
}

// OutputDir returns the process output directory.
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// ManifestPath returns the location of the persisted manifest.
func (m *Manager) ManifestPath() string {
	return m.manifestPath
}

// Record appends an artifact entry. Any string value in info that
// names an existing regular file is expanded with its digest under a
// "<key>_info" sibling. The manifest is persisted before returning.
func (m *Manager) Record(info map[string]any) error {
	if info == nil {
		info = map[string]any{}
	}
	now := m.now()
	info["timestamp"] = unixSeconds(now)
	info["datetime"] = now.Format(time.RFC3339)

	stage, _ := info["stage"].(string)
	if stage == "" {
		stage = "unknown"
	}

	for key, value := range info {
		path, ok := value.(string)
		if !ok {
			continue
		}
		stat, err := os.Stat(path)
		if err != nil || !stat.Mode().IsRegular() {
			continue
		}
		fd, err := digest.File(path)
		if err != nil {
			m.logger.Warn("unable to digest referenced file", logging.String("path", path), logging.Error(err))
			continue
		}
		info[key+"_info"] = FileInfo{
			Path:          path,
			Hash:          fd.Hash,
			Size:          fd.Size,
			HashAlgorithm: fd.Algorithm,
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.document.Artifacts = append(m.document.Artifacts, Entry{
		ID:        fmt.Sprintf("%s_%d", stage, now.Unix()),
		Stage:     stage,
		Timestamp: unixSeconds(now),
		Datetime:  now.Format(time.RFC3339),
		Info:      info,
	})
	return m.saveLocked()
}

// CopyArtifact copies a file into the process output directory with
// digest verification and records the copy. Returns the destination
// path.
func (m *Manager) CopyArtifact(sourcePath, targetName string) (string, error) {
	if _, err := os.Stat(sourcePath); err != nil {
		return "", services.Wrap(services.ErrNotFound, "manifest", "copy artifact", sourcePath, err)
	}
	if targetName == "" {
		targetName = filepath.Base(sourcePath)
	}
	targetPath := filepath.Join(m.outputDir, targetName)
	if err := fileutil.CopyFileVerified(sourcePath, targetPath); err != nil {
		return "", services.Wrap(services.ErrStage, "manifest", "copy artifact", sourcePath, err)
	}

	fd, err := digest.File(targetPath)
	if err != nil {
		return "", err
	}
	if err := m.Record(map[string]any{
		"stage":       "artifact_copy",
		"source_path": sourcePath,
		"target_path": targetPath,
		"hash":        fd.Hash,
		"size":        fd.Size,
	}); err != nil {
		return "", err
	}
	m.logger.Info("artifact copied", logging.String("source", sourcePath), logging.String("target", targetPath))
	return targetPath, nil
}

// SaveFinalReport writes the final process report with a self-digest
// and mirrors it into the manifest. Returns the report path.
func (m *Manager) SaveFinalReport(report map[string]any) (string, error) {
	if report == nil {
		report = map[string]any{}
	}
	reportPath := filepath.Join(m.outputDir, "final_report.json")
	now := m.now()
	report["manifest_file"] = m.manifestPath
	report["saved_at"] = unixSeconds(now)
	report["saved_at_human"] = now.Format(time.RFC3339)

	// The digest covers the report without its own hash field.
	reportHash := digest.Data(report)
	report["report_hash"] = reportHash

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", services.Wrap(services.ErrStage, "manifest", "save final report", "encode report", err)
	}
	if err := os.WriteFile(reportPath, data, 0o644); err != nil {
		return "", services.Wrap(services.ErrStage, "manifest", "save final report", "write report", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.document.FinalReport = report
	m.document.FinalReportHash = reportHash
	if err := m.saveLocked(); err != nil {
		return "", err
	}
	m.logger.Info("final report saved", logging.String("path", reportPath))
	return reportPath, nil
}

// Entries returns a copy of the recorded artifact entries.
func (m *Manager) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]Entry, len(m.document.Artifacts))
	copy(entries, m.document.Artifacts)
	return entries
}

func (m *Manager) save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	data, err := json.MarshalIndent(m.document, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrStage, "manifest", "save", "encode manifest", err)
	}
	if err := os.WriteFile(m.manifestPath, data, 0o644); err != nil {
		return services.Wrap(services.ErrStage, "manifest", "save", "write manifest", err)
	}
	return nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

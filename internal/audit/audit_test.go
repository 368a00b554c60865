package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestTrail(t *testing.T) *Trail {
	t.Helper()
	trail, err := New(t.TempDir(), "proc-123", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return trail
}

func readRecord(t *testing.T, trail *Trail) Record {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(trail.Dir(), "audit.json"))
	if err != nil {
		t.Fatalf("read audit.json: %v", err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("decode audit.json: %v", err)
	}
	return record
}

func TestNewWritesRootRecordImmediately(t *testing.T) {
	trail := newTestTrail(t)

	record := readRecord(t, trail)
	if record.ProcessID != "proc-123" || record.Status != "started" {
		t.Fatalf("unexpected root record: %+v", record)
	}
	if record.Hostname == "" {
		t.Fatal("hostname missing from root record")
	}
	if len(record.Events) != 0 {
		t.Fatalf("expected no events yet, got %d", len(record.Events))
	}
	if _, err := os.Stat(filepath.Join(trail.Dir(), "audit.log")); err != nil {
		t.Fatalf("audit.log not written: %v", err)
	}
}

func TestRecordEventFlushesBothRenderings(t *testing.T) {
	trail := newTestTrail(t)
	if err := trail.RecordEvent("analysis", map[string]any{"streams": 2}); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	record := readRecord(t, trail)
	if len(record.Events) != 1 || record.Events[0].Type != "analysis" {
		t.Fatalf("json rendering missing event: %+v", record.Events)
	}

	text, err := os.ReadFile(filepath.Join(trail.Dir(), "audit.log"))
	if err != nil {
		t.Fatalf("read audit.log: %v", err)
	}
	if !strings.Contains(string(text), "analysis") || !strings.Contains(string(text), "streams: 2") {
		t.Fatalf("text rendering diverged:\n%s", text)
	}
}

func TestRecordFileOperationMissingFile(t *testing.T) {
	trail := newTestTrail(t)
	if err := trail.RecordFileOperation("read", "/nonexistent/video.mp4", nil); err != nil {
		t.Fatalf("RecordFileOperation must tolerate missing files: %v", err)
	}

	record := readRecord(t, trail)
	event := record.Events[0]
	if event.Type != "file_read" {
		t.Fatalf("event type = %s", event.Type)
	}
	if event.Details["file_hash"] != nil || event.Details["file_size"] != nil {
		t.Fatalf("missing file must record null digest: %+v", event.Details)
	}
}

func TestRecordFileOperationExistingFile(t *testing.T) {
	trail := newTestTrail(t)
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := trail.RecordFileOperation("create", path, map[string]any{"stage": "editing"}); err != nil {
		t.Fatalf("RecordFileOperation: %v", err)
	}

	event := readRecord(t, trail).Events[0]
	hash, _ := event.Details["file_hash"].(string)
	if len(hash) != 64 {
		t.Fatalf("expected sha256 hex digest, got %q", hash)
	}
	if size, _ := event.Details["file_size"].(float64); size != 7 {
		t.Fatalf("file_size = %v", event.Details["file_size"])
	}
}

func TestRecordTransformationDigestsBothSides(t *testing.T) {
	trail := newTestTrail(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "landscape.mp4")
	output := filepath.Join(dir, "portrait.mp4")
	if err := os.WriteFile(input, []byte("wide"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := os.WriteFile(output, []byte("tall"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if err := trail.RecordTransformation("adapting", input, output, map[string]any{"aspect": "9:16"}); err != nil {
		t.Fatalf("RecordTransformation: %v", err)
	}

	event := readRecord(t, trail).Events[0]
	if event.Type != "transformation" {
		t.Fatalf("event type = %s", event.Type)
	}
	if event.Details["type"] != "adapting" {
		t.Fatalf("transformation kind = %v", event.Details["type"])
	}
	inHash, _ := event.Details["input_hash"].(string)
	outHash, _ := event.Details["output_hash"].(string)
	if len(inHash) != 64 || len(outHash) != 64 {
		t.Fatalf("digests missing: in=%q out=%q", inHash, outHash)
	}
	if inHash == outHash {
		t.Fatal("distinct files produced the same digest")
	}
}

func TestRecordTransformationMissingInput(t *testing.T) {
	trail := newTestTrail(t)
	output := filepath.Join(t.TempDir(), "cut.mp4")
	if err := os.WriteFile(output, []byte("cut"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if err := trail.RecordTransformation("editing", "/nonexistent/source.mp4", output, nil); err != nil {
		t.Fatalf("RecordTransformation must tolerate missing files: %v", err)
	}

	event := readRecord(t, trail).Events[0]
	if event.Details["input_hash"] != nil {
		t.Fatalf("missing input must record null digest: %+v", event.Details)
	}
	if hash, _ := event.Details["output_hash"].(string); len(hash) != 64 {
		t.Fatalf("output digest missing: %+v", event.Details)
	}
}

func TestRecordValidationFailureSetsFlag(t *testing.T) {
	trail := newTestTrail(t)
	if err := trail.RecordValidation("hash_chain", false, map[string]any{"index": 2}); err != nil {
		t.Fatalf("RecordValidation: %v", err)
	}
	record := readRecord(t, trail)
	if !record.HasValidationErrors {
		t.Fatal("validation failure did not set flag")
	}
}

func TestCompleteRecordsDuration(t *testing.T) {
	trail := newTestTrail(t)
	trail.started = time.Now().Add(-3661 * time.Second)
	if err := trail.Complete(map[string]any{"output": "final.mp4"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	record := readRecord(t, trail)
	if record.Status != "completed" || record.EndTime == nil || record.Duration == nil {
		t.Fatalf("incomplete terminal record: %+v", record)
	}
	event := record.Events[len(record.Events)-1]
	human, _ := event.Details["duration_human"].(string)
	if !strings.HasPrefix(human, "01:01:") {
		t.Fatalf("duration_human = %q, want 01:01:SS", human)
	}
}

func TestFailNeverErrors(t *testing.T) {
	var nilTrail *Trail
	nilTrail.Fail("boom", nil)

	trail := newTestTrail(t)
	trail.Fail("download failed", map[string]any{"url": "https://example.com/v"})

	record := readRecord(t, trail)
	if record.Status != "error" || record.Error != "download failed" {
		t.Fatalf("failure not recorded: %+v", record)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00"},
		{59.9, "00:00:59"},
		{61, "00:01:01"},
		{3600, "01:00:00"},
		{7325, "02:02:05"},
	}
	for _, tc := range cases {
		if got := formatDuration(tc.seconds); got != tc.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

package integrity

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"clipforge/internal/digest"
	"clipforge/internal/services"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	ledger, err := New(t.TempDir(), "proc-9", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ledger
}

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.bin")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestHashFileRecordsAndPersists(t *testing.T) {
	ledger := newTestLedger(t)
	path := writeFixture(t, "media bytes")

	hash, err := ledger.HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if len(hash) != 64 {
		t.Fatalf("unexpected digest %q", hash)
	}

	data, err := os.ReadFile(ledger.ReportPath())
	if err != nil {
		t.Fatalf("report not persisted: %v", err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(report.Validations) != 1 || report.Validations[0].Type != "file_hash" {
		t.Fatalf("unexpected validations: %+v", report.Validations)
	}
}

func TestHashFileMissing(t *testing.T) {
	ledger := newTestLedger(t)
	_, err := ledger.HashFile("/no/such/file")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found marker, got %v", err)
	}
	report := ledger.GenerateReport()
	if report.Statistics.FailedValidations != 1 {
		t.Fatalf("failure not recorded: %+v", report.Statistics)
	}
}

func TestVerifyFile(t *testing.T) {
	ledger := newTestLedger(t)
	path := writeFixture(t, "payload")
	fd, err := digest.File(path)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}

	if !ledger.VerifyFile(path, fd.Hash) {
		t.Fatal("matching digest rejected")
	}
	if ledger.VerifyFile(path, "deadbeef") {
		t.Fatal("mismatched digest accepted")
	}
	if ledger.VerifyFile("/no/such/file", fd.Hash) {
		t.Fatal("missing file accepted")
	}

	report := ledger.GenerateReport()
	if report.Statistics.SuccessfulValidations != 1 || report.Statistics.FailedValidations != 2 {
		t.Fatalf("unexpected statistics: %+v", report.Statistics)
	}
}

func TestVerifyChainValid(t *testing.T) {
	ledger := newTestLedger(t)
	payloadA := map[string]any{"stage": "analyzing", "streams": 2}
	payloadB := map[string]any{"stage": "editing", "cuts": 3}
	hashA := digest.Data(payloadA)
	hashB := digest.Data(payloadB)

	result := ledger.VerifyChain([]ChainRecord{
		{Stage: "analyzing", Timestamp: 1, DataHash: hashA, Data: payloadA},
		{Stage: "editing", Timestamp: 2, DataHash: hashB, Data: payloadB, PreviousHash: hashA},
	})
	if !result.Valid {
		t.Fatalf("valid chain rejected: %+v", result)
	}
	for _, entry := range result.Results {
		if !entry.Valid {
			t.Fatalf("entry %d invalid: %+v", entry.Index, entry)
		}
	}
}

func TestVerifyChainEmpty(t *testing.T) {
	ledger := newTestLedger(t)
	if result := ledger.VerifyChain(nil); result.Valid {
		t.Fatal("empty chain must be invalid")
	}
}

func TestVerifyChainBreakInvalidatesSuffixOnly(t *testing.T) {
	ledger := newTestLedger(t)
	payloads := []map[string]any{
		{"stage": "acquiring"},
		{"stage": "analyzing"},
		{"stage": "editing"},
		{"stage": "adapting"},
	}
	records := make([]ChainRecord, len(payloads))
	for i, payload := range payloads {
		records[i] = ChainRecord{
			Stage:     payload["stage"].(string),
			Timestamp: float64(i + 1),
			DataHash:  digest.Data(payload),
			Data:      payload,
		}
		if i > 0 {
			records[i].PreviousHash = records[i-1].DataHash
		}
	}
	records[2].PreviousHash = "tampered"

	result := ledger.VerifyChain(records)
	if result.Valid {
		t.Fatal("broken chain accepted")
	}
	for _, entry := range result.Results {
		if entry.Index < 2 && !entry.Valid {
			t.Fatalf("entry %d before the break marked invalid", entry.Index)
		}
		if entry.Index >= 2 && entry.Valid {
			t.Fatalf("entry %d after the break marked valid", entry.Index)
		}
	}
}

func TestVerifyChainMissingOptionalFieldsNotApplicable(t *testing.T) {
	ledger := newTestLedger(t)
	result := ledger.VerifyChain([]ChainRecord{
		{Stage: "acquiring", Timestamp: 1, DataHash: "aaa"},
		{Stage: "analyzing", Timestamp: 2, DataHash: "bbb"},
	})
	if !result.Valid {
		t.Fatalf("chain with only unperformable checks must not fail: %+v", result)
	}
	// Two hash checks and two prev checks skipped (first link has no
	// predecessor, second carries no previous_hash).
	if result.NotApplicable != 4 {
		t.Fatalf("not applicable count = %d, want 4", result.NotApplicable)
	}
}

func TestVerifyChainIncompleteLink(t *testing.T) {
	ledger := newTestLedger(t)
	result := ledger.VerifyChain([]ChainRecord{
		{Stage: "acquiring", Timestamp: 1, DataHash: "aaa"},
		{Timestamp: 2, DataHash: "bbb"},
	})
	if result.Valid {
		t.Fatal("chain with incomplete link accepted")
	}
	if result.Results[1].Error == "" {
		t.Fatal("incomplete link missing error annotation")
	}
	if !result.Results[0].Valid {
		t.Fatal("complete link penalized for sibling")
	}
}

func TestSignAndVerifySignature(t *testing.T) {
	ledger := newTestLedger(t)
	payload := map[string]any{"output": "final.mp4", "duration": 42}

	signature, err := ledger.Sign(payload, "secret-key")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !ledger.VerifySignature(payload, signature, "secret-key") {
		t.Fatal("valid signature rejected")
	}
	if ledger.VerifySignature(payload, signature, "other-key") {
		t.Fatal("signature verified with wrong secret")
	}
	if ledger.VerifySignature(map[string]any{"output": "tampered"}, signature, "secret-key") {
		t.Fatal("signature verified for tampered payload")
	}
}

func TestSignatureKeyOrderInvariant(t *testing.T) {
	ledger := newTestLedger(t)
	first, err := ledger.Sign(map[string]any{"a": 1, "b": 2}, "k")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	second, err := ledger.Sign(map[string]any{"b": 2, "a": 1}, "k")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if first != second {
		t.Fatal("logically identical payloads produced different signatures")
	}
}

func TestGenerateReportStatistics(t *testing.T) {
	ledger := newTestLedger(t)
	path := writeFixture(t, "x")
	fd, _ := digest.File(path)

	ledger.HashData(map[string]any{"k": "v"})
	ledger.VerifyFile(path, fd.Hash)
	ledger.VerifyFile(path, "wrong")

	report := ledger.GenerateReport()
	stats := report.Statistics
	if stats.TotalValidations != 3 {
		t.Fatalf("total = %d", stats.TotalValidations)
	}
	if stats.NotApplicable != 1 {
		t.Fatalf("not applicable = %d", stats.NotApplicable)
	}
	if stats.SuccessRate != 0.5 {
		t.Fatalf("success rate = %v, want 0.5", stats.SuccessRate)
	}
	if report.GeneratedAt == nil || *report.GeneratedAt < float64(time.Now().Add(-time.Minute).Unix()) {
		t.Fatalf("generated_at not stamped: %+v", report.GeneratedAt)
	}
}

func TestGenerateReportEmpty(t *testing.T) {
	ledger := newTestLedger(t)
	report := ledger.GenerateReport()
	if report.Statistics.SuccessRate != 0 {
		t.Fatalf("empty ledger success rate = %v", report.Statistics.SuccessRate)
	}
}

package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"clipforge/internal/services"
)

// flushLocked writes both renderings. Callers must hold the mutex.
func (t *Trail) flushLocked() error {
	data, err := json.MarshalIndent(t.record, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrStage, "audit", "flush", "encode audit record", err)
	}
	if err := os.WriteFile(t.jsonPath, data, 0o644); err != nil {
		return services.Wrap(services.ErrStage, "audit", "flush", "write audit.json", err)
	}
	if err := os.WriteFile(t.logPath, []byte(t.renderText()), 0o644); err != nil {
		return services.Wrap(services.ErrStage, "audit", "flush", "write audit.log", err)
	}
	return nil
}

// renderText builds the human-readable rendering from the same record
// the JSON rendering serializes.
func (t *Trail) renderText() string {
	var b strings.Builder
	b.WriteString("=== AUDIT TRAIL ===\n")
	fmt.Fprintf(&b, "Process ID: %s\n", t.record.ProcessID)
	fmt.Fprintf(&b, "Hostname: %s\n", t.record.Hostname)
	fmt.Fprintf(&b, "Started: %s\n", t.record.StartTimeHuman)
	fmt.Fprintf(&b, "Status: %s\n", t.record.Status)
	if t.record.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", t.record.Error)
	}
	if t.record.Duration != nil {
		fmt.Fprintf(&b, "Duration: %s\n", formatDuration(*t.record.Duration))
	}
	b.WriteString("\n=== EVENTS ===\n")
	for _, event := range t.record.Events {
		fmt.Fprintf(&b, "\n[%s] %s\n", event.Datetime, event.Type)
		writeDetails(&b, event.Details, "  ")
	}
	return b.String()
}

func writeDetails(b *strings.Builder, details map[string]any, indent string) {
	keys := make([]string, 0, len(details))
	for key := range details {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		writeValue(b, key, details[key], indent)
	}
}

func writeValue(b *strings.Builder, key string, value any, indent string) {
	switch v := value.(type) {
	case map[string]any:
		fmt.Fprintf(b, "%s%s:\n", indent, key)
		writeDetails(b, v, indent+"  ")
	case []any:
		fmt.Fprintf(b, "%s%s:\n", indent, key)
		for _, item := range v {
			fmt.Fprintf(b, "%s  - %v\n", indent, item)
		}
	case nil:
		fmt.Fprintf(b, "%s%s: null\n", indent, key)
	default:
		fmt.Fprintf(b, "%s%s: %v\n", indent, key, v)
	}
}

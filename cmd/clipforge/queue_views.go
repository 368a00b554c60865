package main

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"clipforge/internal/queue"
)

var titleCaser = cases.Title(language.Und)

// stageLabel renders a stage or status identifier for display, for
// example "analyzing" becomes "Analyzing".
func stageLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return titleCaser.String(strings.ReplaceAll(value, "_", " "))
}

func renderTaskTable(tasks []*queue.Task) string {
	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		rows = append(rows, []string{
			shortID(task.ID),
			stageLabel(string(task.Status)),
			stageLabel(task.Stage),
			fmt.Sprintf("%.0f%%", task.Progress),
			fmt.Sprintf("%d", task.Priority),
			truncate(task.Parameters.SourceURL, 48),
			task.CreatedAt.Local().Format(time.DateTime),
		})
	}
	return renderTable(
		[]string{"ID", "Status", "Stage", "Progress", "Priority", "Source", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}

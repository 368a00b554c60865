package queue

import (
	"encoding/json"
	"strings"
	"time"
)

// Status represents the lifecycle of a conversion task.
type Status string

const (
	StatusPending     Status = "pending"
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusInterrupted Status = "interrupted"
	StatusCancelled   Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusInterrupted,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// Parameters describes one conversion request.
type Parameters struct {
	SourceURL    string   `json:"source_url"`
	AudioQuality string   `json:"audio_quality"`
	VideoQuality string   `json:"video_quality"`
	Publish      bool     `json:"publish"`
	Hashtags     []string `json:"hashtags,omitempty"`
}

// Task represents a durable unit of work persisted in SQLite.
type Task struct {
	ID              string     `json:"id"`
	ProcessID       string     `json:"process_id"`
	Status          Status     `json:"status"`
	Priority        int        `json:"priority"`
	Parameters      Parameters `json:"parameters"`
	Progress        float64    `json:"progress"`
	Message         string     `json:"message,omitempty"`
	Stage           string     `json:"stage,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	WorkerID        string     `json:"worker_id,omitempty"`
	CancelRequested bool       `json:"cancel_requested"`
	ResultPath      string     `json:"result_path,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status accepts no further transitions.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// IsTerminal reports whether the task reached a terminal status.
func (t *Task) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// HealthSummary describes aggregated queue counts per key lifecycle state.
type HealthSummary struct {
	Total       int `json:"total"`
	Pending     int `json:"pending"`
	Processing  int `json:"processing"`
	Completed   int `json:"completed"`
	Failed      int `json:"failed"`
	Interrupted int `json:"interrupted"`
	Cancelled   int `json:"cancelled"`
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	IntegrityCheck   bool
	TotalTasks       int
	Error            string
}

func encodeParameters(params Parameters) (string, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeParameters(raw string) (Parameters, error) {
	var params Parameters
	if strings.TrimSpace(raw) == "" {
		return params, nil
	}
	err := json.Unmarshal([]byte(raw), &params)
	return params, err
}

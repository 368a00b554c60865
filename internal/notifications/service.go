package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clipforge/internal/config"
)

const userAgent = "ClipForge-Go/0.1.0"

// Service defines the notification surface exposed to the worker.
type Service interface {
	NotifyTaskStarted(ctx context.Context, taskID, sourceURL string) error
	NotifyTaskCompleted(ctx context.Context, taskID, resultPath string, duration time.Duration) error
	NotifyTaskFailed(ctx context.Context, taskID, reason string) error
	NotifyTaskCancelled(ctx context.Context, taskID string) error
	NotifyPublished(ctx context.Context, taskID, videoURL string) error
	NotifyError(ctx context.Context, err error, detail string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when
// configured. When no topic is configured, a noop implementation is
// returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		completion: cfg.Notifications.Completion,
		errors:     cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	completion bool
	errors     bool
}

func (n *ntfyService) NotifyTaskStarted(ctx context.Context, taskID, sourceURL string) error {
	if !n.completion {
		return nil
	}
	data := payload{
		title:   "ClipForge - Conversion Started",
		message: fmt.Sprintf("Processing %s\nTask %s", strings.TrimSpace(sourceURL), taskID),
		tags:    []string{"clipforge", "task", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTaskCompleted(ctx context.Context, taskID, resultPath string, duration time.Duration) error {
	if !n.completion {
		return nil
	}
	data := payload{
		title:   "ClipForge - Conversion Complete",
		message: fmt.Sprintf("Task %s finished in %s\n%s", taskID, duration.Round(time.Second), resultPath),
		tags:    []string{"clipforge", "task", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTaskFailed(ctx context.Context, taskID, reason string) error {
	if !n.errors {
		return nil
	}
	data := payload{
		title:    "ClipForge - Conversion Failed",
		message:  fmt.Sprintf("Task %s failed: %s", taskID, strings.TrimSpace(reason)),
		tags:     []string{"clipforge", "task", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTaskCancelled(ctx context.Context, taskID string) error {
	if !n.completion {
		return nil
	}
	data := payload{
		title:   "ClipForge - Conversion Cancelled",
		message: fmt.Sprintf("Task %s cancelled", taskID),
		tags:    []string{"clipforge", "task", "cancelled"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPublished(ctx context.Context, taskID, videoURL string) error {
	if !n.completion {
		return nil
	}
	data := payload{
		title:   "ClipForge - Published",
		message: fmt.Sprintf("Task %s published\n%s", taskID, videoURL),
		tags:    []string{"clipforge", "publish", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, detail string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if detail = strings.TrimSpace(detail); detail != "" {
		builder.WriteString(" during ")
		builder.WriteString(detail)
	}
	if err != nil {
		builder.WriteString(": ")
		builder.WriteString(err.Error())
	}
	data := payload{
		title:    "ClipForge - Error",
		message:  builder.String(),
		tags:     []string{"clipforge", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "ClipForge - Test",
		message:  "Notification system test",
		tags:     []string{"clipforge", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyTaskStarted(context.Context, string, string) error { return nil }
func (noopService) NotifyTaskCompleted(context.Context, string, string, time.Duration) error {
	return nil
}
func (noopService) NotifyTaskFailed(context.Context, string, string) error { return nil }
func (noopService) NotifyTaskCancelled(context.Context, string) error      { return nil }
func (noopService) NotifyPublished(context.Context, string, string) error  { return nil }
func (noopService) NotifyError(context.Context, error, string) error       { return nil }
func (noopService) TestNotification(context.Context) error                 { return nil }

package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyTaskCompleted(context.Background(), "t1", "/out/final.mp4", time.Minute); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceSendsEvents(t *testing.T) {
	type captured struct {
		title    string
		message  string
		tags     string
		priority string
	}
	var got captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = captured{
			title:    r.Header.Get("Title"),
			message:  string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Completion = true
	cfg.Notifications.Errors = true
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyTaskCompleted(context.Background(), "task-9", "/out/final.mp4", 90*time.Second); err != nil {
		t.Fatalf("NotifyTaskCompleted: %v", err)
	}
	if got.title != "ClipForge - Conversion Complete" {
		t.Fatalf("title = %q", got.title)
	}
	if got.tags != "clipforge,task,completed" {
		t.Fatalf("tags = %q", got.tags)
	}

	if err := svc.NotifyTaskFailed(context.Background(), "task-9", "encoder exited"); err != nil {
		t.Fatalf("NotifyTaskFailed: %v", err)
	}
	if got.priority != "high" {
		t.Fatalf("failure priority = %q", got.priority)
	}
}

func TestNtfyServiceRespectsToggles(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Completion = false
	cfg.Notifications.Errors = false
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyTaskCompleted(context.Background(), "t", "/x", time.Second); err != nil {
		t.Fatalf("NotifyTaskCompleted: %v", err)
	}
	if err := svc.NotifyTaskFailed(context.Background(), "t", "boom"); err != nil {
		t.Fatalf("NotifyTaskFailed: %v", err)
	}
	if requests != 0 {
		t.Fatalf("disabled toggles still sent %d requests", requests)
	}
}

func TestNtfyServiceSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

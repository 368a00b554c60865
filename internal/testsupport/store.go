package testsupport

import (
	"context"
	"testing"

	"clipforge/internal/config"
	"clipforge/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SubmitTask enqueues a conversion task for tests using the provided store.
func SubmitTask(t testing.TB, store *queue.Store, sourceURL string, priority int) *queue.Task {
	t.Helper()

	task, err := store.Submit(context.Background(), queue.Parameters{
		SourceURL:    sourceURL,
		AudioQuality: "high",
		VideoQuality: "high",
	}, priority)
	if err != nil {
		t.Fatalf("store.Submit: %v", err)
	}
	return task
}

package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"clipforge/internal/config"
	"clipforge/internal/queue"
)

// minFreeBytes is the free-space floor for the output and temp
// directories. Intermediate renders for a single task can reach a few
// hundred megabytes, so anything under 1 GiB is flagged.
const minFreeBytes = 1 << 30

// CheckResult reports the outcome of a single preflight check.
type CheckResult struct {
	Name   string
	Passed bool
	Detail string
}

// Preflight executes the startup checks for the given config and store.
// Optional subsystems are only checked when configured.
func Preflight(ctx context.Context, cfg *config.Config, store *queue.Store) []CheckResult {
	if cfg == nil {
		return nil
	}

	results := []CheckResult{
		checkDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		checkDirectoryAccess("Temp directory", cfg.Paths.TempDir),
		checkDirectoryAccess("Log directory", cfg.Paths.LogDir),
		checkDiskSpace("Output disk space", cfg.Paths.OutputDir),
		checkDiskSpace("Temp disk space", cfg.Paths.TempDir),
	}

	if store != nil {
		results = append(results, checkQueueDatabase(ctx, store))
	}
	if cfg.ObjectStore.Enabled {
		results = append(results, checkObjectStore(ctx, cfg.ObjectStore))
	}
	if strings.TrimSpace(cfg.Integrity.SigningSecret) == "" {
		results = append(results, CheckResult{
			Name:   "Signing secret",
			Detail: "not configured, final reports will be unsigned",
		})
	} else {
		results = append(results, CheckResult{Name: "Signing secret", Passed: true, Detail: "configured"})
	}

	return results
}

// checkDirectoryAccess verifies that the directory exists and is
// readable, writable, and traversable.
func checkDirectoryAccess(name, path string) CheckResult {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return CheckResult{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return CheckResult{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return CheckResult{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return CheckResult{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return CheckResult{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// checkDiskSpace verifies the filesystem holding path has headroom for
// intermediate and final renders.
func checkDiskSpace(name, path string) CheckResult {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return CheckResult{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s (%.1f GiB free)", path, float64(free)/float64(1<<30))
	if free < minFreeBytes {
		return CheckResult{Name: name, Detail: detail + " below 1 GiB minimum"}
	}
	return CheckResult{Name: name, Passed: true, Detail: detail}
}

func checkQueueDatabase(ctx context.Context, store *queue.Store) CheckResult {
	const name = "Queue database"
	health, err := store.CheckHealth(ctx)
	if err != nil {
		return CheckResult{Name: name, Detail: fmt.Sprintf("health check failed: %v", err)}
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.TableExists || !health.IntegrityCheck {
		detail := health.Error
		if detail == "" {
			detail = "database missing, unreadable, or failed integrity check"
		}
		return CheckResult{Name: name, Detail: detail}
	}
	return CheckResult{Name: name, Passed: true, Detail: fmt.Sprintf("schema ok, %d tasks", health.TotalTasks)}
}

// checkObjectStore confirms the upload endpoint answers at all. Any
// HTTP status counts as reachable since unauthenticated probes are
// commonly rejected with 401 or 403.
func checkObjectStore(ctx context.Context, cfg config.ObjectStore) CheckResult {
	const name = "Object store"
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return CheckResult{Name: name, Detail: "enabled but endpoint missing"}
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return CheckResult{Name: name, Detail: "enabled but bucket missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, endpoint+"/"+cfg.Bucket, nil)
	if err != nil {
		return CheckResult{Name: name, Detail: fmt.Sprintf("probe failed (%v)", err)}
	}
	if token := strings.TrimSpace(cfg.AccessToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return CheckResult{Name: name, Detail: fmt.Sprintf("unreachable (%v)", err)}
	}
	resp.Body.Close()
	return CheckResult{Name: name, Passed: true, Detail: fmt.Sprintf("reachable (%d)", resp.StatusCode)}
}

package manifest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/services"
)

const uploadUserAgent = "ClipForge-Go/0.1.0"

// UploadInfo describes a completed object-store upload.
type UploadInfo struct {
	FilePath  string `json:"file_path"`
	Bucket    string `json:"bucket_name"`
	ObjectKey string `json:"object_key"`
	ObjectURL string `json:"object_url"`
	FileSize  int64  `json:"file_size"`
}

// Uploader pushes artifacts to the configured object store over HTTP.
type Uploader struct {
	endpoint string
	bucket   string
	token    string
	client   *http.Client
}

// NewUploader builds an uploader from the object store configuration.
// Returns nil when uploads are disabled.
func NewUploader(cfg config.ObjectStore) *Uploader {
	if !cfg.Enabled {
		return nil
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Uploader{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		bucket:   cfg.Bucket,
		token:    cfg.AccessToken,
		client:   &http.Client{Timeout: timeout},
	}
}

// Upload sends a file to the object store via HTTP PUT and records the
// upload in the manifest. An empty objectKey defaults to
// "{process_id}/{filename}".
func (m *Manager) Upload(ctx context.Context, uploader *Uploader, filePath, objectKey string) (UploadInfo, error) {
	if uploader == nil {
		return UploadInfo{}, services.Wrap(services.ErrConfiguration, "manifest", "upload", "object store not configured", nil)
	}
	stat, err := os.Stat(filePath)
	if err != nil {
		return UploadInfo{}, services.Wrap(services.ErrNotFound, "manifest", "upload", filePath, err)
	}
	if objectKey == "" {
		objectKey = m.document.ProcessID + "/" + filepath.Base(filePath)
	}

	info, err := uploader.put(ctx, filePath, objectKey, stat.Size())
	if err != nil {
		return UploadInfo{}, err
	}
	if err := m.Record(map[string]any{
		"stage":       "object_upload",
		"file_path":   info.FilePath,
		"bucket_name": info.Bucket,
		"object_key":  info.ObjectKey,
		"object_url":  info.ObjectURL,
		"file_size":   info.FileSize,
	}); err != nil {
		return UploadInfo{}, err
	}
	m.logger.Info("artifact uploaded", logging.String("url", info.ObjectURL))
	return info, nil
}

func (u *Uploader) put(ctx context.Context, filePath, objectKey string, size int64) (UploadInfo, error) {
	in, err := os.Open(filePath)
	if err != nil {
		return UploadInfo{}, services.Wrap(services.ErrTransport, "manifest", "upload", "open file", err)
	}
	defer in.Close()

	target := fmt.Sprintf("%s/%s/%s", u.endpoint, url.PathEscape(u.bucket), escapeKey(objectKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, in)
	if err != nil {
		return UploadInfo{}, services.Wrap(services.ErrTransport, "manifest", "upload", "build request", err)
	}
	req.ContentLength = size
	req.Header.Set("User-Agent", uploadUserAgent)
	req.Header.Set("Content-Type", "application/octet-stream")
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return UploadInfo{}, services.Wrap(services.ErrTransport, "manifest", "upload", objectKey, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return UploadInfo{}, services.Wrap(services.ErrTransport, "manifest", "upload",
			fmt.Sprintf("object store returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return UploadInfo{
		FilePath:  filePath,
		Bucket:    u.bucket,
		ObjectKey: objectKey,
		ObjectURL: fmt.Sprintf("https://%s/%s", u.bucket, objectKey),
		FileSize:  size,
	}, nil
}

// escapeKey escapes each path segment while keeping separators.
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

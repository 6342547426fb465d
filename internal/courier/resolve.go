package courier

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Valecer/market-sub001/internal/domainerr"
	"github.com/google/uuid"
)

// ResolveFileURL normalizes the four shapes a courier job's file_url may
// take into a local filesystem path the ETL service can read:
//   - "file://" or an absolute path: used directly.
//   - a relative path: joined to uploadsDir.
//   - an "http(s)://" URL: streamed into uploadsDir under a generated name,
//     written to a temp file and atomically renamed so a concurrent reader
//     never observes a partial download.
func ResolveFileURL(ctx context.Context, rawURL, uploadsDir string) (string, error) {
	if strings.HasPrefix(rawURL, "file://") {
		return strings.TrimPrefix(rawURL, "file://"), nil
	}
	if strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://") {
		return downloadToUploads(ctx, rawURL, uploadsDir)
	}
	if filepath.IsAbs(rawURL) {
		return rawURL, nil
	}
	return filepath.Join(uploadsDir, rawURL), nil
}

func downloadToUploads(ctx context.Context, rawURL, uploadsDir string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", domainerr.Validation("courier: invalid file url %q: %v", rawURL, err)
	}

	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		return "", domainerr.Wrap(domainerr.KindNetwork, err, "courier: create uploads dir")
	}

	ext := filepath.Ext(parsed.Path)
	name := uuid.NewString() + ext
	finalPath := filepath.Join(uploadsDir, name)
	tmpPath := finalPath + ".part"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", domainerr.Wrap(domainerr.KindNetwork, err, "courier: build download request for %s", rawURL)
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return "", domainerr.Wrap(domainerr.KindNetwork, err, "courier: download %s", rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", domainerr.Network("courier: download %s returned status %d", rawURL, resp.StatusCode)
	}

	out, err := os.Create(tmpPath)
	if err != nil {
		return "", domainerr.Wrap(domainerr.KindNetwork, err, "courier: create temp file for %s", rawURL)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return "", domainerr.Wrap(domainerr.KindNetwork, err, "courier: write downloaded body for %s", rawURL)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return "", domainerr.Wrap(domainerr.KindNetwork, err, "courier: close temp file for %s", rawURL)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", domainerr.Wrap(domainerr.KindNetwork, err, "courier: rename temp file for %s", rawURL)
	}
	return finalPath, nil
}

// DetectFileKind infers the ETL file_type enum from a path's extension.
func DetectFileKind(path string) (FileKind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FilePDF, nil
	case ".xlsx", ".xls":
		return FileExcel, nil
	case ".csv":
		return FileCSV, nil
	default:
		return "", domainerr.Validation("courier: cannot infer file type from %q", path)
	}
}

// CleanupSharedFiles removes files under uploadsDir whose modification time
// is older than ttl, matching the cleanup task's mtime-gated deletion
// (spec 4.N step 5 / worker.py's cleanup_shared_files_task) — it never
// deletes a file still inside the TTL window even if asked to run early.
func CleanupSharedFiles(uploadsDir string, ttl time.Duration) (removed int, err error) {
	entries, err := os.ReadDir(uploadsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, domainerr.Wrap(domainerr.KindNetwork, err, "courier: list uploads dir")
	}

	cutoff := time.Now().Add(-ttl)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(uploadsDir, entry.Name())
			if err := os.Remove(path); err != nil {
				return removed, domainerr.Wrap(domainerr.KindNetwork, err, "courier: remove stale file %s", path)
			}
			removed++
		}
	}
	return removed, nil
}

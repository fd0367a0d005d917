package wechat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	wechatapi "github.com/jonny/chatbridge/internal/adapter/outbound/wechat"
)

// MediaAPI uploads a local file as platform media.
type MediaAPI interface {
	UploadMedia(ctx context.Context, kind wechatapi.MediaKind, path string) (string, error)
}

// MediaUploader turns a remote media URL into a platform media id by staging
// the file in a per-call temporary directory.
type MediaUploader struct {
	api        MediaAPI
	httpClient *http.Client
	tempRoot   string
	logger     *slog.Logger
}

// NewMediaUploader creates an uploader. tempRoot is the parent of the per-call
// directories; empty means os.TempDir.
func NewMediaUploader(api MediaAPI, httpClient *http.Client, tempRoot string, logger *slog.Logger) *MediaUploader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaUploader{api: api, httpClient: httpClient, tempRoot: tempRoot, logger: logger}
}

// Upload downloads url into a fresh temporary directory, uploads it as kind,
// and returns the media id. The directory is removed on every exit path; a
// removal failure is logged, not returned.
func (u *MediaUploader) Upload(ctx context.Context, url string, kind wechatapi.MediaKind, filename string) (string, error) {
	dir, err := os.MkdirTemp(u.tempRoot, "chatbridge-media-")
	if err != nil {
		return "", fmt.Errorf("create media temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			u.logger.Warn("removing media temp dir", "dir", dir, "error", err)
		}
	}()

	path := filepath.Join(dir, safeFilename(filename))
	if err := u.download(ctx, url, path); err != nil {
		return "", err
	}

	mediaID, err := u.api.UploadMedia(ctx, kind, path)
	if err != nil {
		return "", fmt.Errorf("upload %s media: %w", kind, err)
	}
	u.logger.Debug("media uploaded", "kind", kind, "media_id", mediaID)
	return mediaID, nil
}

func (u *MediaUploader) download(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create media download request: %w", err)
	}
	resp, err := u.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("download media: unexpected status %d", resp.StatusCode)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create media file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("write media file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close media file: %w", err)
	}
	return nil
}

func safeFilename(name string) string {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) || base == ".." {
		return "media"
	}
	return base
}

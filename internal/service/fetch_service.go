package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/h2non/filetype"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

// sniffLen is how much of a file filetype needs to recognise it.
const sniffLen = 262

type FetchService struct {
	dir    string
	client *http.Client
	mirror Mirror
	log    *zap.Logger
}

// NewFetchService stores downloads in dir. mirror may be nil.
func NewFetchService(dir string, client *http.Client, mirror Mirror, log *zap.Logger) *FetchService {
	if client == nil {
		client = http.DefaultClient
	}
	return &FetchService{dir: dir, client: client, mirror: mirror, log: log}
}

// Fetch downloads url into the media directory and returns the file's path.
func (s *FetchService) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, "download-*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	ext, mime, err := sniff(tmpPath)
	if err != nil {
		return "", err
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	name := id
	if ext != "" {
		name += "." + ext
	}

	path := filepath.Join(s.dir, name)
	if err := os.Rename(tmpPath, path); err != nil {
		return "", err
	}

	if s.mirror != nil {
		if err := s.mirror.Mirror(ctx, name, path, mime); err != nil {
			s.log.Warn("media mirror failed", zap.String("url", url), zap.String("key", name), zap.Error(err))
		}
	}

	return path, nil
}

// sniff returns the extension and MIME type of the file, both empty when the
// content is not recognised.
func sniff(path string) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", "", err
	}

	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return "", "", nil
	}
	return kind.Extension, kind.MIME.Value, nil
}

// Package modelcache manages the on-disk directory of downloadable
// speech-recognition model variants.
package modelcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"video-summary/internal/domain"
)

const downloadChunkSize = 64 * 1024

// ProgressFunc receives cumulative bytes transferred after each chunk.
// Total is the remote-reported size, or -1 when the transfer does not
// expose one; callers must not derive a percentage in that case. The
// callback is invoked synchronously and must return promptly.
type ProgressFunc func(received, total int64)

// Cache lazily provisions model files under a single directory. The
// directory may be shared by concurrent runs; writes are serialized per
// variant and land via atomic rename, so a racing duplicate download
// overwrites safely.
type Cache struct {
	dir     string
	client  *http.Client
	baseURL string

	mu    sync.Mutex
	locks map[domain.ModelVariant]*sync.Mutex
}

// New creates a cache rooted at dir using the given HTTP client.
func New(dir string, client *http.Client) *Cache {
	if client == nil {
		client = http.DefaultClient
	}
	return &Cache{
		dir:    dir,
		client: client,
		locks:  make(map[domain.ModelVariant]*sync.Mutex),
	}
}

// NewForTests creates a cache whose downloads resolve against baseURL
// instead of the production distribution source.
func NewForTests(dir string, client *http.Client, baseURL string) *Cache {
	c := New(dir, client)
	c.baseURL = baseURL
	return c
}

// Path returns the canonical on-disk location for a variant.
func (c *Cache) Path(variant domain.ModelVariant) string {
	return filepath.Join(c.dir, variant.FileName())
}

// IsPresent reports whether the variant's model file exists.
func (c *Cache) IsPresent(variant domain.ModelVariant) bool {
	info, err := os.Stat(c.Path(variant))
	return err == nil && !info.IsDir()
}

// Asset returns the cache state of one variant.
func (c *Cache) Asset(variant domain.ModelVariant) domain.ModelAsset {
	return domain.ModelAsset{
		Variant:    variant,
		Path:       c.Path(variant),
		Downloaded: c.IsPresent(variant),
	}
}

// EnsureDownloaded makes the variant's model file present, downloading
// it when missing. Present models return immediately with no network
// I/O. A failed or cancelled download never leaves a partial file at
// the canonical path.
func (c *Cache) EnsureDownloaded(ctx context.Context, variant domain.ModelVariant, onProgress ProgressFunc) error {
	lock := c.variantLock(variant)
	lock.Lock()
	defer lock.Unlock()

	if c.IsPresent(variant) {
		return nil
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("prepare model directory: %w", err)
	}

	destPath := c.Path(variant)
	tmpPath := destPath + ".download"
	if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale temp file: %w", err)
	}

	if err := c.downloadToFile(ctx, variant, tmpPath, onProgress); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("finalize model file: %w", err)
	}
	return nil
}

// downloadToFile streams the remote model into tmpPath in fixed-size
// chunks, reporting cumulative bytes after each chunk.
func (c *Cache) downloadToFile(ctx context.Context, variant domain.ModelVariant, tmpPath string, onProgress ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolveURL(variant), nil)
	if err != nil {
		return fmt.Errorf("build model request: %w", err)
	}
	req.Header.Set("User-Agent", "video-summary")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("request model download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model download returned %s", resp.Status)
	}

	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	defer out.Close()

	total := resp.ContentLength
	var received int64
	buf := make([]byte, downloadChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return fmt.Errorf("write model chunk: %w", writeErr)
			}
			received += int64(n)
			if onProgress != nil {
				onProgress(received, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read model chunk: %w", readErr)
		}
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close temp model file: %w", err)
	}
	return nil
}

// resolveURL maps a variant to its download source.
func (c *Cache) resolveURL(variant domain.ModelVariant) string {
	if c.baseURL != "" {
		return c.baseURL + "/" + variant.FileName()
	}
	return variant.DownloadURL()
}

// variantLock returns the mutex serializing writes for one variant.
func (c *Cache) variantLock(variant domain.ModelVariant) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.locks[variant]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[variant] = lock
	}
	return lock
}

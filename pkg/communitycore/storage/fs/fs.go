package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/quedadas/community-core/pkg/communitycore"
)

// Backend is a filesystem implementation of the communitycore.BlobStore
// interface. Blob content lives at <baseDir>/<id>; the content type and
// ownership tags live in a sidecar <id>.meta.json so offline sweeps can read
// them without the repository.
type Backend struct {
	mu      sync.RWMutex
	baseDir string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for storing blobs
}

type sidecar struct {
	ContentType string            `json:"content_type"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &Backend{baseDir: config.BaseDir}, nil
}

func (b *Backend) path(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", communitycore.ErrBlobNotFound
	}
	return filepath.Join(b.baseDir, id), nil
}

// Put stores the blob content under the given id
func (b *Backend) Put(ctx context.Context, id string, reader io.Reader, params communitycore.PutParams) error {
	path, err := b.path(id)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create blob file: %w", err)
	}
	if _, err := io.Copy(file, reader); err != nil {
		file.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close blob file: %w", err)
	}

	meta := sidecar{ContentType: params.ContentType, Metadata: params.Metadata}
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(path+".meta.json", data, 0644)
}

// Get returns the blob content for reading
func (b *Backend) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	path, err := b.path(id)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, communitycore.ErrBlobNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return file, nil
}

// Delete removes the blob and its sidecar
func (b *Backend) Delete(ctx context.Context, id string) error {
	path, err := b.path(id)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return communitycore.ErrBlobNotFound
		}
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	os.Remove(path + ".meta.json")
	return nil
}

// Meta retrieves metadata for a blob
func (b *Backend) Meta(ctx context.Context, id string) (*communitycore.BlobMeta, error) {
	path, err := b.path(id)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, communitycore.ErrBlobNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat blob: %w", err)
	}

	meta := &communitycore.BlobMeta{
		ID:        id,
		Size:      info.Size(),
		UpdatedAt: info.ModTime(),
	}

	if data, err := os.ReadFile(path + ".meta.json"); err == nil {
		var sc sidecar
		if err := json.Unmarshal(data, &sc); err == nil {
			meta.ContentType = sc.ContentType
			meta.Metadata = sc.Metadata
		}
	}

	// Fall back to sniffing when the sidecar is missing or empty.
	if meta.ContentType == "" {
		meta.ContentType = "application/octet-stream"
		if file, err := os.Open(path); err == nil {
			defer file.Close()
			buffer := make([]byte, 512)
			if n, err := file.Read(buffer); err == nil {
				meta.ContentType = http.DetectContentType(buffer[:n])
			}
		}
	}

	return meta, nil
}

package memory

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/quedadas/community-core/pkg/communitycore"
)

// Backend is an in-memory implementation of the communitycore.BlobStore interface
type Backend struct {
	mu    sync.RWMutex
	blobs map[string]blob
}

type blob struct {
	data        []byte
	contentType string
	metadata    map[string]string
	updatedAt   time.Time
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		blobs: make(map[string]blob),
	}
}

// Put stores the blob content under the given id
func (b *Backend) Put(ctx context.Context, id string, reader io.Reader, params communitycore.PutParams) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	contentType := params.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	metadata := make(map[string]string, len(params.Metadata))
	for k, v := range params.Metadata {
		metadata[k] = v
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[id] = blob{
		data:        data,
		contentType: contentType,
		metadata:    metadata,
		updatedAt:   time.Now().UTC(),
	}
	return nil
}

// Get returns the blob content for reading
func (b *Backend) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	blob, exists := b.blobs[id]
	if !exists {
		return nil, communitycore.ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(blob.data)), nil
}

// Delete removes the blob
func (b *Backend) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.blobs[id]; !exists {
		return communitycore.ErrBlobNotFound
	}
	delete(b.blobs, id)
	return nil
}

// Meta retrieves metadata for a blob
func (b *Backend) Meta(ctx context.Context, id string) (*communitycore.BlobMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	blob, exists := b.blobs[id]
	if !exists {
		return nil, communitycore.ErrBlobNotFound
	}

	metadata := make(map[string]string, len(blob.metadata))
	for k, v := range blob.metadata {
		metadata[k] = v
	}

	return &communitycore.BlobMeta{
		ID:          id,
		Size:        int64(len(blob.data)),
		ContentType: blob.contentType,
		UpdatedAt:   blob.updatedAt,
		Metadata:    metadata,
	}, nil
}

package memory_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quedadas/community-core/pkg/communitycore"
	"github.com/quedadas/community-core/pkg/communitycore/storage/memory"
)

func TestPutGetDelete(t *testing.T) {
	backend := memory.New()
	ctx := context.Background()

	err := backend.Put(ctx, "blob-1", strings.NewReader("hello"), communitycore.PutParams{
		ContentType: "text/plain",
		Metadata:    map[string]string{"owner_type": "user", "owner_key": "alice"},
	})
	require.NoError(t, err)

	rc, err := backend.Get(ctx, "blob-1")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "hello", string(data))

	meta, err := backend.Meta(ctx, "blob-1")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", meta.ContentType)
	assert.Equal(t, int64(5), meta.Size)
	assert.Equal(t, "alice", meta.Metadata["owner_key"])

	require.NoError(t, backend.Delete(ctx, "blob-1"))

	_, err = backend.Get(ctx, "blob-1")
	assert.ErrorIs(t, err, communitycore.ErrBlobNotFound)
	err = backend.Delete(ctx, "blob-1")
	assert.ErrorIs(t, err, communitycore.ErrBlobNotFound)
}

func TestDefaultContentType(t *testing.T) {
	backend := memory.New()
	ctx := context.Background()

	require.NoError(t, backend.Put(ctx, "blob-1", strings.NewReader("x"), communitycore.PutParams{}))

	meta, err := backend.Meta(ctx, "blob-1")
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", meta.ContentType)
}

package communitycore_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quedadas/community-core/pkg/communitycore"
	memorystorage "github.com/quedadas/community-core/pkg/communitycore/storage/memory"
	"github.com/quedadas/community-core/pkg/communitycore/repo/memory"
)

// recordingStore wraps a blob store and records the order of Put and Delete
// calls. Deletes can be forced to fail.
type recordingStore struct {
	communitycore.BlobStore

	mu          sync.Mutex
	ops         []string // "put:<id>" / "delete:<id>"
	failDeletes bool
}

func newRecordingStore() *recordingStore {
	return &recordingStore{BlobStore: memorystorage.New()}
}

func (s *recordingStore) Put(ctx context.Context, id string, reader io.Reader, params communitycore.PutParams) error {
	if err := s.BlobStore.Put(ctx, id, reader, params); err != nil {
		return err
	}
	s.mu.Lock()
	s.ops = append(s.ops, "put:"+id)
	s.mu.Unlock()
	return nil
}

func (s *recordingStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	s.ops = append(s.ops, "delete:"+id)
	fail := s.failDeletes
	s.mu.Unlock()
	if fail {
		return errors.New("backend unavailable")
	}
	return s.BlobStore.Delete(ctx, id)
}

func setupMediaService(t *testing.T) (communitycore.Service, *recordingStore) {
	t.Helper()
	store := newRecordingStore()
	svc, err := communitycore.New(
		communitycore.WithRepository(memory.New()),
		communitycore.WithBlobStore(store),
	)
	require.NoError(t, err)
	return svc, store
}

func upload(content string) *communitycore.MediaUpload {
	return &communitycore.MediaUpload{
		Reader:      strings.NewReader(content),
		ContentType: "image/png",
	}
}

func TestProfileMediaReplaceOrder(t *testing.T) {
	svc, store := setupMediaService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, communitycore.CreateUserRequest{
		Username:     "alice",
		ProfileMedia: upload("v1"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, user.ProfileMediaID)
	oldID := user.ProfileMediaID

	user, err = svc.UpdateUserProfile(ctx, communitycore.UpdateUserProfileRequest{
		Username:     "alice",
		ProfileMedia: upload("v2"),
	})
	require.NoError(t, err)
	require.NotEqual(t, oldID, user.ProfileMediaID)

	// The replacement blob is created before the old one is deleted, so the
	// entity never points at a missing blob.
	require.Len(t, store.ops, 3)
	assert.Equal(t, "put:"+user.ProfileMediaID, store.ops[1])
	assert.Equal(t, "delete:"+oldID, store.ops[2])

	rc, meta, err := svc.DownloadMedia(ctx, user.ProfileMediaID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
	assert.Equal(t, "image/png", meta.ContentType)

	_, _, err = svc.DownloadMedia(ctx, oldID)
	assert.ErrorIs(t, err, communitycore.ErrBlobNotFound)
}

func TestProfileMediaKeptWhenAbsent(t *testing.T) {
	svc, _ := setupMediaService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, communitycore.CreateUserRequest{
		Username:     "alice",
		ProfileMedia: upload("v1"),
	})
	require.NoError(t, err)

	bio := "new bio"
	updated, err := svc.UpdateUserProfile(ctx, communitycore.UpdateUserProfileRequest{
		Username: "alice",
		Bio:      &bio,
	})
	require.NoError(t, err)
	assert.Equal(t, user.ProfileMediaID, updated.ProfileMediaID)
}

func TestMediaDeleteFailureIsSoft(t *testing.T) {
	svc, store := setupMediaService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, communitycore.CreateUserRequest{
		Username:     "alice",
		ProfileMedia: upload("v1"),
	})
	require.NoError(t, err)
	oldID := user.ProfileMediaID

	store.failDeletes = true

	// The delete of the replaced blob fails, but the update still succeeds
	// and the entity references the new blob.
	user, err = svc.UpdateUserProfile(ctx, communitycore.UpdateUserProfileRequest{
		Username:     "alice",
		ProfileMedia: upload("v2"),
	})
	require.NoError(t, err)
	assert.NotEqual(t, oldID, user.ProfileMediaID)

	got, err := svc.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ProfileMediaID, got.ProfileMediaID)
}

func TestCarouselReplaceDiff(t *testing.T) {
	svc, store := setupMediaService(t)
	ctx := context.Background()

	mustCreateUser(t, svc, "alice")
	community, err := svc.CreateCommunity(ctx, communitycore.CreateCommunityRequest{
		URL:     "running-club",
		Name:    "Running Club",
		Creator: "alice",
		Carousel: []communitycore.CarouselItem{
			{Upload: upload("a")},
			{Upload: upload("b")},
			{Upload: upload("c")},
		},
	})
	require.NoError(t, err)
	require.Len(t, community.CarouselMediaIDs, 3)
	keepA, keepC := community.CarouselMediaIDs[0], community.CarouselMediaIDs[2]
	dropped := community.CarouselMediaIDs[1]

	// Reorder, keep two existing items and add one new one.
	community, err = svc.UpdateCommunity(ctx, communitycore.UpdateCommunityRequest{
		URL: "running-club",
		Carousel: []communitycore.CarouselItem{
			{ExistingID: keepC},
			{Upload: upload("d")},
			{ExistingID: keepA},
		},
	})
	require.NoError(t, err)
	require.Len(t, community.CarouselMediaIDs, 3)
	assert.Equal(t, keepC, community.CarouselMediaIDs[0])
	assert.Equal(t, keepA, community.CarouselMediaIDs[2])

	// Kept blobs remain readable, only the dropped one is deleted.
	for _, id := range []string{keepA, keepC, community.CarouselMediaIDs[1]} {
		rc, _, err := svc.DownloadMedia(ctx, id)
		require.NoError(t, err)
		rc.Close()
	}
	_, _, err = svc.DownloadMedia(ctx, dropped)
	assert.ErrorIs(t, err, communitycore.ErrBlobNotFound)

	deletes := 0
	store.mu.Lock()
	for _, op := range store.ops {
		if strings.HasPrefix(op, "delete:") {
			deletes++
		}
	}
	store.mu.Unlock()
	assert.Equal(t, 1, deletes)
}

func TestDeleteCommunityReleasesMedia(t *testing.T) {
	svc, store := setupMediaService(t)
	ctx := context.Background()

	mustCreateUser(t, svc, "alice")
	community, err := svc.CreateCommunity(ctx, communitycore.CreateCommunityRequest{
		URL:          "running-club",
		Name:         "Running Club",
		Creator:      "alice",
		ProfileMedia: upload("p"),
		Carousel: []communitycore.CarouselItem{
			{Upload: upload("a")},
			{Upload: upload("b")},
		},
	})
	require.NoError(t, err)

	// Even with a failing backend the delete succeeds; blob cleanup is
	// best-effort on entity deletion.
	store.failDeletes = true
	require.NoError(t, svc.DeleteCommunity(ctx, "running-club"))

	_, err = svc.GetCommunity(ctx, "running-club")
	assert.ErrorIs(t, err, communitycore.ErrCommunityNotFound)

	// All three blobs were attempted despite every attempt failing.
	deletes := 0
	store.mu.Lock()
	for _, op := range store.ops {
		if strings.HasPrefix(op, "delete:") {
			deletes++
		}
	}
	store.mu.Unlock()
	assert.Equal(t, 3, deletes)

	found := 0
	for _, id := range append([]string{community.ProfileMediaID}, community.CarouselMediaIDs...) {
		if _, _, err := svc.DownloadMedia(ctx, id); err == nil {
			found++
		}
	}
	// Failing deletes leave the blobs in place for the offline sweep.
	assert.Equal(t, 3, found)
}

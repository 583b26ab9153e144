package communitycore

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
)

// mediaManager attaches and detaches blob ids on entity slots.
//
// It performs no reference counting: correctness relies on each call site
// releasing the old id exactly when it stops being referenced. Creation is
// mandatory (an error aborts the enclosing operation before the entity is
// saved), deletion of replaced blobs is best-effort (logged, never raised) so
// an entity is never left without its current media over a stale-blob
// cleanup failure.
type mediaManager struct {
	store BlobStore
	log   *slog.Logger
}

// ownerRef identifies the entity slot a blob is stored for; recorded as blob
// metadata for offline sweeps, not read back by this package.
type ownerRef struct {
	Type OwnerType
	Key  string
}

func (m *mediaManager) putParams(owner ownerRef, role MediaRole, position int, contentType string) PutParams {
	md := map[string]string{
		"owner_type": string(owner.Type),
		"owner_key":  owner.Key,
		"role":       string(role),
	}
	if role == MediaRoleCarousel {
		md["position"] = strconv.Itoa(position)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return PutParams{ContentType: contentType, Metadata: md}
}

// replaceProfile stores upload as the new profile blob and best-effort
// deletes oldID. With a nil upload the old id is retained unchanged.
func (m *mediaManager) replaceProfile(ctx context.Context, owner ownerRef, oldID string, upload *MediaUpload) (string, error) {
	if upload == nil {
		return oldID, nil
	}

	newID := uuid.NewString()
	if err := m.store.Put(ctx, newID, upload.Reader, m.putParams(owner, MediaRoleProfile, 0, upload.ContentType)); err != nil {
		return "", err
	}

	// New blob exists; the old one is released best-effort.
	if oldID != "" {
		m.deleteSoft(ctx, owner, oldID)
	}
	return newID, nil
}

// replaceCarousel stores new items positionally and best-effort deletes every
// old id absent from the new list. The returned slice preserves the request
// order; that order on the owning entity is the source of truth for display.
func (m *mediaManager) replaceCarousel(ctx context.Context, owner ownerRef, oldIDs []string, items []CarouselItem) ([]string, error) {
	newIDs := make([]string, 0, len(items))
	for i, item := range items {
		if item.Upload == nil {
			newIDs = append(newIDs, item.ExistingID)
			continue
		}
		id := uuid.NewString()
		if err := m.store.Put(ctx, id, item.Upload.Reader, m.putParams(owner, MediaRoleCarousel, i, item.Upload.ContentType)); err != nil {
			return nil, err
		}
		newIDs = append(newIDs, id)
	}

	kept := make(map[string]struct{}, len(newIDs))
	for _, id := range newIDs {
		kept[id] = struct{}{}
	}
	for _, id := range oldIDs {
		if _, ok := kept[id]; !ok {
			m.deleteSoft(ctx, owner, id)
		}
	}
	return newIDs, nil
}

// releaseAll deletes the profile and carousel blobs of a deleted entity,
// best-effort per id.
func (m *mediaManager) releaseAll(ctx context.Context, owner ownerRef, profileID string, carouselIDs []string) {
	if profileID != "" {
		m.deleteSoft(ctx, owner, profileID)
	}
	for _, id := range carouselIDs {
		m.deleteSoft(ctx, owner, id)
	}
}

func (m *mediaManager) deleteSoft(ctx context.Context, owner ownerRef, id string) {
	if err := m.store.Delete(ctx, id); err != nil {
		m.log.Warn("media blob delete failed",
			"blob_id", id,
			"owner_type", owner.Type,
			"owner_key", owner.Key,
			"error", err)
	}
}

package communitycore

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// BlobStore defines the interface for media storage backends.
//
// Blob ids are minted by the caller; a backend stores and serves blobs
// opaquely by id and knows nothing about which entity references them.
type BlobStore interface {
	// Put stores the blob under the given id
	Put(ctx context.Context, id string, reader io.Reader, params PutParams) error

	// Get returns the blob content for reading
	Get(ctx context.Context, id string) (io.ReadCloser, error)

	// Delete removes the blob. Deleting an absent or malformed id returns
	// an error the caller may treat as soft; it must not panic.
	Delete(ctx context.Context, id string) error

	// Meta retrieves stored metadata for a blob
	Meta(ctx context.Context, id string) (*BlobMeta, error)
}

// PutParams carries the content type and ownership tags stored with a blob.
type PutParams struct {
	ContentType string
	Metadata    map[string]string
}

// NotificationSink delivers a notification to a real-time channel keyed by
// recipient. Delivery is fire-and-forget: the scheduler logs failures and
// never retries, so sinks must tolerate the occasional duplicate.
type NotificationSink interface {
	Deliver(ctx context.Context, n *Notification) error
}

// Repository defines the interface for entity persistence.
//
// Natural-key lookups (username, community URL) and the FindBy enumerations
// are what the rename/delete cascades and the notification scheduler run on.
// Implementations back onto a document store with no multi-document
// transactions; every cascade step is designed to be idempotently re-runnable
// instead of atomic.
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, user *User) error
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
	RekeyUser(ctx context.Context, oldUsername, newUsername string) error
	DeleteUserByUsername(ctx context.Context, username string) error

	// Community operations
	CreateCommunity(ctx context.Context, community *Community) error
	GetCommunityByURL(ctx context.Context, url string) (*Community, error)
	UpdateCommunity(ctx context.Context, community *Community) error
	RekeyCommunity(ctx context.Context, oldURL, newURL string) error
	DeleteCommunityByURL(ctx context.Context, url string) error
	FindCommunitiesByCreatorOrAdmin(ctx context.Context, username string) ([]*Community, error)

	// Activity operations
	CreateActivity(ctx context.Context, activity *Activity) error
	GetActivity(ctx context.Context, id uuid.UUID) (*Activity, error)
	UpdateActivity(ctx context.Context, activity *Activity) error
	DeleteActivity(ctx context.Context, id uuid.UUID) error
	FindActivitiesByCommunity(ctx context.Context, url string) ([]*Activity, error)
	FindActivitiesStartingBetween(ctx context.Context, from, to time.Time) ([]*Activity, error)

	// Activity index operations
	CreateIndexEntry(ctx context.Context, entry *ActivityIndexEntry) error
	FindIndexEntriesByCommunity(ctx context.Context, url string) ([]*ActivityIndexEntry, error)
	UpdateIndexEntry(ctx context.Context, entry *ActivityIndexEntry) error
	DeleteIndexEntryByActivity(ctx context.Context, activityID uuid.UUID) error
	DeleteIndexEntriesByCommunity(ctx context.Context, url string) error

	// Community membership operations
	CreateCommunityMembership(ctx context.Context, edge *CommunityMembership) error
	GetCommunityMembership(ctx context.Context, username, url string) (*CommunityMembership, error)
	FindCommunityMembershipsByCommunity(ctx context.Context, url string) ([]*CommunityMembership, error)
	FindCommunityMembershipsByUser(ctx context.Context, username string) ([]*CommunityMembership, error)
	UpdateCommunityMembership(ctx context.Context, edge *CommunityMembership) error
	DeleteCommunityMembership(ctx context.Context, id uuid.UUID) error
	DeleteCommunityMembershipsByCommunity(ctx context.Context, url string) error
	CountCommunityMemberships(ctx context.Context, url string) (int, error)

	// Activity membership operations
	CreateActivityMembership(ctx context.Context, edge *ActivityMembership) error
	GetActivityMembership(ctx context.Context, username string, activityID uuid.UUID) (*ActivityMembership, error)
	FindActivityMembershipsByActivity(ctx context.Context, activityID uuid.UUID) ([]*ActivityMembership, error)
	FindActivityMembershipsByUser(ctx context.Context, username string) ([]*ActivityMembership, error)
	UpdateActivityMembership(ctx context.Context, edge *ActivityMembership) error
	DeleteActivityMembership(ctx context.Context, id uuid.UUID) error
	DeleteActivityMembershipsByActivity(ctx context.Context, activityID uuid.UUID) error
	CountActivityMemberships(ctx context.Context, activityID uuid.UUID) (int, error)

	// Notification operations
	CreateNotification(ctx context.Context, n *Notification) error
	GetNotification(ctx context.Context, id uuid.UUID) (*Notification, error)
	FindNotificationsByRecipient(ctx context.Context, username string) ([]*Notification, error)
	UpdateNotification(ctx context.Context, n *Notification) error
	DeleteNotificationsByRecipient(ctx context.Context, username string) error

	// Dispatch record operations
	GetDispatchRecord(ctx context.Context, activityID uuid.UUID, recipient string, threshold Threshold) (*DispatchRecord, error)
	CreateDispatchRecord(ctx context.Context, rec *DispatchRecord) error
}

package communitycore

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Service defines the main interface for the community-core library.
//
// All operations run synchronously in the caller's goroutine. Concurrent
// writes against the same natural key resolve as last-repository-write-wins;
// callers needing strict correctness under concurrency must serialize writes
// per key upstream.
type Service interface {
	// User operations
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	GetUser(ctx context.Context, username string) (*User, error)
	UpdateUserProfile(ctx context.Context, req UpdateUserProfileRequest) (*User, error)
	RenameUser(ctx context.Context, oldUsername, newUsername string) (*User, error)
	DeleteUser(ctx context.Context, username string) error

	// Community operations
	CreateCommunity(ctx context.Context, req CreateCommunityRequest) (*Community, error)
	GetCommunity(ctx context.Context, url string) (*Community, error)
	UpdateCommunity(ctx context.Context, req UpdateCommunityRequest) (*Community, error)
	RenameCommunity(ctx context.Context, oldURL, newURL string) (*Community, error)
	DeleteCommunity(ctx context.Context, url string) error
	ListCommunityActivities(ctx context.Context, url string) ([]*ActivityIndexEntry, error)

	// Activity operations
	CreateActivity(ctx context.Context, req CreateActivityRequest) (*Activity, error)
	GetActivity(ctx context.Context, id uuid.UUID) (*Activity, error)
	UpdateActivity(ctx context.Context, req UpdateActivityRequest) (*Activity, error)
	DeleteActivity(ctx context.Context, id uuid.UUID) error

	// Membership operations
	JoinCommunity(ctx context.Context, req JoinCommunityRequest) (*CommunityMembership, error)
	LeaveCommunity(ctx context.Context, username, url string) error
	JoinActivity(ctx context.Context, username string, activityID uuid.UUID) (*ActivityMembership, error)
	LeaveActivity(ctx context.Context, username string, activityID uuid.UUID) error
	IsCommunityMember(ctx context.Context, username, url string) (bool, error)
	IsActivityParticipant(ctx context.Context, username string, activityID uuid.UUID) (bool, error)
	CommunityMemberCount(ctx context.Context, url string) (int, error)
	ActivityParticipantCount(ctx context.Context, activityID uuid.UUID) (int, error)

	// Notification operations
	ListNotifications(ctx context.Context, recipient string) ([]*Notification, error)
	MarkNotificationRead(ctx context.Context, id uuid.UUID) (*Notification, error)

	// Media read-through
	DownloadMedia(ctx context.Context, id string) (io.ReadCloser, *BlobMeta, error)
}

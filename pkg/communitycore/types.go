package communitycore

import (
	"time"

	"github.com/google/uuid"
)

// MediaRole describes the slot a blob occupies on its owning entity.
type MediaRole string

// Media role constants (typed).
const (
	MediaRoleProfile  MediaRole = "profile"
	MediaRoleCarousel MediaRole = "carousel"
)

// OwnerType identifies the kind of entity that references a blob.
type OwnerType string

// Owner type constants (typed).
const (
	OwnerTypeUser      OwnerType = "user"
	OwnerTypeCommunity OwnerType = "community"
	OwnerTypeActivity  OwnerType = "activity"
)

// NotificationType is the domain type for notification categories.
type NotificationType string

// Notification type constants (typed).
const (
	NotificationActivityUpcoming NotificationType = "activity_upcoming"
	NotificationActivityStarting NotificationType = "activity_starting"
)

// Threshold is a fixed offset before an activity's start at which each
// participant must be notified exactly once. The string value is the tag
// persisted on dispatch records, so it must never change for an existing
// deployment.
type Threshold string

// Threshold constants (typed).
const (
	ThresholdUpcoming Threshold = "t-65m"
	ThresholdStart    Threshold = "t-0"
)

// DefaultThresholds lists the thresholds scanned by the notification
// scheduler, largest offset first.
var DefaultThresholds = []Threshold{ThresholdUpcoming, ThresholdStart}

// Offset returns how long before an activity's start the threshold fires.
func (t Threshold) Offset() time.Duration {
	switch t {
	case ThresholdUpcoming:
		return 65 * time.Minute
	default:
		return 0
	}
}

// NotificationType returns the notification category emitted for the threshold.
func (t Threshold) NotificationType() NotificationType {
	switch t {
	case ThresholdUpcoming:
		return NotificationActivityUpcoming
	default:
		return NotificationActivityStarting
	}
}

// User is keyed by its username. The username is copied into membership
// edges and notification recipients, so renaming a user requires a cascade
// (see Service.RenameUser).
type User struct {
	Username       string    `json:"username" bson:"_id"`
	Email          string    `json:"email" bson:"email"`
	DisplayName    string    `json:"display_name,omitempty" bson:"display_name,omitempty"`
	Bio            string    `json:"bio,omitempty" bson:"bio,omitempty"`
	Premium        bool      `json:"premium" bson:"premium"`
	ProfileMediaID string    `json:"profile_media_id,omitempty" bson:"profile_media_id,omitempty"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`
}

// Community is keyed by its URL slug. The URL is copied into membership
// edges, activities and the activity index, so renaming a community
// requires a cascade (see Service.RenameCommunity).
type Community struct {
	URL              string    `json:"url" bson:"_id"`
	Name             string    `json:"name" bson:"name"`
	Description      string    `json:"description,omitempty" bson:"description,omitempty"`
	Interests        []string  `json:"interests,omitempty" bson:"interests,omitempty"`
	ProfileMediaID   string    `json:"profile_media_id,omitempty" bson:"profile_media_id,omitempty"`
	CarouselMediaIDs []string  `json:"carousel_media_ids,omitempty" bson:"carousel_media_ids,omitempty"`
	Creator          string    `json:"creator" bson:"creator"`
	Administrators   []string  `json:"administrators,omitempty" bson:"administrators,omitempty"`
	Private          bool      `json:"private" bson:"private"`
	JoinCode         string    `json:"-" bson:"join_code,omitempty"`
	Latitude         float64   `json:"latitude,omitempty" bson:"latitude,omitempty"`
	Longitude        float64   `json:"longitude,omitempty" bson:"longitude,omitempty"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" bson:"updated_at"`
}

// Activity has an immutable id; its community reference is the mutable
// community URL and is rewritten by the community rename cascade.
type Activity struct {
	ID               uuid.UUID `json:"id" bson:"_id"`
	Name             string    `json:"name" bson:"name"`
	Description      string    `json:"description,omitempty" bson:"description,omitempty"`
	StartsAt         time.Time `json:"starts_at" bson:"starts_at"`
	EndsAt           time.Time `json:"ends_at" bson:"ends_at"`
	Creator          string    `json:"creator" bson:"creator"`
	CommunityURL     string    `json:"community_url" bson:"community_url"`
	CarouselMediaIDs []string  `json:"carousel_media_ids,omitempty" bson:"carousel_media_ids,omitempty"`
	Private          bool      `json:"private" bson:"private"`
	Location         string    `json:"location,omitempty" bson:"location,omitempty"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" bson:"updated_at"`
}

// CommunityMembership is a user-community edge. At most one edge exists per
// (username, community URL) pair.
type CommunityMembership struct {
	ID           uuid.UUID `json:"id" bson:"_id"`
	Username     string    `json:"username" bson:"username"`
	CommunityURL string    `json:"community_url" bson:"community_url"`
	JoinedAt     time.Time `json:"joined_at" bson:"joined_at"`
}

// ActivityMembership is a user-activity edge. At most one edge exists per
// (username, activity id) pair.
type ActivityMembership struct {
	ID         uuid.UUID `json:"id" bson:"_id"`
	Username   string    `json:"username" bson:"username"`
	ActivityID uuid.UUID `json:"activity_id" bson:"activity_id"`
	JoinedAt   time.Time `json:"joined_at" bson:"joined_at"`
}

// ActivityIndexEntry is the denormalized secondary index used to list a
// community's activities without a join. It duplicates the community URL and
// the activity's id and name, and must be kept consistent with both.
type ActivityIndexEntry struct {
	ID           uuid.UUID `json:"id" bson:"_id"`
	CommunityURL string    `json:"community_url" bson:"community_url"`
	ActivityID   uuid.UUID `json:"activity_id" bson:"activity_id"`
	ActivityName string    `json:"activity_name" bson:"activity_name"`
}

// Notification is an in-app notification addressed by recipient username.
type Notification struct {
	ID          uuid.UUID        `json:"id" bson:"_id"`
	Type        NotificationType `json:"type" bson:"type"`
	Recipient   string           `json:"recipient" bson:"recipient"`
	RelatedID   string           `json:"related_id,omitempty" bson:"related_id,omitempty"`
	RelatedName string           `json:"related_name,omitempty" bson:"related_name,omitempty"`
	CreatedAt   time.Time        `json:"created_at" bson:"created_at"`
	Read        bool             `json:"read" bson:"read"`
}

// DispatchRecord marks a (activity, recipient, threshold) notification as
// already sent. It is the scheduler's only dispatch state; once written there
// is no transition back.
type DispatchRecord struct {
	ActivityID   uuid.UUID `json:"activity_id" bson:"activity_id"`
	Recipient    string    `json:"recipient" bson:"recipient"`
	Threshold    Threshold `json:"threshold" bson:"threshold"`
	DispatchedAt time.Time `json:"dispatched_at" bson:"dispatched_at"`
}

// BlobMeta describes a stored blob. The ownership tags exist so an offline
// sweep can reclaim blobs whose declared owner no longer references them;
// the order of ids on the owning entity remains the source of truth for
// carousel position.
type BlobMeta struct {
	ID          string            `json:"id"`
	Size        int64             `json:"size"`
	ContentType string            `json:"content_type"`
	UpdatedAt   time.Time         `json:"updated_at,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

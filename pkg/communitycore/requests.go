package communitycore

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// MediaUpload is new blob content supplied with an entity write. A nil
// *MediaUpload on a profile slot means "keep the current blob".
type MediaUpload struct {
	Reader      io.Reader
	ContentType string
}

// CarouselItem is one position of a carousel replacement: either an existing
// blob id to retain, or new content to store. Exactly one field is set.
type CarouselItem struct {
	ExistingID string
	Upload     *MediaUpload
}

// CreateUserRequest contains parameters for creating a user
type CreateUserRequest struct {
	Username     string
	Email        string
	DisplayName  string
	Bio          string
	Premium      bool
	ProfileMedia *MediaUpload
}

// UpdateUserProfileRequest contains parameters for updating a user's profile.
// Nil pointer fields are left unchanged.
type UpdateUserProfileRequest struct {
	Username     string
	Email        *string
	DisplayName  *string
	Bio          *string
	Premium      *bool
	ProfileMedia *MediaUpload
}

// CreateCommunityRequest contains parameters for creating a community
type CreateCommunityRequest struct {
	URL          string
	Name         string
	Description  string
	Interests    []string
	Creator      string
	Private      bool
	JoinCode     string
	Latitude     float64
	Longitude    float64
	ProfileMedia *MediaUpload
	Carousel     []CarouselItem
}

// UpdateCommunityRequest contains parameters for updating a community.
// Nil pointer fields are left unchanged; a nil Carousel keeps the current
// carousel, an empty non-nil one clears it.
type UpdateCommunityRequest struct {
	URL            string
	Name           *string
	Description    *string
	Interests      []string
	Administrators []string
	Private        *bool
	JoinCode       *string
	ProfileMedia   *MediaUpload
	Carousel       []CarouselItem
}

// CreateActivityRequest contains parameters for creating an activity
type CreateActivityRequest struct {
	Name         string
	Description  string
	StartsAt     time.Time
	EndsAt       time.Time
	Creator      string
	CommunityURL string
	Private      bool
	Location     string
	Carousel     []CarouselItem
}

// UpdateActivityRequest contains parameters for updating an activity.
// Nil pointer fields are left unchanged.
type UpdateActivityRequest struct {
	ID          uuid.UUID
	Name        *string
	Description *string
	StartsAt    *time.Time
	EndsAt      *time.Time
	Private     *bool
	Location    *string
	Carousel    []CarouselItem
}

// JoinCommunityRequest contains parameters for joining a community. JoinCode
// is checked only when the community is private.
type JoinCommunityRequest struct {
	Username     string
	CommunityURL string
	JoinCode     string
}

package communitycore

import (
	"errors"
	"fmt"
	"strings"
)

// Error types
var (
	// ErrUserNotFound indicates a user was not found
	ErrUserNotFound = errors.New("user not found")

	// ErrCommunityNotFound indicates a community was not found
	ErrCommunityNotFound = errors.New("community not found")

	// ErrActivityNotFound indicates an activity was not found
	ErrActivityNotFound = errors.New("activity not found")

	// ErrMembershipNotFound indicates no edge exists for the pair
	ErrMembershipNotFound = errors.New("membership not found")

	// ErrNotificationNotFound indicates a notification was not found
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrDispatchRecordNotFound indicates no dispatch record exists for the triple
	ErrDispatchRecordNotFound = errors.New("dispatch record not found")

	// ErrBlobNotFound indicates a blob was not found in the store
	ErrBlobNotFound = errors.New("blob not found")

	// ErrUsernameTaken indicates the username is already in use
	ErrUsernameTaken = errors.New("username already taken")

	// ErrCommunityURLTaken indicates the community URL is already in use
	ErrCommunityURLTaken = errors.New("community url already taken")

	// ErrAlreadyMember indicates an active edge already exists for the pair
	ErrAlreadyMember = errors.New("already a member")

	// ErrCreatorCannotLeave indicates the group creator tried to leave;
	// creatorship must be transferred first
	ErrCreatorCannotLeave = errors.New("creator cannot leave")

	// ErrCreatorOwnsCommunities indicates a user cannot be deleted while
	// still the creator of a community
	ErrCreatorOwnsCommunities = errors.New("user still owns communities")

	// ErrInvalidJoinCode indicates a private community join with a wrong code
	ErrInvalidJoinCode = errors.New("invalid join code")
)

// IsNotFound reports whether err belongs to the not-found class.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrCommunityNotFound) ||
		errors.Is(err, ErrActivityNotFound) ||
		errors.Is(err, ErrMembershipNotFound) ||
		errors.Is(err, ErrNotificationNotFound) ||
		errors.Is(err, ErrDispatchRecordNotFound) ||
		errors.Is(err, ErrBlobNotFound)
}

// IsConflict reports whether err belongs to the duplicate-key class.
func IsConflict(err error) bool {
	return errors.Is(err, ErrUsernameTaken) ||
		errors.Is(err, ErrCommunityURLTaken) ||
		errors.Is(err, ErrAlreadyMember)
}

// IsForbidden reports whether err belongs to the rule-violation class.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrCreatorCannotLeave) ||
		errors.Is(err, ErrCreatorOwnsCommunities) ||
		errors.Is(err, ErrInvalidJoinCode)
}

// CascadeError reports a cascade that succeeded on the primary record but
// failed on one or more dependent collections. Stale names the collections
// still holding the old key; re-running the same operation is safe because
// dependent rewrites match on the old key and skip rows already migrated.
type CascadeError struct {
	Entity string
	OldKey string
	NewKey string
	Stale  []string
	Err    error
}

func (e *CascadeError) Error() string {
	if e.NewKey == "" {
		return fmt.Sprintf("delete cascade for %s %q left stale collections [%s]: %v",
			e.Entity, e.OldKey, strings.Join(e.Stale, ", "), e.Err)
	}
	return fmt.Sprintf("rename cascade for %s %q -> %q left stale collections [%s]: %v",
		e.Entity, e.OldKey, e.NewKey, strings.Join(e.Stale, ", "), e.Err)
}

func (e *CascadeError) Unwrap() error {
	return e.Err
}

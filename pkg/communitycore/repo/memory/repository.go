package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quedadas/community-core/pkg/communitycore"
)

// Repository implements communitycore.Repository using in-memory storage
type Repository struct {
	mu sync.RWMutex

	users       map[string]*communitycore.User
	communities map[string]*communitycore.Community
	activities  map[uuid.UUID]*communitycore.Activity
	index       map[uuid.UUID]*communitycore.ActivityIndexEntry

	communityEdges map[uuid.UUID]*communitycore.CommunityMembership
	activityEdges  map[uuid.UUID]*communitycore.ActivityMembership

	notifications map[uuid.UUID]*communitycore.Notification
	dispatched    map[dispatchKey]*communitycore.DispatchRecord
}

type dispatchKey struct {
	activityID uuid.UUID
	recipient  string
	threshold  communitycore.Threshold
}

// New creates a new in-memory repository
func New() communitycore.Repository {
	return &Repository{
		users:          make(map[string]*communitycore.User),
		communities:    make(map[string]*communitycore.Community),
		activities:     make(map[uuid.UUID]*communitycore.Activity),
		index:          make(map[uuid.UUID]*communitycore.ActivityIndexEntry),
		communityEdges: make(map[uuid.UUID]*communitycore.CommunityMembership),
		activityEdges:  make(map[uuid.UUID]*communitycore.ActivityMembership),
		notifications:  make(map[uuid.UUID]*communitycore.Notification),
		dispatched:     make(map[dispatchKey]*communitycore.DispatchRecord),
	}
}

// User operations

func (r *Repository) CreateUser(ctx context.Context, user *communitycore.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.Username]; exists {
		return communitycore.ErrUsernameTaken
	}
	userCopy := *user
	r.users[user.Username] = &userCopy
	return nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*communitycore.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[username]
	if !exists {
		return nil, communitycore.ErrUserNotFound
	}
	userCopy := *user
	return &userCopy, nil
}

func (r *Repository) UpdateUser(ctx context.Context, user *communitycore.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.Username]; !exists {
		return communitycore.ErrUserNotFound
	}
	userCopy := *user
	r.users[user.Username] = &userCopy
	return nil
}

func (r *Repository) RekeyUser(ctx context.Context, oldUsername, newUsername string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[oldUsername]
	if !exists {
		return communitycore.ErrUserNotFound
	}
	if _, exists := r.users[newUsername]; exists {
		return communitycore.ErrUsernameTaken
	}
	userCopy := *user
	userCopy.Username = newUsername
	delete(r.users, oldUsername)
	r.users[newUsername] = &userCopy
	return nil
}

func (r *Repository) DeleteUserByUsername(ctx context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[username]; !exists {
		return communitycore.ErrUserNotFound
	}
	delete(r.users, username)
	return nil
}

// Community operations

func (r *Repository) CreateCommunity(ctx context.Context, community *communitycore.Community) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.communities[community.URL]; exists {
		return communitycore.ErrCommunityURLTaken
	}
	communityCopy := *community
	r.communities[community.URL] = &communityCopy
	return nil
}

func (r *Repository) GetCommunityByURL(ctx context.Context, url string) (*communitycore.Community, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	community, exists := r.communities[url]
	if !exists {
		return nil, communitycore.ErrCommunityNotFound
	}
	communityCopy := *community
	return &communityCopy, nil
}

func (r *Repository) UpdateCommunity(ctx context.Context, community *communitycore.Community) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.communities[community.URL]; !exists {
		return communitycore.ErrCommunityNotFound
	}
	communityCopy := *community
	r.communities[community.URL] = &communityCopy
	return nil
}

func (r *Repository) RekeyCommunity(ctx context.Context, oldURL, newURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	community, exists := r.communities[oldURL]
	if !exists {
		return communitycore.ErrCommunityNotFound
	}
	if _, exists := r.communities[newURL]; exists {
		return communitycore.ErrCommunityURLTaken
	}
	communityCopy := *community
	communityCopy.URL = newURL
	delete(r.communities, oldURL)
	r.communities[newURL] = &communityCopy
	return nil
}

func (r *Repository) DeleteCommunityByURL(ctx context.Context, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.communities[url]; !exists {
		return communitycore.ErrCommunityNotFound
	}
	delete(r.communities, url)
	return nil
}

func (r *Repository) FindCommunitiesByCreatorOrAdmin(ctx context.Context, username string) ([]*communitycore.Community, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*communitycore.Community
	for _, c := range r.communities {
		if c.Creator == username || containsString(c.Administrators, username) {
			communityCopy := *c
			result = append(result, &communityCopy)
		}
	}
	sortCommunities(result)
	return result, nil
}

// Activity operations

func (r *Repository) CreateActivity(ctx context.Context, activity *communitycore.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	activityCopy := *activity
	r.activities[activity.ID] = &activityCopy
	return nil
}

func (r *Repository) GetActivity(ctx context.Context, id uuid.UUID) (*communitycore.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	activity, exists := r.activities[id]
	if !exists {
		return nil, communitycore.ErrActivityNotFound
	}
	activityCopy := *activity
	return &activityCopy, nil
}

func (r *Repository) UpdateActivity(ctx context.Context, activity *communitycore.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.activities[activity.ID]; !exists {
		return communitycore.ErrActivityNotFound
	}
	activityCopy := *activity
	r.activities[activity.ID] = &activityCopy
	return nil
}

func (r *Repository) DeleteActivity(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.activities[id]; !exists {
		return communitycore.ErrActivityNotFound
	}
	delete(r.activities, id)
	return nil
}

func (r *Repository) FindActivitiesByCommunity(ctx context.Context, url string) ([]*communitycore.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*communitycore.Activity
	for _, a := range r.activities {
		if a.CommunityURL == url {
			activityCopy := *a
			result = append(result, &activityCopy)
		}
	}
	sortActivities(result)
	return result, nil
}

func (r *Repository) FindActivitiesStartingBetween(ctx context.Context, from, to time.Time) ([]*communitycore.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*communitycore.Activity
	for _, a := range r.activities {
		if !a.StartsAt.Before(from) && !a.StartsAt.After(to) {
			activityCopy := *a
			result = append(result, &activityCopy)
		}
	}
	sortActivities(result)
	return result, nil
}

// Activity index operations

func (r *Repository) CreateIndexEntry(ctx context.Context, entry *communitycore.ActivityIndexEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entryCopy := *entry
	r.index[entry.ID] = &entryCopy
	return nil
}

func (r *Repository) FindIndexEntriesByCommunity(ctx context.Context, url string) ([]*communitycore.ActivityIndexEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*communitycore.ActivityIndexEntry
	for _, e := range r.index {
		if e.CommunityURL == url {
			entryCopy := *e
			result = append(result, &entryCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ActivityName < result[j].ActivityName })
	return result, nil
}

func (r *Repository) UpdateIndexEntry(ctx context.Context, entry *communitycore.ActivityIndexEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[entry.ID]; !exists {
		return communitycore.ErrActivityNotFound
	}
	entryCopy := *entry
	r.index[entry.ID] = &entryCopy
	return nil
}

func (r *Repository) DeleteIndexEntryByActivity(ctx context.Context, activityID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.index {
		if e.ActivityID == activityID {
			delete(r.index, id)
		}
	}
	return nil
}

func (r *Repository) DeleteIndexEntriesByCommunity(ctx context.Context, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.index {
		if e.CommunityURL == url {
			delete(r.index, id)
		}
	}
	return nil
}

// Community membership operations

func (r *Repository) CreateCommunityMembership(ctx context.Context, edge *communitycore.CommunityMembership) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.communityEdges {
		if e.Username == edge.Username && e.CommunityURL == edge.CommunityURL {
			return communitycore.ErrAlreadyMember
		}
	}
	edgeCopy := *edge
	r.communityEdges[edge.ID] = &edgeCopy
	return nil
}

func (r *Repository) GetCommunityMembership(ctx context.Context, username, url string) (*communitycore.CommunityMembership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.communityEdges {
		if e.Username == username && e.CommunityURL == url {
			edgeCopy := *e
			return &edgeCopy, nil
		}
	}
	return nil, communitycore.ErrMembershipNotFound
}

func (r *Repository) FindCommunityMembershipsByCommunity(ctx context.Context, url string) ([]*communitycore.CommunityMembership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*communitycore.CommunityMembership
	for _, e := range r.communityEdges {
		if e.CommunityURL == url {
			edgeCopy := *e
			result = append(result, &edgeCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

func (r *Repository) FindCommunityMembershipsByUser(ctx context.Context, username string) ([]*communitycore.CommunityMembership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*communitycore.CommunityMembership
	for _, e := range r.communityEdges {
		if e.Username == username {
			edgeCopy := *e
			result = append(result, &edgeCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CommunityURL < result[j].CommunityURL })
	return result, nil
}

func (r *Repository) UpdateCommunityMembership(ctx context.Context, edge *communitycore.CommunityMembership) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.communityEdges[edge.ID]; !exists {
		return communitycore.ErrMembershipNotFound
	}
	edgeCopy := *edge
	r.communityEdges[edge.ID] = &edgeCopy
	return nil
}

func (r *Repository) DeleteCommunityMembership(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.communityEdges[id]; !exists {
		return communitycore.ErrMembershipNotFound
	}
	delete(r.communityEdges, id)
	return nil
}

func (r *Repository) DeleteCommunityMembershipsByCommunity(ctx context.Context, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.communityEdges {
		if e.CommunityURL == url {
			delete(r.communityEdges, id)
		}
	}
	return nil
}

func (r *Repository) CountCommunityMemberships(ctx context.Context, url string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, e := range r.communityEdges {
		if e.CommunityURL == url {
			count++
		}
	}
	return count, nil
}

// Activity membership operations

func (r *Repository) CreateActivityMembership(ctx context.Context, edge *communitycore.ActivityMembership) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.activityEdges {
		if e.Username == edge.Username && e.ActivityID == edge.ActivityID {
			return communitycore.ErrAlreadyMember
		}
	}
	edgeCopy := *edge
	r.activityEdges[edge.ID] = &edgeCopy
	return nil
}

func (r *Repository) GetActivityMembership(ctx context.Context, username string, activityID uuid.UUID) (*communitycore.ActivityMembership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.activityEdges {
		if e.Username == username && e.ActivityID == activityID {
			edgeCopy := *e
			return &edgeCopy, nil
		}
	}
	return nil, communitycore.ErrMembershipNotFound
}

func (r *Repository) FindActivityMembershipsByActivity(ctx context.Context, activityID uuid.UUID) ([]*communitycore.ActivityMembership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*communitycore.ActivityMembership
	for _, e := range r.activityEdges {
		if e.ActivityID == activityID {
			edgeCopy := *e
			result = append(result, &edgeCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

func (r *Repository) FindActivityMembershipsByUser(ctx context.Context, username string) ([]*communitycore.ActivityMembership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*communitycore.ActivityMembership
	for _, e := range r.activityEdges {
		if e.Username == username {
			edgeCopy := *e
			result = append(result, &edgeCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].JoinedAt.Before(result[j].JoinedAt) })
	return result, nil
}

func (r *Repository) UpdateActivityMembership(ctx context.Context, edge *communitycore.ActivityMembership) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.activityEdges[edge.ID]; !exists {
		return communitycore.ErrMembershipNotFound
	}
	edgeCopy := *edge
	r.activityEdges[edge.ID] = &edgeCopy
	return nil
}

func (r *Repository) DeleteActivityMembership(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.activityEdges[id]; !exists {
		return communitycore.ErrMembershipNotFound
	}
	delete(r.activityEdges, id)
	return nil
}

func (r *Repository) DeleteActivityMembershipsByActivity(ctx context.Context, activityID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.activityEdges {
		if e.ActivityID == activityID {
			delete(r.activityEdges, id)
		}
	}
	return nil
}

func (r *Repository) CountActivityMemberships(ctx context.Context, activityID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, e := range r.activityEdges {
		if e.ActivityID == activityID {
			count++
		}
	}
	return count, nil
}

// Notification operations

func (r *Repository) CreateNotification(ctx context.Context, n *communitycore.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	nCopy := *n
	r.notifications[n.ID] = &nCopy
	return nil
}

func (r *Repository) GetNotification(ctx context.Context, id uuid.UUID) (*communitycore.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, exists := r.notifications[id]
	if !exists {
		return nil, communitycore.ErrNotificationNotFound
	}
	nCopy := *n
	return &nCopy, nil
}

func (r *Repository) FindNotificationsByRecipient(ctx context.Context, username string) ([]*communitycore.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*communitycore.Notification
	for _, n := range r.notifications {
		if n.Recipient == username {
			nCopy := *n
			result = append(result, &nCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (r *Repository) UpdateNotification(ctx context.Context, n *communitycore.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.notifications[n.ID]; !exists {
		return communitycore.ErrNotificationNotFound
	}
	nCopy := *n
	r.notifications[n.ID] = &nCopy
	return nil
}

func (r *Repository) DeleteNotificationsByRecipient(ctx context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, n := range r.notifications {
		if n.Recipient == username {
			delete(r.notifications, id)
		}
	}
	return nil
}

// Dispatch record operations

func (r *Repository) GetDispatchRecord(ctx context.Context, activityID uuid.UUID, recipient string, threshold communitycore.Threshold) (*communitycore.DispatchRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.dispatched[dispatchKey{activityID, recipient, threshold}]
	if !exists {
		return nil, communitycore.ErrDispatchRecordNotFound
	}
	recCopy := *rec
	return &recCopy, nil
}

func (r *Repository) CreateDispatchRecord(ctx context.Context, rec *communitycore.DispatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	recCopy := *rec
	r.dispatched[dispatchKey{rec.ActivityID, rec.Recipient, rec.Threshold}] = &recCopy
	return nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func sortCommunities(list []*communitycore.Community) {
	sort.Slice(list, func(i, j int) bool { return list[i].URL < list[j].URL })
}

func sortActivities(list []*communitycore.Activity) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].StartsAt.Equal(list[j].StartsAt) {
			return list[i].ID.String() < list[j].ID.String()
		}
		return list[i].StartsAt.Before(list[j].StartsAt)
	})
}

package communitycore_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quedadas/community-core/pkg/communitycore"
	"github.com/quedadas/community-core/pkg/communitycore/repo/memory"
	memorystorage "github.com/quedadas/community-core/pkg/communitycore/storage/memory"
)

func TestServiceCreation(t *testing.T) {
	tests := []struct {
		name        string
		options     []communitycore.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			options:     []communitycore.Option{},
			expectError: true,
		},
		{
			name: "repository alone should fail",
			options: []communitycore.Option{
				communitycore.WithRepository(memory.New()),
			},
			expectError: true,
		},
		{
			name: "repository and blob store should succeed",
			options: []communitycore.Option{
				communitycore.WithRepository(memory.New()),
				communitycore.WithBlobStore(memorystorage.New()),
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := communitycore.New(tt.options...)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func setupTestService(t *testing.T) communitycore.Service {
	t.Helper()

	svc, err := communitycore.New(
		communitycore.WithRepository(memory.New()),
		communitycore.WithBlobStore(memorystorage.New()),
		communitycore.WithNotificationSink(communitycore.NewNoopNotificationSink()),
	)
	require.NoError(t, err)
	require.NotNil(t, svc)

	return svc
}

func mustCreateUser(t *testing.T, svc communitycore.Service, username string) *communitycore.User {
	t.Helper()
	user, err := svc.CreateUser(context.Background(), communitycore.CreateUserRequest{
		Username: username,
		Email:    username + "@example.com",
	})
	require.NoError(t, err)
	return user
}

func mustCreateCommunity(t *testing.T, svc communitycore.Service, url, creator string) *communitycore.Community {
	t.Helper()
	community, err := svc.CreateCommunity(context.Background(), communitycore.CreateCommunityRequest{
		URL:     url,
		Name:    strings.ReplaceAll(url, "-", " "),
		Creator: creator,
	})
	require.NoError(t, err)
	return community
}

func mustCreateActivity(t *testing.T, svc communitycore.Service, name, creator, communityURL string, startsAt time.Time) *communitycore.Activity {
	t.Helper()
	activity, err := svc.CreateActivity(context.Background(), communitycore.CreateActivityRequest{
		Name:         name,
		Creator:      creator,
		CommunityURL: communityURL,
		StartsAt:     startsAt,
		EndsAt:       startsAt.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	return activity
}

func TestCreateUser(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, communitycore.CreateUserRequest{
		Username:    "alice",
		Email:       "alice@example.com",
		DisplayName: "Alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.False(t, user.CreatedAt.IsZero())

	_, err = svc.CreateUser(ctx, communitycore.CreateUserRequest{Username: "alice"})
	assert.ErrorIs(t, err, communitycore.ErrUsernameTaken)
	assert.True(t, communitycore.IsConflict(err))

	_, err = svc.CreateUser(ctx, communitycore.CreateUserRequest{})
	assert.Error(t, err)
}

func TestGetUserNotFound(t *testing.T) {
	svc := setupTestService(t)

	_, err := svc.GetUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, communitycore.ErrUserNotFound)
	assert.True(t, communitycore.IsNotFound(err))
}

func TestUpdateUserProfilePartial(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	mustCreateUser(t, svc, "alice")

	bio := "runs a lot"
	user, err := svc.UpdateUserProfile(ctx, communitycore.UpdateUserProfileRequest{
		Username: "alice",
		Bio:      &bio,
	})
	require.NoError(t, err)
	assert.Equal(t, "runs a lot", user.Bio)
	// Absent fields stay untouched.
	assert.Equal(t, "alice@example.com", user.Email)
}

func TestCreateCommunityRequiresCreator(t *testing.T) {
	svc := setupTestService(t)

	_, err := svc.CreateCommunity(context.Background(), communitycore.CreateCommunityRequest{
		URL:     "running-club",
		Name:    "Running Club",
		Creator: "ghost",
	})
	assert.ErrorIs(t, err, communitycore.ErrUserNotFound)
}

func TestCreateCommunityCreatorAutoJoins(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	mustCreateUser(t, svc, "alice")
	community := mustCreateCommunity(t, svc, "running-club", "alice")

	assert.Equal(t, "alice", community.Creator)
	assert.Contains(t, community.Administrators, "alice")

	member, err := svc.IsCommunityMember(ctx, "alice", "running-club")
	require.NoError(t, err)
	assert.True(t, member)

	count, err := svc.CommunityMemberCount(ctx, "running-club")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDuplicateCommunityURL(t *testing.T) {
	svc := setupTestService(t)
	mustCreateUser(t, svc, "alice")
	mustCreateCommunity(t, svc, "running-club", "alice")

	_, err := svc.CreateCommunity(context.Background(), communitycore.CreateCommunityRequest{
		URL:     "running-club",
		Name:    "Another Running Club",
		Creator: "alice",
	})
	assert.ErrorIs(t, err, communitycore.ErrCommunityURLTaken)
}

func TestJoinCommunity(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	mustCreateUser(t, svc, "alice")
	mustCreateUser(t, svc, "bob")
	mustCreateCommunity(t, svc, "running-club", "alice")

	edge, err := svc.JoinCommunity(ctx, communitycore.JoinCommunityRequest{
		Username:     "bob",
		CommunityURL: "running-club",
	})
	require.NoError(t, err)
	assert.Equal(t, "bob", edge.Username)

	// A second join of the same pair conflicts.
	_, err = svc.JoinCommunity(ctx, communitycore.JoinCommunityRequest{
		Username:     "bob",
		CommunityURL: "running-club",
	})
	assert.ErrorIs(t, err, communitycore.ErrAlreadyMember)

	count, err := svc.CommunityMemberCount(ctx, "running-club")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestJoinPrivateCommunityRequiresCode(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	mustCreateUser(t, svc, "alice")
	mustCreateUser(t, svc, "bob")

	_, err := svc.CreateCommunity(ctx, communitycore.CreateCommunityRequest{
		URL:      "secret-club",
		Name:     "Secret Club",
		Creator:  "alice",
		Private:  true,
		JoinCode: "open-sesame",
	})
	require.NoError(t, err)

	_, err = svc.JoinCommunity(ctx, communitycore.JoinCommunityRequest{
		Username:     "bob",
		CommunityURL: "secret-club",
		JoinCode:     "wrong",
	})
	assert.ErrorIs(t, err, communitycore.ErrInvalidJoinCode)
	assert.True(t, communitycore.IsForbidden(err))

	_, err = svc.JoinCommunity(ctx, communitycore.JoinCommunityRequest{
		Username:     "bob",
		CommunityURL: "secret-club",
		JoinCode:     "open-sesame",
	})
	assert.NoError(t, err)
}

func TestLeaveCommunity(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	mustCreateUser(t, svc, "alice")
	mustCreateUser(t, svc, "bob")
	mustCreateCommunity(t, svc, "running-club", "alice")

	_, err := svc.JoinCommunity(ctx, communitycore.JoinCommunityRequest{
		Username:     "bob",
		CommunityURL: "running-club",
	})
	require.NoError(t, err)

	require.NoError(t, svc.LeaveCommunity(ctx, "bob", "running-club"))

	member, err := svc.IsCommunityMember(ctx, "bob", "running-club")
	require.NoError(t, err)
	assert.False(t, member)

	err = svc.LeaveCommunity(ctx, "bob", "running-club")
	assert.ErrorIs(t, err, communitycore.ErrMembershipNotFound)
}

func TestCreatorCannotLeave(t *testing.T) {
	svc := setupTestService(t)
	mustCreateUser(t, svc, "alice")
	mustCreateCommunity(t, svc, "running-club", "alice")

	err := svc.LeaveCommunity(context.Background(), "alice", "running-club")
	assert.ErrorIs(t, err, communitycore.ErrCreatorCannotLeave)
	assert.True(t, communitycore.IsForbidden(err))
}

func TestCreateActivity(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	mustCreateUser(t, svc, "alice")
	mustCreateCommunity(t, svc, "running-club", "alice")

	starts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	activity := mustCreateActivity(t, svc, "Sunday Run", "alice", "running-club", starts)

	assert.Equal(t, "running-club", activity.CommunityURL)

	// Creating an activity writes the index entry and auto-joins the creator.
	entries, err := svc.ListCommunityActivities(ctx, "running-club")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, activity.ID, entries[0].ActivityID)
	assert.Equal(t, "Sunday Run", entries[0].ActivityName)

	participant, err := svc.IsActivityParticipant(ctx, "alice", activity.ID)
	require.NoError(t, err)
	assert.True(t, participant)
}

func TestCreateActivityValidation(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	mustCreateUser(t, svc, "alice")
	mustCreateCommunity(t, svc, "running-club", "alice")

	starts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	_, err := svc.CreateActivity(ctx, communitycore.CreateActivityRequest{
		Name:         "Backwards",
		Creator:      "alice",
		CommunityURL: "running-club",
		StartsAt:     starts,
		EndsAt:       starts.Add(-time.Hour),
	})
	assert.Error(t, err)

	_, err = svc.CreateActivity(ctx, communitycore.CreateActivityRequest{
		Name:         "Orphan",
		Creator:      "alice",
		CommunityURL: "no-such-community",
		StartsAt:     starts,
	})
	assert.ErrorIs(t, err, communitycore.ErrCommunityNotFound)
}

func TestUpdateActivityRenameUpdatesIndex(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	mustCreateUser(t, svc, "alice")
	mustCreateCommunity(t, svc, "running-club", "alice")

	starts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	activity := mustCreateActivity(t, svc, "Sunday Run", "alice", "running-club", starts)

	name := "Sunday Long Run"
	_, err := svc.UpdateActivity(ctx, communitycore.UpdateActivityRequest{
		ID:   activity.ID,
		Name: &name,
	})
	require.NoError(t, err)

	entries, err := svc.ListCommunityActivities(ctx, "running-club")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Sunday Long Run", entries[0].ActivityName)
}

func TestJoinPrivateActivityRequiresCommunityMembership(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	mustCreateUser(t, svc, "alice")
	mustCreateUser(t, svc, "bob")
	mustCreateCommunity(t, svc, "running-club", "alice")

	starts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	activity, err := svc.CreateActivity(ctx, communitycore.CreateActivityRequest{
		Name:         "Members Only Run",
		Creator:      "alice",
		CommunityURL: "running-club",
		StartsAt:     starts,
		Private:      true,
	})
	require.NoError(t, err)

	_, err = svc.JoinActivity(ctx, "bob", activity.ID)
	assert.ErrorIs(t, err, communitycore.ErrMembershipNotFound)

	_, err = svc.JoinCommunity(ctx, communitycore.JoinCommunityRequest{
		Username:     "bob",
		CommunityURL: "running-club",
	})
	require.NoError(t, err)

	_, err = svc.JoinActivity(ctx, "bob", activity.ID)
	assert.NoError(t, err)

	count, err := svc.ActivityParticipantCount(ctx, activity.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestDeleteActivity(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	mustCreateUser(t, svc, "alice")
	mustCreateCommunity(t, svc, "running-club", "alice")

	starts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	activity := mustCreateActivity(t, svc, "Sunday Run", "alice", "running-club", starts)

	require.NoError(t, svc.DeleteActivity(ctx, activity.ID))

	_, err := svc.GetActivity(ctx, activity.ID)
	assert.ErrorIs(t, err, communitycore.ErrActivityNotFound)

	entries, err := svc.ListCommunityActivities(ctx, "running-club")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDeleteCommunityKeepsActivities(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	mustCreateUser(t, svc, "alice")
	mustCreateCommunity(t, svc, "running-club", "alice")

	starts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	activity := mustCreateActivity(t, svc, "Sunday Run", "alice", "running-club", starts)

	require.NoError(t, svc.DeleteCommunity(ctx, "running-club"))

	_, err := svc.GetCommunity(ctx, "running-club")
	assert.ErrorIs(t, err, communitycore.ErrCommunityNotFound)

	// Activities survive the community and keep their dangling reference.
	kept, err := svc.GetActivity(ctx, activity.ID)
	require.NoError(t, err)
	assert.Equal(t, "running-club", kept.CommunityURL)
}

func TestDeleteUserForbiddenWhileOwningCommunity(t *testing.T) {
	svc := setupTestService(t)
	mustCreateUser(t, svc, "alice")
	mustCreateCommunity(t, svc, "running-club", "alice")

	err := svc.DeleteUser(context.Background(), "alice")
	assert.ErrorIs(t, err, communitycore.ErrCreatorOwnsCommunities)
}

func TestDeleteUserCascades(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	mustCreateUser(t, svc, "alice")
	mustCreateUser(t, svc, "bob")
	mustCreateCommunity(t, svc, "running-club", "alice")

	_, err := svc.JoinCommunity(ctx, communitycore.JoinCommunityRequest{
		Username:     "bob",
		CommunityURL: "running-club",
	})
	require.NoError(t, err)

	starts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	activity := mustCreateActivity(t, svc, "Sunday Run", "alice", "running-club", starts)
	_, err = svc.JoinActivity(ctx, "bob", activity.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUser(ctx, "bob"))

	_, err = svc.GetUser(ctx, "bob")
	assert.ErrorIs(t, err, communitycore.ErrUserNotFound)

	count, err := svc.CommunityMemberCount(ctx, "running-club")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = svc.ActivityParticipantCount(ctx, activity.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMarkNotificationRead(t *testing.T) {
	repo := memory.New()
	svc, err := communitycore.New(
		communitycore.WithRepository(repo),
		communitycore.WithBlobStore(memorystorage.New()),
	)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = svc.CreateUser(ctx, communitycore.CreateUserRequest{Username: "alice"})
	require.NoError(t, err)

	n := &communitycore.Notification{
		ID:        uuid.New(),
		Type:      communitycore.NotificationActivityUpcoming,
		Recipient: "alice",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreateNotification(ctx, n))

	got, err := svc.MarkNotificationRead(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, got.Read)

	list, err := svc.ListNotifications(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Read)
}

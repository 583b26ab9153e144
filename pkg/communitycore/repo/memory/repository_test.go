package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quedadas/community-core/pkg/communitycore"
	"github.com/quedadas/community-core/pkg/communitycore/repo/memory"
)

func TestUserCRUDAndRekey(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	user := &communitycore.User{Username: "alice", Email: "alice@example.com"}
	require.NoError(t, repo.CreateUser(ctx, user))

	err := repo.CreateUser(ctx, &communitycore.User{Username: "alice"})
	assert.ErrorIs(t, err, communitycore.ErrUsernameTaken)

	got, err := repo.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)

	// Mutating the returned copy must not leak into the stored record.
	got.Email = "mutated@example.com"
	again, err := repo.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", again.Email)

	require.NoError(t, repo.RekeyUser(ctx, "alice", "alicia"))
	_, err = repo.GetUserByUsername(ctx, "alice")
	assert.ErrorIs(t, err, communitycore.ErrUserNotFound)
	rekeyed, err := repo.GetUserByUsername(ctx, "alicia")
	require.NoError(t, err)
	assert.Equal(t, "alicia", rekeyed.Username)
	assert.Equal(t, "alice@example.com", rekeyed.Email)

	err = repo.RekeyUser(ctx, "ghost", "anything")
	assert.ErrorIs(t, err, communitycore.ErrUserNotFound)
}

func TestRekeyCommunityConflict(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	require.NoError(t, repo.CreateCommunity(ctx, &communitycore.Community{URL: "a", Name: "A"}))
	require.NoError(t, repo.CreateCommunity(ctx, &communitycore.Community{URL: "b", Name: "B"}))

	err := repo.RekeyCommunity(ctx, "a", "b")
	assert.ErrorIs(t, err, communitycore.ErrCommunityURLTaken)
}

func TestCommunityMembershipUniqueness(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	edge := &communitycore.CommunityMembership{
		ID:           uuid.New(),
		Username:     "alice",
		CommunityURL: "running-club",
		JoinedAt:     time.Now().UTC(),
	}
	require.NoError(t, repo.CreateCommunityMembership(ctx, edge))

	dup := &communitycore.CommunityMembership{
		ID:           uuid.New(),
		Username:     "alice",
		CommunityURL: "running-club",
	}
	err := repo.CreateCommunityMembership(ctx, dup)
	assert.ErrorIs(t, err, communitycore.ErrAlreadyMember)

	count, err := repo.CountCommunityMemberships(ctx, "running-club")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFindActivitiesStartingBetween(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{0, time.Hour, 48 * time.Hour} {
		require.NoError(t, repo.CreateActivity(ctx, &communitycore.Activity{
			ID:       uuid.New(),
			Name:     "activity",
			StartsAt: base.Add(offset),
		}))
	}

	found, err := repo.FindActivitiesStartingBetween(ctx, base.Add(-time.Minute), base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, found, 2)

	// Results come back ordered by start time.
	assert.True(t, !found[1].StartsAt.Before(found[0].StartsAt))
}

func TestDispatchRecordLookup(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	activityID := uuid.New()
	_, err := repo.GetDispatchRecord(ctx, activityID, "alice", communitycore.ThresholdUpcoming)
	assert.ErrorIs(t, err, communitycore.ErrDispatchRecordNotFound)

	rec := &communitycore.DispatchRecord{
		ActivityID:   activityID,
		Recipient:    "alice",
		Threshold:    communitycore.ThresholdUpcoming,
		DispatchedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreateDispatchRecord(ctx, rec))

	got, err := repo.GetDispatchRecord(ctx, activityID, "alice", communitycore.ThresholdUpcoming)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Recipient)

	// The record is per threshold: the other threshold stays undispatched.
	_, err = repo.GetDispatchRecord(ctx, activityID, "alice", communitycore.ThresholdStart)
	assert.ErrorIs(t, err, communitycore.ErrDispatchRecordNotFound)
}

func TestDeleteEdgesByGroup(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	activityID := uuid.New()
	for _, username := range []string{"alice", "bob"} {
		require.NoError(t, repo.CreateActivityMembership(ctx, &communitycore.ActivityMembership{
			ID:         uuid.New(),
			Username:   username,
			ActivityID: activityID,
		}))
	}

	require.NoError(t, repo.DeleteActivityMembershipsByActivity(ctx, activityID))

	count, err := repo.CountActivityMemberships(ctx, activityID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

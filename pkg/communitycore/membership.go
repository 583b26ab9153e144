package communitycore

import (
	"context"

	"github.com/google/uuid"
)

// Membership operations. The repository enforces edge uniqueness per
// (user, group); this layer enforces the cardinality rules on top: creator
// edges survive leave, private groups gate join.

func (s *service) JoinCommunity(ctx context.Context, req JoinCommunityRequest) (*CommunityMembership, error) {
	if _, err := s.repository.GetUserByUsername(ctx, req.Username); err != nil {
		return nil, err
	}
	community, err := s.repository.GetCommunityByURL(ctx, req.CommunityURL)
	if err != nil {
		return nil, err
	}

	if community.Private && req.Username != community.Creator && req.JoinCode != community.JoinCode {
		return nil, ErrInvalidJoinCode
	}

	if _, err := s.repository.GetCommunityMembership(ctx, req.Username, req.CommunityURL); err == nil {
		return nil, ErrAlreadyMember
	} else if !IsNotFound(err) {
		return nil, err
	}

	edge := &CommunityMembership{
		ID:           uuid.New(),
		Username:     req.Username,
		CommunityURL: req.CommunityURL,
		JoinedAt:     s.now(),
	}
	if err := s.repository.CreateCommunityMembership(ctx, edge); err != nil {
		return nil, err
	}
	return edge, nil
}

func (s *service) LeaveCommunity(ctx context.Context, username, url string) error {
	community, err := s.repository.GetCommunityByURL(ctx, url)
	if err != nil {
		return err
	}
	edge, err := s.repository.GetCommunityMembership(ctx, username, url)
	if err != nil {
		return err
	}
	if username == community.Creator {
		return ErrCreatorCannotLeave
	}
	return s.repository.DeleteCommunityMembership(ctx, edge.ID)
}

func (s *service) JoinActivity(ctx context.Context, username string, activityID uuid.UUID) (*ActivityMembership, error) {
	if _, err := s.repository.GetUserByUsername(ctx, username); err != nil {
		return nil, err
	}
	activity, err := s.repository.GetActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}

	// Private activities are only open to members of the owning community.
	if activity.Private {
		if _, err := s.repository.GetCommunityMembership(ctx, username, activity.CommunityURL); err != nil {
			if IsNotFound(err) {
				return nil, ErrMembershipNotFound
			}
			return nil, err
		}
	}

	if _, err := s.repository.GetActivityMembership(ctx, username, activityID); err == nil {
		return nil, ErrAlreadyMember
	} else if !IsNotFound(err) {
		return nil, err
	}

	edge := &ActivityMembership{
		ID:         uuid.New(),
		Username:   username,
		ActivityID: activityID,
		JoinedAt:   s.now(),
	}
	if err := s.repository.CreateActivityMembership(ctx, edge); err != nil {
		return nil, err
	}
	return edge, nil
}

func (s *service) LeaveActivity(ctx context.Context, username string, activityID uuid.UUID) error {
	activity, err := s.repository.GetActivity(ctx, activityID)
	if err != nil {
		return err
	}
	edge, err := s.repository.GetActivityMembership(ctx, username, activityID)
	if err != nil {
		return err
	}
	if username == activity.Creator {
		return ErrCreatorCannotLeave
	}
	return s.repository.DeleteActivityMembership(ctx, edge.ID)
}

func (s *service) IsCommunityMember(ctx context.Context, username, url string) (bool, error) {
	if _, err := s.repository.GetUserByUsername(ctx, username); err != nil {
		return false, err
	}
	if _, err := s.repository.GetCommunityByURL(ctx, url); err != nil {
		return false, err
	}
	if _, err := s.repository.GetCommunityMembership(ctx, username, url); err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *service) IsActivityParticipant(ctx context.Context, username string, activityID uuid.UUID) (bool, error) {
	if _, err := s.repository.GetUserByUsername(ctx, username); err != nil {
		return false, err
	}
	if _, err := s.repository.GetActivity(ctx, activityID); err != nil {
		return false, err
	}
	if _, err := s.repository.GetActivityMembership(ctx, username, activityID); err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *service) CommunityMemberCount(ctx context.Context, url string) (int, error) {
	if _, err := s.repository.GetCommunityByURL(ctx, url); err != nil {
		return 0, err
	}
	return s.repository.CountCommunityMemberships(ctx, url)
}

func (s *service) ActivityParticipantCount(ctx context.Context, activityID uuid.UUID) (int, error) {
	if _, err := s.repository.GetActivity(ctx, activityID); err != nil {
		return 0, err
	}
	return s.repository.CountActivityMemberships(ctx, activityID)
}

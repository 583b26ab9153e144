package communitycore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Activity operations

func (s *service) CreateActivity(ctx context.Context, req CreateActivityRequest) (*Activity, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("activity name is required")
	}
	if !req.EndsAt.IsZero() && req.EndsAt.Before(req.StartsAt) {
		return nil, fmt.Errorf("activity ends before it starts")
	}
	if _, err := s.repository.GetUserByUsername(ctx, req.Creator); err != nil {
		return nil, err
	}
	if _, err := s.repository.GetCommunityByURL(ctx, req.CommunityURL); err != nil {
		return nil, err
	}

	now := s.now()
	activity := &Activity{
		ID:           uuid.New(),
		Name:         req.Name,
		Description:  req.Description,
		StartsAt:     req.StartsAt,
		EndsAt:       req.EndsAt,
		Creator:      req.Creator,
		CommunityURL: req.CommunityURL,
		Private:      req.Private,
		Location:     req.Location,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if len(req.Carousel) > 0 {
		ids, err := s.media.replaceCarousel(ctx, ownerRef{OwnerTypeActivity, activity.ID.String()}, nil, req.Carousel)
		if err != nil {
			return nil, err
		}
		activity.CarouselMediaIDs = ids
	}

	if err := s.repository.CreateActivity(ctx, activity); err != nil {
		return nil, err
	}

	entry := &ActivityIndexEntry{
		ID:           uuid.New(),
		CommunityURL: activity.CommunityURL,
		ActivityID:   activity.ID,
		ActivityName: activity.Name,
	}
	if err := s.repository.CreateIndexEntry(ctx, entry); err != nil {
		return nil, err
	}

	edge := &ActivityMembership{
		ID:         uuid.New(),
		Username:   req.Creator,
		ActivityID: activity.ID,
		JoinedAt:   now,
	}
	if err := s.repository.CreateActivityMembership(ctx, edge); err != nil {
		return nil, err
	}

	return activity, nil
}

func (s *service) GetActivity(ctx context.Context, id uuid.UUID) (*Activity, error) {
	return s.repository.GetActivity(ctx, id)
}

func (s *service) UpdateActivity(ctx context.Context, req UpdateActivityRequest) (*Activity, error) {
	activity, err := s.repository.GetActivity(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	renamed := false
	if req.Name != nil && *req.Name != activity.Name {
		activity.Name = *req.Name
		renamed = true
	}
	if req.Description != nil {
		activity.Description = *req.Description
	}
	if req.StartsAt != nil {
		activity.StartsAt = *req.StartsAt
	}
	if req.EndsAt != nil {
		activity.EndsAt = *req.EndsAt
	}
	if req.Private != nil {
		activity.Private = *req.Private
	}
	if req.Location != nil {
		activity.Location = *req.Location
	}

	if req.Carousel != nil {
		ids, err := s.media.replaceCarousel(ctx, ownerRef{OwnerTypeActivity, activity.ID.String()}, activity.CarouselMediaIDs, req.Carousel)
		if err != nil {
			return nil, err
		}
		activity.CarouselMediaIDs = ids
	}

	activity.UpdatedAt = s.now()
	if err := s.repository.UpdateActivity(ctx, activity); err != nil {
		return nil, err
	}

	// The index duplicates the activity name and must follow it.
	if renamed {
		entries, err := s.repository.FindIndexEntriesByCommunity(ctx, activity.CommunityURL)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.ActivityID == activity.ID {
				e.ActivityName = activity.Name
				if err := s.repository.UpdateIndexEntry(ctx, e); err != nil {
					return nil, err
				}
			}
		}
	}

	return activity, nil
}

func (s *service) DeleteActivity(ctx context.Context, id uuid.UUID) error {
	activity, err := s.repository.GetActivity(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repository.DeleteActivity(ctx, id); err != nil {
		return err
	}

	cascade := newCascade(s, "activity", id.String(), "")

	cascade.run(ctx, collectionActivityMemberships, func(ctx context.Context) error {
		return s.repository.DeleteActivityMembershipsByActivity(ctx, id)
	})

	cascade.run(ctx, collectionActivityIndex, func(ctx context.Context) error {
		return s.repository.DeleteIndexEntryByActivity(ctx, id)
	})

	s.media.releaseAll(ctx, ownerRef{OwnerTypeActivity, id.String()}, "", activity.CarouselMediaIDs)

	return cascade.err()
}

package communitycore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Community operations

func (s *service) CreateCommunity(ctx context.Context, req CreateCommunityRequest) (*Community, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("community url is required")
	}
	if _, err := s.repository.GetUserByUsername(ctx, req.Creator); err != nil {
		return nil, err
	}

	now := s.now()
	community := &Community{
		URL:            req.URL,
		Name:           req.Name,
		Description:    req.Description,
		Interests:      req.Interests,
		Creator:        req.Creator,
		Administrators: []string{req.Creator},
		Private:        req.Private,
		JoinCode:       req.JoinCode,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	owner := ownerRef{OwnerTypeCommunity, req.URL}
	if req.ProfileMedia != nil {
		id, err := s.media.replaceProfile(ctx, owner, "", req.ProfileMedia)
		if err != nil {
			return nil, err
		}
		community.ProfileMediaID = id
	}
	if len(req.Carousel) > 0 {
		ids, err := s.media.replaceCarousel(ctx, owner, nil, req.Carousel)
		if err != nil {
			return nil, err
		}
		community.CarouselMediaIDs = ids
	}

	if err := s.repository.CreateCommunity(ctx, community); err != nil {
		return nil, err
	}

	// The creator always holds an edge; it can never be removed via leave.
	edge := &CommunityMembership{
		ID:           uuid.New(),
		Username:     req.Creator,
		CommunityURL: req.URL,
		JoinedAt:     now,
	}
	if err := s.repository.CreateCommunityMembership(ctx, edge); err != nil {
		return nil, err
	}

	return community, nil
}

func (s *service) GetCommunity(ctx context.Context, url string) (*Community, error) {
	return s.repository.GetCommunityByURL(ctx, url)
}

func (s *service) UpdateCommunity(ctx context.Context, req UpdateCommunityRequest) (*Community, error) {
	community, err := s.repository.GetCommunityByURL(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		community.Name = *req.Name
	}
	if req.Description != nil {
		community.Description = *req.Description
	}
	if req.Interests != nil {
		community.Interests = req.Interests
	}
	if req.Administrators != nil {
		community.Administrators = req.Administrators
	}
	if req.Private != nil {
		community.Private = *req.Private
	}
	if req.JoinCode != nil {
		community.JoinCode = *req.JoinCode
	}

	owner := ownerRef{OwnerTypeCommunity, community.URL}
	id, err := s.media.replaceProfile(ctx, owner, community.ProfileMediaID, req.ProfileMedia)
	if err != nil {
		return nil, err
	}
	community.ProfileMediaID = id

	if req.Carousel != nil {
		ids, err := s.media.replaceCarousel(ctx, owner, community.CarouselMediaIDs, req.Carousel)
		if err != nil {
			return nil, err
		}
		community.CarouselMediaIDs = ids
	}

	community.UpdatedAt = s.now()
	if err := s.repository.UpdateCommunity(ctx, community); err != nil {
		return nil, err
	}
	return community, nil
}

// DeleteCommunity removes the community, its membership edges and its index
// entries, then releases its media. Activities owned by the community are
// kept and their community reference dangles.
func (s *service) DeleteCommunity(ctx context.Context, url string) error {
	community, err := s.repository.GetCommunityByURL(ctx, url)
	if err != nil {
		return err
	}

	if err := s.repository.DeleteCommunityByURL(ctx, url); err != nil {
		return err
	}

	cascade := newCascade(s, "community", url, "")

	cascade.run(ctx, collectionCommunityMemberships, func(ctx context.Context) error {
		return s.repository.DeleteCommunityMembershipsByCommunity(ctx, url)
	})

	cascade.run(ctx, collectionActivityIndex, func(ctx context.Context) error {
		return s.repository.DeleteIndexEntriesByCommunity(ctx, url)
	})

	s.media.releaseAll(ctx, ownerRef{OwnerTypeCommunity, url}, community.ProfileMediaID, community.CarouselMediaIDs)

	return cascade.err()
}

func (s *service) ListCommunityActivities(ctx context.Context, url string) ([]*ActivityIndexEntry, error) {
	if _, err := s.repository.GetCommunityByURL(ctx, url); err != nil {
		return nil, err
	}
	return s.repository.FindIndexEntriesByCommunity(ctx, url)
}

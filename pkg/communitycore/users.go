package communitycore

import (
	"context"
	"fmt"
)

// User operations

func (s *service) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	if req.Username == "" {
		return nil, fmt.Errorf("username is required")
	}

	now := s.now()
	user := &User{
		Username:    req.Username,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		Premium:     req.Premium,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Store the profile blob before the user document so a created user is
	// never missing its referenced blob.
	if req.ProfileMedia != nil {
		id, err := s.media.replaceProfile(ctx, ownerRef{OwnerTypeUser, req.Username}, "", req.ProfileMedia)
		if err != nil {
			return nil, err
		}
		user.ProfileMediaID = id
	}

	if err := s.repository.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *service) GetUser(ctx context.Context, username string) (*User, error) {
	return s.repository.GetUserByUsername(ctx, username)
}

func (s *service) UpdateUserProfile(ctx context.Context, req UpdateUserProfileRequest) (*User, error) {
	user, err := s.repository.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}

	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.Premium != nil {
		user.Premium = *req.Premium
	}

	id, err := s.media.replaceProfile(ctx, ownerRef{OwnerTypeUser, user.Username}, user.ProfileMediaID, req.ProfileMedia)
	if err != nil {
		return nil, err
	}
	user.ProfileMediaID = id
	user.UpdatedAt = s.now()

	if err := s.repository.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *service) DeleteUser(ctx context.Context, username string) error {
	user, err := s.repository.GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}

	// A user who still owns a community cannot be deleted; creatorship must
	// be transferred first, same rule as leaving.
	owned, err := s.repository.FindCommunitiesByCreatorOrAdmin(ctx, username)
	if err != nil {
		return err
	}
	for _, c := range owned {
		if c.Creator == username {
			return ErrCreatorOwnsCommunities
		}
	}

	if err := s.repository.DeleteUserByUsername(ctx, username); err != nil {
		return err
	}

	cascade := newCascade(s, "user", username, "")

	cascade.run(ctx, collectionCommunityMemberships, func(ctx context.Context) error {
		edges, err := s.repository.FindCommunityMembershipsByUser(ctx, username)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if err := s.repository.DeleteCommunityMembership(ctx, e.ID); err != nil {
				return err
			}
		}
		return nil
	})

	cascade.run(ctx, collectionActivityMemberships, func(ctx context.Context) error {
		edges, err := s.repository.FindActivityMembershipsByUser(ctx, username)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if err := s.repository.DeleteActivityMembership(ctx, e.ID); err != nil {
				return err
			}
		}
		return nil
	})

	cascade.run(ctx, collectionNotifications, func(ctx context.Context) error {
		return s.repository.DeleteNotificationsByRecipient(ctx, username)
	})

	cascade.run(ctx, collectionCommunities, func(ctx context.Context) error {
		for _, c := range owned {
			if removed := removeString(c.Administrators, username); len(removed) != len(c.Administrators) {
				c.Administrators = removed
				c.UpdatedAt = s.now()
				if err := s.repository.UpdateCommunity(ctx, c); err != nil {
					return err
				}
			}
		}
		return nil
	})

	s.media.releaseAll(ctx, ownerRef{OwnerTypeUser, username}, user.ProfileMediaID, nil)

	return cascade.err()
}

func removeString(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

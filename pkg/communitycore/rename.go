package communitycore

import (
	"context"
)

// Dependent collection names reported in CascadeError.Stale. These are
// machine-readable identifiers for operators re-running a failed cascade.
const (
	collectionCommunityMemberships = "community_memberships"
	collectionActivityMemberships  = "activity_memberships"
	collectionActivities           = "activities"
	collectionActivityIndex        = "activity_index"
	collectionNotifications        = "notifications"
	collectionCommunities          = "communities"
)

// cascade tracks fan-out progress after a primary record rewrite. A step
// failure marks its collection stale and the cascade moves on, so one bad
// collection does not block the rest; the caller surfaces the accumulated
// CascadeError and the whole operation can be idempotently re-run.
type cascade struct {
	svc      *service
	entity   string
	oldKey   string
	newKey   string
	stale    []string
	firstErr error
}

func newCascade(svc *service, entity, oldKey, newKey string) *cascade {
	return &cascade{svc: svc, entity: entity, oldKey: oldKey, newKey: newKey}
}

func (c *cascade) run(ctx context.Context, collection string, step func(ctx context.Context) error) {
	if err := step(ctx); err != nil {
		c.stale = append(c.stale, collection)
		if c.firstErr == nil {
			c.firstErr = err
		}
		c.svc.log.Error("cascade step failed",
			"entity", c.entity,
			"old_key", c.oldKey,
			"new_key", c.newKey,
			"collection", collection,
			"error", err)
	}
}

func (c *cascade) err() error {
	if len(c.stale) == 0 {
		return nil
	}
	return &CascadeError{
		Entity: c.entity,
		OldKey: c.oldKey,
		NewKey: c.newKey,
		Stale:  c.stale,
		Err:    c.firstErr,
	}
}

// RenameCommunity changes a community's URL and rewrites every denormalized
// copy of it. The primary record is rewritten first (single point of truth),
// then membership edges, activities and the activity index. Dependent
// rewrites match on the old URL, so re-running after a partial failure is a
// no-op for rows already migrated.
func (s *service) RenameCommunity(ctx context.Context, oldURL, newURL string) (*Community, error) {
	if _, err := s.repository.GetCommunityByURL(ctx, newURL); err == nil {
		return nil, ErrCommunityURLTaken
	} else if !IsNotFound(err) {
		return nil, err
	}
	if _, err := s.repository.GetCommunityByURL(ctx, oldURL); err != nil {
		return nil, err
	}

	if err := s.repository.RekeyCommunity(ctx, oldURL, newURL); err != nil {
		return nil, err
	}

	cascade := newCascade(s, "community", oldURL, newURL)

	cascade.run(ctx, collectionCommunityMemberships, func(ctx context.Context) error {
		edges, err := s.repository.FindCommunityMembershipsByCommunity(ctx, oldURL)
		if err != nil {
			return err
		}
		for _, e := range edges {
			e.CommunityURL = newURL
			if err := s.repository.UpdateCommunityMembership(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})

	cascade.run(ctx, collectionActivities, func(ctx context.Context) error {
		activities, err := s.repository.FindActivitiesByCommunity(ctx, oldURL)
		if err != nil {
			return err
		}
		for _, a := range activities {
			a.CommunityURL = newURL
			if err := s.repository.UpdateActivity(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})

	cascade.run(ctx, collectionActivityIndex, func(ctx context.Context) error {
		entries, err := s.repository.FindIndexEntriesByCommunity(ctx, oldURL)
		if err != nil {
			return err
		}
		for _, e := range entries {
			e.CommunityURL = newURL
			if err := s.repository.UpdateIndexEntry(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})

	if err := cascade.err(); err != nil {
		return nil, err
	}
	return s.repository.GetCommunityByURL(ctx, newURL)
}

// RenameUser changes a username and rewrites every denormalized copy:
// membership edges of both kinds, notification recipients, and community
// creator/administrator lists.
func (s *service) RenameUser(ctx context.Context, oldUsername, newUsername string) (*User, error) {
	if _, err := s.repository.GetUserByUsername(ctx, newUsername); err == nil {
		return nil, ErrUsernameTaken
	} else if !IsNotFound(err) {
		return nil, err
	}
	if _, err := s.repository.GetUserByUsername(ctx, oldUsername); err != nil {
		return nil, err
	}

	if err := s.repository.RekeyUser(ctx, oldUsername, newUsername); err != nil {
		return nil, err
	}

	cascade := newCascade(s, "user", oldUsername, newUsername)

	cascade.run(ctx, collectionCommunityMemberships, func(ctx context.Context) error {
		edges, err := s.repository.FindCommunityMembershipsByUser(ctx, oldUsername)
		if err != nil {
			return err
		}
		for _, e := range edges {
			e.Username = newUsername
			if err := s.repository.UpdateCommunityMembership(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})

	cascade.run(ctx, collectionActivityMemberships, func(ctx context.Context) error {
		edges, err := s.repository.FindActivityMembershipsByUser(ctx, oldUsername)
		if err != nil {
			return err
		}
		for _, e := range edges {
			e.Username = newUsername
			if err := s.repository.UpdateActivityMembership(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})

	cascade.run(ctx, collectionNotifications, func(ctx context.Context) error {
		notifications, err := s.repository.FindNotificationsByRecipient(ctx, oldUsername)
		if err != nil {
			return err
		}
		for _, n := range notifications {
			n.Recipient = newUsername
			if err := s.repository.UpdateNotification(ctx, n); err != nil {
				return err
			}
		}
		return nil
	})

	cascade.run(ctx, collectionCommunities, func(ctx context.Context) error {
		communities, err := s.repository.FindCommunitiesByCreatorOrAdmin(ctx, oldUsername)
		if err != nil {
			return err
		}
		for _, c := range communities {
			changed := false
			if c.Creator == oldUsername {
				c.Creator = newUsername
				changed = true
			}
			for i, admin := range c.Administrators {
				if admin == oldUsername {
					c.Administrators[i] = newUsername
					changed = true
				}
			}
			if changed {
				if err := s.repository.UpdateCommunity(ctx, c); err != nil {
					return err
				}
			}
		}
		return nil
	})

	if err := cascade.err(); err != nil {
		return nil, err
	}
	return s.repository.GetUserByUsername(ctx, newUsername)
}

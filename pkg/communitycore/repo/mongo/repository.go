package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/quedadas/community-core/pkg/communitycore"
)

// Collection names.
const (
	colUsers           = "users"
	colCommunities     = "communities"
	colActivities      = "activities"
	colActivityIndex   = "activity_index"
	colCommunityEdges  = "community_members"
	colActivityEdges   = "activity_members"
	colNotifications   = "notifications"
	colDispatchRecords = "dispatch_records"
)

// Repository implements communitycore.Repository on a MongoDB database.
//
// Natural keys are stored as _id on users and communities, so a rekey is an
// insert-then-delete (Mongo cannot update _id in place). Uuid-keyed
// documents store their ids as canonical uuid strings; connect the client
// with Registry so filters and documents encode identically. There are no
// multi-document transactions here; callers rely on the cascade layer's
// idempotent re-runs.
type Repository struct {
	db *mongo.Database
}

// New creates a repository on the given database handle.
func New(db *mongo.Database) *Repository {
	return &Repository{db: db}
}

// EnsureIndexes creates the unique and lookup indexes the repository relies
// on. Call once at startup.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	specs := map[string][]mongo.IndexModel{
		colCommunityEdges: {
			{Keys: bson.D{{Key: "username", Value: 1}, {Key: "community_url", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "community_url", Value: 1}}},
		},
		colActivityEdges: {
			{Keys: bson.D{{Key: "username", Value: 1}, {Key: "activity_id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "activity_id", Value: 1}}},
		},
		colDispatchRecords: {
			{Keys: bson.D{{Key: "activity_id", Value: 1}, {Key: "recipient", Value: 1}, {Key: "threshold", Value: 1}}, Options: unique},
		},
		colActivities: {
			{Keys: bson.D{{Key: "community_url", Value: 1}}},
			{Keys: bson.D{{Key: "starts_at", Value: 1}}},
		},
		colActivityIndex: {
			{Keys: bson.D{{Key: "community_url", Value: 1}}},
		},
		colNotifications: {
			{Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}

	for col, models := range specs {
		if _, err := r.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", col, err)
		}
	}
	return nil
}

// User operations

func (r *Repository) CreateUser(ctx context.Context, user *communitycore.User) error {
	_, err := r.db.Collection(colUsers).InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return communitycore.ErrUsernameTaken
	}
	return err
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*communitycore.User, error) {
	var user communitycore.User
	err := r.db.Collection(colUsers).FindOne(ctx, bson.M{"_id": username}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, communitycore.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) UpdateUser(ctx context.Context, user *communitycore.User) error {
	res, err := r.db.Collection(colUsers).ReplaceOne(ctx, bson.M{"_id": user.Username}, user)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return communitycore.ErrUserNotFound
	}
	return nil
}

func (r *Repository) RekeyUser(ctx context.Context, oldUsername, newUsername string) error {
	user, err := r.GetUserByUsername(ctx, oldUsername)
	if err != nil {
		return err
	}
	user.Username = newUsername
	if _, err := r.db.Collection(colUsers).InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return communitycore.ErrUsernameTaken
		}
		return err
	}
	_, err = r.db.Collection(colUsers).DeleteOne(ctx, bson.M{"_id": oldUsername})
	return err
}

func (r *Repository) DeleteUserByUsername(ctx context.Context, username string) error {
	res, err := r.db.Collection(colUsers).DeleteOne(ctx, bson.M{"_id": username})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return communitycore.ErrUserNotFound
	}
	return nil
}

// Community operations

func (r *Repository) CreateCommunity(ctx context.Context, community *communitycore.Community) error {
	_, err := r.db.Collection(colCommunities).InsertOne(ctx, community)
	if mongo.IsDuplicateKeyError(err) {
		return communitycore.ErrCommunityURLTaken
	}
	return err
}

func (r *Repository) GetCommunityByURL(ctx context.Context, url string) (*communitycore.Community, error) {
	var community communitycore.Community
	err := r.db.Collection(colCommunities).FindOne(ctx, bson.M{"_id": url}).Decode(&community)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, communitycore.ErrCommunityNotFound
	}
	if err != nil {
		return nil, err
	}
	return &community, nil
}

func (r *Repository) UpdateCommunity(ctx context.Context, community *communitycore.Community) error {
	res, err := r.db.Collection(colCommunities).ReplaceOne(ctx, bson.M{"_id": community.URL}, community)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return communitycore.ErrCommunityNotFound
	}
	return nil
}

func (r *Repository) RekeyCommunity(ctx context.Context, oldURL, newURL string) error {
	community, err := r.GetCommunityByURL(ctx, oldURL)
	if err != nil {
		return err
	}
	community.URL = newURL
	if _, err := r.db.Collection(colCommunities).InsertOne(ctx, community); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return communitycore.ErrCommunityURLTaken
		}
		return err
	}
	_, err = r.db.Collection(colCommunities).DeleteOne(ctx, bson.M{"_id": oldURL})
	return err
}

func (r *Repository) DeleteCommunityByURL(ctx context.Context, url string) error {
	res, err := r.db.Collection(colCommunities).DeleteOne(ctx, bson.M{"_id": url})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return communitycore.ErrCommunityNotFound
	}
	return nil
}

func (r *Repository) FindCommunitiesByCreatorOrAdmin(ctx context.Context, username string) ([]*communitycore.Community, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"creator": username},
		bson.M{"administrators": username},
	}}
	return findAll[communitycore.Community](ctx, r.db.Collection(colCommunities), filter, nil)
}

// Activity operations

func (r *Repository) CreateActivity(ctx context.Context, activity *communitycore.Activity) error {
	_, err := r.db.Collection(colActivities).InsertOne(ctx, activity)
	return err
}

func (r *Repository) GetActivity(ctx context.Context, id uuid.UUID) (*communitycore.Activity, error) {
	var activity communitycore.Activity
	err := r.db.Collection(colActivities).FindOne(ctx, bson.M{"_id": id}).Decode(&activity)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, communitycore.ErrActivityNotFound
	}
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

func (r *Repository) UpdateActivity(ctx context.Context, activity *communitycore.Activity) error {
	res, err := r.db.Collection(colActivities).ReplaceOne(ctx, bson.M{"_id": activity.ID}, activity)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return communitycore.ErrActivityNotFound
	}
	return nil
}

func (r *Repository) DeleteActivity(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.Collection(colActivities).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return communitycore.ErrActivityNotFound
	}
	return nil
}

func (r *Repository) FindActivitiesByCommunity(ctx context.Context, url string) ([]*communitycore.Activity, error) {
	return findAll[communitycore.Activity](ctx, r.db.Collection(colActivities),
		bson.M{"community_url": url},
		options.Find().SetSort(bson.D{{Key: "starts_at", Value: 1}}))
}

func (r *Repository) FindActivitiesStartingBetween(ctx context.Context, from, to time.Time) ([]*communitycore.Activity, error) {
	return findAll[communitycore.Activity](ctx, r.db.Collection(colActivities),
		bson.M{"starts_at": bson.M{"$gte": from, "$lte": to}},
		options.Find().SetSort(bson.D{{Key: "starts_at", Value: 1}}))
}

// Activity index operations

func (r *Repository) CreateIndexEntry(ctx context.Context, entry *communitycore.ActivityIndexEntry) error {
	_, err := r.db.Collection(colActivityIndex).InsertOne(ctx, entry)
	return err
}

func (r *Repository) FindIndexEntriesByCommunity(ctx context.Context, url string) ([]*communitycore.ActivityIndexEntry, error) {
	return findAll[communitycore.ActivityIndexEntry](ctx, r.db.Collection(colActivityIndex),
		bson.M{"community_url": url}, nil)
}

func (r *Repository) UpdateIndexEntry(ctx context.Context, entry *communitycore.ActivityIndexEntry) error {
	res, err := r.db.Collection(colActivityIndex).ReplaceOne(ctx, bson.M{"_id": entry.ID}, entry)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return communitycore.ErrActivityNotFound
	}
	return nil
}

func (r *Repository) DeleteIndexEntryByActivity(ctx context.Context, activityID uuid.UUID) error {
	_, err := r.db.Collection(colActivityIndex).DeleteMany(ctx, bson.M{"activity_id": activityID})
	return err
}

func (r *Repository) DeleteIndexEntriesByCommunity(ctx context.Context, url string) error {
	_, err := r.db.Collection(colActivityIndex).DeleteMany(ctx, bson.M{"community_url": url})
	return err
}

// Community membership operations

func (r *Repository) CreateCommunityMembership(ctx context.Context, edge *communitycore.CommunityMembership) error {
	_, err := r.db.Collection(colCommunityEdges).InsertOne(ctx, edge)
	if mongo.IsDuplicateKeyError(err) {
		return communitycore.ErrAlreadyMember
	}
	return err
}

func (r *Repository) GetCommunityMembership(ctx context.Context, username, url string) (*communitycore.CommunityMembership, error) {
	var edge communitycore.CommunityMembership
	err := r.db.Collection(colCommunityEdges).FindOne(ctx,
		bson.M{"username": username, "community_url": url}).Decode(&edge)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, communitycore.ErrMembershipNotFound
	}
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

func (r *Repository) FindCommunityMembershipsByCommunity(ctx context.Context, url string) ([]*communitycore.CommunityMembership, error) {
	return findAll[communitycore.CommunityMembership](ctx, r.db.Collection(colCommunityEdges),
		bson.M{"community_url": url}, nil)
}

func (r *Repository) FindCommunityMembershipsByUser(ctx context.Context, username string) ([]*communitycore.CommunityMembership, error) {
	return findAll[communitycore.CommunityMembership](ctx, r.db.Collection(colCommunityEdges),
		bson.M{"username": username}, nil)
}

func (r *Repository) UpdateCommunityMembership(ctx context.Context, edge *communitycore.CommunityMembership) error {
	res, err := r.db.Collection(colCommunityEdges).ReplaceOne(ctx, bson.M{"_id": edge.ID}, edge)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return communitycore.ErrMembershipNotFound
	}
	return nil
}

func (r *Repository) DeleteCommunityMembership(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.Collection(colCommunityEdges).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return communitycore.ErrMembershipNotFound
	}
	return nil
}

func (r *Repository) DeleteCommunityMembershipsByCommunity(ctx context.Context, url string) error {
	_, err := r.db.Collection(colCommunityEdges).DeleteMany(ctx, bson.M{"community_url": url})
	return err
}

func (r *Repository) CountCommunityMemberships(ctx context.Context, url string) (int, error) {
	n, err := r.db.Collection(colCommunityEdges).CountDocuments(ctx, bson.M{"community_url": url})
	return int(n), err
}

// Activity membership operations

func (r *Repository) CreateActivityMembership(ctx context.Context, edge *communitycore.ActivityMembership) error {
	_, err := r.db.Collection(colActivityEdges).InsertOne(ctx, edge)
	if mongo.IsDuplicateKeyError(err) {
		return communitycore.ErrAlreadyMember
	}
	return err
}

func (r *Repository) GetActivityMembership(ctx context.Context, username string, activityID uuid.UUID) (*communitycore.ActivityMembership, error) {
	var edge communitycore.ActivityMembership
	err := r.db.Collection(colActivityEdges).FindOne(ctx,
		bson.M{"username": username, "activity_id": activityID}).Decode(&edge)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, communitycore.ErrMembershipNotFound
	}
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

func (r *Repository) FindActivityMembershipsByActivity(ctx context.Context, activityID uuid.UUID) ([]*communitycore.ActivityMembership, error) {
	return findAll[communitycore.ActivityMembership](ctx, r.db.Collection(colActivityEdges),
		bson.M{"activity_id": activityID}, nil)
}

func (r *Repository) FindActivityMembershipsByUser(ctx context.Context, username string) ([]*communitycore.ActivityMembership, error) {
	return findAll[communitycore.ActivityMembership](ctx, r.db.Collection(colActivityEdges),
		bson.M{"username": username}, nil)
}

func (r *Repository) UpdateActivityMembership(ctx context.Context, edge *communitycore.ActivityMembership) error {
	res, err := r.db.Collection(colActivityEdges).ReplaceOne(ctx, bson.M{"_id": edge.ID}, edge)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return communitycore.ErrMembershipNotFound
	}
	return nil
}

func (r *Repository) DeleteActivityMembership(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.Collection(colActivityEdges).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return communitycore.ErrMembershipNotFound
	}
	return nil
}

func (r *Repository) DeleteActivityMembershipsByActivity(ctx context.Context, activityID uuid.UUID) error {
	_, err := r.db.Collection(colActivityEdges).DeleteMany(ctx, bson.M{"activity_id": activityID})
	return err
}

func (r *Repository) CountActivityMemberships(ctx context.Context, activityID uuid.UUID) (int, error) {
	n, err := r.db.Collection(colActivityEdges).CountDocuments(ctx, bson.M{"activity_id": activityID})
	return int(n), err
}

// Notification operations

func (r *Repository) CreateNotification(ctx context.Context, n *communitycore.Notification) error {
	_, err := r.db.Collection(colNotifications).InsertOne(ctx, n)
	return err
}

func (r *Repository) GetNotification(ctx context.Context, id uuid.UUID) (*communitycore.Notification, error) {
	var n communitycore.Notification
	err := r.db.Collection(colNotifications).FindOne(ctx, bson.M{"_id": id}).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, communitycore.ErrNotificationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *Repository) FindNotificationsByRecipient(ctx context.Context, username string) ([]*communitycore.Notification, error) {
	return findAll[communitycore.Notification](ctx, r.db.Collection(colNotifications),
		bson.M{"recipient": username},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (r *Repository) UpdateNotification(ctx context.Context, n *communitycore.Notification) error {
	res, err := r.db.Collection(colNotifications).ReplaceOne(ctx, bson.M{"_id": n.ID}, n)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return communitycore.ErrNotificationNotFound
	}
	return nil
}

func (r *Repository) DeleteNotificationsByRecipient(ctx context.Context, username string) error {
	_, err := r.db.Collection(colNotifications).DeleteMany(ctx, bson.M{"recipient": username})
	return err
}

// Dispatch record operations

func (r *Repository) GetDispatchRecord(ctx context.Context, activityID uuid.UUID, recipient string, threshold communitycore.Threshold) (*communitycore.DispatchRecord, error) {
	var rec communitycore.DispatchRecord
	err := r.db.Collection(colDispatchRecords).FindOne(ctx, bson.M{
		"activity_id": activityID,
		"recipient":   recipient,
		"threshold":   threshold,
	}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, communitycore.ErrDispatchRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *Repository) CreateDispatchRecord(ctx context.Context, rec *communitycore.DispatchRecord) error {
	// The unique index makes a concurrent double-write a no-op instead of a
	// duplicate dispatch.
	_, err := r.db.Collection(colDispatchRecords).InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

func findAll[T any](ctx context.Context, col *mongo.Collection, filter any, opts *options.FindOptions) ([]*T, error) {
	var cur *mongo.Cursor
	var err error
	if opts != nil {
		cur, err = col.Find(ctx, filter, opts)
	} else {
		cur, err = col.Find(ctx, filter)
	}
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var result []*T
	for cur.Next(ctx) {
		var doc T
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		result = append(result, &doc)
	}
	return result, cur.Err()
}

// internal/app/store/groups/groupstore.go

// Package groupstore owns groups and the derived is_full flag. Membership
// rows are owned by the memberships store, which calls back into
// RecomputeFullness inside its transactions; nothing else writes group
// documents.
package groupstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/tkeshelashvili/ateuli/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultCapacity is the fixed size of a group of ten.
const DefaultCapacity = 10

// ErrPrecinctNotFound means the referenced precinct does not exist.
var ErrPrecinctNotFound = errors.New("precinct not found")

type Store struct {
	c         *mongo.Collection
	members   *mongo.Collection
	precincts *mongo.Collection
	capacity  int
}

// New creates a group store with the default capacity of ten.
func New(db *mongo.Database) *Store {
	return NewWithCapacity(db, DefaultCapacity)
}

// NewWithCapacity creates a group store with a custom capacity. Used by
// configuration and by tests that want to hit the cap cheaply.
func NewWithCapacity(db *mongo.Database, capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		c:         db.Collection("groups"),
		members:   db.Collection("memberships"),
		precincts: db.Collection("precincts"),
		capacity:  capacity,
	}
}

// Capacity returns the member cap enforced for every group.
func (s *Store) Capacity() int { return s.capacity }

// Create inserts a group after verifying the precinct exists. The
// own-precinct constraint on the creator is a policy concern checked by
// the handler; the store only guards referential integrity.
func (s *Store) Create(ctx context.Context, g models.Group) (models.Group, error) {
	cnt, err := s.precincts.CountDocuments(ctx, bson.M{"_id": g.PrecinctID})
	if err != nil {
		return models.Group{}, err
	}
	if cnt == 0 {
		return models.Group{}, ErrPrecinctNotFound
	}

	now := time.Now().UTC()
	g.ID = primitive.NewObjectID()
	g.NameCI = text.Fold(g.Name)
	g.IsFull = false
	g.CreatedAt = now
	g.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// ActiveMemberCount returns the number of active memberships in a group.
func (s *Store) ActiveMemberCount(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	return s.members.CountDocuments(ctx, bson.M{"group_id": groupID, "is_active": true})
}

// CapacityAvailable reports whether the group can admit another member.
// Advisory only: under concurrency the authority is the re-check inside
// the join transaction, not this read.
func (s *Store) CapacityAvailable(ctx context.Context, groupID primitive.ObjectID) (bool, error) {
	n, err := s.ActiveMemberCount(ctx, groupID)
	if err != nil {
		return false, err
	}
	return n < int64(s.capacity), nil
}

// RecomputeFullness re-derives is_full from the active membership count
// and writes it back, returning the new value. The write is
// unconditional: even when the flag is unchanged, touching the group
// document makes concurrent joins to the same group conflict at commit,
// which is what serializes them. Idempotent; must run inside the same
// transaction as the membership mutation that triggered it.
func (s *Store) RecomputeFullness(ctx context.Context, groupID primitive.ObjectID) (bool, error) {
	n, err := s.ActiveMemberCount(ctx, groupID)
	if err != nil {
		return false, err
	}
	full := n >= int64(s.capacity)
	_, err = s.c.UpdateByID(ctx, groupID, bson.M{"$set": bson.M{
		"is_full":    full,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return false, err
	}
	return full, nil
}

// GroupWithCount is a group snapshot annotated with its active member
// count for list and detail responses.
type GroupWithCount struct {
	models.Group `bson:",inline"`
	MemberCount  int64 `bson:"member_count" json:"member_count"`
}

// List returns groups, newest first, optionally filtered by precinct,
// each annotated with its active member count.
func (s *Store) List(ctx context.Context, precinctID *primitive.ObjectID) ([]GroupWithCount, error) {
	filter := bson.M{}
	if precinctID != nil {
		filter["precinct_id"] = *precinctID
	}

	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var groups []models.Group
	if err := cur.All(ctx, &groups); err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return []GroupWithCount{}, nil
	}

	ids := make([]primitive.ObjectID, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	counts, err := s.activeCounts(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]GroupWithCount, 0, len(groups))
	for _, g := range groups {
		out = append(out, GroupWithCount{Group: g, MemberCount: counts[g.ID]})
	}
	return out, nil
}

// GetWithCount returns a single group annotated with its member count.
func (s *Store) GetWithCount(ctx context.Context, id primitive.ObjectID) (GroupWithCount, error) {
	g, err := s.GetByID(ctx, id)
	if err != nil {
		return GroupWithCount{}, err
	}
	n, err := s.ActiveMemberCount(ctx, id)
	if err != nil {
		return GroupWithCount{}, err
	}
	return GroupWithCount{Group: g, MemberCount: n}, nil
}

// activeCounts aggregates active membership counts for a set of groups
// in one query.
func (s *Store) activeCounts(ctx context.Context, groupIDs []primitive.ObjectID) (map[primitive.ObjectID]int64, error) {
	result := make(map[primitive.ObjectID]int64, len(groupIDs))

	cur, err := s.members.Aggregate(ctx, []bson.M{
		{"$match": bson.M{"is_active": true, "group_id": bson.M{"$in": groupIDs}}},
		{"$group": bson.M{"_id": "$group_id", "n": bson.M{"$sum": 1}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
			N  int64              `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		result[row.ID] = row.N
	}
	return result, cur.Err()
}

// internal/app/store/memberships/membershipstore.go

// Package membershipstore enforces "one active group per user" and the
// group capacity cap. Each user has a single membership document for its
// whole lifetime: Join reactivates and repoints it, Leave deactivates
// it, nothing deletes it.
package membershipstore

import (
	"context"
	"errors"
	"time"

	"github.com/tkeshelashvili/ateuli/internal/app/store/groups"
	"github.com/tkeshelashvili/ateuli/internal/app/system/txn"
	"github.com/tkeshelashvili/ateuli/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var (
	// ErrGroupFull means the group already holds its capacity of active
	// members.
	ErrGroupFull = errors.New("group is full and cannot accept new members")
	// ErrAlreadyMember means the user already holds an active membership
	// and must leave it before joining another group.
	ErrAlreadyMember = errors.New("user is already a member of a group")
	// ErrNotAMember means the user has no active membership in the given
	// group.
	ErrNotAMember = errors.New("user is not a member of this group")
)

type Store struct {
	db     *mongo.Database
	c      *mongo.Collection
	groups *groupstore.Store
	log    *zap.Logger
}

// New creates a membership store. The group store passed in is the one
// whose capacity and fullness recompute this store consults; they must
// share the database.
func New(db *mongo.Database, groups *groupstore.Store, log *zap.Logger) *Store {
	return &Store{
		db:     db,
		c:      db.Collection("memberships"),
		groups: groups,
		log:    log,
	}
}

// ActiveByUser returns the user's active membership, or
// mongo.ErrNoDocuments when the user is not in any group.
func (s *Store) ActiveByUser(ctx context.Context, userID primitive.ObjectID) (models.Membership, error) {
	var m models.Membership
	if err := s.c.FindOne(ctx, bson.M{"user_id": userID, "is_active": true}).Decode(&m); err != nil {
		return models.Membership{}, err
	}
	return m, nil
}

// ListByGroup returns a group's memberships, active only or all.
func (s *Store) ListByGroup(ctx context.Context, groupID primitive.ObjectID, activeOnly bool) ([]models.Membership, error) {
	filter := bson.M{"group_id": groupID}
	if activeOnly {
		filter["is_active"] = true
	}
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var memberships []models.Membership
	if err := cur.All(ctx, &memberships); err != nil {
		return nil, err
	}
	return memberships, nil
}

// Join admits the user into the group. The cached is_full flag serves as
// a cheap pre-check; the authoritative capacity check is the live count
// re-read inside the transaction, where a concurrent join to the same
// group forces a write conflict on the group document (both transactions
// recompute fullness) and the retried loser sees the committed count.
func (s *Store) Join(ctx context.Context, userID, groupID primitive.ObjectID) (models.Membership, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return models.Membership{}, err
	}
	if g.IsFull {
		return models.Membership{}, ErrGroupFull
	}

	var joined models.Membership
	err = txn.RunWithRetry(ctx, s.db, s.log, func(ctx context.Context) error {
		// Re-validate capacity against the live count inside the
		// transaction snapshot.
		available, err := s.groups.CapacityAvailable(ctx, groupID)
		if err != nil {
			return err
		}
		if !available {
			return ErrGroupFull
		}

		// One active group per user, re-checked in the same snapshot.
		err = s.c.FindOne(ctx, bson.M{"user_id": userID, "is_active": true}).Err()
		if err == nil {
			return ErrAlreadyMember
		}
		if err != mongo.ErrNoDocuments {
			return err
		}

		// Reuse the user's single membership row: repoint and
		// reactivate, or create it on first join. JoinedAt is stamped
		// once, at creation.
		now := time.Now().UTC()
		after := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
		err = s.c.FindOneAndUpdate(ctx,
			bson.M{"user_id": userID},
			bson.M{
				"$set":         bson.M{"group_id": groupID, "is_active": true},
				"$unset":       bson.M{"left_at": ""},
				"$setOnInsert": bson.M{"user_id": userID, "joined_at": now},
			},
			after,
		).Decode(&joined)
		if err != nil {
			return err
		}

		_, err = s.groups.RecomputeFullness(ctx, groupID)
		return err
	})
	if err != nil {
		return models.Membership{}, err
	}
	return joined, nil
}

// Leave deactivates the user's active membership in the given group.
func (s *Store) Leave(ctx context.Context, userID, groupID primitive.ObjectID) error {
	return txn.RunWithRetry(ctx, s.db, s.log, func(ctx context.Context) error {
		now := time.Now().UTC()
		res, err := s.c.UpdateOne(ctx,
			bson.M{"user_id": userID, "group_id": groupID, "is_active": true},
			bson.M{"$set": bson.M{"is_active": false, "left_at": now}},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return ErrNotAMember
		}
		_, err = s.groups.RecomputeFullness(ctx, groupID)
		return err
	})
}

// ForceLeave deactivates the user's active membership wherever it is,
// as a side effect of an endorsement revoke. Idempotent: a user with no
// active membership is a successful no-op.
//
// ForceLeave runs in the caller's context and does not open its own
// transaction; the endorsement registry invokes it inside the revoke
// transaction so the demotion, the leave, and the fullness recompute
// commit or roll back together.
func (s *Store) ForceLeave(ctx context.Context, userID primitive.ObjectID) error {
	var m models.Membership
	err := s.c.FindOne(ctx, bson.M{"user_id": userID, "is_active": true}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if _, err := s.c.UpdateOne(ctx,
		bson.M{"_id": m.ID, "is_active": true},
		bson.M{"$set": bson.M{"is_active": false, "left_at": now}},
	); err != nil {
		return err
	}
	_, err = s.groups.RecomputeFullness(ctx, m.GroupID)
	return err
}

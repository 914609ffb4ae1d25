// internal/app/store/quotas/quotastore.go

// Package quotastore is the ledger of per-geder endorsement capacity.
// It exclusively owns endorsement_quotas mutation; it never touches user
// roles or endorsements.
package quotastore

import (
	"context"
	"errors"
	"time"

	"github.com/tkeshelashvili/ateuli/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound means no quota record exists for the geder. Quotas are
	// created when a user becomes a geder, so this indicates the caller
	// never went through the verification path.
	ErrNotFound = errors.New("endorsement quota not found")
	// ErrSuspended means the geder's endorsement rights are suspended.
	ErrSuspended = errors.New("endorsement rights are suspended")
	// ErrExhausted means all endorsement slots are in use.
	ErrExhausted = errors.New("endorsement limit reached")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("endorsement_quotas")}
}

// Ensure creates the quota record for a geder if absent. Idempotent:
// an existing record is left untouched, whatever its current usage or
// suspension state. Called by the verification seam whenever a user
// becomes a geder.
func (s *Store) Ensure(ctx context.Context, gederID primitive.ObjectID, maxSlots int) error {
	if maxSlots <= 0 {
		maxSlots = models.DefaultMaxSlots
	}
	_, err := s.c.UpdateOne(ctx,
		bson.M{"geder_id": gederID},
		bson.M{"$setOnInsert": bson.M{
			"geder_id":     gederID,
			"max_slots":    maxSlots,
			"used_slots":   0,
			"is_suspended": false,
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

// Get returns the geder's quota snapshot.
func (s *Store) Get(ctx context.Context, gederID primitive.ObjectID) (models.EndorsementQuota, error) {
	var q models.EndorsementQuota
	err := s.c.FindOne(ctx, bson.M{"geder_id": gederID}).Decode(&q)
	if err == mongo.ErrNoDocuments {
		return models.EndorsementQuota{}, ErrNotFound
	}
	if err != nil {
		return models.EndorsementQuota{}, err
	}
	return q, nil
}

// Reserve atomically claims one endorsement slot. The suspension and
// capacity guards are part of the update filter, so two concurrent
// reserves can never both claim the last slot. When the conditional
// update matches nothing, a follow-up read diagnoses which guard failed:
// ErrNotFound, ErrSuspended, or ErrExhausted.
func (s *Store) Reserve(ctx context.Context, gederID primitive.ObjectID) error {
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{
			"geder_id":     gederID,
			"is_suspended": false,
			"$expr":        bson.M{"$lt": bson.A{"$used_slots", "$max_slots"}},
		},
		bson.M{"$inc": bson.M{"used_slots": 1}},
	).Err()
	if err == nil {
		return nil
	}
	if err != mongo.ErrNoDocuments {
		return err
	}

	q, getErr := s.Get(ctx, gederID)
	if getErr != nil {
		return getErr
	}
	if q.IsSuspended {
		return ErrSuspended
	}
	return ErrExhausted
}

// Release returns one endorsement slot, floored at zero. Releasing with
// no matching reservation is tolerated as a no-op so the ledger stays
// robust against unmatched releases.
func (s *Store) Release(ctx context.Context, gederID primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"geder_id": gederID, "used_slots": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"used_slots": -1}},
	)
	return err
}

// Suspend flags the geder's quota as a penalty. Existing endorsements
// are untouched; only new reservations are blocked.
func (s *Store) Suspend(ctx context.Context, gederID primitive.ObjectID, reason string) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"geder_id": gederID},
		bson.M{"$set": bson.M{
			"is_suspended":     true,
			"suspended_at":     time.Now().UTC(),
			"suspended_reason": reason,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Reinstate clears a suspension.
func (s *Store) Reinstate(ctx context.Context, gederID primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"geder_id": gederID},
		bson.M{
			"$set":   bson.M{"is_suspended": false},
			"$unset": bson.M{"suspended_at": "", "suspended_reason": ""},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

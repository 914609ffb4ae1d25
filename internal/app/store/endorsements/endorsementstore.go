// internal/app/store/endorsements/endorsementstore.go

// Package endorsementstore is the registry of vouching relationships and
// the orchestrator of their side effects. Creating an endorsement
// reserves a quota slot and promotes the supporter; revoking one demotes
// the supporter, removes them from their group, and releases the slot.
// Each flow runs as a single transaction so no partial state is ever
// visible.
package endorsementstore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/tkeshelashvili/ateuli/internal/app/store/memberships"
	"github.com/tkeshelashvili/ateuli/internal/app/store/quotas"
	"github.com/tkeshelashvili/ateuli/internal/app/store/users"
	"github.com/tkeshelashvili/ateuli/internal/app/system/txn"
	"github.com/tkeshelashvili/ateuli/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyEndorsed means the applicant already has an active
	// endorsement from some guarantor.
	ErrAlreadyEndorsed = errors.New("user already has an active endorsement")
	// ErrIneligibleRole means the applicant is not in the unverified role
	// and therefore cannot be endorsed.
	ErrIneligibleRole = errors.New("only unverified users can be endorsed")
	// ErrNotGuarantor means the caller is not the guarantor of the
	// endorsement they are trying to revoke.
	ErrNotGuarantor = errors.New("only the guarantor can revoke an endorsement")
	// ErrAlreadyRevoked means the endorsement is already in a terminal
	// state (revoked or penalized).
	ErrAlreadyRevoked = errors.New("endorsement is already revoked")
)

type Store struct {
	db      *mongo.Database
	c       *mongo.Collection
	users   *userstore.Store
	quotas  *quotastore.Store
	members *membershipstore.Store
	log     *zap.Logger
}

func New(db *mongo.Database, users *userstore.Store, quotas *quotastore.Store, members *membershipstore.Store, log *zap.Logger) *Store {
	return &Store{
		db:      db,
		c:       db.Collection("endorsements"),
		users:   users,
		quotas:  quotas,
		members: members,
		log:     log,
	}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Endorsement, error) {
	var e models.Endorsement
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		return models.Endorsement{}, err
	}
	return e, nil
}

// ActiveForSupporter returns the supporter's active endorsement, or
// mongo.ErrNoDocuments when none exists.
func (s *Store) ActiveForSupporter(ctx context.Context, supporterID primitive.ObjectID) (models.Endorsement, error) {
	var e models.Endorsement
	err := s.c.FindOne(ctx, bson.M{
		"supporter_id": supporterID,
		"status":       models.EndorsementActive,
	}).Decode(&e)
	if err != nil {
		return models.Endorsement{}, err
	}
	return e, nil
}

// ListForUser returns endorsements the user participates in, on either
// side of the relationship, newest first. Terminal records are included;
// they are the audit trail.
func (s *Store) ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Endorsement, error) {
	cur, err := s.c.Find(ctx,
		bson.M{"$or": bson.A{
			bson.M{"guarantor_id": userID},
			bson.M{"supporter_id": userID},
		}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var endorsements []models.Endorsement
	if err := cur.All(ctx, &endorsements); err != nil {
		return nil, err
	}
	return endorsements, nil
}

// Create records an endorsement of the supporter by the guarantor. Inside
// one transaction it checks the supporter has no active endorsement and
// is unverified, reserves one of the guarantor's quota slots, inserts the
// active record, and promotes the supporter.
//
// The quota reserve and the role promotion are both conditional updates,
// so even in the non-transactional fallback two concurrent creates cannot
// oversubscribe a quota or double-promote a user. The partial unique
// index on active supporter endorsements is the final backstop; a
// duplicate-key insert maps to ErrAlreadyEndorsed.
func (s *Store) Create(ctx context.Context, guarantorID, supporterID primitive.ObjectID) (models.Endorsement, error) {
	var created models.Endorsement
	err := txn.RunWithRetry(ctx, s.db, s.log, func(ctx context.Context) error {
		err := s.c.FindOne(ctx, bson.M{
			"supporter_id": supporterID,
			"status":       models.EndorsementActive,
		}).Err()
		if err == nil {
			return ErrAlreadyEndorsed
		}
		if err != mongo.ErrNoDocuments {
			return err
		}

		supporter, err := s.users.GetByID(ctx, supporterID)
		if err != nil {
			return err
		}
		if supporter.Role != models.RoleUnverified {
			return ErrIneligibleRole
		}

		if err := s.quotas.Reserve(ctx, guarantorID); err != nil {
			return err
		}

		created = models.Endorsement{
			ID:          primitive.NewObjectID(),
			GuarantorID: guarantorID,
			SupporterID: supporterID,
			Status:      models.EndorsementActive,
			CreatedAt:   time.Now().UTC(),
		}
		if _, err := s.c.InsertOne(ctx, created); err != nil {
			if wafflemongo.IsDup(err) {
				return ErrAlreadyEndorsed
			}
			return err
		}

		return s.users.PromoteSupporter(ctx, supporterID)
	})
	if err != nil {
		return models.Endorsement{}, err
	}
	return created, nil
}

// Revoke withdraws an endorsement at the guarantor's request. Inside one
// transaction it marks the record revoked, demotes the supporter back to
// unverified, removes them from their group if they are in one, and
// releases the guarantor's quota slot. Terminal endorsements cannot be
// revoked again, so each slot is released exactly once.
func (s *Store) Revoke(ctx context.Context, endorsementID, callerID primitive.ObjectID, reason string) (models.Endorsement, error) {
	var revoked models.Endorsement
	err := txn.RunWithRetry(ctx, s.db, s.log, func(ctx context.Context) error {
		e, err := s.GetByID(ctx, endorsementID)
		if err != nil {
			return err
		}
		if e.GuarantorID != callerID {
			return ErrNotGuarantor
		}
		if e.Terminal() {
			return ErrAlreadyRevoked
		}

		// Status guard in the filter: a concurrent revoke that already
		// flipped the record leaves nothing to match.
		now := time.Now().UTC()
		res, err := s.c.UpdateOne(ctx,
			bson.M{"_id": e.ID, "status": models.EndorsementActive},
			bson.M{"$set": bson.M{
				"status":        models.EndorsementRevoked,
				"revoked_at":    now,
				"revoke_reason": reason,
			}},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return ErrAlreadyRevoked
		}

		if err := s.users.DemoteSupporter(ctx, e.SupporterID); err != nil {
			return err
		}
		if err := s.members.ForceLeave(ctx, e.SupporterID); err != nil {
			return err
		}
		if err := s.quotas.Release(ctx, e.GuarantorID); err != nil {
			return err
		}

		revoked = e
		revoked.Status = models.EndorsementRevoked
		revoked.RevokedAt = &now
		revoked.RevokeReason = reason
		return nil
	})
	if err != nil {
		return models.Endorsement{}, err
	}
	return revoked, nil
}

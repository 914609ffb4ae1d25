// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/tkeshelashvili/ateuli/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrInvalidTransition means a role transition was attempted from the
// wrong source state. The endorsement flow checks the role before
// promoting or demoting, so hitting this is an internal-consistency bug,
// not a user-facing condition: callers log it and fail the request.
var ErrInvalidTransition = errors.New("user is not in the expected role for this transition")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

func (s *Store) GetByPhone(ctx context.Context, phone string) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"phone_number": phone}).Decode(&u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// PromoteSupporter moves a user from unverified to supporter. The guard
// is part of the update filter, so the transition is atomic: a user whose
// role changed between the caller's read and this write is rejected with
// ErrInvalidTransition instead of being silently overwritten.
func (s *Store) PromoteSupporter(ctx context.Context, userID primitive.ObjectID) error {
	return s.transition(ctx, userID, models.RoleUnverified, models.RoleSupporter)
}

// DemoteSupporter moves a user from supporter back to unverified
// (endorsement revoked).
func (s *Store) DemoteSupporter(ctx context.Context, userID primitive.ObjectID) error {
	return s.transition(ctx, userID, models.RoleSupporter, models.RoleUnverified)
}

func (s *Store) transition(ctx context.Context, userID primitive.ObjectID, from, to string) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": userID, "role": from},
		bson.M{"$set": bson.M{"role": to, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// PromoteGeDer sets the user's role to geder. This is the verification
// collaborator's transition: it may start from any non-geder role and is
// a no-op when the user already is one. The geder role is never exited
// by this service.
func (s *Store) PromoteGeDer(ctx context.Context, userID primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"role": models.RoleGeDer, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

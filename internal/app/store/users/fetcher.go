// internal/app/store/users/fetcher.go
package userstore

import (
	"context"

	"github.com/tkeshelashvili/ateuli/internal/app/system/auth"
	"github.com/tkeshelashvili/ateuli/internal/app/system/normalize"
	"github.com/tkeshelashvili/ateuli/internal/app/system/timeouts"
	"github.com/tkeshelashvili/ateuli/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Fetcher implements auth.UserFetcher, reloading the user document on
// every request so role changes (endorsement created or revoked mid
// session) take effect immediately.
type Fetcher struct {
	users *mongo.Collection
}

// NewFetcher creates a UserFetcher backed by the given database.
func NewFetcher(db *mongo.Database) *Fetcher {
	return &Fetcher{users: db.Collection("users")}
}

// FetchUser retrieves a user by ID, returning nil when the user is
// missing or the lookup fails, which invalidates the session.
func (f *Fetcher) FetchUser(ctx context.Context, userID string) *auth.SessionUser {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	var u models.User
	proj := options.FindOne().SetProjection(bson.M{
		"_id":                  1,
		"phone_number":         1,
		"full_name":            1,
		"role":                 1,
		"member_status":        1,
		"is_diaspora":          1,
		"precinct_id":          1,
		"is_phone_verified":    1,
		"onboarding_completed": 1,
		"is_staff":             1,
	})
	if err := f.users.FindOne(ctx, bson.M{"_id": oid}, proj).Decode(&u); err != nil {
		return nil
	}

	su := &auth.SessionUser{
		ID:                  u.ID.Hex(),
		PhoneNumber:         u.PhoneNumber,
		FullName:            u.FullName,
		Role:                normalize.Role(u.Role),
		MemberStatus:        normalize.Status(u.MemberStatus),
		IsDiaspora:          u.IsDiaspora,
		IsPhoneVerified:     u.IsPhoneVerified,
		OnboardingCompleted: u.OnboardingCompleted,
		IsStaff:             u.IsStaff,
	}
	if u.PrecinctID != nil {
		su.PrecinctID = u.PrecinctID.Hex()
	}
	return su
}

package testutil

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"github.com/tkeshelashvili/ateuli/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreatePrecinct creates a test precinct with the given name.
func (f *Fixtures) CreatePrecinct(ctx context.Context, name string) models.Precinct {
	f.t.Helper()

	p := models.Precinct{
		ID:      primitive.NewObjectID(),
		Name:    name,
		NameCI:  text.Fold(name),
		CECCode: fmt.Sprintf("CEC-%s", primitive.NewObjectID().Hex()[:8]),
	}

	if _, err := f.db.Collection("precincts").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test precinct: %v", err)
	}
	return p
}

// CreateUser creates a test user with the given role, onboarded and
// phone-verified so it passes the eligibility policies by default.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, phone, role string, precinctID *primitive.ObjectID) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:                  primitive.NewObjectID(),
		PhoneNumber:         phone,
		FullName:            fullName,
		Role:                role,
		MemberStatus:        models.MemberStatusPassive,
		PrecinctID:          precinctID,
		IsPhoneVerified:     true,
		OnboardingCompleted: true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateGeDer creates a test geder in the given precinct.
func (f *Fixtures) CreateGeDer(ctx context.Context, fullName, phone string, precinctID primitive.ObjectID) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, phone, models.RoleGeDer, &precinctID)
}

// CreateSupporter creates a test supporter in the given precinct.
func (f *Fixtures) CreateSupporter(ctx context.Context, fullName, phone string, precinctID primitive.ObjectID) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, phone, models.RoleSupporter, &precinctID)
}

// CreateUnverified creates a test unverified user in the given precinct.
func (f *Fixtures) CreateUnverified(ctx context.Context, fullName, phone string, precinctID primitive.ObjectID) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, phone, models.RoleUnverified, &precinctID)
}

// CreateStaff creates a test staff operator.
func (f *Fixtures) CreateStaff(ctx context.Context, fullName, phone string) models.User {
	f.t.Helper()

	u := f.CreateUser(ctx, fullName, phone, models.RoleGeDer, nil)
	if _, err := f.db.Collection("users").UpdateByID(ctx, u.ID,
		map[string]any{"$set": map[string]any{"is_staff": true}}); err != nil {
		f.t.Fatalf("failed to flag staff user: %v", err)
	}
	u.IsStaff = true
	return u
}

// CreateGroup creates a test group in the given precinct.
func (f *Fixtures) CreateGroup(ctx context.Context, name string, precinctID primitive.ObjectID) models.Group {
	f.t.Helper()

	now := time.Now().UTC()
	group := models.Group{
		ID:         primitive.NewObjectID(),
		PrecinctID: precinctID,
		Name:       name,
		NameCI:     text.Fold(name),
		IsFull:     false,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := f.db.Collection("groups").InsertOne(ctx, group); err != nil {
		f.t.Fatalf("failed to create test group: %v", err)
	}
	return group
}

// CreateMembership creates an active membership linking a user to a group.
func (f *Fixtures) CreateMembership(ctx context.Context, userID, groupID primitive.ObjectID) models.Membership {
	f.t.Helper()

	m := models.Membership{
		ID:       primitive.NewObjectID(),
		UserID:   userID,
		GroupID:  groupID,
		IsActive: true,
		JoinedAt: time.Now().UTC(),
	}

	if _, err := f.db.Collection("memberships").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to create test membership: %v", err)
	}
	return m
}

// CreateQuota creates an endorsement quota record for a geder.
func (f *Fixtures) CreateQuota(ctx context.Context, gederID primitive.ObjectID, maxSlots, usedSlots int) models.EndorsementQuota {
	f.t.Helper()

	q := models.EndorsementQuota{
		ID:        primitive.NewObjectID(),
		GeDerID:   gederID,
		MaxSlots:  maxSlots,
		UsedSlots: usedSlots,
	}

	if _, err := f.db.Collection("endorsement_quotas").InsertOne(ctx, q); err != nil {
		f.t.Fatalf("failed to create test quota: %v", err)
	}
	return q
}

// CreateEndorsement creates an endorsement record with the given status.
func (f *Fixtures) CreateEndorsement(ctx context.Context, guarantorID, supporterID primitive.ObjectID, status string) models.Endorsement {
	f.t.Helper()

	e := models.Endorsement{
		ID:          primitive.NewObjectID(),
		GuarantorID: guarantorID,
		SupporterID: supporterID,
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	}
	if e.Terminal() {
		now := time.Now().UTC()
		e.RevokedAt = &now
	}

	if _, err := f.db.Collection("endorsements").InsertOne(ctx, e); err != nil {
		f.t.Fatalf("failed to create test endorsement: %v", err)
	}
	return e
}

// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User roles. Role is mutated only through the role transitions in the
// users store; everything else on the document is owned by the identity
// and verification collaborators.
const (
	RoleUnverified = "unverified"
	RoleSupporter  = "supporter"
	RoleGeDer      = "geder"
)

// Member statuses.
const (
	MemberStatusPassive = "passive"
	MemberStatusActive  = "active"
)

// User represents a platform member identified by phone number.
//
// NOTE:
//   - Group membership is not embedded on User.
//     Use the memberships collection to discover a user's group.
//   - Endorsement state lives in the endorsements collection.
type User struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PhoneNumber string             `bson:"phone_number" json:"phone_number"`
	FullName    string             `bson:"full_name,omitempty" json:"full_name,omitempty"`

	Role         string `bson:"role" json:"role"`                   // unverified | supporter | geder
	MemberStatus string `bson:"member_status" json:"member_status"` // passive | active

	IsDiaspora bool                `bson:"is_diaspora" json:"is_diaspora"`
	PrecinctID *primitive.ObjectID `bson:"precinct_id,omitempty" json:"precinct_id,omitempty"`

	IsPhoneVerified     bool `bson:"is_phone_verified" json:"is_phone_verified"`
	OnboardingCompleted bool `bson:"onboarding_completed" json:"onboarding_completed"`

	// IsStaff marks operators allowed to drive the verification seam
	// (geder promotion, quota suspension).
	IsStaff bool `bson:"is_staff,omitempty" json:"is_staff,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// internal/domain/models/endorsement.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Endorsement statuses. The lifecycle is one-directional:
// active → revoked or active → penalized. Terminal records are kept for
// audit; a re-endorsement creates a new document.
const (
	EndorsementActive    = "active"
	EndorsementRevoked   = "revoked"
	EndorsementPenalized = "penalized"
)

// Endorsement is the vouching relationship where a geder (guarantor)
// vouches for an applicant (supporter). Creating one promotes the
// applicant from unverified to supporter; revoking it reverses the
// promotion and releases the guarantor's quota slot.
type Endorsement struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GuarantorID primitive.ObjectID `bson:"guarantor_id" json:"guarantor_id"`
	SupporterID primitive.ObjectID `bson:"supporter_id" json:"supporter_id"`
	Status      string             `bson:"status" json:"status"`

	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
	RevokedAt    *time.Time `bson:"revoked_at,omitempty" json:"revoked_at,omitempty"`
	RevokeReason string     `bson:"revoke_reason,omitempty" json:"revoke_reason,omitempty"`
}

// Terminal reports whether the endorsement can no longer change state.
func (e Endorsement) Terminal() bool {
	return e.Status == EndorsementRevoked || e.Status == EndorsementPenalized
}

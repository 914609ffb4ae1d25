// internal/domain/models/quota.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultMaxSlots is the endorsement capacity granted when a quota is
// first created for a geder.
const DefaultMaxSlots = 10

// EndorsementQuota tracks a geder's endorsement capacity and suspension
// state. Created idempotently the moment a user becomes a geder and never
// deleted; suspension is a penalty flag, not removal.
//
// Invariant: 0 <= UsedSlots <= MaxSlots, and UsedSlots equals the count
// of this geder's endorsements with status "active".
type EndorsementQuota struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GeDerID primitive.ObjectID `bson:"geder_id" json:"geder_id"`

	MaxSlots  int `bson:"max_slots" json:"max_slots"`
	UsedSlots int `bson:"used_slots" json:"used_slots"`

	IsSuspended     bool       `bson:"is_suspended" json:"is_suspended"`
	SuspendedAt     *time.Time `bson:"suspended_at,omitempty" json:"suspended_at,omitempty"`
	SuspendedReason string     `bson:"suspended_reason,omitempty" json:"suspended_reason,omitempty"`
}

// RemainingSlots returns the unused endorsement capacity, floored at zero.
func (q EndorsementQuota) RemainingSlots() int {
	if q.UsedSlots >= q.MaxSlots {
		return 0
	}
	return q.MaxSlots - q.UsedSlots
}

// CanEndorse reports whether the geder has capacity and is not suspended.
// This is an advisory read; the authoritative check is the conditional
// reserve in the quotas store.
func (q EndorsementQuota) CanEndorse() bool {
	return !q.IsSuspended && q.RemainingSlots() > 0
}

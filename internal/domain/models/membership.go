// internal/domain/models/membership.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Membership is the single reusable join row between a user and a group.
// One document per user over its lifetime: joining repoints GroupID and
// reactivates the row, leaving deactivates it and stamps LeftAt. The row
// is never deleted.
type Membership struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID   primitive.ObjectID `bson:"user_id" json:"user_id"`
	GroupID  primitive.ObjectID `bson:"group_id" json:"group_id"`
	IsActive bool               `bson:"is_active" json:"is_active"`

	JoinedAt time.Time  `bson:"joined_at" json:"joined_at"`
	LeftAt   *time.Time `bson:"left_at,omitempty" json:"left_at,omitempty"`
}

// internal/domain/models/group.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group is a fixed-capacity local organizing cell within a precinct.
//
// IsFull is derived from the count of active memberships and is recomputed
// inside the same transaction as every membership mutation that touches the
// group, so it is never stale beyond a transaction boundary.
type Group struct {
	ID         primitive.ObjectID `bson:"_id" json:"id"`
	PrecinctID primitive.ObjectID `bson:"precinct_id" json:"precinct_id"`
	Name       string             `bson:"name,omitempty" json:"name,omitempty"`
	NameCI     string             `bson:"name_ci,omitempty" json:"name_ci,omitempty"`
	IsFull     bool               `bson:"is_full" json:"is_full"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

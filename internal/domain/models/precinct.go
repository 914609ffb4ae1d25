// internal/domain/models/precinct.go
package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Precinct is territory reference data supplied by the territory
// collaborator. The core only checks existence and the own-precinct
// constraint on group creation; lookup and geo search live elsewhere.
type Precinct struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name     string             `bson:"name" json:"name"`
	NameCI   string             `bson:"name_ci" json:"name_ci"`
	District string             `bson:"district,omitempty" json:"district,omitempty"`
	Region   string             `bson:"region,omitempty" json:"region,omitempty"`
	CECCode  string             `bson:"cec_code" json:"cec_code"`
}

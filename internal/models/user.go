package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleUser    Role = "user"
	RoleCreator Role = "creator"
	RoleAdmin   Role = "admin"
)

// ParseRole validates a role string coming from a client.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleCreator, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

// User model. Email is the natural key; documents are never hard-deleted.
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email     string             `bson:"email" json:"email"`
	Name      string             `bson:"name,omitempty" json:"name,omitempty"`
	Photo     string             `bson:"photo,omitempty" json:"photo,omitempty"`
	Role      Role               `bson:"role" json:"role"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

type ProfileUpdate struct {
	Name  *string `json:"name"`
	Photo *string `json:"photo"`
}

type RoleUpdate struct {
	Role string `json:"role"`
}

package entity

import (
	"github.com/google/uuid"

	"github.com/ovaphlow/pitchfork/service-identity-go/pkg/utilities"
)

type Role struct {
	ID               uuid.UUID
	Name             string
	NormalizedName   string
	ConcurrencyStamp string
}

func NewRole(name string) *Role {
	return &Role{
		ID:               uuid.New(),
		Name:             name,
		NormalizedName:   Normalize(name),
		ConcurrencyStamp: utilities.NewKSUID(),
	}
}

// UserRole links a user to a role.
type UserRole struct {
	UserID uuid.UUID
	RoleID uuid.UUID
}

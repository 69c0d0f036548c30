package entity

import "github.com/google/uuid"

// Claim is a type/value statement about a user or role.
type Claim struct {
	Type  string
	Value string
}

type UserClaim struct {
	ID         int64
	UserID     uuid.UUID
	ClaimType  string
	ClaimValue string
}

func (c UserClaim) Claim() Claim { return Claim{Type: c.ClaimType, Value: c.ClaimValue} }

type RoleClaim struct {
	ID         int64
	RoleID     uuid.UUID
	ClaimType  string
	ClaimValue string
}

func (c RoleClaim) Claim() Claim { return Claim{Type: c.ClaimType, Value: c.ClaimValue} }

// LoginInfo identifies a user at an external login provider.
type LoginInfo struct {
	LoginProvider       string
	ProviderKey         string
	ProviderDisplayName string
}

type UserLogin struct {
	LoginInfo
	UserID uuid.UUID
}

// UserToken is an opaque value stored for a user per provider and name.
type UserToken struct {
	UserID        uuid.UUID
	LoginProvider string
	Name          string
	Value         string
}

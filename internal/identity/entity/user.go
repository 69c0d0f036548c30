package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ovaphlow/pitchfork/service-identity-go/pkg/utilities"
)

// User is a row of the Users table. Account and Entity are only populated by
// the accessors that join the matching tenant table.
type User struct {
	ID                   uuid.UUID
	UserName             string
	NormalizedUserName   string
	Email                *string
	NormalizedEmail      *string
	EmailConfirmed       bool
	PasswordHash         *string
	SecurityStamp        string
	ConcurrencyStamp     string
	PhoneNumber          *string
	PhoneNumberConfirmed bool
	TwoFactorEnabled     bool
	LockoutEnd           *time.Time
	LockoutEnabled       bool
	AccessFailedCount    int

	FirstName   string
	LastName    string
	CultureInfo *string
	State       int
	DebugMode   bool
	CreatedAt   time.Time

	AccountID *uuid.UUID
	Account   *Account
	EntityID  *uuid.UUID
	Entity    *Entity
}

// NewUser returns an active user with fresh id and stamps.
func NewUser(userName string) *User {
	return &User{
		ID:                 uuid.New(),
		UserName:           userName,
		NormalizedUserName: Normalize(userName),
		SecurityStamp:      utilities.NewKSUID(),
		ConcurrencyStamp:   utilities.NewKSUID(),
		LockoutEnabled:     true,
		State:              1,
		CreatedAt:          time.Now().UTC(),
	}
}

// SetEmail sets both the display and the normalized email.
func (u *User) SetEmail(email string) {
	if email == "" {
		u.Email, u.NormalizedEmail = nil, nil
		return
	}
	n := Normalize(email)
	u.Email, u.NormalizedEmail = &email, &n
}

// Normalize is the lookup form of names and emails.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

package entity

import (
	"time"

	"github.com/google/uuid"
)

// Account is the single-tenant owner of one or more users.
type Account struct {
	ID             uuid.UUID
	Email          string
	Region         string
	City           string
	StreetAddress  string
	AddressDetails string
	PostalCode     string
	PhoneNumber    string
	State          int
	CreatedAt      time.Time
}

func NewAccount(email string) *Account {
	return &Account{ID: uuid.New(), Email: email, State: 1, CreatedAt: time.Now().UTC()}
}

// Entity is the multi-tenant owner of users: a company or organisation.
type Entity struct {
	ID                 uuid.UUID
	Name               string
	CompanyName        string
	TaxCode            string
	RegistrationNumber string
	Email              string
	Country            string
	Region             string
	City               string
	StreetAddress      string
	PostalCode         string
	PhoneNumber        string
	State              int
	CreatedAt          time.Time
}

func NewEntity(name string) *Entity {
	return &Entity{ID: uuid.New(), Name: name, CompanyName: name, State: 1, CreatedAt: time.Now().UTC()}
}

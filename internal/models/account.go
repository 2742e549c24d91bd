package models

import "time"

// Account holds login credentials. Display data lives on Profile.
type Account struct {
	Base         `bson:",inline"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

// Caller is the identity a request acts as, resolved from the session.
// A zero Caller is anonymous.
type Caller struct {
	UserID string
	Email  string
}

func (c Caller) Authenticated() bool {
	return c.UserID != ""
}

// Capability is the caller's access level.
type Capability int

const (
	CapabilityAnonymous Capability = iota
	CapabilityAuthenticated
	CapabilityAdmin
)

func (c Capability) String() string {
	switch c {
	case CapabilityAdmin:
		return "admin"
	case CapabilityAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

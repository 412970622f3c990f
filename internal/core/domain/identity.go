package domain

import "github.com/google/uuid"

// GuestScope is the cache scope used while nobody is signed in.
const GuestScope = "guest"

// Identity is the user a client session acts for. A zero UserID means signed out.
type Identity struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	Token  string    `json:"-"`
}

// Authenticated returns true if the identity carries a user and a token.
func (i Identity) Authenticated() bool {
	return i.UserID != uuid.Nil && i.Token != ""
}

// Scope returns the local-cache namespace owned by this identity.
func (i Identity) Scope() string {
	if i.UserID == uuid.Nil {
		return GuestScope
	}
	return i.UserID.String()
}

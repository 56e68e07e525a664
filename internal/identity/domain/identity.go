package domain

import "time"

// Identity is a user's sign-in credential. Only local (email + password) identities exist;
// ProviderID holds the normalized email.
type Identity struct {
	ID           string
	UserID       string
	Provider     IdentityProvider
	ProviderID   string
	PasswordHash string
	CreatedAt    time.Time
}

type IdentityProvider string

const IdentityProviderLocal IdentityProvider = "local"

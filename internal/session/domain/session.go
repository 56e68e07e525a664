package domain

import "time"

// Session is one active login. Token fields hold SHA-256 digests of the current access and
// refresh tokens; rotation overwrites them in place. A record that exists is active.
type Session struct {
	ID               string
	UserID           string
	AccessTokenHash  string
	RefreshTokenHash string // unique across all records
	ExpiresAt        time.Time
	UserAgent        string
	IPAddress        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsExpired reports whether the session is at or past its absolute expiry.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// RequestMeta is what the transport knows about the client that opened a session.
type RequestMeta struct {
	UserAgent string
	IPAddress string
}

// TokenPair is the credential pair handed to the client.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time // equals the session record's ExpiresAt
}

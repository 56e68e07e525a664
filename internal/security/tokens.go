package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token lifetimes are fixed policy, not per-call parameters. Access must stay shorter than refresh.
const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour
)

var (
	// ErrTokenMalformed is returned when a token cannot be parsed or its claims are unusable.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenSignatureInvalid is returned when the signature does not verify or the algorithm is not HS256.
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	// ErrTokenExpired is returned when a correctly signed token is at or past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

// Kind distinguishes access tokens from refresh tokens so neither is accepted as the other.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Identity is who a token speaks for.
type Identity struct {
	UserID string
	Email  string
	OrgID  string
	Role   string
}

// Claims is the JWT payload for both token kinds.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	OrgID string `json:"org_id"`
	Role  string `json:"role"`
	Kind  Kind   `json:"typ"`
}

// Identity returns the identity carried by the claims.
func (c *Claims) Identity() Identity {
	return Identity{UserID: c.Subject, Email: c.Email, OrgID: c.OrgID, Role: c.Role}
}

// IssuedAtTime returns iat, or the zero time when absent.
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time.UTC()
}

// ExpiresAtTime returns exp, or the zero time when absent.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time.UTC()
}

// TokenProvider issues and verifies HS256 JWTs signed with a server-held secret.
type TokenProvider struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenProvider returns a TokenProvider that signs with secret and stamps issuer on every token.
func NewTokenProvider(secret []byte, issuer string) *TokenProvider {
	return &TokenProvider{secret: secret, issuer: issuer, now: time.Now}
}

// WithClock returns a copy of p that reads the current time from now.
func (p *TokenProvider) WithClock(now func() time.Time) *TokenProvider {
	cp := *p
	cp.now = now
	return &cp
}

// Now returns the provider's current time in UTC.
func (p *TokenProvider) Now() time.Time {
	return p.now().UTC()
}

// IssueAccess issues an access token valid for AccessTokenTTL.
func (p *TokenProvider) IssueAccess(id Identity) (string, *Claims, error) {
	return p.Issue(id, KindAccess, AccessTokenTTL)
}

// IssueRefresh issues a refresh token valid for RefreshTokenTTL.
func (p *TokenProvider) IssueRefresh(id Identity) (string, *Claims, error) {
	return p.Issue(id, KindRefresh, RefreshTokenTTL)
}

// Issue signs a token of the given kind for id. iat is truncated to whole seconds so exp is exactly iat+ttl.
// Every token carries a random jti, so two tokens issued in the same second differ.
func (p *TokenProvider) Issue(id Identity, kind Kind, ttl time.Duration) (string, *Claims, error) {
	if ttl <= 0 {
		return "", nil, errors.New("token ttl must be positive")
	}
	issuedAt := p.Now().Truncate(time.Second)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.UserID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
		Email: id.Email,
		OrgID: id.OrgID,
		Role:  id.Role,
		Kind:  kind,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// Verify checks the signature, then the claims, and returns them.
// A token is valid only while now is strictly before exp.
func (p *TokenProvider) Verify(token string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
	)
	claims := &Claims{}
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrTokenSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	default:
		return nil, ErrTokenMalformed
	}
	if claims.Subject == "" {
		return nil, ErrTokenMalformed
	}
	if !p.Now().Before(claims.ExpiresAtTime()) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}

// VerifyAccess verifies token and requires it to be an access token.
func (p *TokenProvider) VerifyAccess(token string) (*Claims, error) {
	return p.verifyKind(token, KindAccess)
}

// VerifyRefresh verifies token and requires it to be a refresh token.
func (p *TokenProvider) VerifyRefresh(token string) (*Claims, error) {
	return p.verifyKind(token, KindRefresh)
}

func (p *TokenProvider) verifyKind(token string, kind Kind) (*Claims, error) {
	claims, err := p.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// DecodeUnverified parses token without checking its signature or expiry.
// The result is for inspection and logging only; never authorize a request with it.
func DecodeUnverified(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

package handler

import (
	"net/http"

	"crm-dashboard/backend/internal/security"
	sessiondomain "crm-dashboard/backend/internal/session/domain"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"

	// The refresh cookie is only sent to the auth endpoints.
	refreshCookiePath = "/api/v1/auth"
)

var (
	accessMaxAge  = int(security.AccessTokenTTL.Seconds())
	refreshMaxAge = int(security.RefreshTokenTTL.Seconds())
)

// cookieWriter sets and clears the session cookie pair.
type cookieWriter struct {
	secure bool
}

func (c cookieWriter) cookie(name, value, path string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c cookieWriter) set(w http.ResponseWriter, pair *sessiondomain.TokenPair) {
	http.SetCookie(w, c.cookie(AccessCookie, pair.AccessToken, "/", accessMaxAge))
	http.SetCookie(w, c.cookie(RefreshCookie, pair.RefreshToken, refreshCookiePath, refreshMaxAge))
}

// clear expires both cookies on the client. Every terminal auth failure calls it.
func (c cookieWriter) clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(AccessCookie, "", "/", -1))
	http.SetCookie(w, c.cookie(RefreshCookie, "", refreshCookiePath, -1))
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

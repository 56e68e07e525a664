// Package middleware holds the HTTP middleware chain: request ids, request logging, panic recovery,
// body limits and the request gate that decides whether a request may reach its handler.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"crm-dashboard/backend/internal/logging"
	"crm-dashboard/backend/internal/platform/httpx"
	"crm-dashboard/backend/internal/platform/rbac"
	"crm-dashboard/backend/internal/policy/engine"
	"crm-dashboard/backend/internal/security"
)

// AccessCookie is the cookie holding the access token.
const AccessCookie = "access_token"

const bearerPrefix = "bearer "

// Reason is why a request was turned away.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonMissing
	ReasonExpired
	ReasonRevoked
	ReasonForbidden
)

func (r Reason) String() string {
	switch r {
	case ReasonMissing:
		return "missing"
	case ReasonExpired:
		return "expired"
	case ReasonRevoked:
		return "revoked"
	case ReasonForbidden:
		return "forbidden"
	default:
		return "none"
	}
}

// Decision is the outcome of authorize. Err is set when the store or the policy could not answer;
// the request is then refused with a 500 rather than a reason.
type Decision struct {
	Access   Access
	Identity security.Identity
	Token    string
	Reason   Reason
	Err      error
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.Reason == ReasonNone && d.Err == nil
}

// SessionValidator re-reads the session store. *sessionservice.Manager implements it.
type SessionValidator interface {
	ValidateSession(ctx context.Context, accessToken string) (bool, error)
}

// GateConfig wires a Gate. Policy may be nil, in which case admin routes only need an owner or admin role.
type GateConfig struct {
	Tokens      *security.TokenProvider
	Sessions    SessionValidator
	Memberships rbac.OrgMembershipGetter
	Policy      engine.Evaluator
	Routes      RouteTable
	LoginPath   string
	Log         *logging.Logger
}

// Gate authorizes every request against its route table before the router dispatches it.
type Gate struct {
	cfg GateConfig
}

// NewGate returns a Gate. Empty Routes means DefaultRoutes; empty LoginPath means /login.
func NewGate(cfg GateConfig) *Gate {
	if cfg.Routes == nil {
		cfg.Routes = DefaultRoutes
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.Log == nil {
		cfg.Log = logging.Discard()
	}
	return &Gate{cfg: cfg}
}

// Handler returns next behind the gate.
func (g *Gate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := g.authorize(r)
		if !d.Allowed() {
			g.reject(w, r, d)
			return
		}
		if d.Token != "" {
			r = r.WithContext(WithIdentity(r.Context(), d.Identity, d.Token))
		}
		next.ServeHTTP(w, r)
	})
}

// authorize is the single decision point. Public routes never refuse; a valid token is still
// attached so handlers can see who is calling. Tokens that fail to parse or verify count as absent.
func (g *Gate) authorize(r *http.Request) Decision {
	d := Decision{Access: g.cfg.Routes.Lookup(r.URL.Path)}

	token := extractToken(r)
	var claims *security.Claims
	var verr error
	if token != "" {
		claims, verr = g.cfg.Tokens.VerifyAccess(token)
	}

	if d.Access == Public {
		if token != "" && verr == nil {
			d.Token, d.Identity = token, claims.Identity()
		}
		return d
	}

	switch {
	case token == "":
		d.Reason = ReasonMissing
		return d
	case errors.Is(verr, security.ErrTokenExpired):
		d.Reason = ReasonExpired
		return d
	case verr != nil:
		d.Reason = ReasonMissing
		return d
	}
	d.Token, d.Identity = token, claims.Identity()

	if d.Access == Protected {
		return d
	}

	live, err := g.cfg.Sessions.ValidateSession(r.Context(), token)
	if err != nil {
		d.Err = err
		return d
	}
	if !live {
		d.Reason = ReasonRevoked
		return d
	}

	if d.Access == Admin {
		d.Reason, d.Err = g.admit(r, d.Identity)
	}
	return d
}

// admit checks an admin route against the caller's stored role, never the role claim.
func (g *Gate) admit(r *http.Request, id security.Identity) (Reason, error) {
	m, err := rbac.RequireOrgMember(r.Context(), g.cfg.Memberships, id.UserID, id.OrgID)
	switch {
	case errors.Is(err, rbac.ErrNotMember), errors.Is(err, rbac.ErrUnauthenticated):
		return ReasonForbidden, nil
	case err != nil:
		return ReasonNone, err
	}
	if g.cfg.Policy == nil {
		if m.Role.CanAdminister() {
			return ReasonNone, nil
		}
		return ReasonForbidden, nil
	}
	ok, err := g.cfg.Policy.AllowAdmin(r.Context(), engine.AccessInput{
		UserID: id.UserID,
		OrgID:  id.OrgID,
		Role:   string(m.Role),
		Method: r.Method,
		Path:   r.URL.Path,
	})
	if err != nil {
		return ReasonNone, err
	}
	if !ok {
		return ReasonForbidden, nil
	}
	return ReasonNone, nil
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, d Decision) {
	log := g.cfg.Log.With("path", r.URL.Path, "access", d.Access.String(), "request_id", GetRequestID(r.Context()))
	if d.Err != nil {
		log.Error("gate: authorization unavailable", "error", d.Err)
		httpx.WriteInternal(w)
		return
	}
	log.Debug("gate: request refused", "reason", d.Reason.String(), "user_id", d.Identity.UserID)

	if !httpx.WantsJSON(r) {
		if d.Reason == ReasonForbidden {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		http.Redirect(w, r, g.cfg.LoginPath+"?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
		return
	}

	switch d.Reason {
	case ReasonExpired:
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeAccessTokenExpired, "access token expired")
	case ReasonForbidden:
		httpx.WriteError(w, http.StatusForbidden, httpx.CodeForbidden, "forbidden")
	case ReasonRevoked:
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "session is no longer valid")
	default:
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "authentication required")
	}
}

// extractToken prefers the access cookie and falls back to an Authorization: Bearer header.
func extractToken(r *http.Request) string {
	if c, err := r.Cookie(AccessCookie); err == nil && c.Value != "" {
		return c.Value
	}
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}


// Package handler exposes the auth, account and admin endpoints over HTTP with cookie-carried sessions.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	auditdomain "crm-dashboard/backend/internal/audit/domain"
	"crm-dashboard/backend/internal/identity/service"
	"crm-dashboard/backend/internal/logging"
	"crm-dashboard/backend/internal/platform/httpx"
	"crm-dashboard/backend/internal/ratelimit"
	"crm-dashboard/backend/internal/security"
	"crm-dashboard/backend/internal/server/middleware"
	sessiondomain "crm-dashboard/backend/internal/session/domain"
	sessionservice "crm-dashboard/backend/internal/session/service"
)

// AuthService is implemented by *service.AuthService.
type AuthService interface {
	Login(ctx context.Context, email, password string, meta sessiondomain.RequestMeta) (*service.AuthResult, error)
	Register(ctx context.Context, in service.RegisterInput, meta sessiondomain.RequestMeta) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string, meta sessiondomain.RequestMeta) (*sessiondomain.TokenPair, error)
	Logout(ctx context.Context, accessToken, refreshToken string, meta sessiondomain.RequestMeta)
	SignOutEverywhere(ctx context.Context, id security.Identity, meta sessiondomain.RequestMeta) (int64, error)
	DeactivateUser(ctx context.Context, actor security.Identity, targetID string, meta sessiondomain.RequestMeta) (int64, error)
	RecentAuditLog(ctx context.Context, actor security.Identity, limit int) ([]*auditdomain.AuditLog, error)
}

// Handler serves /api/v1/auth, /api/v1/account and /api/v1/admin.
type Handler struct {
	svc     AuthService
	cookies cookieWriter
	log     *logging.Logger
}

// New returns a Handler. secureCookies sets the Secure attribute on both session cookies.
func New(svc AuthService, secureCookies bool, log *logging.Logger) *Handler {
	if log == nil {
		log = logging.Discard()
	}
	return &Handler{svc: svc, cookies: cookieWriter{secure: secureCookies}, log: log}
}

// Mount registers every route on r. Access control is the gate's job, not the router's.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/register", h.Register)
		r.Post("/refresh", h.Refresh)
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
	})
	r.Post("/api/v1/account/sessions/revoke-all", h.RevokeAllSessions)
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Post("/users/{id}/deactivate", h.DeactivateUser)
		r.Get("/audit", h.AuditLog)
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	OrganizationName string `json:"organizationName"`
}

type userView struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

type orgView struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type sessionView struct {
	User         userView `json:"user"`
	Organization orgView  `json:"organization"`
	Role         string   `json:"role"`
}

// meView carries only what the access token asserts. Names are not claims.
type meView struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	Organization struct {
		ID string `json:"id"`
	} `json:"organization"`
	Role string `json:"role"`
}

type refreshView struct {
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

func viewOf(res *service.AuthResult) sessionView {
	return sessionView{
		User: userView{
			ID:        res.User.ID,
			Email:     res.User.Email,
			FirstName: res.User.FirstName,
			LastName:  res.User.LastName,
		},
		Organization: orgView{ID: res.Org.ID, Name: res.Org.Name},
		Role:         string(res.Role),
	}
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.Login(r.Context(), req.Email, req.Password, httpx.Meta(r))
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	h.cookies.set(w, res.Tokens)
	httpx.WriteJSON(w, http.StatusOK, viewOf(res))
}

// Register handles POST /api/v1/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.Register(r.Context(), service.RegisterInput{
		Email:            req.Email,
		Password:         req.Password,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		OrganizationName: req.OrganizationName,
	}, httpx.Meta(r))
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	h.cookies.set(w, res.Tokens)
	httpx.WriteJSON(w, http.StatusCreated, viewOf(res))
}

// Refresh handles POST /api/v1/auth/refresh. Terminal failures clear both cookies; a store
// outage does not, so the client can retry with the same refresh token.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	pair, err := h.svc.Refresh(r.Context(), cookieValue(r, RefreshCookie), httpx.Meta(r))
	if err != nil {
		var code, msg string
		switch {
		case errors.Is(err, sessionservice.ErrSessionExpired):
			code, msg = httpx.CodeSessionExpired, "session expired"
		case errors.Is(err, sessionservice.ErrAccountInactive):
			code, msg = httpx.CodeAccountInactive, "account is no longer active"
		case errors.Is(err, sessionservice.ErrSessionNotFound):
			code, msg = httpx.CodeSessionInvalid, "session is no longer valid"
		default:
			h.log.Error("refresh failed", "error", err, "request_id", middleware.GetRequestID(r.Context()))
			httpx.WriteInternal(w)
			return
		}
		h.cookies.clear(w)
		httpx.WriteError(w, http.StatusUnauthorized, code, msg)
		return
	}
	h.cookies.set(w, pair)
	httpx.WriteJSON(w, http.StatusOK, refreshView{AccessExpiresAt: pair.AccessExpiresAt, RefreshExpiresAt: pair.RefreshExpiresAt})
}

// Logout handles POST /api/v1/auth/logout. Always 200.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	access := cookieValue(r, AccessCookie)
	if access == "" {
		access, _ = middleware.GetAccessToken(r.Context())
	}
	h.svc.Logout(r.Context(), access, cookieValue(r, RefreshCookie), httpx.Meta(r))
	h.cookies.clear(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

// Me handles GET /api/v1/auth/me from the verified claims alone.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetIdentity(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "authentication required")
		return
	}
	var v meView
	v.User.ID, v.User.Email = id.UserID, id.Email
	v.Organization.ID = id.OrgID
	v.Role = id.Role
	httpx.WriteJSON(w, http.StatusOK, v)
}

// writeAuthError maps login and register failures. Messages are fixed strings.
func (h *Handler) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidation, verr.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		h.cookies.clear(w)
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "Invalid email or password")
	case errors.Is(err, service.ErrAccountDisabled):
		h.cookies.clear(w)
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "Account is deactivated")
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		httpx.WriteError(w, http.StatusConflict, httpx.CodeConflict, "Email already registered")
	case errors.Is(err, ratelimit.ErrRateLimited):
		httpx.WriteError(w, http.StatusTooManyRequests, httpx.CodeRateLimited, "Too many attempts, try again later")
	default:
		h.log.Error("auth request failed", "path", r.URL.Path, "error", err, "request_id", middleware.GetRequestID(r.Context()))
		httpx.WriteInternal(w)
	}
}

package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"crm-dashboard/backend/internal/identity/service"
	"crm-dashboard/backend/internal/platform/httpx"
	"crm-dashboard/backend/internal/server/middleware"
)

type revokedView struct {
	RevokedSessions int64 `json:"revokedSessions"`
}

type auditEntryView struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	IP        string    `json:"ip"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// RevokeAllSessions handles POST /api/v1/account/sessions/revoke-all. The caller's own session
// goes too, so both cookies are cleared.
func (h *Handler) RevokeAllSessions(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetIdentity(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "authentication required")
		return
	}
	n, err := h.svc.SignOutEverywhere(r.Context(), id, httpx.Meta(r))
	if err != nil {
		h.writeAdminError(w, r, err)
		return
	}
	h.cookies.clear(w)
	httpx.WriteJSON(w, http.StatusOK, revokedView{RevokedSessions: n})
}

// DeactivateUser handles POST /api/v1/admin/users/{id}/deactivate.
func (h *Handler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetIdentity(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "authentication required")
		return
	}
	n, err := h.svc.DeactivateUser(r.Context(), actor, chi.URLParam(r, "id"), httpx.Meta(r))
	if err != nil {
		h.writeAdminError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, revokedView{RevokedSessions: n})
}

// AuditLog handles GET /api/v1/admin/audit?limit=N.
func (h *Handler) AuditLog(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetIdentity(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "authentication required")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	entries, err := h.svc.RecentAuditLog(r.Context(), actor, limit)
	if err != nil {
		h.writeAdminError(w, r, err)
		return
	}
	out := make([]auditEntryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryView{
			ID:        e.ID,
			UserID:    e.UserID,
			Action:    e.Action,
			Resource:  e.Resource,
			IP:        e.IP,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (h *Handler) writeAdminError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, httpx.CodeForbidden, "forbidden")
	case errors.Is(err, service.ErrUserNotFound):
		httpx.WriteError(w, http.StatusNotFound, httpx.CodeNotFound, "user not found")
	default:
		h.log.Error("account request failed", "path", r.URL.Path, "error", err, "request_id", middleware.GetRequestID(r.Context()))
		httpx.WriteInternal(w)
	}
}

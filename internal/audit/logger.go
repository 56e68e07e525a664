// Package audit persists auth events to the audit_logs table.
package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"crm-dashboard/backend/internal/audit/domain"
	auditrepo "crm-dashboard/backend/internal/audit/repository"
	"crm-dashboard/backend/internal/logging"
	"crm-dashboard/backend/internal/telemetry"
)

// SentinelOrgID is the org_id used for audit events that have no org (e.g. a failed login for an unknown email).
const SentinelOrgID = "_system"

// Logger writes auth events to the audit repository. It implements telemetry.EventEmitter.
// Emit is best-effort: failures are logged and never returned, so callers are not affected.
type Logger struct {
	repo auditrepo.Repository
	log  *logging.Logger
	now  func() time.Time
}

// NewLogger returns a Logger that persists to repo. log may be nil.
func NewLogger(repo auditrepo.Repository, log *logging.Logger) *Logger {
	if log == nil {
		log = logging.Discard()
	}
	return &Logger{repo: repo, log: log, now: time.Now}
}

type metadata struct {
	Outcome   telemetry.Outcome `json:"outcome"`
	Reason    string            `json:"reason,omitempty"`
	Email     string            `json:"email,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
}

// Emit writes one audit log entry for event.
func (l *Logger) Emit(ctx context.Context, event telemetry.Event) error {
	if l == nil || l.repo == nil {
		return nil
	}
	entry := l.entry(event)
	if err := l.repo.Create(ctx, entry); err != nil {
		l.log.Error("audit: failed to log event", "action", entry.Action, "error", err)
	}
	return nil
}

func (l *Logger) entry(event telemetry.Event) *domain.AuditLog {
	orgID := event.OrgID
	if orgID == "" {
		orgID = SentinelOrgID
	}
	ip := event.IPAddress
	if ip == "" {
		ip = "unknown"
	}
	created := event.OccurredAt
	if created.IsZero() {
		created = l.now()
	}
	meta, _ := json.Marshal(metadata{
		Outcome:   event.Outcome,
		Reason:    event.Reason,
		Email:     event.Email,
		UserAgent: event.UserAgent,
	})
	return &domain.AuditLog{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		UserID:    event.UserID,
		Action:    string(event.Type),
		Resource:  resourceOf(event.Type),
		IP:        ip,
		Metadata:  string(meta),
		CreatedAt: created.UTC(),
	}
}

// resourceOf maps an event type to the audited resource.
func resourceOf(t telemetry.EventType) string {
	switch {
	case t == telemetry.EventRegister || t == telemetry.EventUserDeactivated:
		return "user"
	case strings.HasPrefix(string(t), "auth."), t == telemetry.EventSessionsRevoked:
		return "session"
	default:
		return "unknown"
	}
}

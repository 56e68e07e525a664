package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"crm-dashboard/backend/internal/audit/domain"
	"crm-dashboard/backend/internal/logging"
	"crm-dashboard/backend/internal/telemetry"
)

// memAuditRepo implements the audit repository interface for tests.
type memAuditRepo struct {
	mu        sync.Mutex
	entries   []*domain.AuditLog
	createErr error
}

func (m *memAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memAuditRepo) ListByOrg(ctx context.Context, orgID string, limit int) ([]*domain.AuditLog, error) {
	return nil, nil
}

func TestLogger_Emit_Success(t *testing.T) {
	repo := &memAuditRepo{}
	logger := NewLogger(repo, logging.Discard())
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	err := logger.Emit(context.Background(), telemetry.Event{
		Type:       telemetry.EventLogin,
		Outcome:    telemetry.OutcomeSuccess,
		UserID:     "user-1",
		OrgID:      "org-1",
		Email:      "a@x.com",
		IPAddress:  "192.168.1.1",
		UserAgent:  "curl/8",
		OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.OrgID != "org-1" {
		t.Errorf("org_id = %q, want %q", entry.OrgID, "org-1")
	}
	if entry.UserID != "user-1" {
		t.Errorf("user_id = %q, want %q", entry.UserID, "user-1")
	}
	if entry.Action != "auth.login" {
		t.Errorf("action = %q, want auth.login", entry.Action)
	}
	if entry.Resource != "session" {
		t.Errorf("resource = %q, want session", entry.Resource)
	}
	if entry.IP != "192.168.1.1" {
		t.Errorf("ip = %q, want %q", entry.IP, "192.168.1.1")
	}
	if !entry.CreatedAt.Equal(at) {
		t.Errorf("created_at = %v, want %v", entry.CreatedAt, at)
	}
	if entry.ID == "" {
		t.Error("entry ID should be set")
	}
	var meta map[string]string
	if err := json.Unmarshal([]byte(entry.Metadata), &meta); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta["outcome"] != "success" || meta["email"] != "a@x.com" || meta["user_agent"] != "curl/8" {
		t.Errorf("metadata = %v", meta)
	}
}

func TestLogger_Emit_Defaults(t *testing.T) {
	repo := &memAuditRepo{}
	logger := NewLogger(repo, nil)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	logger.now = func() time.Time { return fixed }

	_ = logger.Emit(context.Background(), telemetry.Event{
		Type:    telemetry.EventLogin,
		Outcome: telemetry.OutcomeFailure,
		Reason:  "invalid_credentials",
	})

	entry := repo.entries[0]
	if entry.OrgID != SentinelOrgID {
		t.Errorf("org_id = %q, want %q", entry.OrgID, SentinelOrgID)
	}
	if entry.IP != "unknown" {
		t.Errorf("ip = %q, want unknown", entry.IP)
	}
	if !entry.CreatedAt.Equal(fixed) {
		t.Errorf("created_at = %v, want %v", entry.CreatedAt, fixed)
	}
}

func TestLogger_Emit_RepoErrorSwallowed(t *testing.T) {
	repo := &memAuditRepo{createErr: errors.New("db down")}
	logger := NewLogger(repo, logging.Discard())
	if err := logger.Emit(context.Background(), telemetry.Event{Type: telemetry.EventLogout}); err != nil {
		t.Errorf("Emit returned %v, want nil", err)
	}
}

func TestLogger_NilRepo(t *testing.T) {
	var nilLogger *Logger
	if err := nilLogger.Emit(context.Background(), telemetry.Event{}); err != nil {
		t.Errorf("nil Logger Emit: %v", err)
	}
	if err := NewLogger(nil, nil).Emit(context.Background(), telemetry.Event{}); err != nil {
		t.Errorf("nil repo Emit: %v", err)
	}
}

func TestResourceOf(t *testing.T) {
	tests := []struct {
		typ  telemetry.EventType
		want string
	}{
		{telemetry.EventLogin, "session"},
		{telemetry.EventLogout, "session"},
		{telemetry.EventRefresh, "session"},
		{telemetry.EventSessionsRevoked, "session"},
		{telemetry.EventRegister, "user"},
		{telemetry.EventUserDeactivated, "user"},
		{telemetry.EventType("other"), "unknown"},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			if got := resourceOf(tt.typ); got != tt.want {
				t.Errorf("resourceOf(%q) = %q, want %q", tt.typ, got, tt.want)
			}
		})
	}
}

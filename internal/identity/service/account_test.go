package service

import (
	"context"
	"errors"
	"testing"

	membershipdomain "crm-dashboard/backend/internal/membership/domain"
	"crm-dashboard/backend/internal/security"
	sessionservice "crm-dashboard/backend/internal/session/service"
	"crm-dashboard/backend/internal/telemetry"
)

func identityOf(res *AuthResult) security.Identity {
	return res.Identity()
}

func TestDeactivateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.register(t, "owner@x.com", "correctpw1", "Olga")
	memberID := f.addMember(t, owner.Org.ID, "m@x.com", "memberpw1", membershipdomain.RoleMember)
	memberLogin, err := f.svc.Login(ctx, "m@x.com", "memberpw1", meta)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	n, err := f.svc.DeactivateUser(ctx, identityOf(owner), memberID, meta)
	if err != nil {
		t.Fatalf("DeactivateUser: %v", err)
	}
	if n != 1 {
		t.Errorf("revoked = %d, want 1", n)
	}
	if _, err := f.svc.Login(ctx, "m@x.com", "memberpw1", meta); !errors.Is(err, ErrAccountDisabled) {
		t.Errorf("login after deactivate: err = %v, want ErrAccountDisabled", err)
	}
	if _, err := f.svc.Refresh(ctx, memberLogin.Tokens.RefreshToken, meta); !errors.Is(err, sessionservice.ErrSessionNotFound) {
		t.Errorf("refresh after deactivate: err = %v, want ErrSessionNotFound", err)
	}
	ev := f.events.last(t)
	if ev.Type != telemetry.EventUserDeactivated || ev.UserID != memberID || ev.Reason != "by:"+owner.User.ID {
		t.Errorf("event = %+v", ev)
	}
}

func TestDeactivateUser_Authorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.register(t, "owner@x.com", "correctpw1", "Olga")
	adminID := f.addMember(t, owner.Org.ID, "admin@x.com", "adminpw1", membershipdomain.RoleAdmin)
	memberID := f.addMember(t, owner.Org.ID, "m@x.com", "memberpw1", membershipdomain.RoleMember)
	other := f.register(t, "other@y.com", "correctpw1", "Otto")

	admin := security.Identity{UserID: adminID, OrgID: owner.Org.ID, Role: "admin"}
	member := security.Identity{UserID: memberID, OrgID: owner.Org.ID, Role: "member"}
	// A stale token claiming admin does not help: the stored role decides.
	forged := security.Identity{UserID: memberID, OrgID: owner.Org.ID, Role: "owner"}

	tests := []struct {
		name    string
		actor   security.Identity
		target  string
		wantErr error
	}{
		{"member cannot deactivate", member, adminID, ErrForbidden},
		{"claims do not grant admin", forged, adminID, ErrForbidden},
		{"admin cannot deactivate owner", admin, owner.User.ID, ErrForbidden},
		{"no self deactivation", identityOf(owner), owner.User.ID, ErrForbidden},
		{"target in another org", identityOf(owner), other.User.ID, ErrUserNotFound},
		{"unknown target", identityOf(owner), "nope", ErrUserNotFound},
		{"empty target", identityOf(owner), "", ErrUserNotFound},
		{"foreign owner", identityOf(other), memberID, ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.DeactivateUser(ctx, tt.actor, tt.target, meta)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := f.svc.DeactivateUser(ctx, admin, memberID, meta); err != nil {
		t.Errorf("admin deactivating member: %v", err)
	}
}

func TestSignOutEverywhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "a@x.com", "correctpw1", "Ada")
	if _, err := f.svc.Login(ctx, "a@x.com", "correctpw1", meta); err != nil {
		t.Fatal(err)
	}

	n, err := f.svc.SignOutEverywhere(ctx, identityOf(reg), meta)
	if err != nil {
		t.Fatalf("SignOutEverywhere: %v", err)
	}
	if n != 2 {
		t.Errorf("revoked = %d, want 2", n)
	}
	if c := f.sessionCount(t, reg.User.ID); c != 0 {
		t.Errorf("sessions = %d, want 0", c)
	}
	if ev := f.events.last(t); ev.Type != telemetry.EventSessionsRevoked {
		t.Errorf("event = %+v", ev)
	}
}

func TestRecentAuditLog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.register(t, "owner@x.com", "correctpw1", "Olga")
	memberID := f.addMember(t, owner.Org.ID, "m@x.com", "memberpw1", membershipdomain.RoleMember)
	if _, err := f.svc.Login(ctx, "owner@x.com", "correctpw1", meta); err != nil {
		t.Fatal(err)
	}

	entries, err := f.svc.RecentAuditLog(ctx, identityOf(owner), 0)
	if err != nil {
		t.Fatalf("RecentAuditLog: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2 (register, login)", len(entries))
	}
	actions := map[string]bool{}
	for _, e := range entries {
		actions[e.Action] = true
		if e.OrgID != owner.Org.ID {
			t.Errorf("entry org = %q", e.OrgID)
		}
	}
	if !actions["auth.register"] || !actions["auth.login"] {
		t.Errorf("actions = %v", actions)
	}

	member := security.Identity{UserID: memberID, OrgID: owner.Org.ID}
	if _, err := f.svc.RecentAuditLog(ctx, member, 10); !errors.Is(err, ErrForbidden) {
		t.Errorf("member err = %v, want ErrForbidden", err)
	}
}

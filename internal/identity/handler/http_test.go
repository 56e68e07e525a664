package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	auditdomain "crm-dashboard/backend/internal/audit/domain"
	"crm-dashboard/backend/internal/identity/service"
	membershipdomain "crm-dashboard/backend/internal/membership/domain"
	orgdomain "crm-dashboard/backend/internal/organization/domain"
	"crm-dashboard/backend/internal/platform/httpx"
	"crm-dashboard/backend/internal/ratelimit"
	"crm-dashboard/backend/internal/security"
	"crm-dashboard/backend/internal/server/middleware"
	sessiondomain "crm-dashboard/backend/internal/session/domain"
	sessionservice "crm-dashboard/backend/internal/session/service"
	userdomain "crm-dashboard/backend/internal/user/domain"
)

// mockAuthService implements AuthService for tests.
type mockAuthService struct {
	mu sync.Mutex

	loginErr    error
	registerErr error
	refreshErr  error
	adminErr    error
	revoked     int64
	entries     []*auditdomain.AuditLog

	gotRegister service.RegisterInput
	gotRefresh  string
	gotLogout   [2]string
	gotTarget   string
	gotLimit    int
	gotActor    security.Identity
	logoutCalls int
}

var testPair = &sessiondomain.TokenPair{
	AccessToken:      "access-1",
	RefreshToken:     "refresh-1",
	AccessExpiresAt:  time.Date(2026, 5, 1, 12, 15, 0, 0, time.UTC),
	RefreshExpiresAt: time.Date(2026, 5, 8, 12, 0, 0, 0, time.UTC),
}

func testResult() *service.AuthResult {
	return &service.AuthResult{
		Tokens: testPair,
		User:   &userdomain.User{ID: "u1", Email: "a@x.com", FirstName: "Ada"},
		Org:    &orgdomain.Org{ID: "o1", Name: "Ada's Organization"},
		Role:   membershipdomain.RoleOwner,
	}
}

func (m *mockAuthService) Login(_ context.Context, email, password string, _ sessiondomain.RequestMeta) (*service.AuthResult, error) {
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return testResult(), nil
}

func (m *mockAuthService) Register(_ context.Context, in service.RegisterInput, _ sessiondomain.RequestMeta) (*service.AuthResult, error) {
	m.mu.Lock()
	m.gotRegister = in
	m.mu.Unlock()
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	return testResult(), nil
}

func (m *mockAuthService) Refresh(_ context.Context, token string, _ sessiondomain.RequestMeta) (*sessiondomain.TokenPair, error) {
	m.gotRefresh = token
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	return testPair, nil
}

func (m *mockAuthService) Logout(_ context.Context, access, refresh string, _ sessiondomain.RequestMeta) {
	m.logoutCalls++
	m.gotLogout = [2]string{access, refresh}
}

func (m *mockAuthService) SignOutEverywhere(_ context.Context, id security.Identity, _ sessiondomain.RequestMeta) (int64, error) {
	m.gotActor = id
	return m.revoked, m.adminErr
}

func (m *mockAuthService) DeactivateUser(_ context.Context, actor security.Identity, target string, _ sessiondomain.RequestMeta) (int64, error) {
	m.gotActor, m.gotTarget = actor, target
	return m.revoked, m.adminErr
}

func (m *mockAuthService) RecentAuditLog(_ context.Context, actor security.Identity, limit int) ([]*auditdomain.AuditLog, error) {
	m.gotActor, m.gotLimit = actor, limit
	return m.entries, m.adminErr
}

var caller = security.Identity{UserID: "u1", Email: "a@x.com", OrgID: "o1", Role: "owner"}

// newRouter mounts the handler; withIdentity stands in for the gate.
func newRouter(svc AuthService, withIdentity bool) http.Handler {
	r := chi.NewRouter()
	if withIdentity {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(middleware.WithIdentity(req.Context(), caller, "access-ctx")))
			})
		})
	}
	New(svc, true, nil).Mount(r)
	return r
}

func do(h http.Handler, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func cookiesByName(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httpx.Error {
	t.Helper()
	var e httpx.Error
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return e
}

func assertCleared(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	c := cookiesByName(rec)
	for _, name := range []string{AccessCookie, RefreshCookie} {
		if c[name] == nil {
			t.Errorf("cookie %s not cleared", name)
			continue
		}
		if c[name].Value != "" || c[name].MaxAge >= 0 {
			t.Errorf("cookie %s = %q max-age %d, want cleared", name, c[name].Value, c[name].MaxAge)
		}
	}
}

func TestLogin_SetsCookies(t *testing.T) {
	rec := do(newRouter(&mockAuthService{}, false), http.MethodPost, "/api/v1/auth/login", `{"email":"a@x.com","password":"correctpw"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	c := cookiesByName(rec)
	access, refresh := c[AccessCookie], c[RefreshCookie]
	if access == nil || refresh == nil {
		t.Fatalf("cookies = %v", c)
	}
	if access.Value != "access-1" || access.MaxAge != 900 || access.Path != "/" {
		t.Errorf("access cookie = %+v", access)
	}
	if refresh.Value != "refresh-1" || refresh.MaxAge != 604800 || refresh.Path != "/api/v1/auth" {
		t.Errorf("refresh cookie = %+v", refresh)
	}
	for _, ck := range []*http.Cookie{access, refresh} {
		if !ck.HttpOnly || !ck.Secure || ck.SameSite != http.SameSiteLaxMode {
			t.Errorf("cookie %s attributes = httponly %v secure %v samesite %v", ck.Name, ck.HttpOnly, ck.Secure, ck.SameSite)
		}
	}

	var body sessionView
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.User.ID != "u1" || body.Organization.Name != "Ada's Organization" || body.Role != "owner" {
		t.Errorf("body = %+v", body)
	}
}

func TestLogin_Errors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
		cleared bool
	}{
		{"invalid credentials", service.ErrInvalidCredentials, 401, httpx.CodeUnauthorized, "Invalid email or password", true},
		{"disabled", service.ErrAccountDisabled, 401, httpx.CodeUnauthorized, "Account is deactivated", true},
		{"throttled", ratelimit.ErrRateLimited, 429, httpx.CodeRateLimited, "", false},
		{"store down", fmt.Errorf("%w: boom", sessionservice.ErrPersistence), 500, httpx.CodeInternal, "internal server error", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(newRouter(&mockAuthService{loginErr: tt.err}, false), http.MethodPost, "/api/v1/auth/login", `{"email":"a@x.com","password":"x"}`)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.cleared {
				assertCleared(t, rec)
			}
			e := decodeError(t, rec)
			if e.Code != tt.code {
				t.Errorf("code = %q, want %q", e.Code, tt.code)
			}
			if tt.message != "" && e.Message != tt.message {
				t.Errorf("message = %q, want %q", e.Message, tt.message)
			}
			if strings.Contains(e.Message, "boom") {
				t.Error("internal detail leaked")
			}
		})
	}
}

func TestLogin_BadBody(t *testing.T) {
	rec := do(newRouter(&mockAuthService{}, false), http.MethodPost, "/api/v1/auth/login", `{"email":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRegister(t *testing.T) {
	svc := &mockAuthService{}
	rec := do(newRouter(svc, false), http.MethodPost, "/api/v1/auth/register",
		`{"email":"b@x.com","password":"longenough1","firstName":"Bo","lastName":"Li","organizationName":"Acme"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if svc.gotRegister.Email != "b@x.com" || svc.gotRegister.FirstName != "Bo" || svc.gotRegister.OrganizationName != "Acme" {
		t.Errorf("input = %+v", svc.gotRegister)
	}
	if c := cookiesByName(rec); c[AccessCookie] == nil || c[RefreshCookie] == nil {
		t.Error("register should set both cookies")
	}
}

func TestRegister_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"conflict", service.ErrEmailAlreadyRegistered, 409, httpx.CodeConflict},
		{"weak password", &service.ValidationError{Field: "password", Message: "must contain a digit"}, 400, httpx.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(newRouter(&mockAuthService{registerErr: tt.err}, false), http.MethodPost, "/api/v1/auth/register", `{"email":"b@x.com"}`)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if e := decodeError(t, rec); e.Code != tt.code {
				t.Errorf("code = %q, want %q", e.Code, tt.code)
			}
		})
	}
}

func TestRefresh(t *testing.T) {
	svc := &mockAuthService{}
	rec := do(newRouter(svc, false), http.MethodPost, "/api/v1/auth/refresh", "",
		&http.Cookie{Name: RefreshCookie, Value: "old-refresh"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.gotRefresh != "old-refresh" {
		t.Errorf("refresh token passed = %q", svc.gotRefresh)
	}
	if c := cookiesByName(rec); c[RefreshCookie] == nil || c[RefreshCookie].Value != "refresh-1" {
		t.Error("new refresh cookie not set")
	}
}

func TestRefresh_Failures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		cleared bool
	}{
		{"expired", sessionservice.ErrSessionExpired, 401, httpx.CodeSessionExpired, true},
		{"reused", sessionservice.ErrSessionNotFound, 401, httpx.CodeSessionInvalid, true},
		{"deactivated", sessionservice.ErrAccountInactive, 401, httpx.CodeAccountInactive, true},
		{"store down", fmt.Errorf("%w: timeout", sessionservice.ErrPersistence), 500, httpx.CodeInternal, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(newRouter(&mockAuthService{refreshErr: tt.err}, false), http.MethodPost, "/api/v1/auth/refresh", "",
				&http.Cookie{Name: RefreshCookie, Value: "r"})
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.cleared {
				assertCleared(t, rec)
			} else if len(rec.Result().Cookies()) != 0 {
				t.Error("retryable failure must keep cookies")
			}
			if e := decodeError(t, rec); e.Code != tt.code {
				t.Errorf("code = %q, want %q", e.Code, tt.code)
			}
		})
	}
}

func TestLogout(t *testing.T) {
	svc := &mockAuthService{}
	rec := do(newRouter(svc, false), http.MethodPost, "/api/v1/auth/logout", "",
		&http.Cookie{Name: AccessCookie, Value: "a"}, &http.Cookie{Name: RefreshCookie, Value: "r"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.gotLogout != [2]string{"a", "r"} {
		t.Errorf("logout tokens = %v", svc.gotLogout)
	}
	assertCleared(t, rec)

	rec = do(newRouter(svc, false), http.MethodPost, "/api/v1/auth/logout", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("no cookies: status = %d, want 200", rec.Code)
	}
	if svc.logoutCalls != 2 {
		t.Errorf("logout calls = %d", svc.logoutCalls)
	}
}

func TestLogout_UsesBearerFromContext(t *testing.T) {
	svc := &mockAuthService{}
	do(newRouter(svc, true), http.MethodPost, "/api/v1/auth/logout", "")
	if svc.gotLogout[0] != "access-ctx" {
		t.Errorf("access token = %q, want the one the gate verified", svc.gotLogout[0])
	}
}

func TestMe(t *testing.T) {
	rec := do(newRouter(&mockAuthService{}, true), http.MethodGet, "/api/v1/auth/me", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	raw := rec.Body.Bytes()
	var body meView
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.User.ID != "u1" || body.User.Email != "a@x.com" || body.Organization.ID != "o1" || body.Role != "owner" {
		t.Errorf("body = %+v", body)
	}
	var loose struct {
		User         map[string]any `json:"user"`
		Organization map[string]any `json:"organization"`
	}
	if err := json.Unmarshal(raw, &loose); err != nil {
		t.Fatalf("decode loose: %v", err)
	}
	for _, k := range []string{"firstName", "lastName"} {
		if _, ok := loose.User[k]; ok {
			t.Errorf("user carries %q; names are not token claims", k)
		}
	}
	if _, ok := loose.Organization["name"]; ok {
		t.Error("organization carries name; it is not a token claim")
	}

	if rec := do(newRouter(&mockAuthService{}, false), http.MethodGet, "/api/v1/auth/me", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("without identity: status = %d, want 401", rec.Code)
	}
}

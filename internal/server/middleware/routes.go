package middleware

import "strings"

// Access is how much a route demands of the caller.
type Access int

const (
	// Protected routes need a valid, unexpired access token. The store is not consulted.
	Protected Access = iota
	// Public routes are open; a valid token, if any, still lands in the context.
	Public
	// Sensitive routes are protected and also need the token's session record to exist.
	Sensitive
	// Admin routes are sensitive and also need the access policy to allow the caller's stored role.
	Admin
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case Sensitive:
		return "sensitive"
	case Admin:
		return "admin"
	default:
		return "protected"
	}
}

// Match selects how a route pattern is compared to the request path.
type Match int

const (
	Exact Match = iota
	Prefix
)

// Route is one row of the decision table.
type Route struct {
	Pattern string
	Match   Match
	Access  Access
}

func (r Route) matches(path string) bool {
	if r.Match == Prefix {
		return strings.HasPrefix(path, r.Pattern)
	}
	return path == r.Pattern
}

// RouteTable is an ordered decision table. The first matching row wins; no match means Protected.
type RouteTable []Route

// Lookup returns the access level for path.
func (t RouteTable) Lookup(path string) Access {
	for _, r := range t {
		if r.matches(path) {
			return r.Access
		}
	}
	return Protected
}

// DefaultRoutes is the table the server runs with. /api/v1/auth/me is left to the Protected default.
var DefaultRoutes = RouteTable{
	{Pattern: "/api/v1/auth/login", Match: Exact, Access: Public},
	{Pattern: "/api/v1/auth/register", Match: Exact, Access: Public},
	{Pattern: "/api/v1/auth/refresh", Match: Exact, Access: Public},
	{Pattern: "/api/v1/auth/logout", Match: Exact, Access: Public},
	{Pattern: "/api/v1/account/", Match: Prefix, Access: Sensitive},
	{Pattern: "/api/v1/admin/", Match: Prefix, Access: Admin},
	{Pattern: "/healthz", Match: Exact, Access: Public},
	{Pattern: "/readyz", Match: Exact, Access: Public},
	{Pattern: "/login", Match: Exact, Access: Public},
	{Pattern: "/register", Match: Exact, Access: Public},
	{Pattern: "/favicon.ico", Match: Exact, Access: Public},
	{Pattern: "/assets/", Match: Prefix, Access: Public},
}

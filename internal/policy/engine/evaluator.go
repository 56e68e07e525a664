package engine

import "context"

// AccessInput describes a request to an admin route. Role is the caller's stored role in OrgID.
type AccessInput struct {
	UserID string
	OrgID  string
	Role   string
	Method string
	Path   string
}

// Evaluator decides admin route access.
type Evaluator interface {
	// AllowAdmin reports whether the caller may use the admin route. Errors mean the policy
	// could not be evaluated; callers deny.
	AllowAdmin(ctx context.Context, in AccessInput) (bool, error)
}

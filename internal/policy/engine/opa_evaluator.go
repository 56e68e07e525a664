package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const allowQuery = "data.crm.admin_access.allow"

// DefaultPolicy grants admin routes to owners and admins. Only owners may call owner-only paths.
const DefaultPolicy = `package crm.admin_access

default allow := false

admin_roles := {"owner", "admin"}

owner_only_prefixes := {"/api/v1/admin/owners/"}

owner_only if {
	some prefix in owner_only_prefixes
	startswith(input.path, prefix)
}

allow if {
	input.org_id != ""
	admin_roles[input.role]
	not owner_only
}

allow if {
	input.org_id != ""
	input.role == "owner"
}
`

// OPAEvaluator evaluates admin access with an in-process OPA Rego policy compiled once.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles policy (DefaultPolicy when empty) and prepares the allow query.
func NewOPAEvaluator(ctx context.Context, policy string) (*OPAEvaluator, error) {
	if policy == "" {
		policy = DefaultPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"admin_access.rego": policy})
	if err != nil {
		return nil, fmt.Errorf("compile admin policy: %w", err)
	}
	q, err := rego.New(
		rego.Query(allowQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare admin policy: %w", err)
	}
	return &OPAEvaluator{query: q}, nil
}

// AllowAdmin implements Evaluator. A result that is not a boolean denies.
func (e *OPAEvaluator) AllowAdmin(ctx context.Context, in AccessInput) (bool, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"user_id": in.UserID,
		"org_id":  in.OrgID,
		"role":    in.Role,
		"method":  in.Method,
		"path":    in.Path,
	}))
	if err != nil {
		return false, fmt.Errorf("eval admin policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("admin policy returned no result")
	}
	allow, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("admin policy returned %T, want bool", rs[0].Expressions[0].Value)
	}
	return allow, nil
}

// HealthCheck evaluates the prepared policy against a member input, which must be denied.
// Does not touch the database. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	allow, err := e.AllowAdmin(ctx, AccessInput{OrgID: "health", Role: "member", Method: "GET", Path: "/api/v1/admin/health"})
	if err != nil {
		return err
	}
	if allow {
		return fmt.Errorf("admin policy allowed a member")
	}
	return nil
}

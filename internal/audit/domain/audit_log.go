package domain

import "time"

// AuditLog is one row of a workspace's sign-in history. Action is the
// telemetry event type, for example "auth.login". OrgID is "_system" when
// no workspace could be attributed. Metadata is the outcome and reason as JSON.
type AuditLog struct {
	ID        string
	OrgID     string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}

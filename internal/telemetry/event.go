package telemetry

import "time"

// EventType names an auth lifecycle event.
type EventType string

const (
	EventLogin           EventType = "auth.login"
	EventLogout          EventType = "auth.logout"
	EventRefresh         EventType = "auth.refresh"
	EventRegister        EventType = "auth.register"
	EventUserDeactivated EventType = "admin.user_deactivated"
	EventSessionsRevoked EventType = "account.sessions_revoked"
)

// Outcome is success or failure.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event is one auth event. It is serialized as JSON onto Kafka and into Loki.
type Event struct {
	Type       EventType `json:"type"`
	Outcome    Outcome   `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	OrgID      string    `json:"org_id,omitempty"`
	Email      string    `json:"email,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Failed reports whether the event records a failure.
func (e Event) Failed() bool {
	return e.Outcome == OutcomeFailure
}

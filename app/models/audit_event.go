package models

// AuditEvent is an append-only operations record. The audit trail is a single
// time-bounded list; events expire with it and carry no invariant beyond
// insertion order.
type AuditEvent struct {
	Action  string            `json:"action"`
	Email   string            `json:"email,omitempty"`
	Detail  map[string]string `json:"detail,omitempty"`
	At      string            `json:"at"`
	Source  string            `json:"source,omitempty"`
	Success bool              `json:"success"`
}

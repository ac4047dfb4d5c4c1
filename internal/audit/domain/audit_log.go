package domain

import "time"

// AuditLog represents an assignment audit event.
type AuditLog struct {
	ID        string
	CoID      int64
	PersonID  int64
	Action    string
	Resource  string
	Metadata  string
	CreatedAt time.Time
}

const (
	ActionIdentifierAssigned         = "identifier_assigned"
	ActionIdentifierAssignmentFailed = "identifier_assignment_failed"
)

package models

import "time"

// AuditAction constants represent the ledger actions.
const (
	AuditActionCreate = "CREATE"
	AuditActionUpdate = "UPDATE"
	AuditActionDelete = "DELETE"
)

// Audited entity types.
const (
	AuditEntityAssignment   = "TEACHING_ASSIGNMENT"
	AuditEntityTeacher      = "TEACHER"
	AuditEntityClassSubject = "CLASS_SUBJECT"
)

// AuditLog is an immutable ledger entry recorded once per committed mutation.
// DataBefore is absent for CREATE, DataAfter is absent for DELETE; both are full JSON
// snapshots of the persisted state including resolved reference names.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	ActorID    *string   `db:"actor_id" json:"actor_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   string    `db:"entity_id" json:"entity_id"`
	DataBefore []byte    `db:"data_before" json:"data_before,omitempty"`
	DataAfter  []byte    `db:"data_after" json:"data_after,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

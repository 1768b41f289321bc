package models

import "time"

// Teacher represents an instructor record. TotalAssignment is the denormalized sum of
// completed lessons over the teacher's active assignments plus the homeroom credit; it
// is owned by the counter repository and must never be written directly.
type Teacher struct {
	ID              string    `db:"id" json:"id"`
	NIP             *string   `db:"nip" json:"nip,omitempty"`
	Email           string    `db:"email" json:"email"`
	FullName        string    `db:"full_name" json:"full_name"`
	DepartmentID    string    `db:"department_id" json:"department_id"`
	Active          bool      `db:"active" json:"active"`
	TotalAssignment int       `db:"total_assignment" json:"total_assignment"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// HomeroomReduction marks a teacher as holding a homeroom role, which grants a fixed
// lesson credit on the teacher's total assignment. At most one per teacher.
type HomeroomReduction struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

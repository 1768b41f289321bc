package models

import "time"

// ClassKind selects the capacity policy applied when allocating teaching loads.
type ClassKind string

const (
	// ClassKindOrdinary caps the summed completed lessons per subject at the
	// declared lesson count, clamping oversized requests to the remainder.
	ClassKindOrdinary ClassKind = "ORDINARY"
	// ClassKindSpecialized caps the number of distinct teachers per subject instead.
	ClassKindSpecialized ClassKind = "SPECIALIZED"
)

// Class represents an academic class or section. Kind is immutable after creation.
type Class struct {
	ID                string    `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	Grade             string    `db:"grade" json:"grade"`
	Kind              ClassKind `db:"kind" json:"kind"`
	HomeroomTeacherID *string   `db:"homeroom_teacher_id" json:"homeroom_teacher_id,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// ClassSubject declares how many periods a subject receives in a class for the term.
// MaxTeachers is only meaningful for specialized classes and must be set there.
type ClassSubject struct {
	ID          string    `db:"id" json:"id"`
	ClassID     string    `db:"class_id" json:"class_id"`
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	LessonCount int       `db:"lesson_count" json:"lesson_count"`
	MaxTeachers *int      `db:"max_teachers" json:"max_teachers,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ClassSubjectDetail enriches the declaration with resolved names and the class kind.
type ClassSubjectDetail struct {
	ClassSubject
	ClassName    string    `db:"class_name" json:"class_name"`
	ClassKind    ClassKind `db:"class_kind" json:"class_kind"`
	SubjectName  string    `db:"subject_name" json:"subject_name"`
	DepartmentID string    `db:"department_id" json:"department_id"`
}

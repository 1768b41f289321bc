package models

import "time"

// TeachingAssignment records a teacher's weekly load for a subject in a class. At most
// one row exists per (teacher, class, subject) triple; repeated allocations replace it.
// CompletedLessons is the validated lessons-per-week × weeks product, clamped by the
// class capacity policy.
type TeachingAssignment struct {
	ID               string    `db:"id" json:"id"`
	TeacherID        string    `db:"teacher_id" json:"teacher_id"`
	ClassID          string    `db:"class_id" json:"class_id"`
	SubjectID        string    `db:"subject_id" json:"subject_id"`
	LessonsPerWeek   int       `db:"lessons_per_week" json:"lessons_per_week"`
	NumberOfWeeks    int       `db:"number_of_weeks" json:"number_of_weeks"`
	CompletedLessons int       `db:"completed_lessons" json:"completed_lessons"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// TeachingAssignmentDetail enriches an assignment with resolved reference data used by
// audit snapshots and workload responses.
type TeachingAssignmentDetail struct {
	TeachingAssignment
	TeacherName  string `db:"teacher_name" json:"teacher_name"`
	ClassName    string `db:"class_name" json:"class_name"`
	SubjectName  string `db:"subject_name" json:"subject_name"`
	DepartmentID string `db:"department_id" json:"department_id"`
}

// RemainingCapacity reports how much of a class-subject declaration is still open.
type RemainingCapacity struct {
	ClassID          string    `json:"class_id"`
	SubjectID        string    `json:"subject_id"`
	ClassKind        ClassKind `json:"class_kind"`
	LessonCount      int       `json:"lesson_count"`
	AllocatedLessons int       `json:"allocated_lessons"`
	RemainingLessons int       `json:"remaining_lessons"`
	AssignedTeachers int       `json:"assigned_teachers"`
	MaxTeachers      *int      `json:"max_teachers,omitempty"`
}

// TeacherWorkload aggregates a teacher's assignments for read-side consumers.
type TeacherWorkload struct {
	TeacherID       string                     `json:"teacher_id"`
	TeacherName     string                     `json:"teacher_name"`
	DepartmentID    string                     `json:"department_id"`
	Assignments     []TeachingAssignmentDetail `json:"assignments"`
	LessonTotal     int                        `json:"lesson_total"`
	HomeroomCredit  int                        `json:"homeroom_credit"`
	TotalAssignment int                        `json:"total_assignment"`
	GeneratedAt     time.Time                  `json:"generated_at"`
}

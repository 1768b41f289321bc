package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/teaching-load-api/internal/models"
)

// AssignmentRepository persists teaching assignments. Mutating methods accept an
// optional sqlx.ExtContext so they can participate in the coordinator's transaction.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const assignmentDetailColumns = `
SELECT ta.id, ta.teacher_id, ta.class_id, ta.subject_id,
       ta.lessons_per_week, ta.number_of_weeks, ta.completed_lessons,
       ta.created_at, ta.updated_at,
       tr.full_name AS teacher_name, c.name AS class_name,
       s.name AS subject_name, s.department_id
FROM teaching_assignments ta
JOIN teachers tr ON tr.id = ta.teacher_id
JOIN classes c ON c.id = ta.class_id
JOIN subjects s ON s.id = ta.subject_id`

// FindByID loads one assignment with resolved reference names.
func (r *AssignmentRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.TeachingAssignmentDetail, error) {
	query := assignmentDetailColumns + ` WHERE ta.id = $1`
	var detail models.TeachingAssignmentDetail
	if err := sqlx.GetContext(ctx, r.exec(exec), &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListByClassSubject returns every assignment for the class-subject pair.
func (r *AssignmentRepository) ListByClassSubject(ctx context.Context, exec sqlx.ExtContext, classID, subjectID string) ([]models.TeachingAssignment, error) {
	const query = `
SELECT id, teacher_id, class_id, subject_id, lessons_per_week, number_of_weeks,
       completed_lessons, created_at, updated_at
FROM teaching_assignments
WHERE class_id = $1 AND subject_id = $2
ORDER BY created_at ASC`
	var assignments []models.TeachingAssignment
	if err := sqlx.SelectContext(ctx, r.exec(exec), &assignments, query, classID, subjectID); err != nil {
		return nil, fmt.Errorf("list assignments by class subject: %w", err)
	}
	return assignments, nil
}

// ListDetailsByTeacher returns a teacher's assignments with resolved names.
func (r *AssignmentRepository) ListDetailsByTeacher(ctx context.Context, teacherID string) ([]models.TeachingAssignmentDetail, error) {
	query := assignmentDetailColumns + `
WHERE ta.teacher_id = $1
ORDER BY c.name ASC, s.name ASC`
	var assignments []models.TeachingAssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, query, teacherID); err != nil {
		return nil, fmt.Errorf("list assignments by teacher: %w", err)
	}
	return assignments, nil
}

// Upsert creates the assignment for its triple or replaces the stored load in place.
func (r *AssignmentRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, assignment *models.TeachingAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now
	const query = `
INSERT INTO teaching_assignments
	(id, teacher_id, class_id, subject_id, lessons_per_week, number_of_weeks, completed_lessons, created_at, updated_at)
VALUES
	(:id, :teacher_id, :class_id, :subject_id, :lessons_per_week, :number_of_weeks, :completed_lessons, :created_at, :updated_at)
ON CONFLICT (teacher_id, class_id, subject_id) DO UPDATE SET
	lessons_per_week = EXCLUDED.lessons_per_week,
	number_of_weeks = EXCLUDED.number_of_weeks,
	completed_lessons = EXCLUDED.completed_lessons,
	updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, assignment); err != nil {
		return fmt.Errorf("upsert teaching assignment: %w", err)
	}
	return nil
}

// Delete removes an assignment row.
func (r *AssignmentRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `DELETE FROM teaching_assignments WHERE id = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete teaching assignment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted assignment rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

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

// TeacherRepository reads teacher records and owns the homeroom reduction rows.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs the repository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

func (r *TeacherRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID loads a teacher.
func (r *TeacherRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Teacher, error) {
	const query = `
SELECT id, nip, email, full_name, department_id, active, total_assignment, created_at, updated_at
FROM teachers WHERE id = $1`
	var teacher models.Teacher
	if err := sqlx.GetContext(ctx, r.exec(exec), &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// HasHomeroomReduction reports whether the teacher holds a homeroom reduction record.
func (r *TeacherRepository) HasHomeroomReduction(ctx context.Context, exec sqlx.ExtContext, teacherID string) (bool, error) {
	const query = `SELECT 1 FROM homeroom_reductions WHERE teacher_id = $1 LIMIT 1`
	var exists int
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, teacherID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check homeroom reduction: %w", err)
	}
	return true, nil
}

// CreateHomeroomReduction inserts the reduction record for a teacher.
func (r *TeacherRepository) CreateHomeroomReduction(ctx context.Context, exec sqlx.ExtContext, reduction *models.HomeroomReduction) error {
	if reduction.ID == "" {
		reduction.ID = uuid.NewString()
	}
	if reduction.CreatedAt.IsZero() {
		reduction.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO homeroom_reductions (id, teacher_id, created_at) VALUES (:id, :teacher_id, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, reduction); err != nil {
		return fmt.Errorf("create homeroom reduction: %w", err)
	}
	return nil
}

// DeleteHomeroomReduction removes the reduction record for a teacher.
func (r *TeacherRepository) DeleteHomeroomReduction(ctx context.Context, exec sqlx.ExtContext, teacherID string) error {
	const query = `DELETE FROM homeroom_reductions WHERE teacher_id = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, teacherID)
	if err != nil {
		return fmt.Errorf("delete homeroom reduction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted homeroom reduction rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

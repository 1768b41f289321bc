package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// CounterRepository owns the denormalized load counters on teachers and departments.
// Every change is an atomic in-database increment, never a read-modify-write, so
// concurrent allocations touching the same teacher or department cannot lose updates.
type CounterRepository struct {
	db *sqlx.DB
}

// NewCounterRepository constructs the repository.
func NewCounterRepository(db *sqlx.DB) *CounterRepository {
	return &CounterRepository{db: db}
}

func (r *CounterRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *CounterRepository) applyDelta(ctx context.Context, exec sqlx.ExtContext, query, id string, delta int) error {
	result, err := r.exec(exec).ExecContext(ctx, query, delta, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("apply counter delta: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("counter delta rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ApplyTeacherDelta adjusts a teacher's total assignment by delta lessons.
func (r *CounterRepository) ApplyTeacherDelta(ctx context.Context, exec sqlx.ExtContext, teacherID string, delta int) error {
	if delta == 0 {
		return nil
	}
	const query = `UPDATE teachers SET total_assignment = total_assignment + $1, updated_at = $2 WHERE id = $3`
	return r.applyDelta(ctx, exec, query, teacherID, delta)
}

// ApplyDepartmentLessonDelta adjusts a department's declared teaching lessons.
func (r *CounterRepository) ApplyDepartmentLessonDelta(ctx context.Context, exec sqlx.ExtContext, departmentID string, delta int) error {
	if delta == 0 {
		return nil
	}
	const query = `UPDATE departments SET declared_teaching_lessons = declared_teaching_lessons + $1, updated_at = $2 WHERE id = $3`
	return r.applyDelta(ctx, exec, query, departmentID, delta)
}

// ApplyDepartmentTimeDelta adjusts a department's total assignment time, the sum of
// lesson counts declared across classes for the department's subjects.
func (r *CounterRepository) ApplyDepartmentTimeDelta(ctx context.Context, exec sqlx.ExtContext, departmentID string, delta int) error {
	if delta == 0 {
		return nil
	}
	const query = `UPDATE departments SET total_assignment_time = total_assignment_time + $1, updated_at = $2 WHERE id = $3`
	return r.applyDelta(ctx, exec, query, departmentID, delta)
}

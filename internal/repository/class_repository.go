package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/teaching-load-api/internal/models"
)

// ClassRepository reads classes and owns the class-subject declarations.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

func (r *ClassRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID loads a class.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, name, grade, kind, homeroom_teacher_id, created_at, updated_at FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindDeclaration loads the class-subject declaration with resolved names and kind.
func (r *ClassRepository) FindDeclaration(ctx context.Context, exec sqlx.ExtContext, classID, subjectID string) (*models.ClassSubjectDetail, error) {
	const query = `
SELECT cs.id, cs.class_id, cs.subject_id, cs.lesson_count, cs.max_teachers,
       cs.created_at, cs.updated_at,
       c.name AS class_name, c.kind AS class_kind,
       s.name AS subject_name, s.department_id
FROM class_subjects cs
JOIN classes c ON c.id = cs.class_id
JOIN subjects s ON s.id = cs.subject_id
WHERE cs.class_id = $1 AND cs.subject_id = $2`
	var detail models.ClassSubjectDetail
	if err := sqlx.GetContext(ctx, r.exec(exec), &detail, query, classID, subjectID); err != nil {
		return nil, err
	}
	return &detail, nil
}

// LockDeclaration takes a row lock on the declaration, serializing concurrent
// allocations for the same class-subject pair for the lifetime of the transaction.
func (r *ClassRepository) LockDeclaration(ctx context.Context, exec sqlx.ExtContext, classID, subjectID string) (*models.ClassSubject, error) {
	const query = `
SELECT id, class_id, subject_id, lesson_count, max_teachers, created_at, updated_at
FROM class_subjects
WHERE class_id = $1 AND subject_id = $2
FOR UPDATE`
	var declaration models.ClassSubject
	if err := sqlx.GetContext(ctx, r.exec(exec), &declaration, query, classID, subjectID); err != nil {
		return nil, err
	}
	return &declaration, nil
}

// UpdateLessonCount rewrites the declared lesson count for a declaration.
func (r *ClassRepository) UpdateLessonCount(ctx context.Context, exec sqlx.ExtContext, id string, lessonCount int) error {
	const query = `UPDATE class_subjects SET lesson_count = $1, updated_at = $2 WHERE id = $3`
	result, err := r.exec(exec).ExecContext(ctx, query, lessonCount, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update declaration lesson count: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("declaration lesson count rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/teaching-load-api/internal/models"
	appErrors "github.com/noah-isme/teaching-load-api/pkg/errors"
)

type txBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type assignmentStore interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.TeachingAssignmentDetail, error)
	ListByClassSubject(ctx context.Context, exec sqlx.ExtContext, classID, subjectID string) ([]models.TeachingAssignment, error)
	Upsert(ctx context.Context, exec sqlx.ExtContext, assignment *models.TeachingAssignment) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type declarationStore interface {
	FindDeclaration(ctx context.Context, exec sqlx.ExtContext, classID, subjectID string) (*models.ClassSubjectDetail, error)
	LockDeclaration(ctx context.Context, exec sqlx.ExtContext, classID, subjectID string) (*models.ClassSubject, error)
	UpdateLessonCount(ctx context.Context, exec sqlx.ExtContext, id string, lessonCount int) error
}

type teacherStore interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Teacher, error)
	HasHomeroomReduction(ctx context.Context, exec sqlx.ExtContext, teacherID string) (bool, error)
	CreateHomeroomReduction(ctx context.Context, exec sqlx.ExtContext, reduction *models.HomeroomReduction) error
	DeleteHomeroomReduction(ctx context.Context, exec sqlx.ExtContext, teacherID string) error
}

type counterStore interface {
	ApplyTeacherDelta(ctx context.Context, exec sqlx.ExtContext, teacherID string, delta int) error
	ApplyDepartmentLessonDelta(ctx context.Context, exec sqlx.ExtContext, departmentID string, delta int) error
	ApplyDepartmentTimeDelta(ctx context.Context, exec sqlx.ExtContext, departmentID string, delta int) error
}

type auditStore interface {
	Append(ctx context.Context, exec sqlx.ExtContext, entry *models.AuditLog) error
}

type cacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// Actor identifies who performs a mutating call, for the audit trail only.
type Actor struct {
	ID        string
	IP        string
	UserAgent string
}

// AllocateRequest proposes one teaching load for a teacher on a class subject.
type AllocateRequest struct {
	TeacherID      string `json:"teacher_id" validate:"required"`
	ClassID        string `json:"class_id" validate:"required"`
	SubjectID      string `json:"subject_id" validate:"required"`
	LessonsPerWeek int    `json:"lessons_per_week"`
	NumberOfWeeks  int    `json:"number_of_weeks"`
}

// EditRequest rewrites the weekly load of one existing assignment.
type EditRequest struct {
	AssignmentID   string `json:"assignment_id" validate:"required"`
	LessonsPerWeek int    `json:"lessons_per_week"`
	NumberOfWeeks  int    `json:"number_of_weeks"`
}

// AllocationConfig tunes transaction behaviour of the coordinator.
type AllocationConfig struct {
	TxTimeout  time.Duration
	MaxRetries int
	// HomeroomCredit is the fixed lesson credit granted by a homeroom reduction.
	HomeroomCredit int
}

// AllocationService coordinates allocation, edit and delete of teaching loads. Every
// operation runs as one transaction: assignment writes, counter deltas and audit
// appends commit together or not at all. Concurrent operations on the same class
// subject serialize on a row lock of the declaration.
type AllocationService struct {
	db           txBeginner
	assignments  assignmentStore
	declarations declarationStore
	teachers     teacherStore
	counters     counterStore
	audit        auditStore
	cache        cacheInvalidator
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	config       AllocationConfig
}

// NewAllocationService creates the coordinator.
func NewAllocationService(
	db txBeginner,
	assignments assignmentStore,
	declarations declarationStore,
	teachers teacherStore,
	counters counterStore,
	audit auditStore,
	cache cacheInvalidator,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	config AllocationConfig,
) *AllocationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.TxTimeout <= 0 {
		config.TxTimeout = 10 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.HomeroomCredit <= 0 {
		config.HomeroomCredit = 36
	}
	return &AllocationService{
		db:           db,
		assignments:  assignments,
		declarations: declarations,
		teachers:     teachers,
		counters:     counters,
		audit:        audit,
		cache:        cache,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		config:       config,
	}
}

// Allocate applies a batch of allocation requests. Requests are grouped by class and
// subject; inside a group each request validates against capacity already consumed by
// the preceding ones. Any failure aborts the entire batch.
func (s *AllocationService) Allocate(ctx context.Context, actor Actor, requests []AllocateRequest) ([]models.TeachingAssignmentDetail, error) {
	if len(requests) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no allocation requests provided")
	}
	for _, req := range requests {
		if err := s.validator.Struct(req); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid allocation payload")
		}
	}

	seen := make(map[string]struct{}, len(requests))
	for _, req := range requests {
		key := req.TeacherID + "|" + req.ClassID + "|" + req.SubjectID
		if _, dup := seen[key]; dup {
			return nil, appErrors.ErrDuplicateInGroup
		}
		seen[key] = struct{}{}
	}

	groups, order := groupRequests(requests)

	var applied []appliedAllocation
	err := s.runInTx(ctx, func(txCtx context.Context, tx *sqlx.Tx) error {
		applied = applied[:0]
		for _, key := range order {
			group, err := s.allocateGroup(txCtx, tx, actor, groups[key])
			if err != nil {
				return err
			}
			applied = append(applied, group...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAllocations(ctx, applied, requests)
	results := make([]models.TeachingAssignmentDetail, len(applied))
	for i := range applied {
		results[i] = applied[i].detail
	}
	return results, nil
}

// appliedAllocation pairs a stored assignment with the audit action that produced it.
type appliedAllocation struct {
	detail models.TeachingAssignmentDetail
	action string
}

func (s *AllocationService) allocateGroup(ctx context.Context, tx *sqlx.Tx, actor Actor, group []AllocateRequest) ([]appliedAllocation, error) {
	classID, subjectID := group[0].ClassID, group[0].SubjectID

	declaration, detail, err := s.lockDeclaration(ctx, tx, classID, subjectID)
	if err != nil {
		return nil, err
	}

	working, err := s.assignments.ListByClassSubject(ctx, tx, classID, subjectID)
	if err != nil {
		return nil, s.internal(err, "failed to load existing assignments")
	}

	applied := make([]appliedAllocation, 0, len(group))
	for _, req := range group {
		teacher, err := s.loadActiveTeacher(ctx, tx, req.TeacherID)
		if err != nil {
			return nil, err
		}

		current, others := splitByTeacher(working, req.TeacherID)

		decision, err := EvaluateAllocation(*declaration, detail.ClassKind, others, current, req.LessonsPerWeek, req.NumberOfWeeks)
		if err != nil {
			s.countCapacityRejection(err)
			return nil, err
		}
		if decision.Skip {
			continue
		}

		assignment := models.TeachingAssignment{
			TeacherID:        req.TeacherID,
			ClassID:          classID,
			SubjectID:        subjectID,
			LessonsPerWeek:   req.LessonsPerWeek,
			NumberOfWeeks:    req.NumberOfWeeks,
			CompletedLessons: decision.CompletedLessons,
		}
		if current != nil {
			assignment.ID = current.ID
			assignment.CreatedAt = current.CreatedAt
		}
		if err := s.assignments.Upsert(ctx, tx, &assignment); err != nil {
			return nil, s.internal(err, "failed to store assignment")
		}

		if err := s.applyCounterDeltas(ctx, tx, req.TeacherID, detail.DepartmentID, decision.Delta); err != nil {
			return nil, err
		}

		after := snapshotDetail(assignment, teacher.FullName, detail)
		action := models.AuditActionCreate
		var before interface{}
		if current != nil {
			action = models.AuditActionUpdate
			before = snapshotDetail(*current, teacher.FullName, detail)
		}
		if err := s.appendAudit(ctx, tx, actor, action, models.AuditEntityAssignment, assignment.ID, before, after); err != nil {
			return nil, err
		}

		working = replaceByTeacher(working, assignment)
		applied = append(applied, appliedAllocation{detail: after, action: action})
	}
	return applied, nil
}

// Edit rewrites one assignment's weekly load, re-validating capacity while excluding
// the assignment itself. A raw load of zero deletes the assignment instead.
func (s *AllocationService) Edit(ctx context.Context, actor Actor, req EditRequest) (*models.TeachingAssignmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid edit payload")
	}

	var result *models.TeachingAssignmentDetail
	err := s.runInTx(ctx, func(txCtx context.Context, tx *sqlx.Tx) error {
		var err error
		result, err = s.editLocked(txCtx, tx, actor, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCaches(ctx)
	s.countMutation(models.AuditActionUpdate)
	return result, nil
}

// Delete removes one assignment, reversing its lessons on both counters.
func (s *AllocationService) Delete(ctx context.Context, actor Actor, assignmentID string) error {
	err := s.runInTx(ctx, func(txCtx context.Context, tx *sqlx.Tx) error {
		return s.deleteLocked(txCtx, tx, actor, assignmentID)
	})
	if err != nil {
		return err
	}

	s.invalidateCaches(ctx)
	s.countMutation(models.AuditActionDelete)
	return nil
}

// BatchEdit applies every edit in one transaction; one failure aborts all of them.
func (s *AllocationService) BatchEdit(ctx context.Context, actor Actor, requests []EditRequest) ([]models.TeachingAssignmentDetail, error) {
	if len(requests) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no edit requests provided")
	}
	for _, req := range requests {
		if err := s.validator.Struct(req); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid edit payload")
		}
	}

	var results []models.TeachingAssignmentDetail
	err := s.runInTx(ctx, func(txCtx context.Context, tx *sqlx.Tx) error {
		results = results[:0]
		for _, req := range requests {
			detail, err := s.editLocked(txCtx, tx, actor, req)
			if err != nil {
				return err
			}
			if detail != nil {
				results = append(results, *detail)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCaches(ctx)
	s.countMutation(models.AuditActionUpdate)
	return results, nil
}

// BatchDelete removes every listed assignment in one transaction.
func (s *AllocationService) BatchDelete(ctx context.Context, actor Actor, assignmentIDs []string) error {
	if len(assignmentIDs) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "no assignment ids provided")
	}

	err := s.runInTx(ctx, func(txCtx context.Context, tx *sqlx.Tx) error {
		for _, id := range assignmentIDs {
			if err := s.deleteLocked(txCtx, tx, actor, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateCaches(ctx)
	s.countMutation(models.AuditActionDelete)
	return nil
}

// RemainingCapacity reports the open capacity for a class subject declaration.
func (s *AllocationService) RemainingCapacity(ctx context.Context, classID, subjectID string) (*models.RemainingCapacity, error) {
	declaration, err := s.declarations.FindDeclaration(ctx, nil, classID, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class subject declaration not found")
		}
		return nil, s.internal(err, "failed to load declaration")
	}
	assignments, err := s.assignments.ListByClassSubject(ctx, nil, classID, subjectID)
	if err != nil {
		return nil, s.internal(err, "failed to load assignments")
	}
	capacity := ComputeRemainingCapacity(*declaration, assignments)
	return &capacity, nil
}

// UpdateDeclaredLessons rewrites a declaration's lesson count, keeping the department
// assignment-time counter in step. The count may never drop below the lessons already
// allocated to the class-subject pair.
func (s *AllocationService) UpdateDeclaredLessons(ctx context.Context, actor Actor, classID, subjectID string, lessonCount int) (*models.ClassSubjectDetail, error) {
	if lessonCount < 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidQuantity, "lesson count must not be negative")
	}

	var result *models.ClassSubjectDetail
	err := s.runInTx(ctx, func(txCtx context.Context, tx *sqlx.Tx) error {
		declaration, detail, err := s.lockDeclaration(txCtx, tx, classID, subjectID)
		if err != nil {
			return err
		}

		assignments, err := s.assignments.ListByClassSubject(txCtx, tx, classID, subjectID)
		if err != nil {
			return s.internal(err, "failed to load existing assignments")
		}
		if allocated := sumCompleted(assignments); lessonCount < allocated {
			return appErrors.Clone(appErrors.ErrReferentialConflict, "declared lesson count is below the lessons already allocated")
		}

		if err := s.declarations.UpdateLessonCount(txCtx, tx, declaration.ID, lessonCount); err != nil {
			return s.internal(err, "failed to update declaration")
		}
		if err := s.counters.ApplyDepartmentTimeDelta(txCtx, tx, detail.DepartmentID, lessonCount-declaration.LessonCount); err != nil {
			return s.internal(err, "failed to update department counter")
		}

		updated := *detail
		updated.LessonCount = lessonCount
		if err := s.appendAudit(txCtx, tx, actor, models.AuditActionUpdate, models.AuditEntityClassSubject, declaration.ID, detail, updated); err != nil {
			return err
		}
		result = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCaches(ctx)
	return result, nil
}

// GrantHomeroomReduction marks the teacher as homeroom holder, applying the fixed
// lesson credit to the teacher's total assignment.
func (s *AllocationService) GrantHomeroomReduction(ctx context.Context, actor Actor, teacherID string) error {
	err := s.runInTx(ctx, func(txCtx context.Context, tx *sqlx.Tx) error {
		teacher, err := s.loadActiveTeacher(txCtx, tx, teacherID)
		if err != nil {
			return err
		}
		held, err := s.teachers.HasHomeroomReduction(txCtx, tx, teacherID)
		if err != nil {
			return s.internal(err, "failed to check homeroom reduction")
		}
		if held {
			return appErrors.Clone(appErrors.ErrConflict, "teacher already holds a homeroom reduction")
		}

		reduction := &models.HomeroomReduction{TeacherID: teacherID}
		if err := s.teachers.CreateHomeroomReduction(txCtx, tx, reduction); err != nil {
			return s.internal(err, "failed to create homeroom reduction")
		}
		if err := s.counters.ApplyTeacherDelta(txCtx, tx, teacherID, s.config.HomeroomCredit); err != nil {
			return s.internal(err, "failed to update teacher counter")
		}

		after := *teacher
		after.TotalAssignment += s.config.HomeroomCredit
		return s.appendAudit(txCtx, tx, actor, models.AuditActionUpdate, models.AuditEntityTeacher, teacherID, teacher, after)
	})
	if err != nil {
		return err
	}

	s.invalidateCaches(ctx)
	return nil
}

// RevokeHomeroomReduction removes the homeroom record and reverses the lesson credit.
func (s *AllocationService) RevokeHomeroomReduction(ctx context.Context, actor Actor, teacherID string) error {
	err := s.runInTx(ctx, func(txCtx context.Context, tx *sqlx.Tx) error {
		teacher, err := s.teachers.FindByID(txCtx, tx, teacherID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
			}
			return s.internal(err, "failed to load teacher")
		}
		if err := s.teachers.DeleteHomeroomReduction(txCtx, tx, teacherID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "teacher holds no homeroom reduction")
			}
			return s.internal(err, "failed to delete homeroom reduction")
		}
		if err := s.counters.ApplyTeacherDelta(txCtx, tx, teacherID, -s.config.HomeroomCredit); err != nil {
			return s.internal(err, "failed to update teacher counter")
		}

		after := *teacher
		after.TotalAssignment -= s.config.HomeroomCredit
		return s.appendAudit(txCtx, tx, actor, models.AuditActionUpdate, models.AuditEntityTeacher, teacherID, teacher, after)
	})
	if err != nil {
		return err
	}

	s.invalidateCaches(ctx)
	return nil
}

func (s *AllocationService) editLocked(ctx context.Context, tx *sqlx.Tx, actor Actor, req EditRequest) (*models.TeachingAssignmentDetail, error) {
	existing, err := s.assignments.FindByID(ctx, tx, req.AssignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, s.internal(err, "failed to load assignment")
	}

	declaration, detail, err := s.lockDeclaration(ctx, tx, existing.ClassID, existing.SubjectID)
	if err != nil {
		return nil, err
	}

	all, err := s.assignments.ListByClassSubject(ctx, tx, existing.ClassID, existing.SubjectID)
	if err != nil {
		return nil, s.internal(err, "failed to load existing assignments")
	}
	current, others := splitByID(all, existing.ID)
	if current == nil {
		current = &existing.TeachingAssignment
	}

	decision, err := EvaluateAllocation(*declaration, detail.ClassKind, others, current, req.LessonsPerWeek, req.NumberOfWeeks)
	if err != nil {
		s.countCapacityRejection(err)
		return nil, err
	}
	if decision.Skip {
		// Zero requested load removes the assignment rather than keeping an
		// empty record.
		if err := s.removeAssignment(ctx, tx, actor, existing, detail); err != nil {
			return nil, err
		}
		return nil, nil
	}

	updated := existing.TeachingAssignment
	updated.LessonsPerWeek = req.LessonsPerWeek
	updated.NumberOfWeeks = req.NumberOfWeeks
	updated.CompletedLessons = decision.CompletedLessons
	if err := s.assignments.Upsert(ctx, tx, &updated); err != nil {
		return nil, s.internal(err, "failed to store assignment")
	}

	if err := s.applyCounterDeltas(ctx, tx, existing.TeacherID, detail.DepartmentID, decision.Delta); err != nil {
		return nil, err
	}

	before := snapshotDetail(existing.TeachingAssignment, existing.TeacherName, detail)
	after := snapshotDetail(updated, existing.TeacherName, detail)
	if err := s.appendAudit(ctx, tx, actor, models.AuditActionUpdate, models.AuditEntityAssignment, updated.ID, &before, &after); err != nil {
		return nil, err
	}
	return &after, nil
}

func (s *AllocationService) deleteLocked(ctx context.Context, tx *sqlx.Tx, actor Actor, assignmentID string) error {
	existing, err := s.assignments.FindByID(ctx, tx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return s.internal(err, "failed to load assignment")
	}

	_, detail, err := s.lockDeclaration(ctx, tx, existing.ClassID, existing.SubjectID)
	if err != nil {
		return err
	}

	return s.removeAssignment(ctx, tx, actor, existing, detail)
}

func (s *AllocationService) removeAssignment(ctx context.Context, tx *sqlx.Tx, actor Actor, existing *models.TeachingAssignmentDetail, detail *models.ClassSubjectDetail) error {
	if err := s.assignments.Delete(ctx, tx, existing.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return s.internal(err, "failed to delete assignment")
	}

	if err := s.applyCounterDeltas(ctx, tx, existing.TeacherID, detail.DepartmentID, -existing.CompletedLessons); err != nil {
		return err
	}

	before := snapshotDetail(existing.TeachingAssignment, existing.TeacherName, detail)
	return s.appendAudit(ctx, tx, actor, models.AuditActionDelete, models.AuditEntityAssignment, existing.ID, &before, nil)
}

func (s *AllocationService) lockDeclaration(ctx context.Context, tx *sqlx.Tx, classID, subjectID string) (*models.ClassSubject, *models.ClassSubjectDetail, error) {
	declaration, err := s.declarations.LockDeclaration(ctx, tx, classID, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "class subject declaration not found")
		}
		return nil, nil, s.internal(err, "failed to lock declaration")
	}
	detail, err := s.declarations.FindDeclaration(ctx, tx, classID, subjectID)
	if err != nil {
		return nil, nil, s.internal(err, "failed to load declaration")
	}
	return declaration, detail, nil
}

func (s *AllocationService) loadActiveTeacher(ctx context.Context, tx *sqlx.Tx, teacherID string) (*models.Teacher, error) {
	teacher, err := s.teachers.FindByID(ctx, tx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, s.internal(err, "failed to load teacher")
	}
	if !teacher.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "teacher inactive")
	}
	return teacher, nil
}

func (s *AllocationService) applyCounterDeltas(ctx context.Context, tx *sqlx.Tx, teacherID, departmentID string, delta int) error {
	if err := s.counters.ApplyTeacherDelta(ctx, tx, teacherID, delta); err != nil {
		return s.internal(err, "failed to update teacher counter")
	}
	if err := s.counters.ApplyDepartmentLessonDelta(ctx, tx, departmentID, delta); err != nil {
		return s.internal(err, "failed to update department counter")
	}
	return nil
}

func (s *AllocationService) appendAudit(ctx context.Context, tx *sqlx.Tx, actor Actor, action, entityType, entityID string, before, after interface{}) error {
	entry := &models.AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		IPAddress:  actor.IP,
		UserAgent:  actor.UserAgent,
	}
	if actor.ID != "" {
		actorID := actor.ID
		entry.ActorID = &actorID
	}
	if before != nil {
		raw, err := json.Marshal(before)
		if err != nil {
			return s.internal(err, "failed to snapshot prior state")
		}
		entry.DataBefore = raw
	}
	if after != nil {
		raw, err := json.Marshal(after)
		if err != nil {
			return s.internal(err, "failed to snapshot new state")
		}
		entry.DataAfter = raw
	}
	if err := s.audit.Append(ctx, tx, entry); err != nil {
		return s.internal(err, "failed to append audit entry")
	}
	return nil
}

func (s *AllocationService) runInTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	attempts := s.config.MaxRetries + 1
	for attempt := 0; ; attempt++ {
		err := s.attemptTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !isSerializationFailure(err) {
			return err
		}
		if attempt+1 >= attempts {
			return appErrors.Wrap(err, appErrors.ErrConcurrentModification.Code, appErrors.ErrConcurrentModification.Status, appErrors.ErrConcurrentModification.Message)
		}
		if s.metrics != nil {
			s.metrics.CountTxRetry()
		}
		s.logger.Warn("allocation transaction conflicted, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return appErrors.Wrap(ctx.Err(), appErrors.ErrTransactionAborted.Code, appErrors.ErrTransactionAborted.Status, "transaction cancelled")
		case <-time.After(time.Duration(attempt+1) * 25 * time.Millisecond):
		}
	}
}

func (s *AllocationService) attemptTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	txCtx, cancel := context.WithTimeout(ctx, s.config.TxTimeout)
	defer cancel()

	tx, err := s.db.BeginTxx(txCtx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrTransactionAborted.Code, appErrors.ErrTransactionAborted.Status, "failed to begin transaction")
	}
	if err := fn(txCtx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		if isSerializationFailure(err) {
			return err
		}
		return appErrors.Wrap(err, appErrors.ErrTransactionAborted.Code, appErrors.ErrTransactionAborted.Status, "failed to commit transaction")
	}
	return nil
}

func (s *AllocationService) internal(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *AllocationService) invalidateCaches(ctx context.Context) {
	if s.cache == nil {
		return
	}
	for _, pattern := range []string{"workload:*", "capacity:*"} {
		if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
			s.logger.Warn("cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}

func (s *AllocationService) recordAllocations(ctx context.Context, applied []appliedAllocation, requests []AllocateRequest) {
	s.invalidateCaches(ctx)
	if s.metrics != nil {
		counts := make(map[string]int, 2)
		for _, a := range applied {
			counts[a.action]++
		}
		for action, n := range counts {
			s.metrics.CountAllocations(action, n)
		}
	}
	if len(applied) < len(requests) {
		s.logger.Info("allocation requests skipped",
			zap.Int("requested", len(requests)),
			zap.Int("applied", len(applied)),
		)
	}
}

func (s *AllocationService) countMutation(action string) {
	if s.metrics != nil {
		s.metrics.CountAllocations(action, 1)
	}
}

func (s *AllocationService) countCapacityRejection(err error) {
	if s.metrics != nil && errors.Is(err, appErrors.ErrNoCapacityRemaining) {
		s.metrics.CountCapacityRejection()
	}
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// serialization_failure and deadlock_detected
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

func groupRequests(requests []AllocateRequest) (map[string][]AllocateRequest, []string) {
	groups := make(map[string][]AllocateRequest)
	var order []string
	for _, req := range requests {
		key := req.ClassID + "|" + req.SubjectID
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], req)
	}
	return groups, order
}

func splitByTeacher(assignments []models.TeachingAssignment, teacherID string) (*models.TeachingAssignment, []models.TeachingAssignment) {
	others := make([]models.TeachingAssignment, 0, len(assignments))
	var current *models.TeachingAssignment
	for i := range assignments {
		if assignments[i].TeacherID == teacherID {
			cp := assignments[i]
			current = &cp
			continue
		}
		others = append(others, assignments[i])
	}
	return current, others
}

func splitByID(assignments []models.TeachingAssignment, id string) (*models.TeachingAssignment, []models.TeachingAssignment) {
	others := make([]models.TeachingAssignment, 0, len(assignments))
	var current *models.TeachingAssignment
	for i := range assignments {
		if assignments[i].ID == id {
			cp := assignments[i]
			current = &cp
			continue
		}
		others = append(others, assignments[i])
	}
	return current, others
}

func replaceByTeacher(assignments []models.TeachingAssignment, updated models.TeachingAssignment) []models.TeachingAssignment {
	for i := range assignments {
		if assignments[i].TeacherID == updated.TeacherID {
			assignments[i] = updated
			return assignments
		}
	}
	return append(assignments, updated)
}

func snapshotDetail(assignment models.TeachingAssignment, teacherName string, declaration *models.ClassSubjectDetail) models.TeachingAssignmentDetail {
	return models.TeachingAssignmentDetail{
		TeachingAssignment: assignment,
		TeacherName:        teacherName,
		ClassName:          declaration.ClassName,
		SubjectName:        declaration.SubjectName,
		DepartmentID:       declaration.DepartmentID,
	}
}

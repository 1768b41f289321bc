package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teaching-load-api/internal/models"
	appErrors "github.com/noah-isme/teaching-load-api/pkg/errors"
)

type assignmentStoreStub struct {
	details   map[string]*models.TeachingAssignmentDetail
	existing  []models.TeachingAssignment
	upserts   []models.TeachingAssignment
	deletes   []string
	upsertErr error
}

func (s *assignmentStoreStub) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.TeachingAssignmentDetail, error) {
	if detail, ok := s.details[id]; ok {
		return detail, nil
	}
	return nil, sql.ErrNoRows
}

func (s *assignmentStoreStub) ListByClassSubject(ctx context.Context, exec sqlx.ExtContext, classID, subjectID string) ([]models.TeachingAssignment, error) {
	out := make([]models.TeachingAssignment, 0, len(s.existing)+len(s.upserts))
	out = append(out, s.existing...)
	for _, up := range s.upserts {
		if up.ClassID == classID && up.SubjectID == subjectID {
			out = append(out, up)
		}
	}
	return out, nil
}

func (s *assignmentStoreStub) Upsert(ctx context.Context, exec sqlx.ExtContext, assignment *models.TeachingAssignment) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	if assignment.ID == "" {
		assignment.ID = "assign-new"
	}
	s.upserts = append(s.upserts, *assignment)
	return nil
}

func (s *assignmentStoreStub) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, ok := s.details[id]; !ok {
		return sql.ErrNoRows
	}
	s.deletes = append(s.deletes, id)
	return nil
}

type declarationStoreStub struct {
	declaration  *models.ClassSubject
	detail       *models.ClassSubjectDetail
	lockErr      error
	lessonCounts []int
}

func (s *declarationStoreStub) FindDeclaration(ctx context.Context, exec sqlx.ExtContext, classID, subjectID string) (*models.ClassSubjectDetail, error) {
	if s.detail == nil {
		return nil, sql.ErrNoRows
	}
	return s.detail, nil
}

func (s *declarationStoreStub) LockDeclaration(ctx context.Context, exec sqlx.ExtContext, classID, subjectID string) (*models.ClassSubject, error) {
	if s.lockErr != nil {
		return nil, s.lockErr
	}
	if s.declaration == nil {
		return nil, sql.ErrNoRows
	}
	return s.declaration, nil
}

func (s *declarationStoreStub) UpdateLessonCount(ctx context.Context, exec sqlx.ExtContext, id string, lessonCount int) error {
	s.lessonCounts = append(s.lessonCounts, lessonCount)
	return nil
}

type teacherStoreStub struct {
	teachers map[string]*models.Teacher
	homeroom map[string]bool
	granted  []string
	revoked  []string
}

func (s *teacherStoreStub) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Teacher, error) {
	if teacher, ok := s.teachers[id]; ok {
		return teacher, nil
	}
	return nil, sql.ErrNoRows
}

func (s *teacherStoreStub) HasHomeroomReduction(ctx context.Context, exec sqlx.ExtContext, teacherID string) (bool, error) {
	return s.homeroom[teacherID], nil
}

func (s *teacherStoreStub) CreateHomeroomReduction(ctx context.Context, exec sqlx.ExtContext, reduction *models.HomeroomReduction) error {
	s.granted = append(s.granted, reduction.TeacherID)
	return nil
}

func (s *teacherStoreStub) DeleteHomeroomReduction(ctx context.Context, exec sqlx.ExtContext, teacherID string) error {
	if !s.homeroom[teacherID] {
		return sql.ErrNoRows
	}
	s.revoked = append(s.revoked, teacherID)
	return nil
}

type counterStoreStub struct {
	teacherDeltas    map[string]int
	departmentLesson map[string]int
	departmentTime   map[string]int
	teacherErrs      []error
}

func newCounterStoreStub() *counterStoreStub {
	return &counterStoreStub{
		teacherDeltas:    map[string]int{},
		departmentLesson: map[string]int{},
		departmentTime:   map[string]int{},
	}
}

func (s *counterStoreStub) ApplyTeacherDelta(ctx context.Context, exec sqlx.ExtContext, teacherID string, delta int) error {
	if len(s.teacherErrs) > 0 {
		err := s.teacherErrs[0]
		s.teacherErrs = s.teacherErrs[1:]
		if err != nil {
			return err
		}
	}
	s.teacherDeltas[teacherID] += delta
	return nil
}

func (s *counterStoreStub) ApplyDepartmentLessonDelta(ctx context.Context, exec sqlx.ExtContext, departmentID string, delta int) error {
	s.departmentLesson[departmentID] += delta
	return nil
}

func (s *counterStoreStub) ApplyDepartmentTimeDelta(ctx context.Context, exec sqlx.ExtContext, departmentID string, delta int) error {
	s.departmentTime[departmentID] += delta
	return nil
}

type auditStoreStub struct {
	entries []models.AuditLog
}

func (s *auditStoreStub) Append(ctx context.Context, exec sqlx.ExtContext, entry *models.AuditLog) error {
	s.entries = append(s.entries, *entry)
	return nil
}

type cacheStub struct {
	patterns []string
}

func (s *cacheStub) DeleteByPattern(ctx context.Context, pattern string) error {
	s.patterns = append(s.patterns, pattern)
	return nil
}

type allocationFixture struct {
	service     *AllocationService
	mock        sqlmock.Sqlmock
	assignments *assignmentStoreStub
	decls       *declarationStoreStub
	teachers    *teacherStoreStub
	counters    *counterStoreStub
	audit       *auditStoreStub
	cache       *cacheStub
	cleanup     func()
}

func newAllocationFixture(t *testing.T, cfg AllocationConfig) *allocationFixture {
	return newAllocationFixtureWithMetrics(t, cfg, nil)
}

func newAllocationFixtureWithMetrics(t *testing.T, cfg AllocationConfig, metrics *MetricsService) *allocationFixture {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")

	maxTeachers := 2
	f := &allocationFixture{
		mock: mock,
		assignments: &assignmentStoreStub{
			details: map[string]*models.TeachingAssignmentDetail{},
		},
		decls: &declarationStoreStub{
			declaration: &models.ClassSubject{
				ID:          "cs-1",
				ClassID:     "class-1",
				SubjectID:   "subject-1",
				LessonCount: 72,
				MaxTeachers: &maxTeachers,
			},
			detail: &models.ClassSubjectDetail{
				ClassSubject: models.ClassSubject{
					ID:          "cs-1",
					ClassID:     "class-1",
					SubjectID:   "subject-1",
					LessonCount: 72,
					MaxTeachers: &maxTeachers,
				},
				ClassName:    "10-A",
				ClassKind:    models.ClassKindOrdinary,
				SubjectName:  "Mathematics",
				DepartmentID: "dept-1",
			},
		},
		teachers: &teacherStoreStub{
			teachers: map[string]*models.Teacher{
				"t-1": {ID: "t-1", FullName: "Teacher One", DepartmentID: "dept-1", Active: true},
				"t-2": {ID: "t-2", FullName: "Teacher Two", DepartmentID: "dept-1", Active: true},
				"t-3": {ID: "t-3", FullName: "Teacher Three", DepartmentID: "dept-1", Active: false},
			},
			homeroom: map[string]bool{},
		},
		counters: newCounterStoreStub(),
		audit:    &auditStoreStub{},
		cache:    &cacheStub{},
		cleanup:  func() { db.Close() },
	}
	f.service = NewAllocationService(
		sqlxDB,
		f.assignments,
		f.decls,
		f.teachers,
		f.counters,
		f.audit,
		f.cache,
		metrics,
		nil,
		nil,
		cfg,
	)
	return f
}

func testActor() Actor {
	return Actor{ID: "admin-1", IP: "10.0.0.1", UserAgent: "test-agent"}
}

func TestAllocateCreatesAssignment(t *testing.T) {
	f := newAllocationFixture(t, AllocationConfig{})
	defer f.cleanup()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	results, err := f.service.Allocate(context.Background(), testActor(), []AllocateRequest{
		{TeacherID: "t-1", ClassID: "class-1", SubjectID: "subject-1", LessonsPerWeek: 2, NumberOfWeeks: 18},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 36, results[0].CompletedLessons)
	assert.Equal(t, "Teacher One", results[0].TeacherName)

	require.Len(t, f.assignments.upserts, 1)
	assert.Equal(t, 36, f.counters.teacherDeltas["t-1"])
	assert.Equal(t, 36, f.counters.departmentLesson["dept-1"])

	require.Len(t, f.audit.entries, 1)
	entry := f.audit.entries[0]
	assert.Equal(t, models.AuditActionCreate, entry.Action)
	assert.Equal(t, models.AuditEntityAssignment, entry.EntityType)
	assert.Nil(t, entry.DataBefore)
	assert.NotNil(t, entry.DataAfter)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "admin-1", *entry.ActorID)
	assert.Equal(t, "10.0.0.1", entry.IPAddress)

	assert.Contains(t, f.cache.patterns, "workload:*")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAllocateGroupConsumesCapacityInOrder(t *testing.T) {
	f := newAllocationFixture(t, AllocationConfig{})
	defer f.cleanup()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	results, err := f.service.Allocate(context.Background(), testActor(), []AllocateRequest{
		{TeacherID: "t-1", ClassID: "class-1", SubjectID: "subject-1", LessonsPerWeek: 2, NumberOfWeeks: 18},
		{TeacherID: "t-2", ClassID: "class-1", SubjectID: "subject-1", LessonsPerWeek: 3, NumberOfWeeks: 18},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// second request wanted 54 but only 36 remained after the first
	assert.Equal(t, 36, results[0].CompletedLessons)
	assert.Equal(t, 36, results[1].CompletedLessons)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAllocateAgainForSameTripleUpdates(t *testing.T) {
	f := newAllocationFixture(t, AllocationConfig{})
	defer f.cleanup()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	first, err := f.service.Allocate(context.Background(), testActor(), []AllocateRequest{
		{TeacherID: "t-1", ClassID: "class-1", SubjectID: "subject-1", LessonsPerWeek: 2, NumberOfWeeks: 18},
	})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 36, first[0].CompletedLessons)

	second, err := f.service.Allocate(context.Background(), testActor(), []AllocateRequest{
		{TeacherID: "t-1", ClassID: "class-1", SubjectID: "subject-1", LessonsPerWeek: 1, NumberOfWeeks: 18},
	})
	require.NoError(t, err)
	require.Len(t, second, 1)

	// the existing record is replaced in place, not duplicated
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, 18, second[0].CompletedLessons)
	require.Len(t, f.assignments.upserts, 2)
	assert.Equal(t, first[0].ID, f.assignments.upserts[1].ID)

	// counters carry the reversing delta: +36 then -18
	assert.Equal(t, 18, f.counters.teacherDeltas["t-1"])
	assert.Equal(t, 18, f.counters.departmentLesson["dept-1"])

	require.Len(t, f.audit.entries, 2)
	assert.Equal(t, models.AuditActionCreate, f.audit.entries[0].Action)
	update := f.audit.entries[1]
	assert.Equal(t, models.AuditActionUpdate, update.Action)
	require.NotNil(t, update.DataBefore)

	var before models.TeachingAssignmentDetail
	require.NoError(t, json.Unmarshal(update.DataBefore, &before))
	assert.Equal(t, 36, before.CompletedLessons)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAllocateCountsMutationsByAction(t *testing.T) {
	metrics := NewMetricsService()
	f := newAllocationFixtureWithMetrics(t, AllocationConfig{}, metrics)
	defer f.cleanup()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	_, err := f.service.Allocate(context.Background(), testActor(), []AllocateRequest{
		{TeacherID: "t-1", ClassID: "class-1", SubjectID: "subject-1", LessonsPerWeek: 2, NumberOfWeeks: 18},
	})
	require.NoError(t, err)

	_, err = f.service.Allocate(context.Background(), testActor(), []AllocateRequest{
		{TeacherID: "t-1", ClassID: "class-1", SubjectID: "subject-1", LessonsPerWeek: 1, NumberOfWeeks: 18},
	})
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.allocationsTotal.WithLabelValues(models.AuditActionCreate)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.allocationsTotal.WithLabelValues(models.AuditActionUpdate)))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAllocateRejectsDuplicateTriple(t *testing.T) {
	f := newAllocationFixture(t, AllocationConfig{})
	defer f.cleanup()

	_, err := f.service.Allocate(context.Background(), testActor(), []AllocateRequest{
		{TeacherID: "t-1", ClassID: "class-1", SubjectID: "subject-1", LessonsPerWeek: 2, NumberOfWeeks: 18},
		{TeacherID: "t-1", ClassID: "class-1", SubjectID: "subject-1", LessonsPerWeek: 1, NumberOfWeeks: 18},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrDuplicateInGroup))
	// rejected before any transaction started
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAllocateSkipsZeroLoad(t *testing.T) {
	f := newAllocationFixture(t, AllocationConfig{})
	defer f.cleanup()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	results, err := f.service.Allocate(context.Background(), testActor(), []AllocateRequest{
		{TeacherID: "t-1", ClassID: "class-1", SubjectID: "subject-1", LessonsPerWeek: 0, NumberOfWeeks: 18},
	})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, f.assignments.upserts)
	assert.Empty(t, f.audit.entries)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAllocateRejectsInactiveTeacher(t *testing.T) {
	f := newAllocationFixture(t, AllocationConfig{})
	defer f.cleanup()

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.service.Allocate(context.Background(), testActor(), []AllocateRequest{
		{TeacherID: "t-3", ClassID: "class-1", SubjectID: "subject-1", LessonsPerWeek: 2, NumberOfWeeks: 18},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAllocateAbortsWholeBatchOnFailure(t *testing.T) {
	f := newAllocationFixture(t, AllocationConfig{})
	defer f.cleanup()

	// first teacher counter update succeeds, second fails
	f.counters.teacherErrs = []error{nil, errors.New("connection reset")}

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.service.Allocate(context.Background(), testActor(), []AllocateRequest{
		{TeacherID: "t-1", ClassID: "class-1", SubjectID: "subject-1", LessonsPerWeek: 2, NumberOfWeeks: 18},
		{TeacherID: "t-2", ClassID: "class-1", SubjectID: "subject-1", LessonsPerWeek: 1, NumberOfWeeks: 18},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAllocateRetriesSerializationFailure(t *testing.T) {
	f := newAllocationFixture(t, AllocationConfig{MaxRetries: 2})
	defer f.cleanup()

	f.counters.teacherErrs = []error{&pq.Error{Code: "40001"}}

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	results, err := f.service.Allocate(context.Background(), testActor(), []AllocateRequest{
		{TeacherID: "t-1", ClassID: "class-1", SubjectID: "subject-1", LessonsPerWeek: 2, NumberOfWeeks: 18},
	})
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAllocateConcurrentModificationAfterRetriesExhausted(t *testing.T) {
	f := newAllocationFixture(t, AllocationConfig{MaxRetries: 1})
	defer f.cleanup()

	f.counters.teacherErrs = []error{&pq.Error{Code: "40001"}, &pq.Error{Code: "40P01"}}

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.service.Allocate(context.Background(), testActor(), []AllocateRequest{
		{TeacherID: "t-1", ClassID: "class-1", SubjectID: "subject-1", LessonsPerWeek: 2, NumberOfWeeks: 18},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConcurrentModification))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func existingAssignmentDetail() *models.TeachingAssignmentDetail {
	return &models.TeachingAssignmentDetail{
		TeachingAssignment: models.TeachingAssignment{
			ID:               "assign-1",
			TeacherID:        "t-1",
			ClassID:          "class-1",
			SubjectID:        "subject-1",
			LessonsPerWeek:   2,
			NumberOfWeeks:    18,
			CompletedLessons: 36,
			CreatedAt:        time.Now().UTC(),
		},
		TeacherName:  "Teacher One",
		ClassName:    "10-A",
		SubjectName:  "Mathematics",
		DepartmentID: "dept-1",
	}
}

func TestEditRewritesLoad(t *testing.T) {
	f := newAllocationFixture(t, AllocationConfig{})
	defer f.cleanup()

	existing := existingAssignmentDetail()
	f.assignments.details["assign-1"] = existing
	f.assignments.existing = []models.TeachingAssignment{
		existing.TeachingAssignment,
		{ID: "assign-2", TeacherID: "t-2", ClassID: "class-1", SubjectID: "subject-1", CompletedLessons: 18},
	}

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.service.Edit(context.Background(), testActor(), EditRequest{
		AssignmentID:   "assign-1",
		LessonsPerWeek: 3,
		NumberOfWeeks:  18,
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 54, result.CompletedLessons)

	// delta over the previous 36 lessons
	assert.Equal(t, 18, f.counters.teacherDeltas["t-1"])
	assert.Equal(t, 18, f.counters.departmentLesson["dept-1"])

	require.Len(t, f.audit.entries, 1)
	entry := f.audit.entries[0]
	assert.Equal(t, models.AuditActionUpdate, entry.Action)
	assert.NotNil(t, entry.DataBefore)
	assert.NotNil(t, entry.DataAfter)

	var before models.TeachingAssignmentDetail
	require.NoError(t, json.Unmarshal(entry.DataBefore, &before))
	assert.Equal(t, 36, before.CompletedLessons)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestEditWithZeroLoadDeletes(t *testing.T) {
	f := newAllocationFixture(t, AllocationConfig{})
	defer f.cleanup()

	existing := existingAssignmentDetail()
	f.assignments.details["assign-1"] = existing
	f.assignments.existing = []models.TeachingAssignment{existing.TeachingAssignment}

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.service.Edit(context.Background(), testActor(), EditRequest{
		AssignmentID:   "assign-1",
		LessonsPerWeek: 0,
		NumberOfWeeks:  18,
	})
	require.NoError(t, err)
	assert.Nil(t, result)

	assert.Equal(t, []string{"assign-1"}, f.assignments.deletes)
	assert.Equal(t, -36, f.counters.teacherDeltas["t-1"])

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.AuditActionDelete, f.audit.entries[0].Action)
	assert.Nil(t, f.audit.entries[0].DataAfter)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestDeleteReversesCounters(t *testing.T) {
	f := newAllocationFixture(t, AllocationConfig{})
	defer f.cleanup()

	existing := existingAssignmentDetail()
	f.assignments.details["assign-1"] = existing

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	require.NoError(t, f.service.Delete(context.Background(), testActor(), "assign-1"))

	assert.Equal(t, []string{"assign-1"}, f.assignments.deletes)
	assert.Equal(t, -36, f.counters.teacherDeltas["t-1"])
	assert.Equal(t, -36, f.counters.departmentLesson["dept-1"])

	require.Len(t, f.audit.entries, 1)
	entry := f.audit.entries[0]
	assert.Equal(t, models.AuditActionDelete, entry.Action)
	assert.NotNil(t, entry.DataBefore)
	assert.Nil(t, entry.DataAfter)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestDeleteUnknownAssignment(t *testing.T) {
	f := newAllocationFixture(t, AllocationConfig{})
	defer f.cleanup()

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	err := f.service.Delete(context.Background(), testActor(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestBatchDeleteAbortsOnMissingAssignment(t *testing.T) {
	f := newAllocationFixture(t, AllocationConfig{})
	defer f.cleanup()

	existing := existingAssignmentDetail()
	f.assignments.details["assign-1"] = existing

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	err := f.service.BatchDelete(context.Background(), testActor(), []string{"assign-1", "missing"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRemainingCapacity(t *testing.T) {
	f := newAllocationFixture(t, AllocationConfig{})
	defer f.cleanup()

	f.assignments.existing = []models.TeachingAssignment{
		{ID: "assign-1", TeacherID: "t-1", ClassID: "class-1", SubjectID: "subject-1", CompletedLessons: 36},
	}

	capacity, err := f.service.RemainingCapacity(context.Background(), "class-1", "subject-1")
	require.NoError(t, err)
	assert.Equal(t, 72, capacity.LessonCount)
	assert.Equal(t, 36, capacity.AllocatedLessons)
	assert.Equal(t, 36, capacity.RemainingLessons)
	assert.Equal(t, 1, capacity.AssignedTeachers)
}

func TestUpdateDeclaredLessonsGuardsAllocated(t *testing.T) {
	f := newAllocationFixture(t, AllocationConfig{})
	defer f.cleanup()

	f.assignments.existing = []models.TeachingAssignment{
		{ID: "assign-1", TeacherID: "t-1", ClassID: "class-1", SubjectID: "subject-1", CompletedLessons: 54},
	}

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.service.UpdateDeclaredLessons(context.Background(), testActor(), "class-1", "subject-1", 36)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrReferentialConflict))
	assert.Empty(t, f.decls.lessonCounts)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestUpdateDeclaredLessonsMovesDepartmentTime(t *testing.T) {
	f := newAllocationFixture(t, AllocationConfig{})
	defer f.cleanup()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	detail, err := f.service.UpdateDeclaredLessons(context.Background(), testActor(), "class-1", "subject-1", 90)
	require.NoError(t, err)
	assert.Equal(t, 90, detail.LessonCount)
	assert.Equal(t, []int{90}, f.decls.lessonCounts)
	assert.Equal(t, 18, f.counters.departmentTime["dept-1"])

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.AuditEntityClassSubject, f.audit.entries[0].EntityType)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestGrantHomeroomReduction(t *testing.T) {
	f := newAllocationFixture(t, AllocationConfig{HomeroomCredit: 36})
	defer f.cleanup()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	require.NoError(t, f.service.GrantHomeroomReduction(context.Background(), testActor(), "t-1"))
	assert.Equal(t, []string{"t-1"}, f.teachers.granted)
	assert.Equal(t, 36, f.counters.teacherDeltas["t-1"])

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.AuditEntityTeacher, f.audit.entries[0].EntityType)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestGrantHomeroomReductionTwice(t *testing.T) {
	f := newAllocationFixture(t, AllocationConfig{HomeroomCredit: 36})
	defer f.cleanup()

	f.teachers.homeroom["t-1"] = true

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	err := f.service.GrantHomeroomReduction(context.Background(), testActor(), "t-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRevokeHomeroomReduction(t *testing.T) {
	f := newAllocationFixture(t, AllocationConfig{HomeroomCredit: 36})
	defer f.cleanup()

	f.teachers.homeroom["t-1"] = true

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	require.NoError(t, f.service.RevokeHomeroomReduction(context.Background(), testActor(), "t-1"))
	assert.Equal(t, []string{"t-1"}, f.teachers.revoked)
	assert.Equal(t, -36, f.counters.teacherDeltas["t-1"])
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRevokeHomeroomReductionNotHeld(t *testing.T) {
	f := newAllocationFixture(t, AllocationConfig{HomeroomCredit: 36})
	defer f.cleanup()

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	err := f.service.RevokeHomeroomReduction(context.Background(), testActor(), "t-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

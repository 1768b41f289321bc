package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teaching-load-api/internal/models"
	appErrors "github.com/noah-isme/teaching-load-api/pkg/errors"
)

func intPtr(v int) *int { return &v }

func declaration(lessonCount int, maxTeachers *int) models.ClassSubject {
	return models.ClassSubject{
		ID:          "cs-1",
		ClassID:     "class-1",
		SubjectID:   "subject-1",
		LessonCount: lessonCount,
		MaxTeachers: maxTeachers,
	}
}

func TestEvaluateAllocationOrdinaryCreate(t *testing.T) {
	decl := declaration(72, nil)
	others := []models.TeachingAssignment{
		{TeacherID: "t-1", CompletedLessons: 36},
	}

	decision, err := EvaluateAllocation(decl, models.ClassKindOrdinary, others, nil, 2, 18)
	require.NoError(t, err)
	assert.Equal(t, 36, decision.CompletedLessons)
	assert.Equal(t, 36, decision.Delta)
	assert.False(t, decision.Skip)
}

func TestEvaluateAllocationOrdinaryClampsToRemaining(t *testing.T) {
	decl := declaration(72, nil)
	others := []models.TeachingAssignment{
		{TeacherID: "t-1", CompletedLessons: 36},
	}

	// 3*18=54 requested but only 36 remain
	decision, err := EvaluateAllocation(decl, models.ClassKindOrdinary, others, nil, 3, 18)
	require.NoError(t, err)
	assert.Equal(t, 36, decision.CompletedLessons)
}

func TestEvaluateAllocationOrdinaryExhausted(t *testing.T) {
	decl := declaration(72, nil)
	others := []models.TeachingAssignment{
		{TeacherID: "t-1", CompletedLessons: 40},
		{TeacherID: "t-2", CompletedLessons: 32},
	}

	_, err := EvaluateAllocation(decl, models.ClassKindOrdinary, others, nil, 1, 18)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNoCapacityRemaining))
}

func TestEvaluateAllocationOrdinaryEditIgnoresOwnShare(t *testing.T) {
	decl := declaration(72, nil)
	current := &models.TeachingAssignment{ID: "a-1", TeacherID: "t-1", CompletedLessons: 36}
	others := []models.TeachingAssignment{
		{TeacherID: "t-2", CompletedLessons: 18},
	}

	decision, err := EvaluateAllocation(decl, models.ClassKindOrdinary, others, current, 3, 18)
	require.NoError(t, err)
	assert.Equal(t, 54, decision.CompletedLessons)
	assert.Equal(t, 18, decision.Delta)
}

func TestEvaluateAllocationSpecializedTeacherCap(t *testing.T) {
	decl := declaration(72, intPtr(2))
	others := []models.TeachingAssignment{
		{TeacherID: "t-1", CompletedLessons: 72},
		{TeacherID: "t-2", CompletedLessons: 72},
	}

	_, err := EvaluateAllocation(decl, models.ClassKindSpecialized, others, nil, 2, 18)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNoCapacityRemaining))
}

func TestEvaluateAllocationSpecializedIndependentShares(t *testing.T) {
	decl := declaration(72, intPtr(3))
	others := []models.TeachingAssignment{
		{TeacherID: "t-1", CompletedLessons: 72},
	}

	// shares are not summed for specialized classes, only clamped per teacher
	decision, err := EvaluateAllocation(decl, models.ClassKindSpecialized, others, nil, 5, 18)
	require.NoError(t, err)
	assert.Equal(t, 72, decision.CompletedLessons)
}

func TestEvaluateAllocationSpecializedEditExistingTeacher(t *testing.T) {
	decl := declaration(72, intPtr(2))
	current := &models.TeachingAssignment{ID: "a-1", TeacherID: "t-2", CompletedLessons: 36}
	others := []models.TeachingAssignment{
		{TeacherID: "t-1", CompletedLessons: 72},
	}

	decision, err := EvaluateAllocation(decl, models.ClassKindSpecialized, others, current, 2, 18)
	require.NoError(t, err)
	assert.Equal(t, 36, decision.CompletedLessons)
	assert.Equal(t, 0, decision.Delta)
}

func TestEvaluateAllocationSpecializedRequiresMaxTeachers(t *testing.T) {
	decl := declaration(72, nil)

	_, err := EvaluateAllocation(decl, models.ClassKindSpecialized, nil, nil, 2, 18)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestEvaluateAllocationNegativeQuantity(t *testing.T) {
	decl := declaration(72, nil)

	_, err := EvaluateAllocation(decl, models.ClassKindOrdinary, nil, nil, -1, 18)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidQuantity))

	_, err = EvaluateAllocation(decl, models.ClassKindOrdinary, nil, nil, 2, -18)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidQuantity))
}

func TestEvaluateAllocationZeroIsSkip(t *testing.T) {
	decl := declaration(72, nil)

	decision, err := EvaluateAllocation(decl, models.ClassKindOrdinary, nil, nil, 0, 18)
	require.NoError(t, err)
	assert.True(t, decision.Skip)
	assert.Equal(t, 0, decision.Delta)

	current := &models.TeachingAssignment{ID: "a-1", TeacherID: "t-1", CompletedLessons: 36}
	decision, err = EvaluateAllocation(decl, models.ClassKindOrdinary, nil, current, 4, 0)
	require.NoError(t, err)
	assert.True(t, decision.Skip)
	assert.Equal(t, -36, decision.Delta)
}

func TestComputeRemainingCapacity(t *testing.T) {
	detail := models.ClassSubjectDetail{
		ClassSubject: declaration(72, intPtr(2)),
		ClassKind:    models.ClassKindOrdinary,
	}
	assignments := []models.TeachingAssignment{
		{TeacherID: "t-1", CompletedLessons: 36},
		{TeacherID: "t-2", CompletedLessons: 18},
	}

	capacity := ComputeRemainingCapacity(detail, assignments)
	assert.Equal(t, 72, capacity.LessonCount)
	assert.Equal(t, 54, capacity.AllocatedLessons)
	assert.Equal(t, 18, capacity.RemainingLessons)
	assert.Equal(t, 2, capacity.AssignedTeachers)

	capacity = ComputeRemainingCapacity(detail, append(assignments, models.TeachingAssignment{TeacherID: "t-3", CompletedLessons: 40}))
	assert.Equal(t, 0, capacity.RemainingLessons)
}

package service

import (
	"github.com/noah-isme/teaching-load-api/internal/models"
	appErrors "github.com/noah-isme/teaching-load-api/pkg/errors"
)

// QuotaDecision is the outcome of validating one proposed allocation.
type QuotaDecision struct {
	// CompletedLessons is the validated, possibly clamped lesson total to persist.
	CompletedLessons int
	// Delta is CompletedLessons minus the previously stored value (zero old for create).
	Delta int
	// Skip marks a raw request of exactly zero: nothing is stored or audited for a
	// create, and an existing assignment becomes a deletion candidate.
	Skip bool
}

// EvaluateAllocation validates a proposed allocation against the class capacity policy
// and computes the resulting lesson total. others must hold every assignment for the
// declaration's class-subject pair except current; current is nil for a create and the
// assignment being edited otherwise. Pure computation, no I/O.
func EvaluateAllocation(
	declaration models.ClassSubject,
	kind models.ClassKind,
	others []models.TeachingAssignment,
	current *models.TeachingAssignment,
	lessonsPerWeek, numberOfWeeks int,
) (QuotaDecision, error) {
	if lessonsPerWeek < 0 || numberOfWeeks < 0 {
		return QuotaDecision{}, appErrors.ErrInvalidQuantity
	}

	old := 0
	if current != nil {
		old = current.CompletedLessons
	}

	raw := lessonsPerWeek * numberOfWeeks
	if raw == 0 {
		return QuotaDecision{Skip: true, Delta: -old}, nil
	}

	var completed int
	switch kind {
	case models.ClassKindSpecialized:
		if declaration.MaxTeachers == nil {
			return QuotaDecision{}, appErrors.Clone(appErrors.ErrValidation, "specialized class declaration has no teacher capacity")
		}
		if current == nil && countTeachers(others)+1 > *declaration.MaxTeachers {
			return QuotaDecision{}, appErrors.Clone(appErrors.ErrNoCapacityRemaining, "maximum number of teachers reached for this subject")
		}
		completed = raw
		if completed > declaration.LessonCount {
			completed = declaration.LessonCount
		}
	default:
		remaining := declaration.LessonCount - sumCompleted(others)
		if remaining <= 0 {
			return QuotaDecision{}, appErrors.ErrNoCapacityRemaining
		}
		completed = raw
		if completed > remaining {
			completed = remaining
		}
	}

	return QuotaDecision{CompletedLessons: completed, Delta: completed - old}, nil
}

// ComputeRemainingCapacity summarizes how much of a declaration is still open.
func ComputeRemainingCapacity(declaration models.ClassSubjectDetail, assignments []models.TeachingAssignment) models.RemainingCapacity {
	allocated := sumCompleted(assignments)
	remaining := declaration.LessonCount - allocated
	if remaining < 0 {
		remaining = 0
	}
	return models.RemainingCapacity{
		ClassID:          declaration.ClassID,
		SubjectID:        declaration.SubjectID,
		ClassKind:        declaration.ClassKind,
		LessonCount:      declaration.LessonCount,
		AllocatedLessons: allocated,
		RemainingLessons: remaining,
		AssignedTeachers: countTeachers(assignments),
		MaxTeachers:      declaration.MaxTeachers,
	}
}

func sumCompleted(assignments []models.TeachingAssignment) int {
	total := 0
	for _, a := range assignments {
		total += a.CompletedLessons
	}
	return total
}

func countTeachers(assignments []models.TeachingAssignment) int {
	seen := make(map[string]struct{}, len(assignments))
	for _, a := range assignments {
		seen[a.TeacherID] = struct{}{}
	}
	return len(seen)
}

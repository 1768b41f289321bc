package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/teaching-load-api/internal/models"
	appErrors "github.com/noah-isme/teaching-load-api/pkg/errors"
	"github.com/noah-isme/teaching-load-api/pkg/export"
)

type workloadAssignmentReader interface {
	ListDetailsByTeacher(ctx context.Context, teacherID string) ([]models.TeachingAssignmentDetail, error)
}

type workloadTeacherReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Teacher, error)
	HasHomeroomReduction(ctx context.Context, exec sqlx.ExtContext, teacherID string) (bool, error)
}

type workloadCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// WorkloadService serves the read side of the ledger: per-teacher workload summaries
// and their CSV/PDF exports. It never writes to assignments or counters.
type WorkloadService struct {
	assignments workloadAssignmentReader
	teachers    workloadTeacherReader
	cache       workloadCache
	metrics     *MetricsService
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
	cacheTTL    time.Duration
	credit      int
}

// NewWorkloadService constructs the service. credit is the homeroom lesson credit.
func NewWorkloadService(
	assignments workloadAssignmentReader,
	teachers workloadTeacherReader,
	cache workloadCache,
	metrics *MetricsService,
	logger *zap.Logger,
	cacheTTL time.Duration,
	credit int,
) *WorkloadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if credit <= 0 {
		credit = 36
	}
	return &WorkloadService{
		assignments: assignments,
		teachers:    teachers,
		cache:       cache,
		metrics:     metrics,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
		cacheTTL:    cacheTTL,
		credit:      credit,
	}
}

// GetTeacherWorkload returns the teacher's assignments and load totals.
func (s *WorkloadService) GetTeacherWorkload(ctx context.Context, teacherID string) (*models.TeacherWorkload, error) {
	cacheKey := "workload:teacher:" + teacherID
	if s.cache != nil {
		var cached models.TeacherWorkload
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("workload cache read failed", zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false)
	}

	teacher, err := s.teachers.FindByID(ctx, nil, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	assignments, err := s.assignments.ListDetailsByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}

	homeroom, err := s.teachers.HasHomeroomReduction(ctx, nil, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check homeroom reduction")
	}

	lessonTotal := 0
	for _, a := range assignments {
		lessonTotal += a.CompletedLessons
	}
	credit := 0
	if homeroom {
		credit = s.credit
	}

	workload := &models.TeacherWorkload{
		TeacherID:       teacher.ID,
		TeacherName:     teacher.FullName,
		DepartmentID:    teacher.DepartmentID,
		Assignments:     assignments,
		LessonTotal:     lessonTotal,
		HomeroomCredit:  credit,
		TotalAssignment: teacher.TotalAssignment,
		GeneratedAt:     time.Now().UTC(),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, workload, s.cacheTTL); err != nil {
			s.logger.Warn("workload cache write failed", zap.Error(err))
		}
	}
	return workload, nil
}

// ExportTeacherWorkload renders the workload table as CSV or PDF.
func (s *WorkloadService) ExportTeacherWorkload(ctx context.Context, teacherID, format string) ([]byte, string, error) {
	workload, err := s.GetTeacherWorkload(ctx, teacherID)
	if err != nil {
		return nil, "", err
	}

	dataset := workloadDataset(workload)
	switch format {
	case "", "csv":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := s.pdf.Render(dataset, fmt.Sprintf("Teaching load - %s", workload.TeacherName))
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

func workloadDataset(workload *models.TeacherWorkload) export.Dataset {
	headers := []string{"Class", "Subject", "Lessons/Week", "Weeks", "Completed Lessons"}
	rows := make([]map[string]string, 0, len(workload.Assignments)+1)
	for _, a := range workload.Assignments {
		rows = append(rows, map[string]string{
			"Class":             a.ClassName,
			"Subject":           a.SubjectName,
			"Lessons/Week":      strconv.Itoa(a.LessonsPerWeek),
			"Weeks":             strconv.Itoa(a.NumberOfWeeks),
			"Completed Lessons": strconv.Itoa(a.CompletedLessons),
		})
	}
	rows = append(rows, map[string]string{
		"Class":             "TOTAL",
		"Subject":           "",
		"Lessons/Week":      "",
		"Weeks":             "",
		"Completed Lessons": strconv.Itoa(workload.TotalAssignment),
	})
	return export.Dataset{Headers: headers, Rows: rows}
}

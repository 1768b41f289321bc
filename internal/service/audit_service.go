package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/teaching-load-api/internal/models"
	appErrors "github.com/noah-isme/teaching-load-api/pkg/errors"
)

type auditReader interface {
	ListByEntity(ctx context.Context, entityType, entityID string, page, pageSize int) ([]models.AuditLog, int, error)
}

// AuditService exposes the append-only ledger for inspection. Entries are
// written exclusively by AllocationService inside its transactions.
type AuditService struct {
	audits auditReader
	logger *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(audits auditReader, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{audits: audits, logger: logger}
}

// ListByEntity returns the audit trail for one entity, newest first.
func (s *AuditService) ListByEntity(ctx context.Context, entityType, entityID string, page, pageSize int) ([]models.AuditLog, int, error) {
	switch entityType {
	case models.AuditEntityAssignment, models.AuditEntityTeacher, models.AuditEntityClassSubject:
	default:
		return nil, 0, appErrors.Clone(appErrors.ErrValidation, "unknown audit entity type")
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	logs, total, err := s.audits.ListByEntity(ctx, entityType, entityID, page, pageSize)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	return logs, total, nil
}

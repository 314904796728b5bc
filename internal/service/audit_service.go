package service

import (
	"context"

	"caqm-backend/internal/domain/entity"
	"caqm-backend/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuditEntry describes one state change to record
type AuditEntry struct {
	ActorID  *uuid.UUID
	Action   string
	Entity   string
	EntityID string
	OldValue interface{}
	NewValue interface{}
	// Extra is merged into the stored metadata, e.g. a cancellation reason
	Extra entity.JSON
}

type AuditService interface {
	Record(ctx context.Context, tx *gorm.DB, entry AuditEntry) error
}

type auditService struct {
	log       *logrus.Logger
	auditRepo repository.AuditLogRepository
}

func NewAuditService(log *logrus.Logger, auditRepo repository.AuditLogRepository) AuditService {
	return &auditService{
		log:       log,
		auditRepo: auditRepo,
	}
}

// Record writes the entry through tx so it commits or rolls back with the change itself.
func (s *auditService) Record(ctx context.Context, tx *gorm.DB, entry AuditEntry) error {
	metadata := entity.JSON{
		"entity":    entry.Entity,
		"entity_id": entry.EntityID,
		"old_value": entry.OldValue,
		"new_value": entry.NewValue,
	}
	for k, v := range entry.Extra {
		metadata[k] = v
	}

	auditLog := &entity.AuditLog{
		UserID:   entry.ActorID,
		Action:   entry.Action,
		Metadata: metadata,
	}

	if err := s.auditRepo.Create(tx, auditLog); err != nil {
		s.log.Warnf("Failed to create audit log for %s %s: %+v", entry.Action, entry.EntityID, err)
		return err
	}

	return nil
}

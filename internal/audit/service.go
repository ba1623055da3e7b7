package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/Kwabena/Talaria/internal/middleware"
	"github.com/Kwabena/Talaria/internal/model"
)

type AuditService struct {
	repo AuditRepository
}

func NewAuditService(repo AuditRepository) *AuditService {
	return &AuditService{
		repo: repo,
	}
}

func (as *AuditService) Search(ctx context.Context, q Query) ([]model.AuditEntry, error) {
	logger := middleware.GetLogger(ctx)
	logger.Info().Str("entity_type", q.EntityType).Msg("Querying audit trail")
	return as.repo.List(ctx, q)
}

func (as *AuditService) EntityHistory(ctx context.Context, entityType string, entityID uuid.UUID) ([]model.AuditEntry, error) {
	return as.repo.ListForEntity(ctx, entityType, entityID)
}

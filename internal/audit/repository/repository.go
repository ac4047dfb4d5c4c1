package repository

import (
	"context"

	"github.com/cilogon/ItrsscilogonAssigner/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	ListByPerson(ctx context.Context, personID int64, limit, offset int32) ([]*domain.AuditLog, error)
}

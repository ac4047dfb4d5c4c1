package repository

import (
	"context"

	"github.com/cilogon/ItrsscilogonAssigner/internal/person/domain"
)

// Repository defines persistence for people and their identifiers.
type Repository interface {
	// GetByID returns the person with identifiers, names and email addresses loaded, or nil if not found.
	GetByID(ctx context.Context, id int64) (*domain.Person, error)
	// CreateIdentifier inserts i and sets its ID. With opts.Provision a provisioning event is queued in the same transaction.
	CreateIdentifier(ctx context.Context, i *domain.Identifier, opts domain.SaveOptions) error
}

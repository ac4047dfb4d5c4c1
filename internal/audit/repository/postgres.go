package repository

import (
	"context"
	"database/sql"

	"github.com/cilogon/ItrsscilogonAssigner/internal/audit/domain"
	"github.com/cilogon/ItrsscilogonAssigner/internal/db"
)

const (
	createAuditLogQuery = `INSERT INTO audit_logs (id, co_id, co_person_id, action, resource, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	listAuditLogsByPersonQuery = `SELECT id, co_id, co_person_id, action, resource, metadata, created_at
		FROM audit_logs WHERE co_person_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
)

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// Create persists the audit log to the database. The audit log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	meta := sql.NullString{String: a.Metadata, Valid: a.Metadata != ""}
	_, err := r.db.ExecContext(ctx, createAuditLogQuery,
		a.ID, a.CoID, a.PersonID, a.Action, a.Resource, meta, a.CreatedAt)
	return err
}

// ListByPerson returns audit logs for the given person, newest first, paginated by limit and offset.
// Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListByPerson(ctx context.Context, personID int64, limit, offset int32) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, listAuditLogsByPersonQuery, personID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AuditLog
	for rows.Next() {
		a := &domain.AuditLog{}
		var meta sql.NullString
		if err := rows.Scan(&a.ID, &a.CoID, &a.PersonID, &a.Action, &a.Resource, &meta, &a.CreatedAt); err != nil {
			return nil, err
		}
		if meta.Valid {
			a.Metadata = meta.String
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

package provisioning

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cilogon/ItrsscilogonAssigner/internal/db"
)

const (
	enqueueQuery = `INSERT INTO provisioning_outbox (id, co_person_id, identifier_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	claimUnsentQuery = `SELECT id, co_person_id, identifier_id, event_type, payload, created_at
		FROM provisioning_outbox
		WHERE sent_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`

	markSentQuery = `UPDATE provisioning_outbox SET sent_at = $1 WHERE id = ANY($2::uuid[])`
)

// Store is the outbox surface the relay needs.
type Store interface {
	ClaimUnsent(ctx context.Context, limit int) ([]*Event, error)
	MarkSent(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Outbox reads and writes provisioning_outbox rows on a connection or transaction.
type Outbox struct {
	db db.DBTX
}

// NewOutbox returns an Outbox running on conn.
func NewOutbox(conn db.DBTX) *Outbox {
	return &Outbox{db: conn}
}

// Enqueue writes e as an unsent event.
func (o *Outbox) Enqueue(ctx context.Context, e *Event) error {
	_, err := o.db.ExecContext(ctx, enqueueQuery, e.ID, e.PersonID, e.IdentifierID, e.Type, e.Payload, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueue provisioning event: %w", err)
	}
	return nil
}

// ClaimUnsent locks up to limit unsent events, oldest first. Rows locked by another relay are skipped.
// Must run inside a transaction for the lock to hold until MarkSent.
func (o *Outbox) ClaimUnsent(ctx context.Context, limit int) ([]*Event, error) {
	rows, err := o.db.QueryContext(ctx, claimUnsentQuery, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		e := &Event{}
		if err := rows.Scan(&e.ID, &e.PersonID, &e.IdentifierID, &e.Type, &e.Payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkSent stamps the given events as sent.
func (o *Outbox) MarkSent(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	_, err := o.db.ExecContext(ctx, markSentQuery, at, strIDs)
	return err
}

// UnitOfWork runs fn with a Store bound to a single transaction, committing when fn returns nil.
type UnitOfWork func(ctx context.Context, fn func(Store) error) error

// SQLUnitOfWork returns a UnitOfWork that opens transactions on conn.
func SQLUnitOfWork(conn *sql.DB) UnitOfWork {
	return func(ctx context.Context, fn func(Store) error) error {
		return db.WithTx(ctx, conn, func(tx *sql.Tx) error {
			return fn(NewOutbox(tx))
		})
	}
}

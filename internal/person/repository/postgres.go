package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cilogon/ItrsscilogonAssigner/internal/db"
	"github.com/cilogon/ItrsscilogonAssigner/internal/person/domain"
	"github.com/cilogon/ItrsscilogonAssigner/internal/provisioning"
)

const (
	getPersonQuery = `SELECT id, co_id, status, created_at FROM co_people WHERE id = $1`

	listIdentifiersQuery = `SELECT id, co_person_id, identifier, type, status, created_at
		FROM identifiers WHERE co_person_id = $1 ORDER BY id`

	listNamesQuery = `SELECT given, family, type FROM names WHERE co_person_id = $1 ORDER BY id`

	listEmailAddressesQuery = `SELECT mail, type FROM email_addresses WHERE co_person_id = $1 ORDER BY id`

	findPersonByIdentifierQuery = `SELECT co_person_id FROM identifiers WHERE type = $1 AND identifier = $2 ORDER BY id LIMIT 1`

	createPersonQuery = `INSERT INTO co_people (co_id, status, created_at) VALUES ($1, $2, $3) RETURNING id`

	createNameQuery = `INSERT INTO names (co_person_id, given, family, type) VALUES ($1, $2, $3, $4)`

	createEmailAddressQuery = `INSERT INTO email_addresses (co_person_id, mail, type) VALUES ($1, $2, $3)`

	createIdentifierQuery = `INSERT INTO identifiers (co_person_id, identifier, type, status, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`
)

type PostgresRepository struct {
	db     db.DBTX
	outbox *provisioning.Outbox
}

// NewPostgresRepository returns a person repository that runs its queries on conn,
// which may be a *sql.DB or a caller-owned *sql.Tx.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn, outbox: provisioning.NewOutbox(conn)}
}

// WithTx returns a copy of the repository bound to tx.
func (r *PostgresRepository) WithTx(tx *sql.Tx) *PostgresRepository {
	return NewPostgresRepository(tx)
}

// GetByID returns the person for id with identifiers, names and email addresses loaded, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.Person, error) {
	p := &domain.Person{}
	var status string
	err := r.db.QueryRowContext(ctx, getPersonQuery, id).Scan(&p.ID, &p.CoID, &status, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.Status = domain.Status(status)

	if p.Identifiers, err = r.listIdentifiers(ctx, id); err != nil {
		return nil, err
	}
	if p.Names, err = r.listNames(ctx, id); err != nil {
		return nil, err
	}
	if p.EmailAddresses, err = r.listEmailAddresses(ctx, id); err != nil {
		return nil, err
	}
	return p, nil
}

// FindByIdentifier returns the person holding an identifier of type t with the given value, or nil if none does.
func (r *PostgresRepository) FindByIdentifier(ctx context.Context, t domain.IdentifierType, value string) (*domain.Person, error) {
	var personID int64
	err := r.db.QueryRowContext(ctx, findPersonByIdentifierQuery, string(t), value).Scan(&personID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r.GetByID(ctx, personID)
}

// CreateIdentifier persists the identifier and sets i.ID. When opts.Provision is set a provisioning
// event is written to the outbox through the same connection, so it commits or rolls back with the insert.
func (r *PostgresRepository) CreateIdentifier(ctx context.Context, i *domain.Identifier, opts domain.SaveOptions) error {
	if err := i.Validate(); err != nil {
		return err
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}
	err := r.db.QueryRowContext(ctx, createIdentifierQuery,
		i.PersonID, i.Value, string(i.Type), string(i.Status), i.CreatedAt,
	).Scan(&i.ID)
	if err != nil {
		return fmt.Errorf("create identifier: %w", err)
	}
	if !opts.Provision {
		return nil
	}
	event, err := provisioning.NewIdentifierCreatedEvent(i)
	if err != nil {
		return err
	}
	return r.outbox.Enqueue(ctx, event)
}

// CreatePerson inserts the person with its names, email addresses and identifiers and sets the IDs.
// Identifiers are written without provisioning. Used by the seed command and tests.
func (r *PostgresRepository) CreatePerson(ctx context.Context, p *domain.Person) error {
	if p.Status == "" {
		p.Status = domain.StatusActive
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if err := r.db.QueryRowContext(ctx, createPersonQuery, p.CoID, string(p.Status), p.CreatedAt).Scan(&p.ID); err != nil {
		return fmt.Errorf("create person: %w", err)
	}
	for _, n := range p.Names {
		if _, err := r.db.ExecContext(ctx, createNameQuery, p.ID, n.Given, n.Family, string(n.Type)); err != nil {
			return fmt.Errorf("create name: %w", err)
		}
	}
	for _, e := range p.EmailAddresses {
		if _, err := r.db.ExecContext(ctx, createEmailAddressQuery, p.ID, e.Mail, string(e.Type)); err != nil {
			return fmt.Errorf("create email address: %w", err)
		}
	}
	for idx := range p.Identifiers {
		p.Identifiers[idx].PersonID = p.ID
		if err := r.CreateIdentifier(ctx, &p.Identifiers[idx], domain.SaveOptions{}); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) listIdentifiers(ctx context.Context, personID int64) ([]domain.Identifier, error) {
	rows, err := r.db.QueryContext(ctx, listIdentifiersQuery, personID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Identifier
	for rows.Next() {
		var i domain.Identifier
		var typ, status string
		if err := rows.Scan(&i.ID, &i.PersonID, &i.Value, &typ, &status, &i.CreatedAt); err != nil {
			return nil, err
		}
		i.Type = domain.IdentifierType(typ)
		i.Status = domain.Status(status)
		out = append(out, i)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) listNames(ctx context.Context, personID int64) ([]domain.Name, error) {
	rows, err := r.db.QueryContext(ctx, listNamesQuery, personID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Name
	for rows.Next() {
		var n domain.Name
		var typ string
		if err := rows.Scan(&n.Given, &n.Family, &typ); err != nil {
			return nil, err
		}
		n.Type = domain.NameType(typ)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) listEmailAddresses(ctx context.Context, personID int64) ([]domain.EmailAddress, error) {
	rows, err := r.db.QueryContext(ctx, listEmailAddressesQuery, personID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.EmailAddress
	for rows.Next() {
		var e domain.EmailAddress
		var typ string
		if err := rows.Scan(&e.Mail, &typ); err != nil {
			return nil, err
		}
		e.Type = domain.EmailType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}

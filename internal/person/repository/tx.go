package repository

import (
	"context"
	"database/sql"

	"github.com/cilogon/ItrsscilogonAssigner/internal/db"
)

// TxRunner runs units of work against a person repository bound to a fresh transaction.
type TxRunner struct {
	conn *sql.DB
}

// NewTxRunner returns a TxRunner over conn.
func NewTxRunner(conn *sql.DB) *TxRunner {
	return &TxRunner{conn: conn}
}

// Do begins a transaction, calls fn with a repository bound to it, and commits when fn returns nil.
// Any error from fn rolls back every write fn made.
func (t *TxRunner) Do(ctx context.Context, fn func(Repository) error) error {
	return db.WithTx(ctx, t.conn, func(tx *sql.Tx) error {
		return fn(NewPostgresRepository(tx))
	})
}

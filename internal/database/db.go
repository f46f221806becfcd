// SPDX-License-Identifier: AGPL-3.0-only
package database

import (
	"context"
	"database/sql"
	"errors"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type pinger interface {
	PingContext(ctx context.Context) error
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries is the PostgreSQL implementation of Store.
type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

func (q *Queries) Ping(ctx context.Context) error {
	if p, ok := q.db.(pinger); ok {
		return p.PingContext(ctx)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

var _ Store = (*Queries)(nil)

// Package db holds the relational queries used by the repositories. Its
// shape follows sqlc output: a Queries value over a DBTX that can be a pool,
// a connection or a transaction.
package db

import (
	"context"
	_ "embed"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the DDL for every table the service uses. Statements are
// idempotent.
//
//go:embed schema.sql
var Schema string

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// New returns Queries that run against db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries runs the service's SQL statements.
type Queries struct {
	db DBTX
}

// WithTx returns Queries bound to tx.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

// ApplySchema executes Schema.
func ApplySchema(ctx context.Context, db DBTX) error {
	_, err := db.Exec(ctx, Schema)
	return err
}

package db

import (
	"context"

	"github.com/google/uuid"
)

const createAccount = `
INSERT INTO accounts (id, name)
VALUES ($1, $2)
RETURNING id, name, created_at, updated_at`

type CreateAccountParams struct {
	ID   uuid.UUID
	Name string
}

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error) {
	row := q.db.QueryRow(ctx, createAccount, arg.ID, arg.Name)
	var i Account
	err := row.Scan(&i.ID, &i.Name, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const getAccount = `
SELECT id, name, created_at, updated_at
FROM accounts
WHERE id = $1`

func (q *Queries) GetAccount(ctx context.Context, id uuid.UUID) (Account, error) {
	row := q.db.QueryRow(ctx, getAccount, id)
	var i Account
	err := row.Scan(&i.ID, &i.Name, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const updateAccount = `
UPDATE accounts
SET name = $2, updated_at = now()
WHERE id = $1`

type UpdateAccountParams struct {
	ID   uuid.UUID
	Name string
}

// UpdateAccount returns the number of rows updated.
func (q *Queries) UpdateAccount(ctx context.Context, arg UpdateAccountParams) (int64, error) {
	tag, err := q.db.Exec(ctx, updateAccount, arg.ID, arg.Name)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

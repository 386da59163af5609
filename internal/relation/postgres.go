package relation

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sundayezeilo/shortlinks/internal/db"
)

// ErrOwnerNotFound is returned by UpdateOwner when no row matched.
var ErrOwnerNotFound = errors.New("owner not found")

// beginner is satisfied by *pgxpool.Pool and *pgx.Conn.
type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type pgTxRunner struct {
	db beginner
}

// NewPostgresTxRunner returns a TxRunner that opens a pgx transaction per
// call.
func NewPostgresTxRunner(db beginner) TxRunner {
	return &pgTxRunner{db: db}
}

func (r *pgTxRunner) WithinTx(ctx context.Context, fn func(Store) error) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		return fn(&pgStore{q: db.New(tx)})
	})
}

type pgStore struct {
	q *db.Queries
}

func (s *pgStore) UpdateOwner(ctx context.Context, owner Owner) error {
	n, err := s.q.UpdateAccount(ctx, db.UpdateAccountParams{
		ID:   owner.ID,
		Name: owner.Name,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOwnerNotFound
	}
	return nil
}

func (s *pgStore) InsertMember(ctx context.Context, ownerID, memberID uuid.UUID) (bool, error) {
	n, err := s.q.InsertLinkLike(ctx, db.LinkLikeParams{AccountID: ownerID, LinkID: memberID})
	return n > 0, err
}

func (s *pgStore) DeleteMember(ctx context.Context, ownerID, memberID uuid.UUID) (bool, error) {
	n, err := s.q.DeleteLinkLike(ctx, db.LinkLikeParams{AccountID: ownerID, LinkID: memberID})
	return n > 0, err
}

func (s *pgStore) AdjustLikeCount(ctx context.Context, memberID uuid.UUID, delta int64) error {
	return s.q.AdjustLikeCount(ctx, db.AdjustLikeCountParams{LinkID: memberID, Delta: delta})
}

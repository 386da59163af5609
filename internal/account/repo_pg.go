package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sundayezeilo/shortlinks/internal/collection"
	"github.com/sundayezeilo/shortlinks/internal/db"
	"github.com/sundayezeilo/shortlinks/internal/errx"
	"github.com/sundayezeilo/shortlinks/internal/idgen"
	"github.com/sundayezeilo/shortlinks/internal/relation"
)

// querier is the subset of *db.Queries the repository uses.
type querier interface {
	CreateAccount(ctx context.Context, arg db.CreateAccountParams) (db.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (db.Account, error)
	ListLikedLinkIDs(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error)
}

// persister applies liked-link diffs. *relation.Synchronizer satisfies it.
type persister interface {
	Persist(ctx context.Context, owner relation.Owner, members *collection.ChangeTracked[uuid.UUID]) (relation.Result, error)
}

type repo struct {
	q    querier
	sync persister
	ids  idgen.Generator
}

// RepositoryConfig holds configuration for the repository.
type RepositoryConfig struct {
	IDGenerator idgen.Generator
}

// NewRepository creates a Repository over q that persists liked links
// through sync.
func NewRepository(q querier, sync persister, config *RepositoryConfig) Repository {
	if config == nil {
		config = &RepositoryConfig{}
	}

	ids := config.IDGenerator
	if ids == nil {
		ids = idgen.NewV7(idgen.WithRetries(1))
	}

	return &repo{
		q:    q,
		sync: sync,
		ids:  ids,
	}
}

func mustTime(ts pgtype.Timestamptz, field string) (time.Time, error) {
	if !ts.Valid {
		return time.Time{}, fmt.Errorf("%s unexpectedly NULL", field)
	}
	return ts.Time, nil
}

func toDomainAccount(x db.Account, liked []uuid.UUID) (Account, error) {
	createdAt, err := mustTime(x.CreatedAt, "created_at")
	if err != nil {
		return Account{}, err
	}
	updatedAt, err := mustTime(x.UpdatedAt, "updated_at")
	if err != nil {
		return Account{}, err
	}

	return Account{
		ID:         x.ID,
		Name:       x.Name,
		LikedLinks: collection.New(liked),
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}, nil
}

func mapRepoError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, err)
	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

func (r *repo) Create(ctx context.Context, account Account) (Account, error) {
	const op = "account.repo.Create"

	if account.ID == uuid.Nil {
		id, err := r.ids.Generate()
		if err != nil {
			return Account{}, errx.E(op, errx.Unavailable, err)
		}
		account.ID = id
	}

	row, err := r.q.CreateAccount(ctx, db.CreateAccountParams{
		ID:   account.ID,
		Name: account.Name,
	})
	if err != nil {
		return Account{}, mapRepoError(op, err)
	}

	created, err := toDomainAccount(row, nil)
	if err != nil {
		return Account{}, errx.E(op, errx.Internal, err)
	}
	return created, nil
}

func (r *repo) Get(ctx context.Context, id uuid.UUID) (Account, error) {
	const op = "account.repo.Get"

	row, err := r.q.GetAccount(ctx, id)
	if err != nil {
		return Account{}, mapRepoError(op, err)
	}

	liked, err := r.q.ListLikedLinkIDs(ctx, id)
	if err != nil {
		return Account{}, mapRepoError(op, err)
	}

	account, err := toDomainAccount(row, liked)
	if err != nil {
		return Account{}, errx.E(op, errx.Internal, err)
	}
	return account, nil
}

func (r *repo) Save(ctx context.Context, account *Account) (relation.Result, error) {
	const op = "account.repo.Save"

	res, err := r.sync.Persist(ctx, relation.Owner{ID: account.ID, Name: account.Name}, account.LikedLinks)
	if err != nil {
		return relation.Result{}, errx.Wrap(op, err)
	}
	return res, nil
}

package account

import (
	"context"

	"github.com/google/uuid"

	"github.com/sundayezeilo/shortlinks/internal/relation"
)

// Repository defines the persistence operations for accounts. Get loads the
// liked links as the snapshot of the returned collection; Save writes the
// account's scalar fields and only the liked-links delta since that snapshot.
type Repository interface {
	Create(ctx context.Context, account Account) (Account, error)
	Get(ctx context.Context, id uuid.UUID) (Account, error)
	Save(ctx context.Context, account *Account) (relation.Result, error)
}

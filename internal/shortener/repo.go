package shortener

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence operations for Link entities.
// It abstracts the underlying data store and is responsible for
// creating, retrieving, updating, and deleting links, as well as
// tracking access-related metadata.
type Repository interface {
	Create(ctx context.Context, link Link) (Link, error)
	GetBySlug(ctx context.Context, slug string) (Link, error)
	ResolveAndTrack(ctx context.Context, slug string) (Link, error)
	Update(ctx context.Context, link Link) (Link, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByAuthor returns one page of the author's links, newest first, and
	// the author's total link count.
	ListByAuthor(ctx context.Context, authorID uuid.UUID, limit, offset int) ([]Link, int64, error)
}

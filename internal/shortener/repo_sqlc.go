package shortener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sundayezeilo/shortlinks/internal/db"
	"github.com/sundayezeilo/shortlinks/internal/errx"
	"github.com/sundayezeilo/shortlinks/internal/idgen"
)

// querier is an internal interface that abstracts *db.Queries
type querier interface {
	CreateLink(ctx context.Context, arg db.CreateLinkParams) (db.Link, error)
	GetLinkBySlug(ctx context.Context, slug string) (db.Link, error)
	ResolveAndTrackLink(ctx context.Context, slug string) (db.Link, error)
	UpdateLink(ctx context.Context, arg db.UpdateLinkParams) (db.Link, error)
	DeleteLink(ctx context.Context, id uuid.UUID) (int64, error)
	ListLinksByAuthor(ctx context.Context, arg db.ListLinksByAuthorParams) ([]db.LinkWithAuthor, error)
	CountLinksByAuthor(ctx context.Context, authorID uuid.UUID) (int64, error)
}

type repo struct {
	q   querier
	ids idgen.Generator
}

// RepositoryConfig holds configuration for the repository
type RepositoryConfig struct {
	IDGenerator idgen.Generator
}

// NewRepository creates a new Repository implementation
func NewRepository(q querier, config *RepositoryConfig) Repository {
	if config == nil {
		config = &RepositoryConfig{}
	}

	// Default: UUID v7 (good for DB locality). Retry once by default inside idgen.NewV7.
	if config.IDGenerator == nil {
		config.IDGenerator = idgen.NewV7(idgen.WithRetries(1))
	}

	return &repo{
		q:   q,
		ids: config.IDGenerator,
	}
}

func mustTime(ts pgtype.Timestamptz, field string) (time.Time, error) {
	if !ts.Valid {
		return time.Time{}, fmt.Errorf("%s unexpectedly NULL", field)
	}
	return ts.Time, nil
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

func toDomainLink(x db.Link) (Link, error) {
	createdAt, err := mustTime(x.CreatedAt, "created_at")
	if err != nil {
		return Link{}, err
	}
	updatedAt, err := mustTime(x.UpdatedAt, "updated_at")
	if err != nil {
		return Link{}, err
	}

	return Link{
		ID:             x.ID,
		Slug:           x.Slug,
		OriginalURL:    x.OriginalUrl,
		Name:           x.Name,
		Description:    x.Description,
		IsPublic:       x.IsPublic,
		LikeCount:      x.LikeCount,
		AccessCount:    x.AccessCount,
		AuthorID:       x.AuthorID,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
		LastAccessedAt: timePtr(x.LastAccessedAt),
	}, nil
}

func mapRepoError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, err)

	case db.IsUniqueViolation(err, db.ConstraintLinksSlugUnique):
		return errx.E(op, errx.Conflict, err)

	case db.IsForeignKeyViolation(err):
		return errx.E(op, errx.NotFound, err)

	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

func (r *repo) toDomain(op string, row db.Link) (Link, error) {
	link, err := toDomainLink(row)
	if err != nil {
		return Link{}, errx.E(op, errx.Internal, err)
	}
	return link, nil
}

func (r *repo) Create(ctx context.Context, link Link) (Link, error) {
	const op = "shortener.repo.Create"

	// Generate ID if not provided
	if link.ID == uuid.Nil {
		id, err := r.ids.Generate()
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}
		link.ID = id
	}

	row, err := r.q.CreateLink(ctx, db.CreateLinkParams{
		ID:          link.ID,
		Slug:        link.Slug,
		OriginalUrl: link.OriginalURL,
		Name:        link.Name,
		Description: link.Description,
		IsPublic:    link.IsPublic,
		AuthorID:    link.AuthorID,
	})
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}

	return r.toDomain(op, row)
}

func (r *repo) GetBySlug(ctx context.Context, slug string) (Link, error) {
	const op = "shortener.repo.GetBySlug"

	row, err := r.q.GetLinkBySlug(ctx, slug)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return r.toDomain(op, row)
}

func (r *repo) ResolveAndTrack(ctx context.Context, slug string) (Link, error) {
	const op = "shortener.repo.ResolveAndTrack"

	row, err := r.q.ResolveAndTrackLink(ctx, slug)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return r.toDomain(op, row)
}

func (r *repo) Update(ctx context.Context, link Link) (Link, error) {
	const op = "shortener.repo.Update"

	row, err := r.q.UpdateLink(ctx, db.UpdateLinkParams{
		ID:          link.ID,
		OriginalUrl: link.OriginalURL,
		Name:        link.Name,
		Description: link.Description,
		IsPublic:    link.IsPublic,
	})
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return r.toDomain(op, row)
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "shortener.repo.Delete"

	n, err := r.q.DeleteLink(ctx, id)
	if err != nil {
		return mapRepoError(op, err)
	}
	if n == 0 {
		return errx.E(op, errx.NotFound, pgx.ErrNoRows)
	}
	return nil
}

func (r *repo) ListByAuthor(ctx context.Context, authorID uuid.UUID, limit, offset int) ([]Link, int64, error) {
	const op = "shortener.repo.ListByAuthor"

	rows, err := r.q.ListLinksByAuthor(ctx, db.ListLinksByAuthorParams{
		AuthorID: authorID,
		Limit:    int32(limit),
		Offset:   int32(offset),
	})
	if err != nil {
		return nil, 0, mapRepoError(op, err)
	}

	total, err := r.q.CountLinksByAuthor(ctx, authorID)
	if err != nil {
		return nil, 0, mapRepoError(op, err)
	}

	links := make([]Link, 0, len(rows))
	for _, row := range rows {
		link, err := r.toDomain(op, row.Link)
		if err != nil {
			return nil, 0, err
		}
		link.AuthorName = row.AuthorName
		links = append(links, link)
	}
	return links, total, nil
}

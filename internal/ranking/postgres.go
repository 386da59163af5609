package ranking

import (
	"context"

	"github.com/google/uuid"

	"github.com/sundayezeilo/shortlinks/internal/db"
	"github.com/sundayezeilo/shortlinks/internal/errx"
	"github.com/sundayezeilo/shortlinks/internal/paging"
)

// querier is the subset of *db.Queries the reader uses.
type querier interface {
	LinksWithAuthorsByIDs(ctx context.Context, ids []uuid.UUID) ([]db.LinkWithAuthor, error)
	MostLikedLinks(ctx context.Context, limit int32) ([]db.LinkWithAuthor, error)
	ListPublicLinks(ctx context.Context, arg db.ListPublicLinksParams) ([]db.LinkWithAuthor, error)
	CountPublicLinks(ctx context.Context, query string) (int64, error)
}

type pgReader struct {
	q querier
}

// NewPostgresReader returns a LinkReader over the relational store.
func NewPostgresReader(q querier) LinkReader {
	return &pgReader{q: q}
}

var sortColumns = map[string]string{
	SortCreated: db.SortCreatedAt,
	SortName:    db.SortName,
	SortLikes:   db.SortLikeCount,
}

func toReadModel(x db.LinkWithAuthor) ReadModel {
	return ReadModel{
		LinkID:      x.ID,
		Slug:        x.Slug,
		Name:        x.Name,
		Description: x.Description,
		OriginalURL: x.OriginalUrl,
		IsPublic:    x.IsPublic,
		LikeCount:   x.LikeCount,
		AuthorID:    x.AuthorID,
		AuthorName:  x.AuthorName,
		CreatedAt:   x.CreatedAt.Time,
	}
}

func toReadModels(rows []db.LinkWithAuthor) []ReadModel {
	out := make([]ReadModel, len(rows))
	for i, r := range rows {
		out[i] = toReadModel(r)
	}
	return out
}

func (r *pgReader) LinksByIDs(ctx context.Context, ids []uuid.UUID) ([]ReadModel, error) {
	const op = "ranking.reader.LinksByIDs"

	if len(ids) == 0 {
		return []ReadModel{}, nil
	}
	rows, err := r.q.LinksWithAuthorsByIDs(ctx, ids)
	if err != nil {
		return nil, errx.E(op, errx.Unavailable, err)
	}
	return toReadModels(rows), nil
}

func (r *pgReader) MostLiked(ctx context.Context, limit int) ([]ReadModel, error) {
	const op = "ranking.reader.MostLiked"

	rows, err := r.q.MostLikedLinks(ctx, int32(limit))
	if err != nil {
		return nil, errx.E(op, errx.Unavailable, err)
	}
	return toReadModels(rows), nil
}

func (r *pgReader) ListPublic(ctx context.Context, p ListingParams) ([]ReadModel, int64, error) {
	const op = "ranking.reader.ListPublic"

	column, ok := sortColumns[p.Sort]
	if !ok {
		column = db.SortCreatedAt
	}

	rows, err := r.q.ListPublicLinks(ctx, db.ListPublicLinksParams{
		Query:  p.Query,
		Sort:   column,
		Desc:   p.Order != OrderAsc,
		Limit:  int32(p.PageSize),
		Offset: int32(paging.Offset(p.Page, p.PageSize)),
	})
	if err != nil {
		return nil, 0, errx.E(op, errx.Unavailable, err)
	}

	total, err := r.q.CountPublicLinks(ctx, p.Query)
	if err != nil {
		return nil, 0, errx.E(op, errx.Unavailable, err)
	}

	return toReadModels(rows), total, nil
}

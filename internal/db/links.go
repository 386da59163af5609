package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const linkColumns = `l.id, l.slug, l.original_url, l.name, l.description, l.is_public,
       l.like_count, l.access_count, l.author_id, l.created_at, l.updated_at, l.last_accessed_at`

func scanLink(row pgx.Row, extra ...any) (Link, error) {
	var i Link
	dest := []any{
		&i.ID, &i.Slug, &i.OriginalUrl, &i.Name, &i.Description, &i.IsPublic,
		&i.LikeCount, &i.AccessCount, &i.AuthorID, &i.CreatedAt, &i.UpdatedAt, &i.LastAccessedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	return i, err
}

func collectLinksWithAuthor(rows pgx.Rows) ([]LinkWithAuthor, error) {
	defer rows.Close()

	items := []LinkWithAuthor{}
	for rows.Next() {
		var name string
		l, err := scanLink(rows, &name)
		if err != nil {
			return nil, err
		}
		items = append(items, LinkWithAuthor{Link: l, AuthorName: name})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createLink = `
INSERT INTO links AS l (id, slug, original_url, name, description, is_public, author_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + linkColumns

type CreateLinkParams struct {
	ID          uuid.UUID
	Slug        string
	OriginalUrl string
	Name        string
	Description string
	IsPublic    bool
	AuthorID    uuid.UUID
}

func (q *Queries) CreateLink(ctx context.Context, arg CreateLinkParams) (Link, error) {
	row := q.db.QueryRow(ctx, createLink,
		arg.ID, arg.Slug, arg.OriginalUrl, arg.Name, arg.Description, arg.IsPublic, arg.AuthorID,
	)
	return scanLink(row)
}

const getLinkBySlug = `
SELECT ` + linkColumns + `
FROM links l
WHERE l.slug = $1`

func (q *Queries) GetLinkBySlug(ctx context.Context, slug string) (Link, error) {
	return scanLink(q.db.QueryRow(ctx, getLinkBySlug, slug))
}

const resolveAndTrackLink = `
UPDATE links AS l
SET access_count = l.access_count + 1, last_accessed_at = now()
WHERE l.slug = $1
RETURNING ` + linkColumns

func (q *Queries) ResolveAndTrackLink(ctx context.Context, slug string) (Link, error) {
	return scanLink(q.db.QueryRow(ctx, resolveAndTrackLink, slug))
}

const updateLink = `
UPDATE links AS l
SET original_url = $2, name = $3, description = $4, is_public = $5, updated_at = now()
WHERE l.id = $1
RETURNING ` + linkColumns

type UpdateLinkParams struct {
	ID          uuid.UUID
	OriginalUrl string
	Name        string
	Description string
	IsPublic    bool
}

func (q *Queries) UpdateLink(ctx context.Context, arg UpdateLinkParams) (Link, error) {
	row := q.db.QueryRow(ctx, updateLink, arg.ID, arg.OriginalUrl, arg.Name, arg.Description, arg.IsPublic)
	return scanLink(row)
}

const deleteLink = `DELETE FROM links WHERE id = $1`

// DeleteLink returns the number of rows deleted.
func (q *Queries) DeleteLink(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteLink, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listLinksByAuthor = `
SELECT ` + linkColumns + `, a.name
FROM links l
JOIN accounts a ON a.id = l.author_id
WHERE l.author_id = $1
ORDER BY l.created_at DESC, l.id
LIMIT $2 OFFSET $3`

type ListLinksByAuthorParams struct {
	AuthorID uuid.UUID
	Limit    int32
	Offset   int32
}

func (q *Queries) ListLinksByAuthor(ctx context.Context, arg ListLinksByAuthorParams) ([]LinkWithAuthor, error) {
	rows, err := q.db.Query(ctx, listLinksByAuthor, arg.AuthorID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectLinksWithAuthor(rows)
}

const countLinksByAuthor = `SELECT count(*) FROM links WHERE author_id = $1`

func (q *Queries) CountLinksByAuthor(ctx context.Context, authorID uuid.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countLinksByAuthor, authorID).Scan(&n)
	return n, err
}

const linksWithAuthorsByIDs = `
SELECT ` + linkColumns + `, a.name
FROM links l
JOIN accounts a ON a.id = l.author_id
WHERE l.id = ANY($1)`

// LinksWithAuthorsByIDs loads every link in ids in one round trip. Row order
// is unspecified; missing ids are simply absent.
func (q *Queries) LinksWithAuthorsByIDs(ctx context.Context, ids []uuid.UUID) ([]LinkWithAuthor, error) {
	rows, err := q.db.Query(ctx, linksWithAuthorsByIDs, ids)
	if err != nil {
		return nil, err
	}
	return collectLinksWithAuthor(rows)
}

const mostLikedLinks = `
SELECT ` + linkColumns + `, a.name
FROM links l
JOIN accounts a ON a.id = l.author_id
WHERE l.is_public
ORDER BY l.like_count DESC, l.created_at, l.id
LIMIT $1`

func (q *Queries) MostLikedLinks(ctx context.Context, limit int32) ([]LinkWithAuthor, error) {
	rows, err := q.db.Query(ctx, mostLikedLinks, limit)
	if err != nil {
		return nil, err
	}
	return collectLinksWithAuthor(rows)
}

// Sortable columns for ListPublicLinks.
const (
	SortCreatedAt = "created_at"
	SortName      = "name"
	SortLikeCount = "like_count"
)

var publicSortColumns = map[string]string{
	SortCreatedAt: "l.created_at",
	SortName:      "l.name",
	SortLikeCount: "l.like_count",
}

const publicLinksFilter = `
FROM links l
JOIN accounts a ON a.id = l.author_id
WHERE l.is_public
  AND ($1::text = '' OR l.name ILIKE '%' || $1::text || '%' OR l.description ILIKE '%' || $1::text || '%')`

type ListPublicLinksParams struct {
	Query  string
	Sort   string
	Desc   bool
	Limit  int32
	Offset int32
}

func (q *Queries) ListPublicLinks(ctx context.Context, arg ListPublicLinksParams) ([]LinkWithAuthor, error) {
	column, ok := publicSortColumns[arg.Sort]
	if !ok {
		return nil, fmt.Errorf("unsupported sort column %q", arg.Sort)
	}
	direction := "ASC"
	if arg.Desc {
		direction = "DESC"
	}

	query := `SELECT ` + linkColumns + `, a.name` + publicLinksFilter +
		fmt.Sprintf("\nORDER BY %s %s, l.id\nLIMIT $2 OFFSET $3", column, direction)

	rows, err := q.db.Query(ctx, query, arg.Query, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectLinksWithAuthor(rows)
}

func (q *Queries) CountPublicLinks(ctx context.Context, query string) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT count(*)`+publicLinksFilter, query).Scan(&n)
	return n, err
}

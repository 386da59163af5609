package db

import (
	"context"

	"github.com/google/uuid"
)

const listLikedLinkIDs = `
SELECT link_id
FROM link_likes
WHERE account_id = $1
ORDER BY created_at, link_id`

func (q *Queries) ListLikedLinkIDs(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.db.Query(ctx, listLikedLinkIDs, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertLinkLike = `
INSERT INTO link_likes (account_id, link_id)
VALUES ($1, $2)
ON CONFLICT (account_id, link_id) DO NOTHING`

type LinkLikeParams struct {
	AccountID uuid.UUID
	LinkID    uuid.UUID
}

// InsertLinkLike returns 0 when the pair already exists.
func (q *Queries) InsertLinkLike(ctx context.Context, arg LinkLikeParams) (int64, error) {
	tag, err := q.db.Exec(ctx, insertLinkLike, arg.AccountID, arg.LinkID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteLinkLike = `
DELETE FROM link_likes
WHERE account_id = $1 AND link_id = $2`

// DeleteLinkLike returns 0 when the pair did not exist.
func (q *Queries) DeleteLinkLike(ctx context.Context, arg LinkLikeParams) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteLinkLike, arg.AccountID, arg.LinkID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const adjustLikeCount = `
UPDATE links
SET like_count = GREATEST(like_count + $2, 0)
WHERE id = $1`

type AdjustLikeCountParams struct {
	LinkID uuid.UUID
	Delta  int64
}

func (q *Queries) AdjustLikeCount(ctx context.Context, arg AdjustLikeCountParams) error {
	_, err := q.db.Exec(ctx, adjustLikeCount, arg.LinkID, arg.Delta)
	return err
}

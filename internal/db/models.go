package db

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Account struct {
	ID        uuid.UUID
	Name      string
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

type Link struct {
	ID             uuid.UUID
	Slug           string
	OriginalUrl    string
	Name           string
	Description    string
	IsPublic       bool
	LikeCount      int64
	AccessCount    int64
	AuthorID       uuid.UUID
	CreatedAt      pgtype.Timestamptz
	UpdatedAt      pgtype.Timestamptz
	LastAccessedAt pgtype.Timestamptz
}

// LinkWithAuthor is a link joined with its author's display name.
type LinkWithAuthor struct {
	Link
	AuthorName string
}

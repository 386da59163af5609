package shortener

import (
	"time"

	"github.com/google/uuid"
)

type Link struct {
	ID             uuid.UUID
	Slug           string
	OriginalURL    string
	Name           string
	Description    string
	IsPublic       bool
	LikeCount      int64
	AccessCount    int64
	AuthorID       uuid.UUID
	AuthorName     string // set by listings only
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastAccessedAt *time.Time
}

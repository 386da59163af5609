package ranking

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/shortlinks/internal/paging"
)

// ReadModel is a link joined with its author and its access score. It is
// rebuilt on every projection pass and never written back.
type ReadModel struct {
	LinkID      uuid.UUID `json:"link_id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OriginalURL string    `json:"original_url"`
	IsPublic    bool      `json:"is_public"`
	LikeCount   int64     `json:"like_count"`
	AuthorID    uuid.UUID `json:"author_id"`
	AuthorName  string    `json:"author_name"`
	Score       float64   `json:"score"`
	CreatedAt   time.Time `json:"created_at"`
}

// Sort keys accepted by the public listing.
const (
	SortCreated = "created"
	SortName    = "name"
	SortLikes   = "likes"
)

const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// MaxQueryLength bounds the free-text filter.
const MaxQueryLength = 100

// ListingParams filters, sorts and paginates the public listing.
type ListingParams struct {
	Query    string
	Sort     string
	Order    string
	Page     int
	PageSize int
}

// Normalize fills defaults and validates the parameters.
func (p ListingParams) Normalize() (ListingParams, error) {
	p.Query = strings.TrimSpace(p.Query)
	if len(p.Query) > MaxQueryLength {
		return p, fmt.Errorf("query too long (max %d characters)", MaxQueryLength)
	}

	switch p.Sort {
	case "":
		p.Sort = SortCreated
	case SortCreated, SortName, SortLikes:
	default:
		return p, fmt.Errorf("invalid sort %q (must be one of: created, name, likes)", p.Sort)
	}

	switch p.Order {
	case "":
		p.Order = OrderDesc
	case OrderAsc, OrderDesc:
	default:
		return p, errors.New("invalid order (must be asc or desc)")
	}

	p.Page, p.PageSize = paging.Normalize(p.Page, p.PageSize)
	return p, nil
}

// values encodes every parameter. Normalized parameters that describe the
// same query always produce the same values.
func (p ListingParams) values() url.Values {
	return url.Values{
		"q":         {p.Query},
		"sort":      {p.Sort},
		"order":     {p.Order},
		"page":      {strconv.Itoa(p.Page)},
		"page_size": {strconv.Itoa(p.PageSize)},
	}
}

// LinkReader is the relational side of the projection.
type LinkReader interface {
	// LinksByIDs loads the links in ids with their authors in one lookup.
	// Order is unspecified and unknown ids are omitted.
	LinksByIDs(ctx context.Context, ids []uuid.UUID) ([]ReadModel, error)
	// MostLiked returns up to limit public links by like count.
	MostLiked(ctx context.Context, limit int) ([]ReadModel, error)
	// ListPublic returns one page of public links and the total match count.
	ListPublic(ctx context.Context, p ListingParams) ([]ReadModel, int64, error)
}

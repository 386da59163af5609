// Package ranking builds read models that merge access scores from the score
// store with link and author data from the relational store, behind a
// time-boxed cache.
package ranking

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/sundayezeilo/shortlinks/internal/cache"
	"github.com/sundayezeilo/shortlinks/internal/errx"
	"github.com/sundayezeilo/shortlinks/internal/paging"
	"github.com/sundayezeilo/shortlinks/internal/score"
)

const (
	keyTopRanked = "ranking:top"
	keyMostLiked = "ranking:most-liked"
	keyListing   = "ranking:listing"
)

const (
	DefaultTopTTL         = 15 * time.Minute
	DefaultListingTTL     = time.Minute
	DefaultWindow         = 100
	DefaultMostLikedLimit = 10
	DefaultMaxLimit       = 100
)

// Projector answers ranking and listing queries.
type Projector interface {
	// TopRanked returns up to limit links in descending access-score order.
	// Deleted and private links are left out, so fewer than limit may come
	// back; IsPublic is therefore always true in the result.
	TopRanked(ctx context.Context, limit int) ([]ReadModel, error)
	// MostLiked returns the most liked public links.
	MostLiked(ctx context.Context) ([]ReadModel, error)
	// PublicListing returns one page of public links, each decorated with its
	// score when it sits inside the ranking window.
	PublicListing(ctx context.Context, p ListingParams) (paging.Page[ReadModel], error)
	// InvalidateMostLiked evicts the cached most-liked list.
	InvalidateMostLiked(ctx context.Context)
}

type projector struct {
	reader         LinkReader
	counter        score.Counter
	cache          *cache.Cache
	logger         *slog.Logger
	tracer         trace.Tracer
	topTTL         time.Duration
	listingTTL     time.Duration
	window         int
	mostLikedLimit int
	maxLimit       int
}

// Config holds configuration for the projector.
type Config struct {
	Logger         *slog.Logger
	TopTTL         time.Duration
	ListingTTL     time.Duration
	Window         int
	MostLikedLimit int
	MaxLimit       int
}

// NewProjector creates a Projector.
func NewProjector(reader LinkReader, counter score.Counter, c *cache.Cache, config *Config) Projector {
	if config == nil {
		config = &Config{}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &projector{
		reader:         reader,
		counter:        counter,
		cache:          c,
		logger:         logger,
		tracer:         otel.Tracer("github.com/sundayezeilo/shortlinks/internal/ranking"),
		topTTL:         orDuration(config.TopTTL, DefaultTopTTL),
		listingTTL:     orDuration(config.ListingTTL, DefaultListingTTL),
		window:         orInt(config.Window, DefaultWindow),
		mostLikedLimit: orInt(config.MostLikedLimit, DefaultMostLikedLimit),
		maxLimit:       orInt(config.MaxLimit, DefaultMaxLimit),
	}
}

func orDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func (p *projector) TopRanked(ctx context.Context, limit int) ([]ReadModel, error) {
	const op = "ranking.projector.TopRanked"

	if limit <= 0 {
		return nil, errx.E(op, errx.Invalid, errors.New("limit must be positive"))
	}
	if limit > p.maxLimit {
		limit = p.maxLimit
	}

	ctx, span := p.tracer.Start(ctx, op, trace.WithAttributes(attribute.Int("ranking.limit", limit)))
	defer span.End()

	key := cache.Key(keyTopRanked, url.Values{"limit": {strconv.Itoa(limit)}})
	items, err := cache.Fetch(ctx, p.cache, "top", key, p.topTTL, func(ctx context.Context) ([]ReadModel, error) {
		return p.loadTopRanked(ctx, limit)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "top ranked")
		return nil, errx.Wrap(op, err)
	}
	return items, nil
}

func (p *projector) loadTopRanked(ctx context.Context, limit int) ([]ReadModel, error) {
	entries, err := p.counter.Top(ctx, score.AccessBoard, limit)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []ReadModel{}, nil
	}

	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		id, err := uuid.Parse(e.Member)
		if err != nil {
			p.logger.WarnContext(ctx, "skipping malformed ranking member",
				"member", e.Member,
				"error", err.Error(),
			)
			continue
		}
		ids = append(ids, id)
	}

	rows, err := p.reader.LinksByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]ReadModel, len(rows))
	for _, r := range rows {
		byID[r.LinkID.String()] = r
	}

	// Rank order comes from the score store, not from the row order.
	items := make([]ReadModel, 0, len(entries))
	for _, e := range entries {
		m, ok := byID[e.Member]
		if !ok || !m.IsPublic {
			continue
		}
		m.Score = e.Score
		items = append(items, m)
	}
	return items, nil
}

func (p *projector) MostLiked(ctx context.Context) ([]ReadModel, error) {
	const op = "ranking.projector.MostLiked"

	ctx, span := p.tracer.Start(ctx, op)
	defer span.End()

	items, err := cache.Fetch(ctx, p.cache, "most-liked", keyMostLiked, p.topTTL, func(ctx context.Context) ([]ReadModel, error) {
		var (
			rows   []ReadModel
			scores map[string]float64
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			rows, err = p.reader.MostLiked(gctx, p.mostLikedLimit)
			return err
		})
		g.Go(func() error {
			var err error
			scores, err = p.windowScores(gctx)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return decorate(rows, scores), nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "most liked")
		return nil, errx.Wrap(op, err)
	}
	return items, nil
}

func (p *projector) PublicListing(ctx context.Context, params ListingParams) (paging.Page[ReadModel], error) {
	const op = "ranking.projector.PublicListing"

	params, err := params.Normalize()
	if err != nil {
		return paging.Page[ReadModel]{}, errx.E(op, errx.Invalid, err)
	}

	ctx, span := p.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("listing.sort", params.Sort),
		attribute.Int("listing.page", params.Page),
	))
	defer span.End()

	key := cache.Key(keyListing, params.values())
	page, err := cache.Fetch(ctx, p.cache, "listing", key, p.listingTTL, func(ctx context.Context) (paging.Page[ReadModel], error) {
		var (
			rows   []ReadModel
			total  int64
			scores map[string]float64
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			rows, total, err = p.reader.ListPublic(gctx, params)
			return err
		})
		g.Go(func() error {
			var err error
			scores, err = p.windowScores(gctx)
			return err
		})
		if err := g.Wait(); err != nil {
			return paging.Page[ReadModel]{}, err
		}

		return paging.Page[ReadModel]{
			Items:      decorate(rows, scores),
			Page:       params.Page,
			PageSize:   params.PageSize,
			TotalItems: total,
			TotalPages: paging.TotalPages(total, params.PageSize),
		}, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "public listing")
		return paging.Page[ReadModel]{}, errx.Wrap(op, err)
	}
	return page, nil
}

func (p *projector) InvalidateMostLiked(ctx context.Context) {
	p.cache.Invalidate(ctx, "most-liked", keyMostLiked)
}

// windowScores reads the top of the access board. Links outside the window
// are reported with a zero score.
func (p *projector) windowScores(ctx context.Context) (map[string]float64, error) {
	entries, err := p.counter.Top(ctx, score.AccessBoard, p.window)
	if err != nil {
		return nil, err
	}
	return score.Scores(entries), nil
}

func decorate(rows []ReadModel, scores map[string]float64) []ReadModel {
	out := make([]ReadModel, len(rows))
	for i, r := range rows {
		r.Score = scores[r.LinkID.String()]
		out[i] = r
	}
	return out
}

package shortener

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sundayezeilo/shortlinks/internal/account"
	"github.com/sundayezeilo/shortlinks/internal/errx"
	"github.com/sundayezeilo/shortlinks/internal/paging"
	"github.com/sundayezeilo/shortlinks/internal/relation"
	"github.com/sundayezeilo/shortlinks/internal/score"
	"github.com/sundayezeilo/shortlinks/sluggen"
)

const (
	DefaultSlugLength     = 7
	MaxSlugLength         = 64
	MinSlugLength         = 3
	MaxURLLength          = 2048
	MaxNameLength         = 200
	MaxDescriptionLength  = 1000
	DefaultSlugMaxRetries = 3
)

// reservedSlugs are first path segments owned by other routes.
var reservedSlugs = map[string]bool{
	"api":     true,
	"metrics": true,
	"x":       true,
}

// CreateLinkRequest represents the parameters for creating a new link.
type CreateLinkRequest struct {
	AuthorID    uuid.UUID
	OriginalURL string
	CustomSlug  string // Optional: if empty, a slug will be generated
	Name        string // Optional: defaults to the URL host
	Description string
	IsPublic    *bool // Optional: defaults to true
}

// UpdateLinkRequest carries a partial edit. Nil fields are left unchanged.
type UpdateLinkRequest struct {
	ActorID     uuid.UUID
	Slug        string
	OriginalURL *string
	Name        *string
	Description *string
	IsPublic    *bool
}

// Service defines the business logic operations for URL shortening.
type Service interface {
	Create(ctx context.Context, req CreateLinkRequest) (Link, error)
	GetBySlug(ctx context.Context, slug string) (Link, error)
	Resolve(ctx context.Context, slug string) (string, error)
	Update(ctx context.Context, req UpdateLinkRequest) (Link, error)
	Delete(ctx context.Context, actorID uuid.UUID, slug string) error
	Like(ctx context.Context, actorID uuid.UUID, slug string) (Link, error)
	Unlike(ctx context.Context, actorID uuid.UUID, slug string) (Link, error)
	ListMine(ctx context.Context, authorID uuid.UUID, page, pageSize int) (paging.Page[Link], error)
}

// Accounts loads and saves the account that owns the liked links.
// account.Repository satisfies it.
type Accounts interface {
	Get(ctx context.Context, id uuid.UUID) (account.Account, error)
	Save(ctx context.Context, a *account.Account) (relation.Result, error)
}

// ScoreRecorder adds to a member's score. score.Counter satisfies it.
type ScoreRecorder interface {
	Increment(ctx context.Context, board score.Board, member string, amount float64) (float64, error)
}

// RankingInvalidator evicts cached rankings affected by link mutations.
// ranking.Projector satisfies it.
type RankingInvalidator interface {
	InvalidateMostLiked(ctx context.Context)
}

// service implements the Service interface.
type service struct {
	repo           Repository
	accounts       Accounts
	scores         ScoreRecorder
	ranking        RankingInvalidator
	logger         *slog.Logger
	slugGenerator  sluggen.Generator
	slugLength     int
	slugMaxRetries int
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	Accounts       Accounts
	Scores         ScoreRecorder
	Ranking        RankingInvalidator
	Logger         *slog.Logger
	SlugGenerator  sluggen.Generator
	SlugLength     int
	SlugMaxRetries int // attempts when generating a unique slug (default: 3)
}

type nopScores struct{}

func (nopScores) Increment(context.Context, score.Board, string, float64) (float64, error) {
	return 0, nil
}

type nopRanking struct{}

func (nopRanking) InvalidateMostLiked(context.Context) {}

// NewService creates a new service instance.
func NewService(repo Repository, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	slugGen := config.SlugGenerator
	if slugGen == nil {
		slugGen = sluggen.NewBase62()
	}

	slugLength := config.SlugLength
	if slugLength < MinSlugLength || slugLength > MaxSlugLength {
		slugLength = DefaultSlugLength
	}

	retries := config.SlugMaxRetries
	if retries <= 0 {
		retries = DefaultSlugMaxRetries
	}

	var scores ScoreRecorder = nopScores{}
	if config.Scores != nil {
		scores = config.Scores
	}

	var ranking RankingInvalidator = nopRanking{}
	if config.Ranking != nil {
		ranking = config.Ranking
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &service{
		repo:           repo,
		accounts:       config.Accounts,
		scores:         scores,
		ranking:        ranking,
		logger:         logger,
		slugGenerator:  slugGen,
		slugLength:     slugLength,
		slugMaxRetries: retries,
	}
}

// Create creates a new short link with optional custom slug.
func (s *service) Create(ctx context.Context, req CreateLinkRequest) (Link, error) {
	const op = "shortener.service.Create"

	if req.AuthorID == uuid.Nil {
		return Link{}, errx.E(op, errx.Unauthorized, errors.New("author is required"))
	}
	if err := validateURL(req.OriginalURL); err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = defaultName(req.OriginalURL)
	}
	if err := validateDetails(name, req.Description); err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	draft := Link{
		OriginalURL: req.OriginalURL,
		Name:        name,
		Description: req.Description,
		IsPublic:    isPublic,
		AuthorID:    req.AuthorID,
	}

	// Custom slug path: validate and create once
	if req.CustomSlug != "" {
		if err := validateSlug(req.CustomSlug); err != nil {
			return Link{}, errx.E(op, errx.Invalid, err)
		}

		draft.Slug = req.CustomSlug
		created, err := s.repo.Create(ctx, draft)
		if err != nil {
			return Link{}, errx.Wrap(op, err)
		}
		return created, nil
	}

	// Generated slug path: retry on conflicts
	for range s.slugMaxRetries {
		slug, err := s.slugGenerator.Generate(ctx, s.slugLength)
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}

		draft.Slug = slug
		created, err := s.repo.Create(ctx, draft)
		if err == nil {
			return created, nil
		}

		// Retry on conflict, fail on other errors
		if errx.KindOf(err) != errx.Conflict {
			return Link{}, errx.Wrap(op, err)
		}
	}

	return Link{}, errx.E(op, errx.Unavailable,
		errors.New("could not generate unique slug after retries"))
}

func (s *service) GetBySlug(ctx context.Context, slug string) (Link, error) {
	const op = "shortener.service.GetBySlug"

	if slug == "" {
		return Link{}, errx.E(op, errx.Invalid, errors.New("slug cannot be empty"))
	}

	link, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}
	return link, nil
}

// Resolve returns the destination of slug, counts the access in the
// relational store and adds one to the link's access score. Cached
// rankings are not evicted; they catch up when their TTL expires.
func (s *service) Resolve(ctx context.Context, slug string) (string, error) {
	const op = "shortener.service.Resolve"

	if slug == "" {
		return "", errx.E(op, errx.Invalid, errors.New("slug cannot be empty"))
	}

	link, err := s.repo.ResolveAndTrack(ctx, slug)
	if err != nil {
		return "", errx.Wrap(op, err)
	}

	if _, err := s.scores.Increment(ctx, score.AccessBoard, link.ID.String(), 1); err != nil {
		return "", errx.Wrap(op, err)
	}
	return link.OriginalURL, nil
}

func (s *service) Update(ctx context.Context, req UpdateLinkRequest) (Link, error) {
	const op = "shortener.service.Update"

	link, err := s.authorize(ctx, req.ActorID, req.Slug)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}

	if req.OriginalURL != nil {
		if err := validateURL(*req.OriginalURL); err != nil {
			return Link{}, errx.E(op, errx.Invalid, err)
		}
		link.OriginalURL = *req.OriginalURL
	}
	if req.Name != nil {
		link.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		link.Description = *req.Description
	}
	if req.IsPublic != nil {
		link.IsPublic = *req.IsPublic
	}
	if err := validateDetails(link.Name, link.Description); err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}

	updated, err := s.repo.Update(ctx, link)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}

	s.ranking.InvalidateMostLiked(ctx)
	return updated, nil
}

func (s *service) Delete(ctx context.Context, actorID uuid.UUID, slug string) error {
	const op = "shortener.service.Delete"

	link, err := s.authorize(ctx, actorID, slug)
	if err != nil {
		return errx.Wrap(op, err)
	}

	if err := s.repo.Delete(ctx, link.ID); err != nil {
		return errx.Wrap(op, err)
	}

	s.ranking.InvalidateMostLiked(ctx)
	return nil
}

// authorize loads the link and checks that actorID is its author.
func (s *service) authorize(ctx context.Context, actorID uuid.UUID, slug string) (Link, error) {
	const op = "shortener.service.authorize"

	if actorID == uuid.Nil {
		return Link{}, errx.E(op, errx.Unauthorized, errors.New("authentication required"))
	}
	if slug == "" {
		return Link{}, errx.E(op, errx.Invalid, errors.New("slug cannot be empty"))
	}

	link, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}
	if link.AuthorID != actorID {
		return Link{}, errx.E(op, errx.Forbidden, errors.New("only the author can modify this link"))
	}
	return link, nil
}

func (s *service) Like(ctx context.Context, actorID uuid.UUID, slug string) (Link, error) {
	const op = "shortener.service.Like"

	link, err := s.changeLike(ctx, actorID, slug, (*account.Account).Like)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}
	return link, nil
}

func (s *service) Unlike(ctx context.Context, actorID uuid.UUID, slug string) (Link, error) {
	const op = "shortener.service.Unlike"

	link, err := s.changeLike(ctx, actorID, slug, (*account.Account).Unlike)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}
	return link, nil
}

// changeLike applies mutate to the actor's liked links and persists the
// resulting diff. A mutation that changes nothing writes nothing.
func (s *service) changeLike(ctx context.Context, actorID uuid.UUID, slug string, mutate func(*account.Account, uuid.UUID) bool) (Link, error) {
	const op = "shortener.service.changeLike"

	if actorID == uuid.Nil {
		return Link{}, errx.E(op, errx.Unauthorized, errors.New("authentication required"))
	}
	if s.accounts == nil {
		return Link{}, errx.E(op, errx.Internal, errors.New("accounts are not configured"))
	}

	link, err := s.GetBySlug(ctx, slug)
	if err != nil {
		return Link{}, err
	}
	// Private links do not exist for anyone but their author.
	if !link.IsPublic && link.AuthorID != actorID {
		return Link{}, errx.E(op, errx.NotFound, errors.New("link not found"))
	}

	acct, err := s.accounts.Get(ctx, actorID)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}

	if !mutate(&acct, link.ID) {
		return link, nil
	}

	res, err := s.accounts.Save(ctx, &acct)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}

	s.logger.DebugContext(ctx, "liked links persisted",
		"account_id", actorID,
		"link_id", link.ID,
		"inserted", res.Inserted,
		"deleted", res.Deleted,
		"skipped", res.Skipped,
	)

	s.ranking.InvalidateMostLiked(ctx)

	fresh, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}
	return fresh, nil
}

// ListMine returns the author's own links. An empty listing still reports
// one (empty) page.
func (s *service) ListMine(ctx context.Context, authorID uuid.UUID, page, pageSize int) (paging.Page[Link], error) {
	const op = "shortener.service.ListMine"

	if authorID == uuid.Nil {
		return paging.Page[Link]{}, errx.E(op, errx.Unauthorized, errors.New("authentication required"))
	}

	page, pageSize = paging.Normalize(page, pageSize)
	links, total, err := s.repo.ListByAuthor(ctx, authorID, pageSize, paging.Offset(page, pageSize))
	if err != nil {
		return paging.Page[Link]{}, errx.Wrap(op, err)
	}

	return paging.Page[Link]{
		Items:      links,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: paging.TotalPagesAtLeastOne(total, pageSize),
	}, nil
}

func defaultName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}

func validateDetails(name, description string) error {
	if name == "" {
		return errors.New("name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return errors.New("name too long (maximum 200 characters)")
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return errors.New("description too long (maximum 1000 characters)")
	}
	return nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("url cannot be empty")
	}
	if len(rawURL) > MaxURLLength {
		return errors.New("url too long (max 2048 characters)")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid url format")
	}
	if parsedURL.Scheme == "" {
		return errors.New("url must include scheme (http or https)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.New("url scheme must be http or https")
	}
	if parsedURL.Host == "" {
		return errors.New("url must include host")
	}
	return nil
}

func validateSlug(slug string) error {
	if slug == "" {
		return errors.New("slug cannot be empty")
	}
	if len(slug) < MinSlugLength {
		return errors.New("slug too short (minimum 3 characters)")
	}
	if len(slug) > MaxSlugLength {
		return errors.New("slug too long (maximum 64 characters)")
	}

	if strings.HasPrefix(slug, "-") || strings.HasPrefix(slug, "_") ||
		strings.HasSuffix(slug, "-") || strings.HasSuffix(slug, "_") {
		return errors.New("slug cannot start or end with dash or underscore")
	}

	for _, char := range slug {
		if !isValidSlugChar(char) {
			return errors.New("slug contains invalid characters (only alphanumeric, dash, and underscore allowed)")
		}
	}

	if reservedSlugs[strings.ToLower(slug)] {
		return errors.New("slug is reserved")
	}
	return nil
}

func isValidSlugChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	default:
		return false
	}
}

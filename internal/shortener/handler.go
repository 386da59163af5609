package shortener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/shortlinks/internal/errx"
	"github.com/sundayezeilo/shortlinks/internal/httpx"
	"github.com/sundayezeilo/shortlinks/internal/paging"
	"github.com/sundayezeilo/shortlinks/internal/ranking"
)

const DefaultTopLimit = 10

// HTTPCreateLinkRequest represents the JSON request body for creating a link.
type HTTPCreateLinkRequest struct {
	URL         string `json:"url"`
	CustomSlug  string `json:"custom_slug,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	IsPublic    *bool  `json:"is_public,omitempty"`
}

// HTTPUpdateLinkRequest is the JSON body for a partial edit.
type HTTPUpdateLinkRequest struct {
	URL         *string `json:"url,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsPublic    *bool   `json:"is_public,omitempty"`
}

// LinkResponse represents the JSON response for a link.
type LinkResponse struct {
	ID             string  `json:"id"`
	Slug           string  `json:"slug"`
	OriginalURL    string  `json:"original_url"`
	ShortURL       string  `json:"short_url"`
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	IsPublic       bool    `json:"is_public"`
	LikeCount      int64   `json:"like_count"`
	AccessCount    int64   `json:"access_count"`
	AuthorID       string  `json:"author_id"`
	AuthorName     string  `json:"author_name,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
	LastAccessedAt *string `json:"last_accessed_at,omitempty"`
}

// RankedLinkResponse is a ranking read model with its short URL.
type RankedLinkResponse struct {
	ranking.ReadModel
	ShortURL string `json:"short_url"`
}

// Handler provides HTTP handlers for the URL shortener service.
type Handler struct {
	service Service
	ranking ranking.Projector
	logger  *slog.Logger
	baseURL string
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Ranking ranking.Projector
	Logger  *slog.Logger
	BaseURL string // Base URL for constructing short URLs (e.g., "https://short.ly")
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service: cfg.Service,
		ranking: cfg.Ranking,
		logger:  logger,
		baseURL: cfg.BaseURL,
	}
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

func (h *Handler) shortURL(slug string) string {
	return fmt.Sprintf("%s/%s", h.baseURL, slug)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func (h *Handler) toResponse(link Link) LinkResponse {
	resp := LinkResponse{
		ID:          link.ID.String(),
		Slug:        link.Slug,
		OriginalURL: link.OriginalURL,
		ShortURL:    h.shortURL(link.Slug),
		Name:        link.Name,
		Description: link.Description,
		IsPublic:    link.IsPublic,
		LikeCount:   link.LikeCount,
		AccessCount: link.AccessCount,
		AuthorID:    link.AuthorID.String(),
		AuthorName:  link.AuthorName,
		CreatedAt:   formatTime(link.CreatedAt),
		UpdatedAt:   formatTime(link.UpdatedAt),
	}
	if link.LastAccessedAt != nil {
		s := formatTime(*link.LastAccessedAt)
		resp.LastAccessedAt = &s
	}
	return resp
}

func (h *Handler) toRanked(items []ranking.ReadModel) []RankedLinkResponse {
	out := make([]RankedLinkResponse, len(items))
	for i, m := range items {
		out[i] = RankedLinkResponse{ReadModel: m, ShortURL: h.shortURL(m.Slug)}
	}
	return out
}

// requireUser returns the caller's account id or writes 401.
func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := httpx.GetUserID(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized",
			fmt.Sprintf("missing %s header", httpx.UserIDHeader), nil)
		return uuid.Nil, false
	}
	return id, true
}

// CreateLink handles POST requests to create a new short link.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	authorID, ok := requireUser(w, r)
	if !ok {
		return
	}

	// Decode and validate request
	req, err := httpx.DecodeJSON[HTTPCreateLinkRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request",
			"error", err.Error(),
		)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	// Validate required fields
	if err := validateCreateRequest(req); err != nil {
		logger.WarnContext(ctx, "request validation failed",
			"error", err.Error(),
			"url", req.URL,
			"custom_slug", req.CustomSlug,
		)
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return
	}

	link, err := h.service.Create(ctx, CreateLinkRequest{
		AuthorID:    authorID,
		OriginalURL: req.URL,
		CustomSlug:  req.CustomSlug,
		Name:        req.Name,
		Description: req.Description,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		h.handleCreateError(ctx, w, err)
		return
	}

	logger.InfoContext(ctx, "link created successfully",
		"link_id", link.ID.String(),
		"slug", link.Slug,
		"custom_slug", req.CustomSlug != "",
	)

	httpx.WriteJSON(w, http.StatusCreated, h.toResponse(link))
}

// ResolveLink handles GET requests to resolve a slug and redirect to the original URL.
// This increments the access count and the link's access score.
func (h *Handler) ResolveLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	slug := r.PathValue("slug")
	if err := validateSlugFormat(slug); err != nil {
		logger.WarnContext(ctx, "invalid slug format",
			"slug", slug,
			"error", err.Error(),
		)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_slug", err.Error(), nil)
		return
	}

	originalURL, err := h.service.Resolve(ctx, slug)
	if err != nil {
		h.handleResolveError(ctx, w, err, slug)
		return
	}

	logger.InfoContext(ctx, "slug resolved successfully",
		"slug", slug,
		"original_url", originalURL,
		"referer", r.Referer(),
	)

	http.Redirect(w, r, originalURL, http.StatusFound)
}

// GetLink handles GET /api/links/{slug}.
func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	slug := r.PathValue("slug")
	if err := validateSlugFormat(slug); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_slug", err.Error(), nil)
		return
	}

	link, err := h.service.GetBySlug(ctx, slug)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	// Private links are visible to their author only.
	if !link.IsPublic {
		if id, ok := httpx.GetUserID(ctx); !ok || id != link.AuthorID {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "short link doesn't exist", nil)
			return
		}
	}

	httpx.WriteJSON(w, http.StatusOK, h.toResponse(link))
}

// UpdateLink handles PATCH /api/links/{slug}.
func (h *Handler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	actorID, ok := requireUser(w, r)
	if !ok {
		return
	}

	req, err := httpx.DecodeJSON[HTTPUpdateLinkRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request",
			"error", err.Error(),
		)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	link, err := h.service.Update(ctx, UpdateLinkRequest{
		ActorID:     actorID,
		Slug:        r.PathValue("slug"),
		OriginalURL: req.URL,
		Name:        req.Name,
		Description: req.Description,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	logger.InfoContext(ctx, "link updated",
		"link_id", link.ID.String(),
		"slug", link.Slug,
	)

	httpx.WriteJSON(w, http.StatusOK, h.toResponse(link))
}

// DeleteLink handles DELETE /api/links/{slug}.
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actorID, ok := requireUser(w, r)
	if !ok {
		return
	}

	slug := r.PathValue("slug")
	if err := h.service.Delete(ctx, actorID, slug); err != nil {
		h.writeError(ctx, w, err)
		return
	}

	h.requestLogger(r).InfoContext(ctx, "link deleted", "slug", slug)
	httpx.WriteNoContent(w)
}

// LikeLink handles PUT /api/links/{slug}/like.
func (h *Handler) LikeLink(w http.ResponseWriter, r *http.Request) {
	h.changeLike(w, r, h.service.Like)
}

// UnlikeLink handles DELETE /api/links/{slug}/like.
func (h *Handler) UnlikeLink(w http.ResponseWriter, r *http.Request) {
	h.changeLike(w, r, h.service.Unlike)
}

func (h *Handler) changeLike(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID, string) (Link, error)) {
	ctx := r.Context()

	actorID, ok := requireUser(w, r)
	if !ok {
		return
	}

	link, err := fn(ctx, actorID, r.PathValue("slug"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, h.toResponse(link))
}

// ListMine handles GET /api/links/mine.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	authorID, ok := requireUser(w, r)
	if !ok {
		return
	}

	page, pageSize, err := parsePaging(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	result, err := h.service.ListMine(ctx, authorID, page, pageSize)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	items := make([]LinkResponse, len(result.Items))
	for i, link := range result.Items {
		items[i] = h.toResponse(link)
	}

	httpx.WriteJSON(w, http.StatusOK, paging.Page[LinkResponse]{
		Items:      items,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	})
}

// ListPublic handles GET /api/links.
func (h *Handler) ListPublic(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, pageSize, err := parsePaging(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	q := r.URL.Query()
	result, err := h.ranking.PublicListing(ctx, ranking.ListingParams{
		Query:    q.Get("q"),
		Sort:     q.Get("sort"),
		Order:    q.Get("order"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, paging.Page[RankedLinkResponse]{
		Items:      h.toRanked(result.Items),
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	})
}

// TopLinks handles GET /api/links/top.
func (h *Handler) TopLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := DefaultTopLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer", nil)
			return
		}
		limit = n
	}

	items, err := h.ranking.TopRanked(ctx, limit)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	httpx.WriteItems(w, http.StatusOK, h.toRanked(items))
}

// MostLiked handles GET /api/links/most-liked.
func (h *Handler) MostLiked(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	items, err := h.ranking.MostLiked(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	httpx.WriteItems(w, http.StatusOK, h.toRanked(items))
}

func parsePaging(r *http.Request) (int, int, error) {
	q := r.URL.Query()

	page, err := optionalInt(q.Get("page"))
	if err != nil {
		return 0, 0, errors.New("page must be an integer")
	}
	size, err := optionalInt(q.Get("page_size"))
	if err != nil {
		return 0, 0, errors.New("page_size must be an integer")
	}
	return page, size, nil
}

func optionalInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// handleCreateError handles errors from the Create service method.
func (h *Handler) handleCreateError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	switch kind {
	case errx.Conflict:
		h.logger.WarnContext(ctx, "slug conflict", logAttrs...)
		httpx.WriteError(w, http.StatusConflict, "conflict",
			"This slug is already taken",
			map[string]string{
				"hint": "Try a different custom slug or let us generate one for you",
			})

	case errx.Invalid:
		h.logger.WarnContext(ctx, "invalid link request", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)

	case errx.NotFound, errx.Unauthorized:
		h.logger.WarnContext(ctx, "unknown author", logAttrs...)
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "author account doesn't exist", nil)

	case errx.Unavailable:
		h.logger.ErrorContext(ctx, "service unavailable", logAttrs...)
		httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable",
			"Unable to create short link at this time. Please try again.", nil)

	default:
		h.logger.ErrorContext(ctx, "unexpected error creating link", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to create short link at this time. Please try again.", nil)
	}
}

// handleResolveError handles errors from the Resolve service method.
func (h *Handler) handleResolveError(ctx context.Context, w http.ResponseWriter, err error, slug string) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
		"slug", slug,
	}

	switch kind {
	case errx.NotFound:
		h.logger.WarnContext(ctx, "slug not found", logAttrs...)
		httpx.WriteError(w, http.StatusNotFound, "not_found",
			"short link doesn't exist", nil)

	case errx.Invalid:
		h.logger.WarnContext(ctx, "invalid slug", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_slug", err.Error(), nil)

	default:
		h.logger.ErrorContext(ctx, "unexpected error resolving link", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to resolve this link at this time", nil)
	}
}

// writeError maps any other service error through its kind.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"request_id", httpx.GetRequestID(ctx),
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	var message string
	switch {
	case kind == errx.NotFound:
		h.logger.WarnContext(ctx, "resource not found", logAttrs...)
		message = "short link doesn't exist"
	case kind == errx.Forbidden:
		h.logger.WarnContext(ctx, "forbidden", logAttrs...)
		message = "only the author can modify this link"
	case httpx.ErrorKindToStatus(kind) < http.StatusInternalServerError:
		h.logger.WarnContext(ctx, "request rejected", logAttrs...)
	default:
		h.logger.ErrorContext(ctx, "request failed", logAttrs...)
		message = "Unable to process the request at this time. Please try again."
	}

	httpx.WriteKindError(w, err, message)
}

// validateCreateRequest validates the HTTPCreateLinkRequest.
func validateCreateRequest(req HTTPCreateLinkRequest) error {
	if req.URL == "" {
		return errors.New("url is required")
	}
	return nil
}

// validateSlugFormat performs basic slug format validation for HTTP layer.
// This is a lightweight check before calling the service layer.
func validateSlugFormat(slug string) error {
	if slug == "" {
		return errors.New("invalid link")
	}

	if len(slug) > MaxSlugLength {
		return errors.New("invalid link")
	}
	return nil
}

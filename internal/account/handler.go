package account

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/shortlinks/internal/errx"
	"github.com/sundayezeilo/shortlinks/internal/httpx"
)

// HTTPRegisterRequest is the JSON body for creating an account.
type HTTPRegisterRequest struct {
	Name string `json:"name"`
}

// Response is the JSON representation of an account.
type Response struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	LikedLinks []uuid.UUID `json:"liked_links"`
	CreatedAt  string      `json:"created_at"`
}

// Handler provides HTTP handlers for accounts.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service: cfg.Service,
		logger:  logger,
	}
}

func toResponse(a Account) Response {
	liked := a.LikedLinks.Items()
	if liked == nil {
		liked = []uuid.UUID{}
	}
	return Response{
		ID:         a.ID.String(),
		Name:       a.Name,
		LikedLinks: liked,
		CreatedAt:  a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Register handles POST /api/users.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With(
		"request_id", httpx.GetRequestID(ctx),
		"method", r.Method,
		"path", r.URL.Path,
	)

	req, err := httpx.DecodeJSON[HTTPRegisterRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request",
			"error", err.Error(),
		)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	account, err := h.service.Register(ctx, req.Name)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	logger.InfoContext(ctx, "account registered",
		"account_id", account.ID.String(),
	)

	httpx.WriteJSON(w, http.StatusCreated, toResponse(account))
}

// Get handles GET /api/users/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid account id", nil)
		return
	}

	account, err := h.service.Get(ctx, id)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toResponse(account))
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"request_id", httpx.GetRequestID(ctx),
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	status := httpx.ErrorKindToStatus(kind)
	message := err.Error()
	switch {
	case kind == errx.NotFound:
		h.logger.WarnContext(ctx, "account not found", logAttrs...)
		message = "account doesn't exist"
	case status < http.StatusInternalServerError:
		h.logger.WarnContext(ctx, "account request rejected", logAttrs...)
	default:
		h.logger.ErrorContext(ctx, "account request failed", logAttrs...)
		message = "Unable to process the request at this time. Please try again."
	}

	httpx.WriteError(w, status, httpx.ErrorKindToCode(kind), message, nil)
}

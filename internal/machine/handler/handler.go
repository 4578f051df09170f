// Package handler exposes the machine domain over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gumball/internal/machine/models"
	"gumball/internal/machine/service"
	"gumball/internal/platform/metrics"
	"gumball/internal/platform/middleware"
	"gumball/pkg/domain"
	dErrors "gumball/pkg/domain-errors"
	"gumball/pkg/platform/httputil"
)

// Service defines the interface for machine operations.
type Service interface {
	Initialize(ctx context.Context, owner domain.Identity, req models.InitializeRequest) (*models.Config, error)
	CreateCollection(ctx context.Context, owner domain.Identity) (domain.Identity, error)
	AddAllowList(ctx context.Context, owner, user domain.Identity, quota uint8) error
	SetTreeStatus(ctx context.Context, owner domain.Identity, status domain.TreeStatus) error
	GetConfig(ctx context.Context, owner domain.Identity) (*models.Config, error)
	Receipts(ctx context.Context, owner domain.Identity) ([]*models.Receipt, error)
	Mint(ctx context.Context, cmd service.MintCommand) (*models.Receipt, error)
}

// Handler handles machine endpoints.
type Handler struct {
	logger       *slog.Logger
	machine      Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
	requestTTL   time.Duration
}

type Option func(*Handler)

// WithRequestTTL bounds handler execution time.
func WithRequestTTL(d time.Duration) Option {
	return func(h *Handler) {
		h.requestTTL = d
	}
}

// New creates a machine Handler.
func New(
	machine Service,
	logger *slog.Logger,
	m *metrics.Metrics,
	jwtValidator middleware.JWTValidator,
	opts ...Option) *Handler {
	h := &Handler{
		logger:       logger,
		machine:      machine,
		metrics:      m,
		jwtValidator: jwtValidator,
		requestTTL:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the machine routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	machineRouter := chi.NewRouter()
	machineRouter.Use(middleware.Recovery(h.logger))
	machineRouter.Use(middleware.RequestID)
	machineRouter.Use(middleware.Logger(h.logger))
	machineRouter.Use(middleware.Timeout(h.requestTTL))
	machineRouter.Use(middleware.ContentTypeJSON)
	machineRouter.Use(middleware.LatencyMiddleware(h.metrics))
	machineRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	machineRouter.Post("/v1/machine", h.handleInitialize)
	machineRouter.Get("/v1/machine", h.handleGetConfig)
	machineRouter.Get("/v1/machine/receipts", h.handleReceipts)
	machineRouter.Post("/v1/machine/collection", h.handleCreateCollection)
	machineRouter.Post("/v1/machine/allowlist", h.handleAddAllowList)
	machineRouter.Put("/v1/machine/status", h.handleSetStatus)
	machineRouter.Post("/v1/machine/{owner}/mint", h.handleMint)

	r.Mount("/", machineRouter)
}

// caller resolves the authenticated subject into an identity. The auth
// middleware guarantees a subject is present; parse failures mean the token
// was minted with a malformed identity.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	ctx := r.Context()
	subject := middleware.GetSubject(ctx)
	if subject == "" {
		h.logger.ErrorContext(ctx, "subject missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return domain.Identity{}, false
	}
	id, err := domain.ParseIdentity(subject)
	if err != nil {
		h.logger.WarnContext(ctx, "token subject is not a valid identity",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "token subject is not a valid identity"))
		return domain.Identity{}, false
	}
	return id, true
}

// handleInitialize creates the caller's machine record and binds its tree.
func (h *Handler) handleInitialize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req models.InitializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	cfg, err := h.machine.Initialize(ctx, owner, req)
	if err != nil {
		h.writeServiceError(ctx, w, "initialize machine", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.NewConfigResponse(cfg))
}

// handleGetConfig returns the caller's record.
func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.caller(w, r)
	if !ok {
		return
	}

	cfg, err := h.machine.GetConfig(ctx, owner)
	if err != nil {
		h.writeServiceError(ctx, w, "get machine", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewConfigResponse(cfg))
}

// handleReceipts lists the caller's issuance journal.
func (h *Handler) handleReceipts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.caller(w, r)
	if !ok {
		return
	}

	receipts, err := h.machine.Receipts(ctx, owner)
	if err != nil {
		h.writeServiceError(ctx, w, "list receipts", err)
		return
	}

	resp := make([]models.ReceiptResponse, 0, len(receipts))
	for _, rec := range receipts {
		resp = append(resp, models.ReceiptResponse{
			ReceiptID: rec.ID.String(),
			Requester: rec.Requester.String(),
			Metadata:  rec.Metadata,
			Gate:      string(rec.Gate),
			Supply:    rec.Supply,
			CreatedAt: rec.CreatedAt,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleCreateCollection binds a collection to the caller's machine.
func (h *Handler) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.caller(w, r)
	if !ok {
		return
	}

	collection, err := h.machine.CreateCollection(ctx, owner)
	if err != nil {
		h.writeServiceError(ctx, w, "create collection", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.CollectionResponse{Collection: collection.String()})
}

// handleAddAllowList appends one quota entry to the caller's machine.
func (h *Handler) handleAddAllowList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req models.AddAllowListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	user, err := domain.ParseIdentity(req.User)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.machine.AddAllowList(ctx, owner, user, req.Quota); err != nil {
		h.writeServiceError(ctx, w, "add allow list entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetStatus overwrites the caller's machine status.
func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req models.SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	status, err := domain.ParseTreeStatus(req.Status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.machine.SetTreeStatus(ctx, owner, status); err != nil {
		h.writeServiceError(ctx, w, "set status", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMint issues one item from the machine named in the path. The
// authenticated caller is the requester; the path owner names the machine.
func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requester, ok := h.caller(w, r)
	if !ok {
		return
	}

	owner, err := domain.ParseIdentity(chi.URLParam(r, "owner"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "owner is not a valid identity"))
		return
	}

	var req models.MintHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	cmd := service.MintCommand{
		Owner:     owner,
		Requester: requester,
		Metadata:  req.Metadata,
	}
	if req.PassTokenAccount != "" {
		account, err := domain.ParseIdentity(req.PassTokenAccount)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "pass_token_account is not a valid identity"))
			return
		}
		cmd.PassTokenAccount = &account
	}

	receipt, err := h.machine.Mint(ctx, cmd)
	if err != nil {
		h.writeServiceError(ctx, w, "mint", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.MintResponse{
		ReceiptID: receipt.ID.String(),
		Gate:      string(receipt.Gate),
		Supply:    receipt.Supply,
		CreatedAt: receipt.CreatedAt,
	})
}

// writeServiceError logs by severity and renders the error. Coded errors pass
// through; anything uncoded is surfaced as an internal failure.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "operation failed",
			"op", op,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "operation failed"))
		return
	}
	h.logger.WarnContext(ctx, "operation rejected",
		"op", op,
		"code", string(code),
		"request_id", middleware.GetRequestID(ctx),
		"error", err.Error(),
	)
	httputil.WriteError(w, err)
}

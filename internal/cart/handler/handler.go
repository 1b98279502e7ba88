// Package handler is the thin HTTP layer over the reconciliation engine.
// HTTP concerns only; cart semantics live in the service.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cartsync/internal/cart/models"
	catalogmodels "cartsync/internal/catalog/models"
	"cartsync/internal/platform/middleware"
	"cartsync/internal/transport/http/shared"
	"cartsync/pkg/domain"
	dErrors "cartsync/pkg/domain-errors"
)

// Engine is the slice of the reconciliation engine the HTTP layer consumes.
type Engine interface {
	Add(ctx context.Context, product catalogmodels.Product)
	UpdateQuantity(ctx context.Context, ref models.ItemRef, qty int) error
	Remove(ctx context.Context, ref models.ItemRef)
	Clear(ctx context.Context)
	Items() []models.LineItem
	Aggregate() []models.AggregateEntry
	Products() []catalogmodels.Product
	State() models.LoadState
	LoadError() string
	CatalogError() string
	LastError() error
}

// Handler handles cart endpoints.
type Handler struct {
	logger *slog.Logger
	engine Engine
}

// New creates a cart Handler.
func New(engine Engine, logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
		engine: engine,
	}
}

// Register registers the cart routes. Auth middleware is applied by the
// router; these handlers assume an identity-scoped request context.
func (h *Handler) Register(r chi.Router) {
	r.Get("/cart", h.handleGetCart)
	r.Post("/cart/items", h.handleAddItem)
	r.Patch("/cart/items/{productID}", h.handleUpdateQuantity)
	r.Delete("/cart/items/{productID}", h.handleRemoveItem)
	r.Delete("/cart", h.handleClearCart)
	r.Get("/catalog", h.handleGetCatalog)
}

// cartResponse is the read view: the aggregate entries plus the load state
// and the engine's error slots.
type cartResponse struct {
	State        models.LoadState        `json:"state"`
	Items        []models.AggregateEntry `json:"items"`
	LoadError    string                  `json:"load_error,omitempty"`
	CatalogError string                  `json:"catalog_error,omitempty"`
	LastError    string                  `json:"last_error,omitempty"`
}

func (h *Handler) cartSnapshot() cartResponse {
	resp := cartResponse{
		State:        h.engine.State(),
		Items:        h.engine.Aggregate(),
		LoadError:    h.engine.LoadError(),
		CatalogError: h.engine.CatalogError(),
	}
	if err := h.engine.LastError(); err != nil {
		resp.LastError = err.Error()
	}
	return resp
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	shared.WriteJSON(w, http.StatusOK, h.cartSnapshot())
}

type addItemRequest struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Thumbnail   string  `json:"thumbnail"`
	Description string  `json:"description"`
}

// handleAddItem applies the optimistic append and returns once it is in the
// cache; persistence continues in the background, so the status is 202.
func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid add item request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.ID <= 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "product id is required"))
		return
	}

	h.engine.Add(ctx, catalogmodels.Product{
		ID:          domain.ProductID(req.ID),
		Title:       req.Title,
		Price:       req.Price,
		Thumbnail:   req.Thumbnail,
		Description: req.Description,
	})
	shared.WriteJSON(w, http.StatusAccepted, h.cartSnapshot())
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	productID, err := domain.ParseProductID(chi.URLParam(r, "productID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, err.Error()))
		return
	}

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid update quantity request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.engine.UpdateQuantity(ctx, models.ItemRef{ProductID: productID}, req.Quantity); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusAccepted, h.cartSnapshot())
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, err := domain.ParseProductID(chi.URLParam(r, "productID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, err.Error()))
		return
	}

	h.engine.Remove(r.Context(), models.ItemRef{ProductID: productID})
	shared.WriteJSON(w, http.StatusAccepted, h.cartSnapshot())
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	h.engine.Clear(r.Context())
	shared.WriteJSON(w, http.StatusOK, h.cartSnapshot())
}

func (h *Handler) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	products := h.engine.Products()
	if products == nil {
		products = []catalogmodels.Product{}
	}
	shared.WriteJSON(w, http.StatusOK, products)
}

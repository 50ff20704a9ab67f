package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mitumba-market/api/internal/platform/auth"
	"github.com/mitumba-market/api/internal/platform/httpx"
	"github.com/mitumba-market/api/internal/services"
)

const maxCartBodySize = 4 * 1024

type addCartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// CartHandlers exposes the per-buyer cart endpoints.
type CartHandlers struct {
	authn *auth.Authenticator
	cart  services.CartService
}

// NewCartHandlers constructs a new CartHandlers instance.
func NewCartHandlers(authn *auth.Authenticator, cart services.CartService) *CartHandlers {
	return &CartHandlers{
		authn: authn,
		cart:  cart,
	}
}

// Routes registers the /cart endpoints.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/items", h.listItems)
	r.Post("/items", h.addItem)
	r.Patch("/items/{itemID}", h.updateItem)
	r.Delete("/items/{itemID}", h.removeItem)
	r.Delete("/", h.clear)
}

func (h *CartHandlers) listItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w, r)
	if !ok {
		return
	}

	items, err := h.cart.ListItems(ctx, actor)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	payload := cartListResponse{Items: make([]cartItemPayload, 0, len(items))}
	for _, item := range items {
		payload.Items = append(payload.Items, buildCartItemPayload(item))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w, r)
	if !ok {
		return
	}

	var req addCartItemRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	item, err := h.cart.AddItem(ctx, services.AddCartItemCommand{
		Actor:     actor,
		ProductID: strings.TrimSpace(req.ProductID),
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, cartItemResponse{Item: buildCartItemPayload(item)})
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w, r)
	if !ok {
		return
	}

	itemID := strings.TrimSpace(chi.URLParam(r, "itemID"))
	if itemID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "item id is required", http.StatusBadRequest))
		return
	}

	var req updateCartItemRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	item, err := h.cart.UpdateItem(ctx, services.UpdateCartItemCommand{
		Actor:    actor,
		ItemID:   itemID,
		Quantity: req.Quantity,
	})
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, cartItemResponse{Item: buildCartItemPayload(item)})
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w, r)
	if !ok {
		return
	}

	itemID := strings.TrimSpace(chi.URLParam(r, "itemID"))
	if itemID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "item id is required", http.StatusBadRequest))
		return
	}

	if err := h.cart.RemoveItem(ctx, actor, itemID); err != nil {
		writeCartError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandlers) clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w, r)
	if !ok {
		return
	}

	if err := h.cart.Clear(ctx, actor); err != nil {
		writeCartError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandlers) requireActor(ctx context.Context, w http.ResponseWriter, r *http.Request) (services.Actor, bool) {
	if h.cart == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return services.Actor{}, false
	}
	actor, ok := actorFromContext(r)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return services.Actor{}, false
	}
	return actor, true
}

func (h *CartHandlers) decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if len(body) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}

type cartListResponse struct {
	Items []cartItemPayload `json:"items"`
}

type cartItemResponse struct {
	Item cartItemPayload `json:"item"`
}

type cartItemPayload struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func buildCartItemPayload(item services.CartItem) cartItemPayload {
	return cartItemPayload{
		ID:        item.ID,
		ProductID: item.ProductID,
		Title:     item.Title,
		Quantity:  item.Quantity,
		UnitPrice: item.UnitPrice,
		CreatedAt: formatTime(item.CreatedAt),
		UpdatedAt: formatTime(item.UpdatedAt),
	}
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartItemNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_item_not_found", "cart item not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartProductUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("product_unavailable", "product is not available", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "failed to process cart request", http.StatusInternalServerError))
	}
}

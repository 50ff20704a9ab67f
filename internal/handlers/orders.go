package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mitumba-market/api/internal/domain"
	"github.com/mitumba-market/api/internal/platform/auth"
	"github.com/mitumba-market/api/internal/platform/httpx"
	"github.com/mitumba-market/api/internal/services"
)

const maxOrderBodySize = 16 * 1024

var validOrderStatuses = map[domain.OrderStatus]struct{}{
	domain.OrderStatusPending:   {},
	domain.OrderStatusConfirmed: {},
	domain.OrderStatusInTransit: {},
	domain.OrderStatusDelivered: {},
	domain.OrderStatusCancelled: {},
}

type checkoutRequest struct {
	Description     string          `json:"description"`
	ShippingAddress *addressPayload `json:"shipping_address"`
}

type assignTransporterRequest struct {
	TransporterID string `json:"transporter_id"`
}

type cancelOrderRequest struct {
	Reason         string `json:"reason"`
	ExpectedStatus string `json:"expected_status"`
}

// OrderHandlers exposes the fulfillment workflow endpoints.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.listOrders)
	r.Post("/", h.checkout)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}:confirm", h.confirmOrder)
	r.Post("/{orderID}:assign", h.assignTransporter)
	r.Post("/{orderID}:deliver", h.deliverOrder)
	r.Post("/{orderID}:cancel", h.cancelOrder)
}

func (h *OrderHandlers) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}
	if req.ShippingAddress == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "shipping_address is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.CreateFromCart(ctx, services.CheckoutCartCommand{
		Actor:           actor,
		ShippingAddress: addressFromPayload(*req.ShippingAddress),
		Description:     strings.TrimSpace(req.Description),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w, r)
	if !ok {
		return
	}

	query := r.URL.Query()

	statuses := make([]domain.OrderStatus, 0, len(query["status"]))
	for _, raw := range query["status"] {
		status, valid := parseOrderStatus(raw)
		if !valid {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be a valid order status", http.StatusBadRequest))
			return
		}
		statuses = append(statuses, status)
	}

	party, err := listParty(actor, query.Get("role"), query.Get("user_id"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	orders, err := h.orders.ListOrders(ctx, services.OrderListQuery{
		Party:    party,
		Statuses: statuses,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderSummaryPayload, 0, len(orders))
	for _, order := range orders {
		items = append(items, buildOrderSummary(order))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{Items: items})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w, r)
	if !ok {
		return
	}

	orderID, ok := h.requireOrderID(ctx, w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID, actor)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) confirmOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w, r)
	if !ok {
		return
	}

	orderID, ok := h.requireOrderID(ctx, w, r)
	if !ok {
		return
	}

	order, err := h.orders.Confirm(ctx, services.ConfirmOrderCommand{
		OrderID: orderID,
		Actor:   actor,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) assignTransporter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w, r)
	if !ok {
		return
	}

	orderID, ok := h.requireOrderID(ctx, w, r)
	if !ok {
		return
	}

	var req assignTransporterRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}
	if strings.TrimSpace(req.TransporterID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "transporter_id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.AssignTransporter(ctx, services.AssignTransporterCommand{
		OrderID:       orderID,
		TransporterID: strings.TrimSpace(req.TransporterID),
		Actor:         actor,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) deliverOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w, r)
	if !ok {
		return
	}

	orderID, ok := h.requireOrderID(ctx, w, r)
	if !ok {
		return
	}

	order, err := h.orders.CompleteDelivery(ctx, services.DeliverOrderCommand{
		OrderID: orderID,
		Actor:   actor,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w, r)
	if !ok {
		return
	}

	orderID, ok := h.requireOrderID(ctx, w, r)
	if !ok {
		return
	}

	var req cancelOrderRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	cmd := services.CancelOrderCommand{
		OrderID: orderID,
		Actor:   actor,
		Reason:  strings.TrimSpace(req.Reason),
	}
	if raw := strings.TrimSpace(req.ExpectedStatus); raw != "" {
		expected, valid := parseOrderStatus(raw)
		if !valid {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expected_status must be a valid order status", http.StatusBadRequest))
			return
		}
		cmd.ExpectedStatus = &expected
	}

	order, err := h.orders.Cancel(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) requireActor(ctx context.Context, w http.ResponseWriter, r *http.Request) (services.Actor, bool) {
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return services.Actor{}, false
	}
	actor, ok := actorFromContext(r)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return services.Actor{}, false
	}
	return actor, true
}

func (h *OrderHandlers) requireOrderID(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return "", false
	}
	return orderID, true
}

func (h *OrderHandlers) decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := readLimitedBody(r, maxOrderBodySize)
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
		return true
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}

// listParty resolves which order participant the listing is scoped to.
// Admins may inspect any participant; everyone else gets their own orders
// filtered by their marketplace role.
func listParty(actor services.Actor, roleParam, userParam string) (domain.OrderParty, error) {
	role := strings.ToLower(strings.TrimSpace(roleParam))
	userID := strings.TrimSpace(userParam)

	if actor.IsAdmin() && userID != "" {
		switch role {
		case "trader":
			return domain.TraderParty(userID), nil
		case "transporter":
			return domain.TransporterParty(userID), nil
		case "", "buyer":
			return domain.BuyerParty(userID), nil
		default:
			return domain.OrderParty{}, errors.New("role must be buyer, trader or transporter")
		}
	}

	switch actor.Role {
	case domain.RoleTrader:
		return domain.TraderParty(actor.ID), nil
	case domain.RoleTransporter:
		return domain.TransporterParty(actor.ID), nil
	default:
		return domain.BuyerParty(actor.ID), nil
	}
}

type orderListResponse struct {
	Items []orderSummaryPayload `json:"items"`
}

type orderSummaryPayload struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	Currency    string `json:"currency"`
	Amount      int64  `json:"amount"`
	CreatedAt   string `json:"created_at"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderPayload struct {
	ID              string             `json:"id"`
	OrderNumber     string             `json:"order_number"`
	BuyerID         string             `json:"buyer_id"`
	TraderID        *string            `json:"trader_id,omitempty"`
	TransporterID   *string            `json:"transporter_id,omitempty"`
	Title           string             `json:"title"`
	Description     string             `json:"description,omitempty"`
	Amount          int64              `json:"amount"`
	Currency        string             `json:"currency"`
	Status          string             `json:"status"`
	ShippingAddress addressPayload     `json:"shipping_address"`
	CancelReason    string             `json:"cancel_reason,omitempty"`
	Items           []orderItemPayload `json:"items"`
	CreatedAt       string             `json:"created_at"`
	UpdatedAt       string             `json:"updated_at,omitempty"`
	ConfirmedAt     string             `json:"confirmed_at,omitempty"`
	PickedUpAt      string             `json:"picked_up_at,omitempty"`
	DeliveredAt     string             `json:"delivered_at,omitempty"`
	CancelledAt     string             `json:"cancelled_at,omitempty"`
}

type orderItemPayload struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	Title       string `json:"title"`
	Quantity    int    `json:"quantity"`
	PriceAtTime int64  `json:"price_at_time"`
	LineTotal   int64  `json:"line_total"`
}

type addressPayload struct {
	Recipient  string `json:"recipient,omitempty"`
	Line       string `json:"line"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

func buildOrderSummary(order services.Order) orderSummaryPayload {
	return orderSummaryPayload{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		Title:       order.Title,
		Status:      string(order.Status),
		Currency:    strings.ToUpper(order.Currency),
		Amount:      order.Amount,
		CreatedAt:   formatTime(order.CreatedAt),
	}
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		BuyerID:         order.BuyerID,
		TraderID:        order.TraderID,
		TransporterID:   order.TransporterID,
		Title:           order.Title,
		Description:     order.Description,
		Amount:          order.Amount,
		Currency:        strings.ToUpper(order.Currency),
		Status:          string(order.Status),
		ShippingAddress: buildAddressPayload(order.ShippingAddress),
		CancelReason:    order.CancelReason,
		Items:           make([]orderItemPayload, 0, len(order.Items)),
		CreatedAt:       formatTime(order.CreatedAt),
		UpdatedAt:       formatTime(order.UpdatedAt),
		ConfirmedAt:     formatTime(pointerTime(order.ConfirmedAt)),
		PickedUpAt:      formatTime(pointerTime(order.PickedUpAt)),
		DeliveredAt:     formatTime(pointerTime(order.DeliveredAt)),
		CancelledAt:     formatTime(pointerTime(order.CancelledAt)),
	}

	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ID:          item.ID,
			ProductID:   item.ProductID,
			Title:       item.Title,
			Quantity:    item.Quantity,
			PriceAtTime: item.PriceAtTime,
			LineTotal:   item.LineTotal,
		})
	}

	return payload
}

func buildAddressPayload(addr services.Address) addressPayload {
	return addressPayload{
		Recipient:  addr.Recipient,
		Line:       addr.Line,
		City:       addr.City,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
		Phone:      addr.Phone,
	}
}

func addressFromPayload(payload addressPayload) services.Address {
	return services.Address{
		Recipient:  strings.TrimSpace(payload.Recipient),
		Line:       strings.TrimSpace(payload.Line),
		City:       strings.TrimSpace(payload.City),
		PostalCode: strings.TrimSpace(payload.PostalCode),
		Country:    strings.TrimSpace(payload.Country),
		Phone:      strings.TrimSpace(payload.Phone),
	}
}

func parseOrderStatus(raw string) (domain.OrderStatus, bool) {
	status := domain.OrderStatus(strings.TrimSpace(strings.ToLower(raw)))
	if _, ok := validOrderStatuses[status]; !ok {
		return "", false
	}
	return status, true
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCartEmpty):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart is empty", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("order_forbidden", "not allowed for this order", http.StatusForbidden))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

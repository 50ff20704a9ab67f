package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mitumba-market/api/internal/domain"
	"github.com/mitumba-market/api/internal/services"
)

func newOrderRouter(service services.OrderService) chi.Router {
	router := chi.NewRouter()
	router.Route("/orders", NewOrderHandlers(nil, service).Routes)
	return router
}

func TestOrderHandlersCheckout(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	service := &stubOrderService{
		createFromCartFunc: func(_ context.Context, cmd services.CheckoutCartCommand) (services.Order, error) {
			if cmd.Actor.ID != "buyer-1" || cmd.Actor.Role != domain.RoleBuyer {
				t.Fatalf("unexpected actor %+v", cmd.Actor)
			}
			if cmd.ShippingAddress.City != "Nairobi" {
				t.Fatalf("unexpected city %q", cmd.ShippingAddress.City)
			}
			return services.Order{
				ID:              "ord-1",
				OrderNumber:     "MT-2026-000042",
				BuyerID:         cmd.Actor.ID,
				Title:           "Denim jacket",
				Amount:          2200,
				Currency:        "kes",
				Status:          domain.OrderStatusPending,
				ShippingAddress: cmd.ShippingAddress,
				Items: []services.OrderItem{
					{ID: "itm-1", ProductID: "prod-1", Title: "Denim jacket", Quantity: 2, PriceAtTime: 500, LineTotal: 1000},
				},
				CreatedAt: now,
				UpdatedAt: now,
			}, nil
		},
	}

	router := newOrderRouter(service)

	body := `{"description":"leave at gate","shipping_address":{"line":"Moi Avenue 12","city":"Nairobi"}}`
	req := httptest.NewRequest(http.MethodPost, "/orders/", strings.NewReader(body))
	req = authenticated(req, "buyer-1", "buyer")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Order.ID != "ord-1" || resp.Order.OrderNumber != "MT-2026-000042" {
		t.Fatalf("unexpected order %+v", resp.Order)
	}
	if resp.Order.Currency != "KES" {
		t.Fatalf("expected uppercased currency, got %q", resp.Order.Currency)
	}
	if resp.Order.Status != "pending" {
		t.Fatalf("unexpected status %q", resp.Order.Status)
	}
	if len(resp.Order.Items) != 1 || resp.Order.Items[0].PriceAtTime != 500 {
		t.Fatalf("unexpected items %+v", resp.Order.Items)
	}
	if resp.Order.CreatedAt != "2026-03-14T10:00:00Z" {
		t.Fatalf("unexpected created_at %q", resp.Order.CreatedAt)
	}
}

func TestOrderHandlersCheckoutRequiresShippingAddress(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})

	req := httptest.NewRequest(http.MethodPost, "/orders/", strings.NewReader(`{"description":"x"}`))
	req = authenticated(req, "buyer-1", "buyer")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersCheckoutEmptyCart(t *testing.T) {
	service := &stubOrderService{
		createFromCartFunc: func(context.Context, services.CheckoutCartCommand) (services.Order, error) {
			return services.Order{}, services.ErrCartEmpty
		},
	}

	router := newOrderRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/orders/", strings.NewReader(`{"shipping_address":{"line":"Moi Avenue 12"}}`))
	req = authenticated(req, "buyer-1", "buyer")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["error"] != "cart_empty" {
		t.Fatalf("expected cart_empty code, got %v", resp["error"])
	}
}

func TestOrderHandlersRejectAnonymousRequests(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})

	req := httptest.NewRequest(http.MethodGet, "/orders/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestOrderHandlersListScopesToActorRole(t *testing.T) {
	var captured services.OrderListQuery
	service := &stubOrderService{
		listOrdersFunc: func(_ context.Context, query services.OrderListQuery) ([]services.Order, error) {
			captured = query
			return []services.Order{{ID: "ord-1", Status: domain.OrderStatusPending}}, nil
		},
	}

	router := newOrderRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/orders/?status=pending&status=confirmed", nil)
	req = authenticated(req, "trader-1", "trader")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.Party.Role != domain.PartyTrader || captured.Party.UserID != "trader-1" {
		t.Fatalf("expected trader party, got %+v", captured.Party)
	}
	if len(captured.Statuses) != 2 {
		t.Fatalf("expected 2 status filters, got %d", len(captured.Statuses))
	}
}

func TestOrderHandlersListRejectsUnknownStatus(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})

	req := httptest.NewRequest(http.MethodGet, "/orders/?status=shipped", nil)
	req = authenticated(req, "buyer-1", "buyer")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersListAdminInspectsOtherParticipants(t *testing.T) {
	var captured services.OrderListQuery
	service := &stubOrderService{
		listOrdersFunc: func(_ context.Context, query services.OrderListQuery) ([]services.Order, error) {
			captured = query
			return nil, nil
		},
	}

	router := newOrderRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/orders/?role=transporter&user_id=trans-7", nil)
	req = authenticated(req, "admin-1", "admin")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.Party.Role != domain.PartyTransporter || captured.Party.UserID != "trans-7" {
		t.Fatalf("expected transporter party for trans-7, got %+v", captured.Party)
	}
}

func TestOrderHandlersConfirmMapsConflict(t *testing.T) {
	service := &stubOrderService{
		confirmFunc: func(context.Context, services.ConfirmOrderCommand) (services.Order, error) {
			return services.Order{}, fmt.Errorf("%w: raced", services.ErrOrderConflict)
		},
	}

	router := newOrderRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/orders/ord-1:confirm", nil)
	req = authenticated(req, "trader-1", "trader")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestOrderHandlersAssignRequiresTransporterID(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})

	req := httptest.NewRequest(http.MethodPost, "/orders/ord-1:assign", strings.NewReader(`{}`))
	req = authenticated(req, "trader-1", "trader")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersCancelForwardsExpectedStatus(t *testing.T) {
	var captured services.CancelOrderCommand
	service := &stubOrderService{
		cancelFunc: func(_ context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
			captured = cmd
			return services.Order{ID: cmd.OrderID, Status: domain.OrderStatusCancelled}, nil
		},
	}

	router := newOrderRouter(service)

	body := `{"reason":"changed my mind","expected_status":"pending"}`
	req := httptest.NewRequest(http.MethodPost, "/orders/ord-1:cancel", strings.NewReader(body))
	req = authenticated(req, "buyer-1", "buyer")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.Reason != "changed my mind" {
		t.Fatalf("unexpected reason %q", captured.Reason)
	}
	if captured.ExpectedStatus == nil || *captured.ExpectedStatus != domain.OrderStatusPending {
		t.Fatalf("expected pending expected_status, got %v", captured.ExpectedStatus)
	}
}

func TestOrderHandlersCancelRejectsBogusExpectedStatus(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})

	req := httptest.NewRequest(http.MethodPost, "/orders/ord-1:cancel", strings.NewReader(`{"expected_status":"shipped"}`))
	req = authenticated(req, "buyer-1", "buyer")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersGetOrderNotFound(t *testing.T) {
	service := &stubOrderService{
		getOrderFunc: func(_ context.Context, orderID string, _ services.Actor) (services.Order, error) {
			return services.Order{}, fmt.Errorf("%w: %s", services.ErrOrderNotFound, orderID)
		},
	}

	router := newOrderRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/orders/ord-404", nil)
	req = authenticated(req, "buyer-1", "buyer")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

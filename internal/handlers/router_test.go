package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestNewRouterMountsHealthProbes(t *testing.T) {
	router := NewRouter()

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200 for %s, got %d", path, rr.Code)
		}
	}
}

func TestNewRouterUnknownRoute(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["error"] != "route_not_found" {
		t.Fatalf("unexpected error code %v", resp["error"])
	}
}

func TestNewRouterUnregisteredGroupNotImplemented(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/ord-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected status 501, got %d", rr.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["error"] != "not_implemented" {
		t.Fatalf("unexpected error code %v", resp["error"])
	}
}

func TestNewRouterMountsRegisteredGroups(t *testing.T) {
	router := NewRouter(
		WithOrderRoutes(func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
		}),
		WithWebhookRoutes(func(r chi.Router) {
			r.Post("/mpesa", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 from order registrar, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mpesa", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 from webhook registrar, got %d", rr.Code)
	}
}

func TestNewRouterMethodNotAllowed(t *testing.T) {
	router := NewRouter(
		WithOrderRoutes(func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
		}),
	)

	req := httptest.NewRequest(http.MethodDelete, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["error"] != "method_not_allowed" {
		t.Fatalf("unexpected error code %v", resp["error"])
	}
}

func TestNewRouterAppliesCustomMiddleware(t *testing.T) {
	router := NewRouter(
		WithMiddlewares(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Test", "on")
				next.ServeHTTP(w, r)
			})
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Header().Get("X-Test") != "on" {
		t.Fatal("expected custom middleware to run")
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type stubPinger struct {
	err error
}

func (p *stubPinger) Ping(context.Context) error {
	return p.err
}

func TestHealthzReportsLiveness(t *testing.T) {
	now := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	handlers := NewHealthHandlers(
		WithHealthClock(func() time.Time { return now }),
		WithHealthVersion("1.4.2"),
	)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	handlers.Healthz(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Fatalf("unexpected status %v", resp["status"])
	}
	if resp["version"] != "1.4.2" {
		t.Fatalf("unexpected version %v", resp["version"])
	}
	if resp["timestamp"] != "2026-07-01T08:00:00Z" {
		t.Fatalf("unexpected timestamp %v", resp["timestamp"])
	}
}

func TestReadyzReportsStorageCheck(t *testing.T) {
	handlers := NewHealthHandlers(WithHealthStorage(&stubPinger{}))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	handlers.Readyz(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	checks, ok := resp["checks"].(map[string]any)
	if !ok {
		t.Fatalf("expected checks map, got %v", resp["checks"])
	}
	firestore, ok := checks["firestore"].(map[string]any)
	if !ok || firestore["status"] != "ok" {
		t.Fatalf("unexpected firestore check %v", checks["firestore"])
	}
}

func TestReadyzDegradedWhenStorageDown(t *testing.T) {
	handlers := NewHealthHandlers(WithHealthStorage(&stubPinger{err: errors.New("connection refused")}))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	handlers.Readyz(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "degraded" {
		t.Fatalf("unexpected status %v", resp["status"])
	}
	checks := resp["checks"].(map[string]any)
	firestore := checks["firestore"].(map[string]any)
	if firestore["error"] != "connection refused" {
		t.Fatalf("unexpected error detail %v", firestore["error"])
	}
}

func TestReadyzWithoutStorageStillReady(t *testing.T) {
	handlers := NewHealthHandlers()

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	handlers.Readyz(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger verifies connectivity to a backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlers serves the /healthz and /readyz probes.
type HealthHandlers struct {
	storage   Pinger
	clock     func() time.Time
	startedAt time.Time
	version   string
}

// HealthOption customises HealthHandlers construction.
type HealthOption func(*HealthHandlers)

// WithHealthStorage sets the storage dependency checked by /readyz.
func WithHealthStorage(p Pinger) HealthOption {
	return func(h *HealthHandlers) {
		h.storage = p
	}
}

// WithHealthClock overrides the time source, for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithHealthVersion records the build version reported by the probes.
func WithHealthVersion(version string) HealthOption {
	return func(h *HealthHandlers) {
		h.version = version
	}
}

// NewHealthHandlers constructs the probe handlers.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.startedAt = h.clock()
	return h
}

// Healthz reports process liveness without touching dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	payload := map[string]any{
		"status":    "ok",
		"uptime":    now.Sub(h.startedAt).String(),
		"timestamp": now.UTC().Format(time.RFC3339),
	}
	if h.version != "" {
		payload["version"] = h.version
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

// Readyz verifies the storage backend answers before reporting ready.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	payload := map[string]any{
		"status":    "ok",
		"timestamp": now.UTC().Format(time.RFC3339),
	}

	if h.storage != nil {
		checkStart := h.clock()
		if err := h.storage.Ping(r.Context()); err != nil {
			payload["status"] = "degraded"
			payload["checks"] = map[string]any{
				"firestore": map[string]any{"status": "degraded", "error": err.Error()},
			}
			writeJSONResponse(w, http.StatusServiceUnavailable, payload)
			return
		}
		payload["checks"] = map[string]any{
			"firestore": map[string]any{"status": "ok", "latency": h.clock().Sub(checkStart).String()},
		}
	}

	writeJSONResponse(w, http.StatusOK, payload)
}

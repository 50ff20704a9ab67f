package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mitumba-market/api/internal/domain"
	"github.com/mitumba-market/api/internal/platform/auth"
	"github.com/mitumba-market/api/internal/services"
)

var errBodyTooLarge = errors.New("request body too large")

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, errBodyTooLarge
	}
	return body, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func pointerTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// actorFromContext maps the verified identity onto the service-layer actor.
// The role always comes from token claims, never from the request payload.
func actorFromContext(r *http.Request) (services.Actor, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		return services.Actor{}, false
	}
	return services.Actor{
		ID:   strings.TrimSpace(identity.UID),
		Role: domain.UserRole(strings.ToLower(strings.TrimSpace(identity.PrimaryRole()))),
	}, true
}

package services

import (
	"context"
	"math/rand"
	"strings"

	"github.com/mitumba-market/api/internal/domain"
)

// autoAssignTransporter routes a freshly confirmed order to a transporter.
// It is best-effort: every failure leaves the order confirmed and unassigned
// for a later manual assignment, so errors are logged rather than returned.
func (s *orderService) autoAssignTransporter(ctx context.Context, order Order) Order {
	if order.Status != domain.OrderStatusConfirmed || order.TransporterID != nil {
		return order
	}

	candidates, err := s.transporterCandidates(ctx, shippingCity(order))
	if err != nil {
		s.logger(ctx, "order.assign.lookup.failed", map[string]any{
			"order": order.ID,
			"error": err.Error(),
		})
		return order
	}
	if len(candidates) == 0 {
		s.logger(ctx, "order.assign.no_transporters", map[string]any{
			"order": order.ID,
		})
		return order
	}

	chosen := candidates[s.pick(len(candidates))]

	expected := order.Status
	now := s.now()
	assigned := order
	if err := s.applyStatusTransition(&assigned, domain.OrderStatusInTransit, now); err != nil {
		return order
	}
	assigned.TransporterID = valuePtr(chosen.ID)

	if err := s.orders.Update(ctx, assigned, &expected); err != nil {
		// A concurrent manual assignment won the conditional update.
		s.logger(ctx, "order.assign.lost_race", map[string]any{
			"order": order.ID,
			"error": err.Error(),
		})
		return order
	}

	s.notify(ctx, assigned)
	s.publishEvent(ctx, orderEventStatusChanged, assigned, now)

	return assigned
}

// transporterCandidates returns transporters located in the order's city,
// falling back to the whole pool when the city has none.
func (s *orderService) transporterCandidates(ctx context.Context, city string) ([]Profile, error) {
	transporters, err := s.profiles.ListByRole(ctx, domain.RoleTransporter)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}

	if city == "" {
		return transporters, nil
	}

	var local []Profile
	for _, transporter := range transporters {
		if strings.EqualFold(strings.TrimSpace(transporter.Location), city) {
			local = append(local, transporter)
		}
	}
	if len(local) > 0 {
		return local, nil
	}
	return transporters, nil
}

func (s *orderService) pick(n int) int {
	if n <= 1 {
		return 0
	}
	if s.rand != nil {
		return s.rand(n)
	}
	return rand.Intn(n)
}

// shippingCity prefers the structured city field, falling back to the
// second-to-last comma segment of the free-text line for orders imported
// before addresses were structured.
func shippingCity(order Order) string {
	if city := strings.TrimSpace(order.ShippingAddress.City); city != "" {
		return city
	}

	segments := strings.Split(order.ShippingAddress.Line, ",")
	if len(segments) < 2 {
		return ""
	}
	return strings.TrimSpace(segments[len(segments)-2])
}

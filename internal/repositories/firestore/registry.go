package firestore

import (
	"context"
	"errors"

	"google.golang.org/api/iterator"

	pfirestore "github.com/mitumba-market/api/internal/platform/firestore"
	"github.com/mitumba-market/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories over one shared provider.
type Registry struct {
	provider      *pfirestore.Provider
	orders        *OrderRepository
	orderItems    *OrderItemRepository
	carts         *CartRepository
	products      *ProductRepository
	profiles      *ProfileRepository
	notifications *NotificationRepository
	payments      *PaymentRepository
	counters      *CounterRepository
	health        *HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wires every repository onto the provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry: provider is required")
	}
	return &Registry{
		provider:      provider,
		orders:        NewOrderRepository(provider),
		orderItems:    NewOrderItemRepository(provider),
		carts:         NewCartRepository(provider),
		products:      NewProductRepository(provider),
		profiles:      NewProfileRepository(provider),
		notifications: NewNotificationRepository(provider),
		payments:      NewPaymentRepository(provider),
		counters:      NewCounterRepository(provider),
		health:        NewHealthRepository(provider),
	}, nil
}

func (r *Registry) Orders() repositories.OrderRepository                 { return r.orders }
func (r *Registry) OrderItems() repositories.OrderItemRepository         { return r.orderItems }
func (r *Registry) Carts() repositories.CartRepository                   { return r.carts }
func (r *Registry) Products() repositories.ProductRepository             { return r.products }
func (r *Registry) Profiles() repositories.ProfileRepository             { return r.profiles }
func (r *Registry) Notifications() repositories.NotificationRepository   { return r.notifications }
func (r *Registry) Payments() repositories.PaymentRepository             { return r.payments }
func (r *Registry) Counters() repositories.CounterRepository             { return r.counters }
func (r *Registry) Health() repositories.HealthRepository                { return r.health }

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

// HealthRepository verifies storage connectivity with a minimal read.
type HealthRepository struct {
	provider *pfirestore.Provider
}

var _ repositories.HealthRepository = (*HealthRepository)(nil)

// NewHealthRepository builds a HealthRepository.
func NewHealthRepository(provider *pfirestore.Provider) *HealthRepository {
	return &HealthRepository{provider: provider}
}

// Ping issues a single-document query to prove the backend answers.
func (r *HealthRepository) Ping(ctx context.Context) error {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	iter := client.Collection(countersCollection).Limit(1).Documents(ctx)
	defer iter.Stop()

	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return pfirestore.WrapError("health.ping", err)
	}
	return nil
}

// asRepositoryError mirrors errors.As for the repository error contract.
func asRepositoryError(err error, target *repositories.RepositoryError) bool {
	var repoErr *pfirestore.Error
	if errors.As(err, &repoErr) {
		*target = repoErr
		return true
	}
	return false
}

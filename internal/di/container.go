package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mitumba-market/api/internal/payments"
	"github.com/mitumba-market/api/internal/platform/config"
	"github.com/mitumba-market/api/internal/platform/observability"
	"github.com/mitumba-market/api/internal/repositories"
	"github.com/mitumba-market/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Orders        services.OrderService
	Cart          services.CartService
	Notifications services.NotificationService
	Payments      services.PaymentService
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// Option customises container assembly.
type Option func(*containerOptions)

type containerOptions struct {
	events   services.OrderEventPublisher
	provider payments.Provider
	logger   *zap.Logger
}

// WithOrderEventPublisher supplies the publisher order mutations emit to.
func WithOrderEventPublisher(events services.OrderEventPublisher) Option {
	return func(o *containerOptions) {
		o.events = events
	}
}

// WithPaymentProvider supplies the mobile-money gateway. Without one the
// payment service is not built and payment routes respond unavailable.
func WithPaymentProvider(provider payments.Provider) Option {
	return func(o *containerOptions) {
		o.provider = provider
	}
}

// WithLogger supplies the zap logger services log through.
func WithLogger(logger *zap.Logger) Option {
	return func(o *containerOptions) {
		o.logger = logger
	}
}

// NewContainer constructs the runtime dependencies. Production wiring provides real
// implementations, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	options := containerOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	svc, err := buildServices(reg, options)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(reg repositories.Registry, options containerOptions) (Services, error) {
	var svc Services

	logger := serviceLogger(options.logger)

	notificationSvc, err := services.NewNotificationService(services.NotificationServiceDeps{
		Notifications: reg.Notifications(),
		Clock:         time.Now,
		Logger:        logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build notification service: %w", err)
	}
	svc.Notifications = notificationSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:   reg.Orders(),
		Items:    reg.OrderItems(),
		Carts:    reg.Carts(),
		Products: reg.Products(),
		Profiles: reg.Profiles(),
		Counters: reg.Counters(),
		Notifier: notificationSvc,
		Events:   options.events,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Carts:    reg.Carts(),
		Products: reg.Products(),
		Clock:    time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cartSvc

	if options.provider != nil {
		paymentSvc, err := services.NewPaymentService(services.PaymentServiceDeps{
			Payments: reg.Payments(),
			Orders:   reg.Orders(),
			Provider: options.provider,
			Clock:    time.Now,
			Logger:   logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build payment service: %w", err)
		}
		svc.Payments = paymentSvc
	}

	return svc, nil
}

// serviceLogger adapts a zap logger to the event-style logging hook the
// services accept.
func serviceLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(ctx context.Context, event string, fields map[string]any) {
		log := logger
		if log == nil {
			log = observability.FromContext(ctx)
		}
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		log.Info(event, zapFields...)
	}
}

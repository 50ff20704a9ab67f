package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mitumba-market/api/internal/domain"
)

func buildCartService(t *testing.T, deps CartServiceDeps) CartService {
	t.Helper()
	if deps.IDGenerator == nil {
		deps.IDGenerator = sequenceIDs()
	}
	service, err := NewCartService(deps)
	if err != nil {
		t.Fatalf("unexpected error constructing cart service: %v", err)
	}
	return service
}

func TestCartServiceAddItemCreatesRow(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	var upserted domain.CartItem
	carts := &stubCartRepository{
		findFunc: func(context.Context, string, string) (domain.CartItem, error) {
			return domain.CartItem{}, &repositoryErrorStub{notFound: true}
		},
		upsertFunc: func(_ context.Context, item domain.CartItem) error {
			upserted = item
			return nil
		},
	}
	products := &stubProductRepository{
		findFunc: func(_ context.Context, productID string) (domain.Product, error) {
			return domain.Product{ID: productID, Title: "Khaki trousers", Price: 850, Available: true}, nil
		},
	}

	service := buildCartService(t, CartServiceDeps{
		Carts:    carts,
		Products: products,
		Clock:    func() time.Time { return now },
	})

	item, err := service.AddItem(context.Background(), AddCartItemCommand{
		Actor:     Actor{ID: "buyer-1", Role: domain.RoleBuyer},
		ProductID: " prod-1 ",
		Quantity:  2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.ID != "crt_id-1" {
		t.Fatalf("unexpected item id %q", item.ID)
	}
	if item.UnitPrice != 850 || item.Quantity != 2 {
		t.Fatalf("unexpected item %+v", item)
	}
	if upserted.UserID != "buyer-1" || upserted.ProductID != "prod-1" {
		t.Fatalf("unexpected upsert %+v", upserted)
	}
	if !upserted.CreatedAt.Equal(now) {
		t.Fatal("expected clock timestamp")
	}
}

func TestCartServiceAddItemMergesExistingRow(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	var upserted domain.CartItem
	carts := &stubCartRepository{
		findFunc: func(context.Context, string, string) (domain.CartItem, error) {
			return domain.CartItem{
				ID: "crt-1", UserID: "buyer-1", ProductID: "prod-1",
				Quantity: 1, UnitPrice: 700,
			}, nil
		},
		upsertFunc: func(_ context.Context, item domain.CartItem) error {
			upserted = item
			return nil
		},
	}
	products := &stubProductRepository{
		findFunc: func(_ context.Context, productID string) (domain.Product, error) {
			// Price moved since the row was created.
			return domain.Product{ID: productID, Title: "Khaki trousers", Price: 900, Available: true}, nil
		},
	}

	service := buildCartService(t, CartServiceDeps{
		Carts:    carts,
		Products: products,
		Clock:    func() time.Time { return now },
	})

	item, err := service.AddItem(context.Background(), AddCartItemCommand{
		Actor:     Actor{ID: "buyer-1", Role: domain.RoleBuyer},
		ProductID: "prod-1",
		Quantity:  2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.ID != "crt-1" {
		t.Fatalf("expected the existing row, got %q", item.ID)
	}
	if upserted.Quantity != 3 {
		t.Fatalf("expected merged quantity 3, got %d", upserted.Quantity)
	}
	if upserted.UnitPrice != 900 {
		t.Fatalf("expected refreshed unit price 900, got %d", upserted.UnitPrice)
	}
}

func TestCartServiceAddItemRejectsUnavailableProduct(t *testing.T) {
	products := &stubProductRepository{
		findFunc: func(_ context.Context, productID string) (domain.Product, error) {
			return domain.Product{ID: productID, Available: false}, nil
		},
	}

	service := buildCartService(t, CartServiceDeps{
		Carts:    &stubCartRepository{},
		Products: products,
	})

	_, err := service.AddItem(context.Background(), AddCartItemCommand{
		Actor:     Actor{ID: "buyer-1", Role: domain.RoleBuyer},
		ProductID: "prod-1",
		Quantity:  1,
	})
	if !errors.Is(err, ErrCartProductUnavailable) {
		t.Fatalf("expected ErrCartProductUnavailable, got %v", err)
	}
}

func TestCartServiceAddItemRejectsUnknownProduct(t *testing.T) {
	products := &stubProductRepository{
		findFunc: func(context.Context, string) (domain.Product, error) {
			return domain.Product{}, &repositoryErrorStub{notFound: true}
		},
	}

	service := buildCartService(t, CartServiceDeps{
		Carts:    &stubCartRepository{},
		Products: products,
	})

	_, err := service.AddItem(context.Background(), AddCartItemCommand{
		Actor:     Actor{ID: "buyer-1", Role: domain.RoleBuyer},
		ProductID: "prod-404",
		Quantity:  1,
	})
	if !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected ErrCartInvalidInput, got %v", err)
	}
}

func TestCartServiceUpdateItemRejectsNonPositiveQuantity(t *testing.T) {
	service := buildCartService(t, CartServiceDeps{
		Carts:    &stubCartRepository{},
		Products: &stubProductRepository{},
	})

	_, err := service.UpdateItem(context.Background(), UpdateCartItemCommand{
		Actor:    Actor{ID: "buyer-1", Role: domain.RoleBuyer},
		ItemID:   "crt-1",
		Quantity: 0,
	})
	if !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected ErrCartInvalidInput, got %v", err)
	}
}

func TestCartServiceUpdateItemReplacesQuantity(t *testing.T) {
	now := time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC)

	var upserted domain.CartItem
	carts := &stubCartRepository{
		listFunc: func(context.Context, string) ([]domain.CartItem, error) {
			return []domain.CartItem{{ID: "crt-1", UserID: "buyer-1", Quantity: 5}}, nil
		},
		upsertFunc: func(_ context.Context, item domain.CartItem) error {
			upserted = item
			return nil
		},
	}

	service := buildCartService(t, CartServiceDeps{
		Carts:    carts,
		Products: &stubProductRepository{},
		Clock:    func() time.Time { return now },
	})

	item, err := service.UpdateItem(context.Background(), UpdateCartItemCommand{
		Actor:    Actor{ID: "buyer-1", Role: domain.RoleBuyer},
		ItemID:   "crt-1",
		Quantity: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Quantity != 2 || upserted.Quantity != 2 {
		t.Fatalf("expected quantity replaced with 2, got %d/%d", item.Quantity, upserted.Quantity)
	}
	if !upserted.UpdatedAt.Equal(now) {
		t.Fatal("expected refreshed timestamp")
	}
}

func TestCartServiceRemoveItemNotFound(t *testing.T) {
	carts := &stubCartRepository{
		listFunc: func(context.Context, string) ([]domain.CartItem, error) {
			return []domain.CartItem{{ID: "crt-1"}}, nil
		},
	}

	service := buildCartService(t, CartServiceDeps{
		Carts:    carts,
		Products: &stubProductRepository{},
	})

	err := service.RemoveItem(context.Background(), Actor{ID: "buyer-1", Role: domain.RoleBuyer}, "crt-404")
	if !errors.Is(err, ErrCartItemNotFound) {
		t.Fatalf("expected ErrCartItemNotFound, got %v", err)
	}
}

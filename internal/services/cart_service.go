package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mitumba-market/api/internal/domain"
	"github.com/mitumba-market/api/internal/repositories"
)

const cartItemIDPrefix = "crt_"

var (
	// ErrCartInvalidInput signals the caller provided invalid data.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartItemNotFound indicates the cart row could not be located.
	ErrCartItemNotFound = errors.New("cart: item not found")
	// ErrCartProductUnavailable rejects adding a product that cannot be bought.
	ErrCartProductUnavailable = errors.New("cart: product unavailable")
)

// CartServiceDeps bundles collaborators for the cart service.
type CartServiceDeps struct {
	Carts       repositories.CartRepository
	Products    repositories.ProductRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type cartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
	clock    func() time.Time
	newID    func() string
}

// NewCartService wires dependencies into a CartService.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	return &cartService{
		carts:    deps.Carts,
		products: deps.Products,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (CartItem, error) {
	userID := strings.TrimSpace(cmd.Actor.ID)
	productID := strings.TrimSpace(cmd.ProductID)

	if userID == "" {
		return CartItem{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	if productID == "" {
		return CartItem{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return CartItem{}, fmt.Errorf("%w: quantity must be positive", ErrCartInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if isNotFound(err) {
			return CartItem{}, fmt.Errorf("%w: unknown product %s", ErrCartInvalidInput, productID)
		}
		return CartItem{}, s.mapRepositoryError(err)
	}
	if !product.Available {
		return CartItem{}, fmt.Errorf("%w: %s", ErrCartProductUnavailable, productID)
	}

	now := s.clock()

	existing, err := s.carts.FindByUserAndProduct(ctx, userID, productID)
	switch {
	case err == nil:
		// Same product lands on the existing row.
		existing.Quantity += cmd.Quantity
		existing.UnitPrice = product.Price
		existing.UpdatedAt = now
		if err := s.carts.Upsert(ctx, existing); err != nil {
			return CartItem{}, s.mapRepositoryError(err)
		}
		return existing, nil
	case isNotFound(err):
		item := CartItem{
			ID:        cartItemIDPrefix + s.newID(),
			UserID:    userID,
			ProductID: productID,
			Title:     product.Title,
			Quantity:  cmd.Quantity,
			UnitPrice: product.Price,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.carts.Upsert(ctx, item); err != nil {
			return CartItem{}, s.mapRepositoryError(err)
		}
		return item, nil
	default:
		return CartItem{}, s.mapRepositoryError(err)
	}
}

func (s *cartService) UpdateItem(ctx context.Context, cmd UpdateCartItemCommand) (CartItem, error) {
	userID := strings.TrimSpace(cmd.Actor.ID)
	itemID := strings.TrimSpace(cmd.ItemID)

	if userID == "" {
		return CartItem{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	if itemID == "" {
		return CartItem{}, fmt.Errorf("%w: item id is required", ErrCartInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return CartItem{}, fmt.Errorf("%w: quantity must be positive", ErrCartInvalidInput)
	}

	item, err := s.findItem(ctx, userID, itemID)
	if err != nil {
		return CartItem{}, err
	}

	item.Quantity = cmd.Quantity
	item.UpdatedAt = s.clock()
	if err := s.carts.Upsert(ctx, item); err != nil {
		return CartItem{}, s.mapRepositoryError(err)
	}
	return item, nil
}

func (s *cartService) RemoveItem(ctx context.Context, actor Actor, itemID string) error {
	userID := strings.TrimSpace(actor.ID)
	itemID = strings.TrimSpace(itemID)

	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	if itemID == "" {
		return fmt.Errorf("%w: item id is required", ErrCartInvalidInput)
	}

	if _, err := s.findItem(ctx, userID, itemID); err != nil {
		return err
	}

	if err := s.carts.Remove(ctx, userID, itemID); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *cartService) ListItems(ctx context.Context, actor Actor) ([]CartItem, error) {
	userID := strings.TrimSpace(actor.ID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}

	items, err := s.carts.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return items, nil
}

func (s *cartService) Clear(ctx context.Context, actor Actor) error {
	userID := strings.TrimSpace(actor.ID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}

	if err := s.carts.Clear(ctx, userID); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

// findItem scans the user's cart for the row; carts are small enough that a
// list beats an extra repository method.
func (s *cartService) findItem(ctx context.Context, userID, itemID string) (domain.CartItem, error) {
	items, err := s.carts.ListByUser(ctx, userID)
	if err != nil {
		return domain.CartItem{}, s.mapRepositoryError(err)
	}
	for _, item := range items {
		if item.ID == itemID {
			return item, nil
		}
	}
	return domain.CartItem{}, fmt.Errorf("%w: %s", ErrCartItemNotFound, itemID)
}

func (s *cartService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCartItemNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("cart: repository unavailable: %w", err)
		}
	}

	return err
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/mitumba-market/api/internal/domain"
	pfirestore "github.com/mitumba-market/api/internal/platform/firestore"
	"github.com/mitumba-market/api/internal/repositories"
)

const cartItemsCollection = "cart_items"

// CartRepository persists cart rows keyed by item ID in a flat collection.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartItemDocument]
}

var _ repositories.CartRepository = (*CartRepository)(nil)

// NewCartRepository builds a CartRepository.
func NewCartRepository(provider *pfirestore.Provider) *CartRepository {
	return &CartRepository{
		base: pfirestore.NewBaseRepository[cartItemDocument](provider, cartItemsCollection, nil, nil),
	}
}

type cartItemDocument struct {
	UserID    string    `firestore:"userId"`
	ProductID string    `firestore:"productId"`
	Title     string    `firestore:"title"`
	Quantity  int       `firestore:"quantity"`
	UnitPrice int64     `firestore:"unitPrice"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// Upsert writes the cart row under its item ID.
func (r *CartRepository) Upsert(ctx context.Context, item domain.CartItem) error {
	_, err := r.base.Set(ctx, item.ID, cartItemToDocument(item))
	return err
}

// FindByUserAndProduct locates the user's row for a product, if any.
func (r *CartRepository) FindByUserAndProduct(ctx context.Context, userID, productID string) (domain.CartItem, error) {
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("userId", "==", userID).
			Where("productId", "==", productID).
			Limit(1)
	})
	if err != nil {
		return domain.CartItem{}, err
	}
	if len(docs) == 0 {
		return domain.CartItem{}, pfirestore.NewNotFoundError("cart_items.find",
			fmt.Errorf("no row for user %s product %s", userID, productID))
	}
	return cartItemFromDocument(docs[0].ID, docs[0].Data), nil
}

// ListByUser returns the user's cart oldest-first, mirroring the order
// items were added.
func (r *CartRepository) ListByUser(ctx context.Context, userID string) ([]domain.CartItem, error) {
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("userId", "==", userID).OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	items := make([]domain.CartItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, cartItemFromDocument(doc.ID, doc.Data))
	}
	return items, nil
}

// Remove deletes one row after verifying it belongs to the user.
func (r *CartRepository) Remove(ctx context.Context, userID, itemID string) error {
	doc, err := r.base.Get(ctx, itemID)
	if err != nil {
		return err
	}
	if doc.Data.UserID != userID {
		return pfirestore.NewNotFoundError("cart_items.remove",
			errors.New("row belongs to another user"))
	}
	return r.base.Delete(ctx, itemID)
}

// Clear deletes every row of the user's cart.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("userId", "==", userID)
	})
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := r.base.Delete(ctx, doc.ID); err != nil {
			return err
		}
	}
	return nil
}

func cartItemToDocument(item domain.CartItem) cartItemDocument {
	return cartItemDocument{
		UserID:    item.UserID,
		ProductID: item.ProductID,
		Title:     item.Title,
		Quantity:  item.Quantity,
		UnitPrice: item.UnitPrice,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

func cartItemFromDocument(id string, doc cartItemDocument) domain.CartItem {
	return domain.CartItem{
		ID:        id,
		UserID:    doc.UserID,
		ProductID: doc.ProductID,
		Title:     doc.Title,
		Quantity:  doc.Quantity,
		UnitPrice: doc.UnitPrice,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/mitumba-market/api/internal/domain"
	pfirestore "github.com/mitumba-market/api/internal/platform/firestore"
	"github.com/mitumba-market/api/internal/repositories"
)

const orderItemsCollection = "items"

// OrderItemRepository persists order lines in a subcollection under each order.
type OrderItemRepository struct {
	provider *pfirestore.Provider
}

var _ repositories.OrderItemRepository = (*OrderItemRepository)(nil)

// NewOrderItemRepository builds an OrderItemRepository.
func NewOrderItemRepository(provider *pfirestore.Provider) *OrderItemRepository {
	return &OrderItemRepository{provider: provider}
}

type orderItemDocument struct {
	ProductID   string    `firestore:"productId"`
	Title       string    `firestore:"title"`
	Quantity    int       `firestore:"quantity"`
	PriceAtTime int64     `firestore:"priceAtTime"`
	LineTotal   int64     `firestore:"lineTotal"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

// InsertAll writes every item; the first failure aborts and is returned so
// the caller can compensate.
func (r *OrderItemRepository) InsertAll(ctx context.Context, orderID string, items []domain.OrderItem) error {
	coll, err := r.itemsRef(ctx, orderID)
	if err != nil {
		return err
	}

	for _, item := range items {
		doc := orderItemDocument{
			ProductID:   item.ProductID,
			Title:       item.Title,
			Quantity:    item.Quantity,
			PriceAtTime: item.PriceAtTime,
			LineTotal:   item.LineTotal,
			CreatedAt:   item.CreatedAt,
		}
		if _, err := coll.Doc(item.ID).Create(ctx, doc); err != nil {
			return pfirestore.WrapError("orders.items.insert", err)
		}
	}
	return nil
}

// ListByOrder returns the order's items in insertion order.
func (r *OrderItemRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	coll, err := r.itemsRef(ctx, orderID)
	if err != nil {
		return nil, err
	}

	iter := coll.OrderBy("createdAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var items []domain.OrderItem
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("orders.items.list", err)
		}
		var doc orderItemDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return nil, pfirestore.WrapError("orders.items.list", err)
		}
		items = append(items, domain.OrderItem{
			ID:          snapshot.Ref.ID,
			OrderID:     orderID,
			ProductID:   doc.ProductID,
			Title:       doc.Title,
			Quantity:    doc.Quantity,
			PriceAtTime: doc.PriceAtTime,
			LineTotal:   doc.LineTotal,
			CreatedAt:   doc.CreatedAt,
		})
	}
	return items, nil
}

// DeleteByOrder removes every item of the order.
func (r *OrderItemRepository) DeleteByOrder(ctx context.Context, orderID string) error {
	coll, err := r.itemsRef(ctx, orderID)
	if err != nil {
		return err
	}

	iter := coll.Documents(ctx)
	defer iter.Stop()

	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return pfirestore.WrapError("orders.items.delete", err)
		}
		if _, err := snapshot.Ref.Delete(ctx); err != nil {
			return pfirestore.WrapError("orders.items.delete", err)
		}
	}
	return nil
}

func (r *OrderItemRepository) itemsRef(ctx context.Context, orderID string) (*firestore.CollectionRef, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, pfirestore.WrapError("orders.items", errors.New("order id is required"))
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(ordersCollection).Doc(orderID).Collection(orderItemsCollection), nil
}

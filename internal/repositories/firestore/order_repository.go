package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/mitumba-market/api/internal/domain"
	pfirestore "github.com/mitumba-market/api/internal/platform/firestore"
	"github.com/mitumba-market/api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository persists order aggregates in Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[orderDocument]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository builds an OrderRepository backed by the orders collection.
func NewOrderRepository(provider *pfirestore.Provider) *OrderRepository {
	return &OrderRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil),
	}
}

type addressDocument struct {
	Recipient  string `firestore:"recipient,omitempty"`
	Line       string `firestore:"line,omitempty"`
	City       string `firestore:"city,omitempty"`
	PostalCode string `firestore:"postalCode,omitempty"`
	Country    string `firestore:"country,omitempty"`
	Phone      string `firestore:"phone,omitempty"`
}

type orderDocument struct {
	OrderNumber     string          `firestore:"orderNumber"`
	BuyerID         string          `firestore:"buyerId"`
	TraderID        *string         `firestore:"traderId"`
	TransporterID   *string         `firestore:"transporterId"`
	Title           string          `firestore:"title"`
	Description     string          `firestore:"description,omitempty"`
	Amount          int64           `firestore:"amount"`
	Currency        string          `firestore:"currency"`
	Status          string          `firestore:"status"`
	ShippingAddress addressDocument `firestore:"shippingAddress"`
	CancelReason    string          `firestore:"cancelReason,omitempty"`
	CreatedAt       time.Time       `firestore:"createdAt"`
	UpdatedAt       time.Time       `firestore:"updatedAt"`
	ConfirmedAt     *time.Time      `firestore:"confirmedAt,omitempty"`
	PickedUpAt      *time.Time      `firestore:"pickedUpAt,omitempty"`
	DeliveredAt     *time.Time      `firestore:"deliveredAt,omitempty"`
	CancelledAt     *time.Time      `firestore:"cancelledAt,omitempty"`
}

// Insert creates the order document, failing if the ID already exists.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	doc, err := r.base.DocumentRef(ctx, order.ID)
	if err != nil {
		return err
	}
	if _, err := doc.Create(ctx, orderToDocument(order)); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update rewrites the order document in place. The write is always an
// update mutation on the existing document so snapshot listeners observe a
// modification. With expectedStatus set, the write happens inside a
// transaction that first verifies the stored status; a mismatch is
// reported as a conflict.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order, expectedStatus *domain.OrderStatus) error {
	doc, err := r.base.DocumentRef(ctx, order.ID)
	if err != nil {
		return err
	}

	if expectedStatus == nil {
		if _, err := doc.Set(ctx, orderToDocument(order)); err != nil {
			return pfirestore.WrapError("orders.update", err)
		}
		return nil
	}

	expected := string(*expectedStatus)
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(doc)
		if err != nil {
			return err
		}
		current, err := snapshot.DataAt("status")
		if err != nil {
			return err
		}
		if current != expected {
			return pfirestore.NewConflictError("orders.update",
				fmt.Errorf("status is %v, expected %s", current, expected))
		}
		return tx.Set(doc, orderToDocument(order))
	})
}

// Delete removes the order document. Only the cart conversion rollback
// calls this; routine flows never delete orders.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	return r.base.Delete(ctx, orderID)
}

// FindByID loads the order aggregate without its items.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return orderFromDocument(doc.ID, doc.Data), nil
}

// List returns matching orders newest-first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if filter.Party != nil {
			query = query.Where(partyField(filter.Party.Role), "==", filter.Party.UserID)
		}
		switch len(filter.Statuses) {
		case 0:
		case 1:
			query = query.Where("status", "==", string(filter.Statuses[0]))
		default:
			statuses := make([]string, 0, len(filter.Statuses))
			for _, status := range filter.Statuses {
				statuses = append(statuses, string(status))
			}
			query = query.Where("status", "in", statuses)
		}
		return query.OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, orderFromDocument(doc.ID, doc.Data))
	}
	return orders, nil
}

// DecodeOrderSnapshot hydrates an order from a raw snapshot, for change-feed
// listeners that receive documents outside the repository.
func DecodeOrderSnapshot(snapshot *firestore.DocumentSnapshot) (domain.Order, error) {
	var doc orderDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.decode", err)
	}
	return orderFromDocument(snapshot.Ref.ID, doc), nil
}

// OrderPartyField maps a party role to the document field change-feed
// subscriptions filter on.
func OrderPartyField(role domain.PartyRole) string {
	return partyField(role)
}

func partyField(role domain.PartyRole) string {
	switch role {
	case domain.PartyTrader:
		return "traderId"
	case domain.PartyTransporter:
		return "transporterId"
	default:
		return "buyerId"
	}
}

func orderToDocument(order domain.Order) orderDocument {
	return orderDocument{
		OrderNumber:   order.OrderNumber,
		BuyerID:       order.BuyerID,
		TraderID:      order.TraderID,
		TransporterID: order.TransporterID,
		Title:         order.Title,
		Description:   order.Description,
		Amount:        order.Amount,
		Currency:      order.Currency,
		Status:        string(order.Status),
		ShippingAddress: addressDocument{
			Recipient:  order.ShippingAddress.Recipient,
			Line:       order.ShippingAddress.Line,
			City:       order.ShippingAddress.City,
			PostalCode: order.ShippingAddress.PostalCode,
			Country:    order.ShippingAddress.Country,
			Phone:      order.ShippingAddress.Phone,
		},
		CancelReason: order.CancelReason,
		CreatedAt:    order.CreatedAt,
		UpdatedAt:    order.UpdatedAt,
		ConfirmedAt:  order.ConfirmedAt,
		PickedUpAt:   order.PickedUpAt,
		DeliveredAt:  order.DeliveredAt,
		CancelledAt:  order.CancelledAt,
	}
}

func orderFromDocument(id string, doc orderDocument) domain.Order {
	return domain.Order{
		ID:            id,
		OrderNumber:   doc.OrderNumber,
		BuyerID:       doc.BuyerID,
		TraderID:      doc.TraderID,
		TransporterID: doc.TransporterID,
		Title:         doc.Title,
		Description:   doc.Description,
		Amount:        doc.Amount,
		Currency:      doc.Currency,
		Status:        domain.OrderStatus(doc.Status),
		ShippingAddress: domain.Address{
			Recipient:  doc.ShippingAddress.Recipient,
			Line:       doc.ShippingAddress.Line,
			City:       doc.ShippingAddress.City,
			PostalCode: doc.ShippingAddress.PostalCode,
			Country:    doc.ShippingAddress.Country,
			Phone:      doc.ShippingAddress.Phone,
		},
		CancelReason: doc.CancelReason,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
		ConfirmedAt:  doc.ConfirmedAt,
		PickedUpAt:   doc.PickedUpAt,
		DeliveredAt:  doc.DeliveredAt,
		CancelledAt:  doc.CancelledAt,
	}
}

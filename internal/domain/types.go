package domain

import "time"

// UserRole identifies the marketplace persona attached to a profile.
type UserRole string

const (
	// RoleBuyer purchases listed garments.
	RoleBuyer UserRole = "buyer"
	// RoleTrader lists stock and confirms incoming orders.
	RoleTrader UserRole = "trader"
	// RoleTransporter moves confirmed orders between parties.
	RoleTransporter UserRole = "transporter"
	// RoleWholesaler supplies traders with bales.
	RoleWholesaler UserRole = "wholesaler"
	// RoleAdmin operates the platform.
	RoleAdmin UserRole = "admin"
)

// OrderStatus enumerates the fulfillment lifecycle. The string values are
// persisted and exposed on the wire; they must never be renamed.
type OrderStatus string

const (
	// OrderStatusPending marks a freshly converted cart awaiting a trader.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed marks an order claimed by a trader.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusInTransit marks an order handed to a transporter.
	OrderStatusInTransit OrderStatus = "in_transit"
	// OrderStatusDelivered marks a completed delivery. Terminal.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled marks an abandoned order. Terminal.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// IsTerminal reports whether no further transitions may leave the status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// PartyRole discriminates the OrderParty tagged union.
type PartyRole string

const (
	PartyBuyer       PartyRole = "buyer"
	PartyTrader      PartyRole = "trader"
	PartyTransporter PartyRole = "transporter"
)

// OrderParty identifies one participant of an order for list filtering.
// Role selects which order field UserID is matched against.
type OrderParty struct {
	Role   PartyRole
	UserID string
}

// BuyerParty builds an OrderParty matching orders placed by the user.
func BuyerParty(userID string) OrderParty {
	return OrderParty{Role: PartyBuyer, UserID: userID}
}

// TraderParty builds an OrderParty matching orders claimed by the trader.
func TraderParty(userID string) OrderParty {
	return OrderParty{Role: PartyTrader, UserID: userID}
}

// TransporterParty builds an OrderParty matching orders assigned to the transporter.
func TransporterParty(userID string) OrderParty {
	return OrderParty{Role: PartyTransporter, UserID: userID}
}

// Address is a structured delivery destination. City drives transporter
// matching; Line keeps the free-text form entered by the buyer.
type Address struct {
	Recipient  string
	Line       string
	City       string
	PostalCode string
	Country    string
	Phone      string
}

// Order is the fulfillment aggregate. Amount is fixed at creation from the
// item price snapshots and never recalculated afterwards.
type Order struct {
	ID              string
	OrderNumber     string
	BuyerID         string
	TraderID        *string
	TransporterID   *string
	Title           string
	Description     string
	Amount          int64
	Currency        string
	Status          OrderStatus
	ShippingAddress Address
	CancelReason    string
	Items           []OrderItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ConfirmedAt     *time.Time
	PickedUpAt      *time.Time
	DeliveredAt     *time.Time
	CancelledAt     *time.Time
}

// OrderItem is a line captured at cart conversion. PriceAtTime is the product
// price observed at conversion, immune to later catalogue edits.
type OrderItem struct {
	ID          string
	OrderID     string
	ProductID   string
	Title       string
	Quantity    int
	PriceAtTime int64
	LineTotal   int64
	CreatedAt   time.Time
}

// CartItem is one product row in a buyer's cart. UnitPrice is only an
// estimate for display; the authoritative price is re-read at conversion.
type CartItem struct {
	ID        string
	UserID    string
	ProductID string
	Title     string
	Quantity  int
	UnitPrice int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Product is the catalogue entry orders are priced from.
type Product struct {
	ID          string
	TraderID    string
	Title       string
	Description string
	Price       int64
	Currency    string
	Available   bool
	City        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Profile is the marketplace-facing view of an authenticated user.
type Profile struct {
	ID          string
	DisplayName string
	Email       string
	Phone       string
	Role        UserRole
	Location    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Notification records one fulfillment event delivered to one recipient.
type Notification struct {
	ID          string
	RecipientID string
	OrderID     string
	OrderTitle  string
	Status      OrderStatus
	Message     string
	Read        bool
	CreatedAt   time.Time
}

// PaymentStatus enumerates the mobile-money collection lifecycle. It is
// deliberately independent of OrderStatus.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment records one STK push collection attempt against an order.
type Payment struct {
	ID                string
	OrderID           string
	BuyerID           string
	Phone             string
	Amount            int64
	Currency          string
	Status            PaymentStatus
	CheckoutRequestID string
	MerchantRequestID string
	ReceiptNumber     string
	FailureReason     string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CompletedAt       *time.Time
}

// OrderEvent is the payload published after every accepted order mutation.
type OrderEvent struct {
	Type          string      `json:"type"`
	OrderID       string      `json:"orderId"`
	BuyerID       string      `json:"buyerId"`
	TraderID      string      `json:"traderId,omitempty"`
	TransporterID string      `json:"transporterId,omitempty"`
	Status        OrderStatus `json:"status"`
	OccurredAt    time.Time   `json:"occurredAt"`
}

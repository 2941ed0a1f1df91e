package types

import "time"

// OrderStatus is the coarse lifecycle state of a venue order.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusOpen            OrderStatus = "OPEN"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

// IsTerminal reports whether the order can no longer change.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusExpired, OrderStatusRejected:
		return true
	default:
		return false
	}
}

// HasFills reports whether orders in this status carry fills worth fetching.
func (s OrderStatus) HasFills() bool {
	return s == OrderStatusFilled || s == OrderStatusPartiallyFilled
}

// Order is a platform-neutral snapshot of a venue order.
type Order struct {
	ID         string      `json:"id"`
	Platform   Platform    `json:"platform"`
	MarketID   string      `json:"marketId"`
	Outcome    string      `json:"outcome"`
	Side       Side        `json:"side"`
	Price      float64     `json:"price"`
	Size       float64     `json:"size"`
	SizeFilled float64     `json:"sizeFilled"`
	Status     OrderStatus `json:"status"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// Trade is a single fill against an order.
type Trade struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"orderId"`
	MarketID  string    `json:"marketId"`
	Outcome   string    `json:"outcome"`
	Side      Side      `json:"side"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}

// TradeFilter narrows a fills query.
type TradeFilter struct {
	OrderID  string
	MarketID string
	After    time.Time
	Limit    int
}

// OrderStatusUpdate is emitted once per detected order status transition.
type OrderStatusUpdate struct {
	OrderID        string      `json:"orderId"`
	Platform       Platform    `json:"platform"`
	PreviousStatus OrderStatus `json:"previousStatus,omitempty"`
	NewStatus      OrderStatus `json:"newStatus"`
	Order          Order       `json:"order"`
	Fills          []Trade     `json:"fills,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
}

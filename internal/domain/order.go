package domain

import "time"

// OrderStatus is the settlement state of an order. PENDING is the only
// non-terminal state; once COMPLETED or FAILED an order never transitions
// again.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusFailed    OrderStatus = "FAILED"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed
}

// Order is created at checkout after a successful bulk reservation and is
// mutated only by the settlement saga. CreatedAt drives the payment-timeout
// sweep. GiftReceiverID is set when the order was bought for someone else.
type Order struct {
	ID             int64
	UserID         int64
	Address        string
	Status         OrderStatus
	GiftReceiverID *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsGift reports whether the order carries a gift receiver.
func (o *Order) IsGift() bool {
	return o.GiftReceiverID != nil
}

// OrderItem is one line of an order. Price is a snapshot taken at order time
// so later catalog price changes never move the expected settlement amount.
type OrderItem struct {
	OrderID  int64
	ItemID   int64
	ItemName string
	Quantity int32
	Price    int64
}

// TotalPrice returns the line total in minor units of the order currency.
func (i OrderItem) TotalPrice() int64 {
	return i.Price * int64(i.Quantity)
}

// ExpectedTotal sums the line totals of an order's items.
func ExpectedTotal(items []OrderItem) int64 {
	var total int64
	for _, item := range items {
		total += item.TotalPrice()
	}
	return total
}

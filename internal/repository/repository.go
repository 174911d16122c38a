package repository

import (
	"context"
	"errors"

	"github.com/solshop/backend/internal/domain"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrItemNotFound  = errors.New("item not found")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// OrderRepository is the durable view of orders and their line items. The
// settlement saga is the only writer of order status.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order, items []domain.OrderItem) error
	GetOrderByID(ctx context.Context, id int64) (*domain.Order, error)
	ListOrdersByStatus(ctx context.Context, status domain.OrderStatus) ([]*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) error
	ListOrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error)
}

// ItemRepository is the durable view of per-item stock and sales counters,
// read at bootstrap and written by the periodic flush and by settlement.
type ItemRepository interface {
	GetItemStock(ctx context.Context, itemID int64) (*domain.ItemStock, error)
	ListItemStocks(ctx context.Context) ([]domain.ItemStock, error)
	UpdateItemQuantity(ctx context.Context, itemID int64, quantity int32) error
	IncreaseSalesCount(ctx context.Context, itemID int64, quantity int32) error
}

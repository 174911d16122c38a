package saga

import (
	"context"
	"sync"

	"github.com/solshop/backend/internal/domain"
	"github.com/solshop/backend/internal/notify"
	"github.com/solshop/backend/internal/repository"
)

// MockOrderRepository implements repository.OrderRepository for testing.
type MockOrderRepository struct {
	mu     sync.Mutex
	Orders map[int64]*domain.Order
	Items  map[int64][]domain.OrderItem

	StatusErr error
}

func (m *MockOrderRepository) CreateOrder(_ context.Context, order *domain.Order, items []domain.OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Orders[order.ID] = order
	m.Items[order.ID] = items
	return nil
}

func (m *MockOrderRepository) GetOrderByID(_ context.Context, id int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.Orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (m *MockOrderRepository) ListOrdersByStatus(_ context.Context, status domain.OrderStatus) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var orders []*domain.Order
	for _, order := range m.Orders {
		if order.Status == status {
			copied := *order
			orders = append(orders, &copied)
		}
	}
	return orders, nil
}

func (m *MockOrderRepository) UpdateOrderStatus(_ context.Context, id int64, status domain.OrderStatus) error {
	if m.StatusErr != nil {
		return m.StatusErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.Orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	order.Status = status
	return nil
}

func (m *MockOrderRepository) ListOrderItems(_ context.Context, orderID int64) ([]domain.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Items[orderID], nil
}

// MockItemRepository implements repository.ItemRepository for testing.
type MockItemRepository struct {
	mu         sync.Mutex
	Stocks     map[int64]int32
	SalesCount map[int64]int32
}

func (m *MockItemRepository) GetItemStock(_ context.Context, itemID int64) (*domain.ItemStock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	qty, ok := m.Stocks[itemID]
	if !ok {
		return nil, repository.ErrItemNotFound
	}
	return &domain.ItemStock{ItemID: itemID, Quantity: qty}, nil
}

func (m *MockItemRepository) ListItemStocks(_ context.Context) ([]domain.ItemStock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stocks []domain.ItemStock
	for id, qty := range m.Stocks {
		stocks = append(stocks, domain.ItemStock{ItemID: id, Quantity: qty})
	}
	return stocks, nil
}

func (m *MockItemRepository) UpdateItemQuantity(_ context.Context, itemID int64, quantity int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stocks[itemID] = quantity
	return nil
}

func (m *MockItemRepository) IncreaseSalesCount(_ context.Context, itemID int64, quantity int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SalesCount[itemID] += quantity
	return nil
}

// MockInventory implements Inventory, recording calls.
type MockInventory struct {
	mu            sync.Mutex
	ConfirmOK     bool
	ConfirmErr    error
	CancelOK      bool
	ConfirmCalls  []map[int64]int32
	CancelCalls   []map[int64]int32
}

func (m *MockInventory) ConfirmAll(_ context.Context, quantities map[int64]int32) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConfirmCalls = append(m.ConfirmCalls, quantities)
	return m.ConfirmOK, m.ConfirmErr
}

func (m *MockInventory) CancelAll(_ context.Context, quantities map[int64]int32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CancelCalls = append(m.CancelCalls, quantities)
	return m.CancelOK
}

// MockNotifier captures enqueued notifications.
type MockNotifier struct {
	mu   sync.Mutex
	Sent []notify.Notification
}

func (m *MockNotifier) Enqueue(n notify.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, n)
}

package verifier

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/solshop/backend/internal/chain"
	"github.com/solshop/backend/internal/domain"
	"github.com/solshop/backend/internal/repository"
)

const (
	testWallet = "COMPANY-WALLET"
	testMint   = "TOKEN-MINT"
)

type stubFetcher struct {
	details  map[string]*chain.TransactionDetail
	failures int
	calls    int
}

func (f *stubFetcher) GetTransaction(_ context.Context, signature string) (*chain.TransactionDetail, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("rpc transport failure")
	}
	detail, ok := f.details[signature]
	if !ok {
		return nil, chain.ErrTransactionNotFound
	}
	return detail, nil
}

type stubOrders struct {
	orders map[int64]*domain.Order
	items  map[int64][]domain.OrderItem
}

func (s *stubOrders) CreateOrder(context.Context, *domain.Order, []domain.OrderItem) error {
	return nil
}

func (s *stubOrders) GetOrderByID(_ context.Context, id int64) (*domain.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

func (s *stubOrders) ListOrdersByStatus(context.Context, domain.OrderStatus) ([]*domain.Order, error) {
	return nil, nil
}

func (s *stubOrders) UpdateOrderStatus(context.Context, int64, domain.OrderStatus) error {
	return nil
}

func (s *stubOrders) ListOrderItems(_ context.Context, orderID int64) ([]domain.OrderItem, error) {
	return s.items[orderID], nil
}

type verdict struct {
	orderID   int64
	userID    int64
	amount    int64
	reason    string
	signature string
}

type stubPublisher struct {
	completed []verdict
	failed    []verdict
}

func (p *stubPublisher) PublishCompleted(_ context.Context, orderID, userID, totalAmount int64, signature string) error {
	p.completed = append(p.completed, verdict{orderID: orderID, userID: userID, amount: totalAmount, signature: signature})
	return nil
}

func (p *stubPublisher) PublishFailed(_ context.Context, orderID, userID int64, reason, signature string) error {
	p.failed = append(p.failed, verdict{orderID: orderID, userID: userID, reason: reason, signature: signature})
	return nil
}

type fixture struct {
	fetcher   *stubFetcher
	orders    *stubOrders
	publisher *stubPublisher
	verifier  *Verifier
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		fetcher:   &stubFetcher{details: make(map[string]*chain.TransactionDetail)},
		orders:    &stubOrders{orders: make(map[int64]*domain.Order), items: make(map[int64][]domain.OrderItem)},
		publisher: &stubPublisher{},
	}
	f.verifier = New(f.fetcher, f.orders, f.publisher, testWallet, testMint, 0.001, zap.NewNop())
	return f
}

func (f *fixture) addOrder(id, userID int64, status domain.OrderStatus, createdAt time.Time, items ...domain.OrderItem) {
	f.orders.orders[id] = &domain.Order{ID: id, UserID: userID, Status: status, CreatedAt: createdAt}
	f.orders.items[id] = items
}

func (f *fixture) addTransaction(signature string, blockTime int64, credited float64, memoLogs ...string) {
	f.fetcher.details[signature] = &chain.TransactionDetail{
		BlockTime: blockTime,
		Meta: &chain.TransactionMeta{
			LogMessages: memoLogs,
			PreTokenBalances: []chain.TokenBalance{{
				AccountIndex:  1,
				Mint:          testMint,
				Owner:         testWallet,
				UITokenAmount: chain.UITokenAmount{UIAmountString: "1000"},
			}},
			PostTokenBalances: []chain.TokenBalance{{
				AccountIndex:  1,
				Mint:          testMint,
				Owner:         testWallet,
				UITokenAmount: chain.UITokenAmount{UIAmountString: fmt.Sprintf("%g", 1000+credited)},
			}},
		},
	}
}

func memoLog(orderID int64) string {
	return fmt.Sprintf(`Program log: Memo (len 8): "ORDER_%d"`, orderID)
}

func TestProcessSignatureCompletesMatchingPayment(t *testing.T) {
	f := setup(t)
	created := time.Now().Add(-time.Minute)
	f.addOrder(7, 100, domain.OrderStatusPending, created,
		domain.OrderItem{OrderID: 7, ItemID: 1, Quantity: 3, Price: 5000})
	f.addTransaction("sig-1", created.Add(30*time.Second).Unix(), 15000, memoLog(7))

	require.NoError(t, f.verifier.ProcessSignature(context.Background(), "sig-1", []string{memoLog(7)}))

	require.Len(t, f.publisher.completed, 1)
	assert.Equal(t, int64(7), f.publisher.completed[0].orderID)
	assert.Equal(t, int64(100), f.publisher.completed[0].userID)
	assert.Equal(t, int64(15000), f.publisher.completed[0].amount)
	assert.Equal(t, "sig-1", f.publisher.completed[0].signature)
	assert.Empty(t, f.publisher.failed)
}

func TestProcessSignatureDeduplicatesPushes(t *testing.T) {
	f := setup(t)
	created := time.Now().Add(-time.Minute)
	f.addOrder(7, 100, domain.OrderStatusPending, created,
		domain.OrderItem{OrderID: 7, ItemID: 1, Quantity: 1, Price: 2000})
	f.addTransaction("sig-1", created.Add(time.Second).Unix(), 2000, memoLog(7))

	require.NoError(t, f.verifier.ProcessSignature(context.Background(), "sig-1", []string{memoLog(7)}))
	require.NoError(t, f.verifier.ProcessSignature(context.Background(), "sig-1", []string{memoLog(7)}))

	assert.Len(t, f.publisher.completed, 1)
	assert.Equal(t, 1, f.fetcher.calls)
}

func TestProcessSignatureRetriesAfterTransientFetchFailure(t *testing.T) {
	f := setup(t)
	created := time.Now().Add(-time.Minute)
	f.addOrder(7, 100, domain.OrderStatusPending, created,
		domain.OrderItem{OrderID: 7, ItemID: 1, Quantity: 1, Price: 2000})
	f.addTransaction("sig-1", created.Add(time.Second).Unix(), 2000, memoLog(7))
	f.fetcher.failures = 1

	require.Error(t, f.verifier.ProcessSignature(context.Background(), "sig-1", []string{memoLog(7)}))
	assert.Empty(t, f.publisher.completed)

	// The redelivered push must not be swallowed by the dedup set.
	require.NoError(t, f.verifier.ProcessSignature(context.Background(), "sig-1", []string{memoLog(7)}))
	assert.Len(t, f.publisher.completed, 1)
}

func TestProcessSignatureAmountMismatch(t *testing.T) {
	f := setup(t)
	created := time.Now().Add(-time.Minute)
	f.addOrder(7, 100, domain.OrderStatusPending, created,
		domain.OrderItem{OrderID: 7, ItemID: 1, Quantity: 3, Price: 5000})
	f.addTransaction("sig-1", created.Add(time.Second).Unix(), 12000, memoLog(7))

	require.NoError(t, f.verifier.ProcessSignature(context.Background(), "sig-1", []string{memoLog(7)}))

	require.Len(t, f.publisher.failed, 1)
	assert.Contains(t, f.publisher.failed[0].reason, "15000")
	assert.Contains(t, f.publisher.failed[0].reason, "12000")
	assert.Empty(t, f.publisher.completed)
}

func TestProcessSignatureRejectsEarlyTransaction(t *testing.T) {
	f := setup(t)
	created := time.Now()
	f.addOrder(7, 100, domain.OrderStatusPending, created,
		domain.OrderItem{OrderID: 7, ItemID: 1, Quantity: 1, Price: 2000})
	f.addTransaction("sig-1", created.Add(-time.Hour).Unix(), 2000, memoLog(7))

	require.NoError(t, f.verifier.ProcessSignature(context.Background(), "sig-1", []string{memoLog(7)}))

	require.Len(t, f.publisher.failed, 1)
	assert.Contains(t, f.publisher.failed[0].reason, "precedes order creation")
}

func TestProcessSignatureIgnoresCompletedOrder(t *testing.T) {
	f := setup(t)
	created := time.Now().Add(-time.Minute)
	f.addOrder(7, 100, domain.OrderStatusCompleted, created)
	f.addTransaction("sig-1", created.Add(time.Second).Unix(), 2000, memoLog(7))

	require.NoError(t, f.verifier.ProcessSignature(context.Background(), "sig-1", []string{memoLog(7)}))

	assert.Empty(t, f.publisher.completed)
	assert.Empty(t, f.publisher.failed)
}

func TestProcessSignatureFailsNonPendingOrder(t *testing.T) {
	f := setup(t)
	created := time.Now().Add(-time.Minute)
	f.addOrder(7, 100, domain.OrderStatusFailed, created)
	f.addTransaction("sig-1", created.Add(time.Second).Unix(), 2000, memoLog(7))

	require.NoError(t, f.verifier.ProcessSignature(context.Background(), "sig-1", []string{memoLog(7)}))

	require.Len(t, f.publisher.failed, 1)
	assert.Contains(t, f.publisher.failed[0].reason, "no longer awaiting payment")
}

func TestProcessSignatureFallsBackToTransactionLogs(t *testing.T) {
	f := setup(t)
	created := time.Now().Add(-time.Minute)
	f.addOrder(7, 100, domain.OrderStatusPending, created,
		domain.OrderItem{OrderID: 7, ItemID: 1, Quantity: 1, Price: 2000})
	f.addTransaction("sig-1", created.Add(time.Second).Unix(), 2000, memoLog(7))

	require.NoError(t, f.verifier.ProcessSignature(context.Background(), "sig-1", nil))

	assert.Len(t, f.publisher.completed, 1)
}

func TestProcessSignatureIgnoresUnknownOrder(t *testing.T) {
	f := setup(t)
	f.addTransaction("sig-1", time.Now().Unix(), 2000, memoLog(404))

	require.NoError(t, f.verifier.ProcessSignature(context.Background(), "sig-1", []string{memoLog(404)}))

	assert.Empty(t, f.publisher.completed)
	assert.Empty(t, f.publisher.failed)
}

func TestExtractOrderID(t *testing.T) {
	id, ok := extractOrderID([]string{
		"Program 11111 invoke [1]",
		`Program log: Memo (len 9): "ORDER_123"`,
	})
	require.True(t, ok)
	assert.Equal(t, int64(123), id)

	_, ok = extractOrderID([]string{"Program log: Instruction: Transfer"})
	assert.False(t, ok)

	_, ok = extractOrderID([]string{`Program log: Memo (len 5): "hello"`})
	assert.False(t, ok)
}

func TestProcessedSignatureSetCleanup(t *testing.T) {
	set := NewProcessedSignatureSet()
	for i := 0; i < 1200; i++ {
		set.Add(fmt.Sprintf("sig-%d", i))
	}

	require.Equal(t, 1200, set.Len())
	assert.Equal(t, 500, set.Cleanup())
	assert.Equal(t, 700, set.Len())

	assert.False(t, set.Contains("sig-0"))
	assert.False(t, set.Contains("sig-499"))
	assert.True(t, set.Contains("sig-500"))
	assert.True(t, set.Contains("sig-1199"))

	assert.Zero(t, set.Cleanup())
}

package saga

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/solshop/backend/internal/domain"
	"github.com/solshop/backend/internal/notify"
	"github.com/solshop/backend/internal/repository"
)

const (
	paymentSuccessTitle = "Payment completed"
	paymentFailureTitle = "Payment failed"
	giftTitle           = "A gift has arrived!"
)

// Inventory is the slice of the reservation service the saga drives.
type Inventory interface {
	ConfirmAll(ctx context.Context, quantities map[int64]int32) (bool, error)
	CancelAll(ctx context.Context, quantities map[int64]int32) bool
}

// Notifier is the outbound notification surface. Implementations never block
// and never fail the caller.
type Notifier interface {
	Enqueue(n notify.Notification)
}

// Settlement drives an order from PENDING to a terminal state. Every handler
// re-reads current status first and treats "already terminal" as a no-op
// success, because verdicts are delivered at least once and the timeout sweep
// can race a late verdict.
type Settlement struct {
	orders    repository.OrderRepository
	items     repository.ItemRepository
	inventory Inventory
	notifier  Notifier
	logger    *zap.Logger
}

func NewSettlement(
	orders repository.OrderRepository,
	items repository.ItemRepository,
	inventory Inventory,
	notifier Notifier,
	logger *zap.Logger,
) *Settlement {
	return &Settlement{
		orders:    orders,
		items:     items,
		inventory: inventory,
		notifier:  notifier,
		logger:    logger,
	}
}

// HandlePaymentSuccess confirms the order's reservations and completes the
// order. A confirmation failure leaves the order PENDING so the verdict can
// be retried or the sweep can fail it.
func (s *Settlement) HandlePaymentSuccess(ctx context.Context, orderID int64) error {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order %d: %w", orderID, err)
	}

	if order.Status == domain.OrderStatusCompleted {
		s.logger.Info("order already completed", zap.Int64("order_id", orderID))
		return nil
	}
	if order.Status != domain.OrderStatusPending {
		return fmt.Errorf("order %d in unexpected state %s", orderID, order.Status)
	}

	lines, err := s.orders.ListOrderItems(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order items for %d: %w", orderID, err)
	}
	quantities := itemQuantities(lines)

	ok, err := s.inventory.ConfirmAll(ctx, quantities)
	if err != nil {
		return fmt.Errorf("confirm inventory for order %d: %w", orderID, err)
	}
	if !ok {
		return fmt.Errorf("inventory confirmation refused for order %d", orderID)
	}

	for _, line := range lines {
		if err := s.items.IncreaseSalesCount(ctx, line.ItemID, line.Quantity); err != nil {
			s.logger.Error("failed to increase sales count",
				zap.Int64("order_id", orderID),
				zap.Int64("item_id", line.ItemID),
				zap.Error(err))
		}
	}

	if err := s.orders.UpdateOrderStatus(ctx, orderID, domain.OrderStatusCompleted); err != nil {
		return fmt.Errorf("complete order %d: %w", orderID, err)
	}

	if order.IsGift() {
		s.sendGiftNotification(order, lines)
	}
	s.sendPaymentNotification(order, lines, true, "")

	s.logger.Info("order settled", zap.Int64("order_id", orderID))
	return nil
}

// HandlePaymentFailure fails the order and releases its reservations. The
// order is marked FAILED before compensation runs so a compensation error
// cannot leave it stuck in PENDING.
func (s *Settlement) HandlePaymentFailure(ctx context.Context, orderID int64, reason string) error {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order %d: %w", orderID, err)
	}

	if order.Status != domain.OrderStatusPending {
		s.logger.Info("order already processed",
			zap.Int64("order_id", orderID),
			zap.String("status", string(order.Status)))
		return nil
	}

	if err := s.orders.UpdateOrderStatus(ctx, orderID, domain.OrderStatusFailed); err != nil {
		return fmt.Errorf("fail order %d: %w", orderID, err)
	}

	lines, err := s.orders.ListOrderItems(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order items for %d: %w", orderID, err)
	}

	if !s.inventory.CancelAll(ctx, itemQuantities(lines)) {
		s.logger.Warn("some reservations could not be cancelled",
			zap.Int64("order_id", orderID))
	}

	s.sendPaymentNotification(order, lines, false, reason)

	s.logger.Info("order failed",
		zap.Int64("order_id", orderID),
		zap.String("reason", reason))
	return nil
}

func (s *Settlement) sendPaymentNotification(order *domain.Order, lines []domain.OrderItem, success bool, reason string) {
	if len(lines) == 0 {
		s.logger.Warn("order has no line items", zap.Int64("order_id", order.ID))
		return
	}

	title := paymentSuccessTitle
	status := "Your payment has been completed."
	if !success {
		title = paymentFailureTitle
		status = "Your payment has failed."
	}

	body := fmt.Sprintf("%s %s", lines[0].ItemName, status)
	if len(lines) > 1 {
		body = fmt.Sprintf("%s and %d more: %s", lines[0].ItemName, len(lines)-1, status)
	}
	if !success && reason != "" {
		body += " Reason: " + reason
	}

	s.notifier.Enqueue(notify.Notification{
		UserID: order.UserID,
		Title:  title,
		Body:   body,
	})
}

func (s *Settlement) sendGiftNotification(order *domain.Order, lines []domain.OrderItem) {
	if len(lines) == 0 {
		return
	}
	s.notifier.Enqueue(notify.Notification{
		UserID: *order.GiftReceiverID,
		Title:  giftTitle,
		Body:   fmt.Sprintf("Someone sent you %s as a gift!", lines[0].ItemName),
	})
}

func itemQuantities(lines []domain.OrderItem) map[int64]int32 {
	quantities := make(map[int64]int32, len(lines))
	for _, line := range lines {
		quantities[line.ItemID] = line.Quantity
	}
	return quantities
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/solshop/backend/internal/domain"
	"github.com/solshop/backend/internal/lock"
	"github.com/solshop/backend/internal/repository"
)

const (
	sweepLockName  = "scheduler:payment:check"
	sweepLockWait  = 10 * time.Second
	sweepLockLease = 50 * time.Second
)

// FailureHandler fails an order whose payment never arrived.
type FailureHandler interface {
	HandlePaymentFailure(ctx context.Context, orderID int64, reason string) error
}

// Sweeper periodically fails pending orders older than the payment timeout.
// A distributed lock keeps concurrent instances from sweeping the same
// orders twice.
type Sweeper struct {
	orders   repository.OrderRepository
	handler  FailureHandler
	locks    *lock.Manager
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

func NewSweeper(orders repository.OrderRepository, handler FailureHandler, locks *lock.Manager,
	interval, timeout time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		orders:   orders,
		handler:  handler,
		locks:    locks,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("payment sweeper stopped")
			return
		case <-ticker.C:
			if err := s.sweepOnce(ctx); err != nil {
				s.logger.Error("payment sweep failed", zap.Error(err))
			}
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) error {
	err := s.locks.WithLock(ctx, sweepLockName, sweepLockWait, sweepLockLease, s.sweep)
	if errors.Is(err, lock.ErrNotAcquired) {
		s.logger.Debug("sweep lock held elsewhere, skipping cycle")
		return nil
	}
	return err
}

func (s *Sweeper) sweep(ctx context.Context) error {
	pending, err := s.orders.ListOrdersByStatus(ctx, domain.OrderStatusPending)
	if err != nil {
		return fmt.Errorf("list pending orders: %w", err)
	}

	cutoff := time.Now().Add(-s.timeout)
	expired := 0
	for _, order := range pending {
		if order.CreatedAt.After(cutoff) {
			continue
		}
		reason := fmt.Sprintf("payment not received within %s", s.timeout)
		if err := s.handler.HandlePaymentFailure(ctx, order.ID, reason); err != nil {
			s.logger.Error("failed to expire order",
				zap.Int64("order_id", order.ID), zap.Error(err))
			continue
		}
		expired++
	}

	if expired > 0 {
		s.logger.Info("expired unpaid orders", zap.Int("count", expired))
	}
	return nil
}

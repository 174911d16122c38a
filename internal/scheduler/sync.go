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
	syncLockName  = "scheduler:inventory:sync"
	syncLockWait  = 10 * time.Second
	syncLockLease = 240 * time.Second
)

// InventoryView is the slice of the reservation service the sync needs:
// seeding the cache at bootstrap and reading records back for the flush.
type InventoryView interface {
	InitializeAll(ctx context.Context, quantities map[int64]int32) error
	Get(ctx context.Context, itemID int64) (*domain.InventoryRecord, error)
}

// SyncScheduler keeps the cache and the durable item table aligned: it
// seeds the cache from the database at startup and periodically flushes
// cached totals back.
type SyncScheduler struct {
	items     repository.ItemRepository
	inventory InventoryView
	locks     *lock.Manager
	interval  time.Duration
	logger    *zap.Logger
}

func NewSyncScheduler(items repository.ItemRepository, inventory InventoryView, locks *lock.Manager,
	interval time.Duration, logger *zap.Logger) *SyncScheduler {
	return &SyncScheduler{
		items:     items,
		inventory: inventory,
		locks:     locks,
		interval:  interval,
		logger:    logger,
	}
}

// Bootstrap seeds the cache with current stock for every known item. It
// runs under the sync lock so only one starting instance does the seeding.
func (s *SyncScheduler) Bootstrap(ctx context.Context) error {
	err := s.locks.WithLock(ctx, syncLockName, syncLockWait, syncLockLease, func(ctx context.Context) error {
		stocks, err := s.items.ListItemStocks(ctx)
		if err != nil {
			return fmt.Errorf("list item stocks: %w", err)
		}
		quantities := make(map[int64]int32, len(stocks))
		for _, stock := range stocks {
			quantities[stock.ItemID] = stock.Quantity
		}
		if err := s.inventory.InitializeAll(ctx, quantities); err != nil {
			return fmt.Errorf("seed inventory cache: %w", err)
		}
		s.logger.Info("inventory cache seeded", zap.Int("items", len(quantities)))
		return nil
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		s.logger.Info("another instance is seeding the inventory cache")
		return nil
	}
	return err
}

// Run flushes cached totals to the database on a fixed interval until ctx
// is cancelled.
func (s *SyncScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("inventory sync stopped")
			return
		case <-ticker.C:
			if err := s.flushOnce(ctx); err != nil {
				s.logger.Error("inventory flush failed", zap.Error(err))
			}
		}
	}
}

// FlushNow runs one flush cycle outside the ticker, used during shutdown.
func (s *SyncScheduler) FlushNow(ctx context.Context) error {
	return s.flushOnce(ctx)
}

func (s *SyncScheduler) flushOnce(ctx context.Context) error {
	err := s.locks.WithLock(ctx, syncLockName, syncLockWait, syncLockLease, s.flush)
	if errors.Is(err, lock.ErrNotAcquired) {
		s.logger.Debug("sync lock held elsewhere, skipping cycle")
		return nil
	}
	return err
}

// flush writes each item's cached total back to the durable store. Reserved
// counts stay cache-only: a reservation is not a sale until confirmed.
func (s *SyncScheduler) flush(ctx context.Context) error {
	stocks, err := s.items.ListItemStocks(ctx)
	if err != nil {
		return fmt.Errorf("list item stocks: %w", err)
	}

	flushed := 0
	for _, stock := range stocks {
		record, err := s.inventory.Get(ctx, stock.ItemID)
		if err != nil {
			s.logger.Warn("skipping item without cache record",
				zap.Int64("item_id", stock.ItemID), zap.Error(err))
			continue
		}
		if record.Total == stock.Quantity {
			continue
		}
		if err := s.items.UpdateItemQuantity(ctx, stock.ItemID, record.Total); err != nil {
			s.logger.Error("failed to flush item quantity",
				zap.Int64("item_id", stock.ItemID), zap.Error(err))
			continue
		}
		flushed++
	}

	if flushed > 0 {
		s.logger.Info("flushed inventory totals", zap.Int("items", flushed))
	}
	return nil
}

package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/solshop/backend/internal/domain"
	"github.com/solshop/backend/internal/lock"
)

const (
	itemLockPrefix = "inventory:lock:"
	itemLockWait   = 3 * time.Second
	itemLockLease  = 5 * time.Second
)

// StockReader supplies authoritative quantities from the durable store, used
// to re-seed a record that fell out of the cache.
type StockReader interface {
	GetItemStock(ctx context.Context, itemID int64) (*domain.ItemStock, error)
}

// Service owns every mutation of the shared inventory counters. Each per-item
// mutation runs inside that item's distributed lock; this is the only
// synchronization protecting the counters, so new mutating operations must go
// through withItemLock as well.
type Service struct {
	cache  Cache
	locks  *lock.Manager
	stocks StockReader
	logger *zap.Logger
}

func NewService(cache Cache, locks *lock.Manager, stocks StockReader, logger *zap.Logger) *Service {
	return &Service{
		cache:  cache,
		locks:  locks,
		stocks: stocks,
		logger: logger,
	}
}

// Initialize seeds an item's counters: total=qty, reserved=0. Bootstrap only;
// the caller serializes the seed fleet-wide with the init job lock.
func (s *Service) Initialize(ctx context.Context, itemID int64, quantity int32) error {
	return s.cache.Put(ctx, &domain.InventoryRecord{
		ItemID: itemID,
		Total:  quantity,
	})
}

// InitializeAll seeds counters for a whole catalog snapshot.
func (s *Service) InitializeAll(ctx context.Context, quantities map[int64]int32) error {
	for itemID, qty := range quantities {
		if err := s.Initialize(ctx, itemID, qty); err != nil {
			return fmt.Errorf("initialize item %d: %w", itemID, err)
		}
	}
	return nil
}

// Reserve places a provisional hold of qty against an item. It returns false
// with no mutation when available stock is insufficient. A lock-acquisition
// failure surfaces as lock.ErrNotAcquired so the caller can retry instead of
// reporting "sold out".
func (s *Service) Reserve(ctx context.Context, itemID int64, qty int32) (bool, error) {
	reserved := false
	err := s.withItemLock(ctx, itemID, func(ctx context.Context, record *domain.InventoryRecord) error {
		if record.Available() < qty {
			s.logger.Warn("insufficient stock",
				zap.Int64("item_id", itemID),
				zap.Int32("requested", qty),
				zap.Int32("available", record.Available()))
			return nil
		}
		record.Reserved += qty
		reserved = true
		return s.cache.Put(ctx, record)
	})
	return reserved, err
}

// Confirm converts a reservation into a completed sale: total and reserved
// both decrease by qty. A reservation smaller than qty indicates an upstream
// defect and fails without mutation.
func (s *Service) Confirm(ctx context.Context, itemID int64, qty int32) (bool, error) {
	confirmed := false
	err := s.withItemLock(ctx, itemID, func(ctx context.Context, record *domain.InventoryRecord) error {
		if record.Reserved < qty {
			s.logger.Error("reserved quantity below confirmation request",
				zap.Int64("item_id", itemID),
				zap.Int32("reserved", record.Reserved),
				zap.Int32("requested", qty))
			return nil
		}
		record.Total -= qty
		record.Reserved -= qty
		confirmed = true
		return s.cache.Put(ctx, record)
	})
	return confirmed, err
}

// CancelReservation releases a hold, clamped so reserved never goes negative.
// Total is untouched; the stock becomes available again.
func (s *Service) CancelReservation(ctx context.Context, itemID int64, qty int32) error {
	return s.withItemLock(ctx, itemID, func(ctx context.Context, record *domain.InventoryRecord) error {
		record.Reserved = max(0, record.Reserved-qty)
		return s.cache.Put(ctx, record)
	})
}

// Increase adds restocked quantity to an item's total.
func (s *Service) Increase(ctx context.Context, itemID int64, qty int32) error {
	return s.withItemLock(ctx, itemID, func(ctx context.Context, record *domain.InventoryRecord) error {
		record.Total += qty
		return s.cache.Put(ctx, record)
	})
}

// Decrease removes quantity from an item's total (stock correction). Fails
// with ErrInsufficientStock when the removal would dig into reservations.
func (s *Service) Decrease(ctx context.Context, itemID int64, qty int32) error {
	return s.withItemLock(ctx, itemID, func(ctx context.Context, record *domain.InventoryRecord) error {
		if record.Available() < qty {
			return ErrInsufficientStock
		}
		record.Total -= qty
		return s.cache.Put(ctx, record)
	})
}

// SetAvailable sets the item's available quantity to exactly qty, keeping
// current reservations intact (total becomes reserved + qty). Used for stock
// corrections where the operator states the sellable count directly.
func (s *Service) SetAvailable(ctx context.Context, itemID int64, qty int32) error {
	return s.withItemLock(ctx, itemID, func(ctx context.Context, record *domain.InventoryRecord) error {
		record.Total = record.Reserved + qty
		return s.cache.Put(ctx, record)
	})
}

// HasStock is a lock-free point-in-time read. Advisory only; reservation
// decisions are always re-checked under the item lock.
func (s *Service) HasStock(ctx context.Context, itemID int64, qty int32) bool {
	record, err := s.getOrSeed(ctx, itemID)
	if err != nil {
		s.logger.Error("stock check failed", zap.Int64("item_id", itemID), zap.Error(err))
		return false
	}
	return record.Available() >= qty
}

// Get returns the current record for an item, seeding from the durable store
// on a cache miss.
func (s *Service) Get(ctx context.Context, itemID int64) (*domain.InventoryRecord, error) {
	return s.getOrSeed(ctx, itemID)
}

// ReserveAll reserves every item in quantities, or none of them. Items are
// locked and processed independently; on the first failure the items already
// reserved in this batch are cancelled before returning. Lock-acquisition
// failures propagate as lock.ErrNotAcquired after compensation.
func (s *Service) ReserveAll(ctx context.Context, quantities map[int64]int32) (bool, error) {
	itemIDs := sortedItemIDs(quantities)

	var done []int64
	for _, itemID := range itemIDs {
		ok, err := s.Reserve(ctx, itemID, quantities[itemID])
		if err != nil || !ok {
			s.compensateReservations(ctx, done, quantities)
			return false, err
		}
		done = append(done, itemID)
	}
	return true, nil
}

// ConfirmAll confirms every reservation in quantities, or none of them. On a
// mid-batch failure the confirmations already applied are reverted so stock
// totals stay consistent with the order remaining unsettled.
func (s *Service) ConfirmAll(ctx context.Context, quantities map[int64]int32) (bool, error) {
	itemIDs := sortedItemIDs(quantities)

	var done []int64
	for _, itemID := range itemIDs {
		ok, err := s.Confirm(ctx, itemID, quantities[itemID])
		if err != nil || !ok {
			s.revertConfirmations(ctx, done, quantities)
			return false, err
		}
		done = append(done, itemID)
	}
	return true, nil
}

// CancelAll releases every reservation in quantities. Cancellation is
// best-effort: per-item failures are logged and skipped, and the overall
// result reports whether every item was released.
func (s *Service) CancelAll(ctx context.Context, quantities map[int64]int32) bool {
	allCancelled := true
	for _, itemID := range sortedItemIDs(quantities) {
		if err := s.CancelReservation(ctx, itemID, quantities[itemID]); err != nil {
			s.logger.Warn("failed to cancel reservation",
				zap.Int64("item_id", itemID),
				zap.Int32("quantity", quantities[itemID]),
				zap.Error(err))
			allCancelled = false
		}
	}
	return allCancelled
}

func (s *Service) compensateReservations(ctx context.Context, itemIDs []int64, quantities map[int64]int32) {
	for _, itemID := range itemIDs {
		if err := s.CancelReservation(ctx, itemID, quantities[itemID]); err != nil {
			// Left for the reconciliation sweep.
			s.logger.Error("failed to compensate reservation",
				zap.Int64("item_id", itemID),
				zap.Int32("quantity", quantities[itemID]),
				zap.Error(err))
		}
	}
}

func (s *Service) revertConfirmations(ctx context.Context, itemIDs []int64, quantities map[int64]int32) {
	for _, itemID := range itemIDs {
		qty := quantities[itemID]
		err := s.withItemLock(ctx, itemID, func(ctx context.Context, record *domain.InventoryRecord) error {
			record.Total += qty
			record.Reserved += qty
			return s.cache.Put(ctx, record)
		})
		if err != nil {
			s.logger.Error("failed to revert confirmation",
				zap.Int64("item_id", itemID),
				zap.Int32("quantity", qty),
				zap.Error(err))
		}
	}
}

// withItemLock is the single critical-section entry point for counter
// mutations: acquire the item lock, load the record (seeding on miss), run fn.
func (s *Service) withItemLock(ctx context.Context, itemID int64, fn func(ctx context.Context, record *domain.InventoryRecord) error) error {
	return s.locks.WithLock(ctx, itemLockKey(itemID), itemLockWait, itemLockLease, func(ctx context.Context) error {
		record, err := s.getOrSeed(ctx, itemID)
		if err != nil {
			return err
		}
		return fn(ctx, record)
	})
}

func (s *Service) getOrSeed(ctx context.Context, itemID int64) (*domain.InventoryRecord, error) {
	record, err := s.cache.Get(ctx, itemID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return nil, err
	}

	stock, err := s.stocks.GetItemStock(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("seed inventory for item %d: %w", itemID, err)
	}

	record = &domain.InventoryRecord{ItemID: itemID, Total: stock.Quantity}
	if err := s.cache.Put(ctx, record); err != nil {
		return nil, err
	}
	s.logger.Info("seeded inventory record from durable store",
		zap.Int64("item_id", itemID),
		zap.Int32("quantity", stock.Quantity))
	return record, nil
}

func sortedItemIDs(quantities map[int64]int32) []int64 {
	ids := make([]int64, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func itemLockKey(itemID int64) string {
	return fmt.Sprintf("%s%d", itemLockPrefix, itemID)
}

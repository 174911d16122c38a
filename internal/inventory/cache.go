package inventory

import (
	"context"
	"errors"

	"github.com/solshop/backend/internal/domain"
)

// Common errors returned by the cache and the reservation service.
var (
	ErrRecordNotFound    = errors.New("inventory record not found")
	ErrInsufficientStock = errors.New("insufficient available stock")
)

// Cache is the shared low-latency store for per-item stock counters. It holds
// plain records; all locking and counter arithmetic lives in the Service so
// there is exactly one mutation path.
type Cache interface {
	// Get returns the record for an item, or ErrRecordNotFound.
	Get(ctx context.Context, itemID int64) (*domain.InventoryRecord, error)

	// GetAll returns the records for the given items, keyed by item id.
	// Items missing from the cache are absent from the result.
	GetAll(ctx context.Context, itemIDs []int64) (map[int64]*domain.InventoryRecord, error)

	// Put stores a record, replacing any previous value.
	Put(ctx context.Context, record *domain.InventoryRecord) error
}

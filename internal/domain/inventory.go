package domain

// InventoryRecord holds the cached stock counters for a single item.
// Available is always derived as Total - Reserved; both Reserved and the
// derived value must stay non-negative across every mutation.
type InventoryRecord struct {
	ItemID   int64 `json:"item_id"`
	Total    int32 `json:"total"`
	Reserved int32 `json:"reserved"`
}

// Available returns the quantity that can still be reserved.
func (r InventoryRecord) Available() int32 {
	return r.Total - r.Reserved
}

// ItemStock is the durable-store view of an item's stock, read at bootstrap
// and written back by the periodic flush.
type ItemStock struct {
	ItemID   int64
	Quantity int32
}

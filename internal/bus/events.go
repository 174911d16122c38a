package bus

// PaymentCompletedEvent is the success verdict published by the verifier and
// consumed by the settlement saga. Delivery is at-least-once; consumers rely
// on order-state idempotency, not on seeing each event exactly once.
type PaymentCompletedEvent struct {
	EventID     string `json:"event_id"`
	OrderID     int64  `json:"order_id"`
	UserID      int64  `json:"user_id"`
	TotalAmount int64  `json:"total_amount"`
	Signature   string `json:"transaction_signature"`
	CompletedAt int64  `json:"completed_at"`
}

// PaymentFailedEvent is the failure verdict with a human-readable reason.
type PaymentFailedEvent struct {
	EventID   string `json:"event_id"`
	OrderID   int64  `json:"order_id"`
	UserID    int64  `json:"user_id"`
	Reason    string `json:"reason"`
	Signature string `json:"transaction_signature"`
	FailedAt  int64  `json:"failed_at"`
}

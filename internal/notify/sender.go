package notify

import "context"

// Notification is one user-facing push message.
type Notification struct {
	UserID int64
	Title  string
	Body   string
}

// Sender delivers a notification to a user. Delivery is best-effort: errors
// are logged by the dispatcher and never propagate into settlement.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

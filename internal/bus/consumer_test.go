package bus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubHandler struct {
	succeeded  []int64
	failed     []int64
	reasons    []string
	successErr error
	failureErr error
}

func (h *stubHandler) HandlePaymentSuccess(_ context.Context, orderID int64) error {
	if h.successErr != nil {
		return h.successErr
	}
	h.succeeded = append(h.succeeded, orderID)
	return nil
}

func (h *stubHandler) HandlePaymentFailure(_ context.Context, orderID int64, reason string) error {
	if h.failureErr != nil {
		return h.failureErr
	}
	h.failed = append(h.failed, orderID)
	h.reasons = append(h.reasons, reason)
	return nil
}

func setupConsumer(handler *stubHandler) *Consumer {
	return &Consumer{handler: handler, logger: zap.NewNop()}
}

func TestHandleCompletedMessage(t *testing.T) {
	handler := &stubHandler{}
	c := setupConsumer(handler)

	payload, err := json.Marshal(PaymentCompletedEvent{
		EventID:     "ev-1",
		OrderID:     7,
		UserID:      100,
		TotalAmount: 15000,
		Signature:   "sig-1",
	})
	require.NoError(t, err)

	c.handleCompletedMessage(context.Background(), payload)

	assert.Equal(t, []int64{7}, handler.succeeded)
}

func TestHandleCompletedMessageMalformedPayload(t *testing.T) {
	handler := &stubHandler{}
	c := setupConsumer(handler)

	c.handleCompletedMessage(context.Background(), []byte("not json"))

	assert.Empty(t, handler.succeeded)
}

func TestHandleCompletedMessageHandlerErrorDoesNotPanic(t *testing.T) {
	handler := &stubHandler{successErr: errors.New("db unavailable")}
	c := setupConsumer(handler)

	payload, err := json.Marshal(PaymentCompletedEvent{OrderID: 7})
	require.NoError(t, err)

	// The error is logged and swallowed; the order stays PENDING for the
	// sweep or a redelivery to pick up.
	c.handleCompletedMessage(context.Background(), payload)

	assert.Empty(t, handler.succeeded)
}

func TestHandleFailedMessage(t *testing.T) {
	handler := &stubHandler{}
	c := setupConsumer(handler)

	payload, err := json.Marshal(PaymentFailedEvent{
		EventID: "ev-2",
		OrderID: 9,
		UserID:  100,
		Reason:  "amount mismatch: expected 15000, credited 12000",
	})
	require.NoError(t, err)

	c.handleFailedMessage(context.Background(), payload)

	require.Equal(t, []int64{9}, handler.failed)
	assert.Contains(t, handler.reasons[0], "amount mismatch")
}

func TestHandleFailedMessageMalformedPayload(t *testing.T) {
	handler := &stubHandler{}
	c := setupConsumer(handler)

	c.handleFailedMessage(context.Background(), []byte(`{"order_id": "seven"}`))

	assert.Empty(t, handler.failed)
}

func TestHandleFailedMessageHandlerError(t *testing.T) {
	handler := &stubHandler{failureErr: errors.New("db unavailable")}
	c := setupConsumer(handler)

	payload, err := json.Marshal(PaymentFailedEvent{OrderID: 9, Reason: "timeout"})
	require.NoError(t, err)

	c.handleFailedMessage(context.Background(), payload)

	assert.Empty(t, handler.failed)
}
package bus

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// SettlementHandler applies a verdict to an order. Implementations must be
// idempotent: the broker redelivers, and the sweep can race a late verdict.
type SettlementHandler interface {
	HandlePaymentSuccess(ctx context.Context, orderID int64) error
	HandlePaymentFailure(ctx context.Context, orderID int64, reason string) error
}

// Consumer reads verdict events off the broker and drives the settlement
// saga. One reader per topic, both in the same consumer group.
type Consumer struct {
	handler   SettlementHandler
	completed *kafka.Reader
	failed    *kafka.Reader
	logger    *zap.Logger
}

func NewConsumer(handler SettlementHandler, logger *zap.Logger, completedTopic, failedTopic, group string, brokers ...string) *Consumer {
	newReader := func(topic string) *kafka.Reader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  group,
			MaxBytes: 10e6, // 10MB
		})
	}
	return &Consumer{
		handler:   handler,
		completed: newReader(completedTopic),
		failed:    newReader(failedTopic),
		logger:    logger,
	}
}

// Run consumes both verdict topics until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	go c.consumeCompleted(ctx)
	c.consumeFailed(ctx)
}

func (c *Consumer) Close() {
	if err := c.completed.Close(); err != nil {
		c.logger.Error("error closing completed reader", zap.Error(err))
	}
	if err := c.failed.Close(); err != nil {
		c.logger.Error("error closing failed reader", zap.Error(err))
	}
}

func (c *Consumer) consumeCompleted(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processCompleted(ctx)
	}
}

func (c *Consumer) consumeFailed(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processFailed(ctx)
	}
}

func (c *Consumer) processCompleted(ctx context.Context) {
	m, err := c.completed.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.logger.Error("error reading completed event", zap.Error(err))
		return
	}
	c.handleCompletedMessage(ctx, m.Value)
}

func (c *Consumer) processFailed(ctx context.Context) {
	m, err := c.failed.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.logger.Error("error reading failed event", zap.Error(err))
		return
	}
	c.handleFailedMessage(ctx, m.Value)
}

func (c *Consumer) handleCompletedMessage(ctx context.Context, value []byte) {
	var event PaymentCompletedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		c.logger.Error("error parsing completed event", zap.Error(err))
		return
	}

	c.logger.Info("received payment completed event",
		zap.Int64("order_id", event.OrderID),
		zap.String("signature", event.Signature))

	if err := c.handler.HandlePaymentSuccess(ctx, event.OrderID); err != nil {
		// Leave in PENDING for the scheduler to retry.
		c.logger.Error("failed to process payment success",
			zap.Int64("order_id", event.OrderID),
			zap.Error(err))
	}
}

func (c *Consumer) handleFailedMessage(ctx context.Context, value []byte) {
	var event PaymentFailedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		c.logger.Error("error parsing failed event", zap.Error(err))
		return
	}

	c.logger.Info("received payment failed event",
		zap.Int64("order_id", event.OrderID),
		zap.String("reason", event.Reason))

	if err := c.handler.HandlePaymentFailure(ctx, event.OrderID, event.Reason); err != nil {
		c.logger.Error("failed to process payment failure",
			zap.Int64("order_id", event.OrderID),
			zap.Error(err))
	}
}

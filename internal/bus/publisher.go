package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher writes payment verdicts onto the broker so chain monitoring and
// settlement processing fail independently.
type Publisher struct {
	completed *kafka.Writer
	failed    *kafka.Writer
	logger    *zap.Logger
}

func NewPublisher(logger *zap.Logger, completedTopic, failedTopic string, brokers ...string) *Publisher {
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		}
	}
	return &Publisher{
		completed: newWriter(completedTopic),
		failed:    newWriter(failedTopic),
		logger:    logger,
	}
}

// PublishCompleted publishes a success verdict for an order.
func (p *Publisher) PublishCompleted(ctx context.Context, orderID, userID, totalAmount int64, signature string) error {
	event := PaymentCompletedEvent{
		EventID:     uuid.NewString(),
		OrderID:     orderID,
		UserID:      userID,
		TotalAmount: totalAmount,
		Signature:   signature,
		CompletedAt: time.Now().UnixMilli(),
	}
	if err := p.publish(ctx, p.completed, orderID, event); err != nil {
		return fmt.Errorf("publish payment completed event: %w", err)
	}
	p.logger.Info("published payment completed event",
		zap.Int64("order_id", orderID),
		zap.String("signature", signature))
	return nil
}

// PublishFailed publishes a failure verdict with a human-readable reason.
func (p *Publisher) PublishFailed(ctx context.Context, orderID, userID int64, reason, signature string) error {
	event := PaymentFailedEvent{
		EventID:   uuid.NewString(),
		OrderID:   orderID,
		UserID:    userID,
		Reason:    reason,
		Signature: signature,
		FailedAt:  time.Now().UnixMilli(),
	}
	if err := p.publish(ctx, p.failed, orderID, event); err != nil {
		return fmt.Errorf("publish payment failed event: %w", err)
	}
	p.logger.Info("published payment failed event",
		zap.Int64("order_id", orderID),
		zap.String("reason", reason))
	return nil
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, orderID int64, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(orderID, 10)), // order_id for per-order ordering
		Value: payload,
	})
}

func (p *Publisher) Close() error {
	if err := p.completed.Close(); err != nil {
		return err
	}
	return p.failed.Close()
}

package verifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/solshop/backend/internal/chain"
	"github.com/solshop/backend/internal/domain"
	"github.com/solshop/backend/internal/repository"
)

const memoPrefix = "ORDER_"

// TransactionFetcher fetches confirmed transactions from the chain.
type TransactionFetcher interface {
	GetTransaction(ctx context.Context, signature string) (*chain.TransactionDetail, error)
}

// VerdictPublisher emits the settlement verdict for a verified payment.
type VerdictPublisher interface {
	PublishCompleted(ctx context.Context, orderID, userID, totalAmount int64, signature string) error
	PublishFailed(ctx context.Context, orderID, userID int64, reason, signature string) error
}

// Verifier checks pushed transactions against pending orders: it correlates
// the memo tag to an order, validates timing and the credited token amount,
// and publishes a completed or failed verdict.
type Verifier struct {
	rpc       TransactionFetcher
	orders    repository.OrderRepository
	publisher VerdictPublisher
	seen      *ProcessedSignatureSet
	wallet    string
	mint      string
	tolerance float64
	logger    *zap.Logger
}

func New(rpc TransactionFetcher, orders repository.OrderRepository, publisher VerdictPublisher,
	wallet, mint string, tolerance float64, logger *zap.Logger) *Verifier {
	return &Verifier{
		rpc:       rpc,
		orders:    orders,
		publisher: publisher,
		seen:      NewProcessedSignatureSet(),
		wallet:    wallet,
		mint:      mint,
		tolerance: tolerance,
		logger:    logger,
	}
}

// Signatures exposes the dedup set for periodic cleanup.
func (v *Verifier) Signatures() *ProcessedSignatureSet { return v.seen }

// ProcessSignature handles one pushed transaction. logs may be the log lines
// delivered with the push; when they carry no memo the transaction's own
// logs are consulted instead. The signature is recorded as processed only
// after verification reaches a decision, so a transient fetch failure leaves
// a redelivered push free to retry.
func (v *Verifier) ProcessSignature(ctx context.Context, signature string, logs []string) error {
	if v.seen.Contains(signature) {
		v.logger.Debug("signature already processed", zap.String("signature", signature))
		return nil
	}

	if err := v.verify(ctx, signature, logs); err != nil {
		return err
	}
	v.seen.Add(signature)
	return nil
}

func (v *Verifier) verify(ctx context.Context, signature string, logs []string) error {
	detail, err := v.rpc.GetTransaction(ctx, signature)
	if err != nil {
		if errors.Is(err, chain.ErrTransactionNotFound) {
			v.logger.Warn("pushed transaction not found on chain", zap.String("signature", signature))
			return nil
		}
		return fmt.Errorf("fetch transaction %s: %w", signature, err)
	}

	orderID, ok := extractOrderID(logs)
	if !ok && detail.Meta != nil {
		orderID, ok = extractOrderID(detail.Meta.LogMessages)
	}
	if !ok {
		v.logger.Debug("transaction carries no order memo", zap.String("signature", signature))
		return nil
	}

	order, err := v.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			v.logger.Warn("payment references unknown order",
				zap.Int64("order_id", orderID), zap.String("signature", signature))
			return nil
		}
		return fmt.Errorf("load order %d: %w", orderID, err)
	}

	if order.Status == domain.OrderStatusCompleted {
		v.logger.Info("order already completed, ignoring payment",
			zap.Int64("order_id", orderID), zap.String("signature", signature))
		return nil
	}
	if order.Status != domain.OrderStatusPending {
		return v.fail(ctx, order, signature, "order is no longer awaiting payment")
	}

	if detail.BlockTime > 0 && time.Unix(detail.BlockTime, 0).Before(order.CreatedAt) {
		return v.fail(ctx, order, signature, "transaction time precedes order creation")
	}

	items, err := v.orders.ListOrderItems(ctx, orderID)
	if err != nil {
		return fmt.Errorf("list items for order %d: %w", orderID, err)
	}
	expected := domain.ExpectedTotal(items)
	credited := detail.CreditedAmount(v.wallet, v.mint)

	if math.Abs(credited-float64(expected)) > v.tolerance {
		reason := fmt.Sprintf("amount mismatch: expected %d, credited %s",
			expected, strconv.FormatFloat(credited, 'f', -1, 64))
		return v.fail(ctx, order, signature, reason)
	}

	if err := v.publisher.PublishCompleted(ctx, order.ID, order.UserID, expected, signature); err != nil {
		return fmt.Errorf("publish completed verdict for order %d: %w", order.ID, err)
	}
	v.logger.Info("payment verified",
		zap.Int64("order_id", order.ID),
		zap.String("signature", signature),
		zap.Int64("amount", expected))
	return nil
}

func (v *Verifier) fail(ctx context.Context, order *domain.Order, signature, reason string) error {
	v.logger.Warn("payment verification failed",
		zap.Int64("order_id", order.ID),
		zap.String("signature", signature),
		zap.String("reason", reason))
	if err := v.publisher.PublishFailed(ctx, order.ID, order.UserID, reason, signature); err != nil {
		return fmt.Errorf("publish failed verdict for order %d: %w", order.ID, err)
	}
	return nil
}

// extractOrderID pulls the ORDER_<id> memo tag out of program log lines.
func extractOrderID(logs []string) (int64, bool) {
	for _, line := range logs {
		if !strings.Contains(line, "Memo") {
			continue
		}
		start := strings.Index(line, memoPrefix)
		if start < 0 {
			continue
		}
		tag := line[start:]
		if end := strings.LastIndex(tag, `"`); end >= 0 {
			tag = tag[:end]
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(tag, memoPrefix), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		return id, true
	}
	return 0, false
}

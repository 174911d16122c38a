package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/solshop/backend/internal/verifier"
)

// ConnectionChecker pings a push subscription and restores it when dead.
type ConnectionChecker interface {
	Connected() bool
	CheckConnection()
}

// Maintenance runs the small housekeeping loops: trimming the processed
// signature set and probing the chain subscription.
type Maintenance struct {
	signatures      *verifier.ProcessedSignatureSet
	checker         ConnectionChecker
	cleanupInterval time.Duration
	healthInterval  time.Duration
	logger          *zap.Logger
}

func NewMaintenance(signatures *verifier.ProcessedSignatureSet, checker ConnectionChecker,
	cleanupInterval, healthInterval time.Duration, logger *zap.Logger) *Maintenance {
	return &Maintenance{
		signatures:      signatures,
		checker:         checker,
		cleanupInterval: cleanupInterval,
		healthInterval:  healthInterval,
		logger:          logger,
	}
}

func (m *Maintenance) Run(ctx context.Context) {
	cleanup := time.NewTicker(m.cleanupInterval)
	defer cleanup.Stop()
	health := time.NewTicker(m.healthInterval)
	defer health.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("maintenance loops stopped")
			return
		case <-cleanup.C:
			if dropped := m.signatures.Cleanup(); dropped > 0 {
				m.logger.Info("trimmed processed signatures", zap.Int("dropped", dropped))
			}
		case <-health.C:
			m.checker.CheckConnection()
			if !m.checker.Connected() {
				m.logger.Warn("chain subscription is down")
			}
		}
	}
}

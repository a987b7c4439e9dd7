package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bivex/billing-bridge/internal/domain/entity"
	"github.com/bivex/billing-bridge/internal/domain/platform"
	"github.com/bivex/billing-bridge/internal/domain/valueobject"
)

// ProductClassifier maps a product ID to its caller-defined class.
// Supplied by the application layer; the core knows no product IDs.
type ProductClassifier func(productID string) valueobject.ProductClass

// PendingPurchaseRecovery replays purchases the store still considers
// unfinished: transactions left behind by a crash, a killed process, or
// purchases completed while the app was closed. Without this pass,
// unacknowledged Android purchases are auto-refunded after 72 hours.
type PendingPurchaseRecovery struct {
	adapter    platform.Adapter
	normalizer *EventNormalizer
	reconciler *TransactionReconciler
	classifier ProductClassifier
	logger     *zap.Logger
}

// NewPendingPurchaseRecovery creates a recovery pass
func NewPendingPurchaseRecovery(
	adapter platform.Adapter,
	normalizer *EventNormalizer,
	reconciler *TransactionReconciler,
	classifier ProductClassifier,
	logger *zap.Logger,
) *PendingPurchaseRecovery {
	return &PendingPurchaseRecovery{
		adapter:    adapter,
		normalizer: normalizer,
		reconciler: reconciler,
		classifier: classifier,
		logger:     logger,
	}
}

// Recover queries the store's owned purchases and feeds each through the
// reconciler, sequentially, in the order the backend returned them. A
// purchase that fails to normalize is logged and skipped; it never
// aborts the rest of the pass.
func (s *PendingPurchaseRecovery) Recover(ctx context.Context) ([]ReconcileOutcome, error) {
	raws, err := s.adapter.GetAvailablePurchases(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query owned purchases: %w", err)
	}

	s.logger.Info("recovery pass started", zap.Int("owned_purchases", len(raws)))

	outcomes := make([]ReconcileOutcome, 0, len(raws))
	for _, raw := range raws {
		purchase, err := s.normalizer.NormalizePurchase(raw)
		if err != nil {
			s.logger.Error("skipping unnormalizable owned purchase", zap.Error(err))
			continue
		}

		class := s.classifier(purchase.ProductID)
		outcome := s.reconciler.Reconcile(ctx, entity.NewFinishRequest(purchase, class.IsConsumable()))
		outcomes = append(outcomes, outcome)
	}

	s.logger.Info("recovery pass complete",
		zap.Int("reconciled", len(outcomes)),
		zap.Int("skipped", len(raws)-len(outcomes)))
	return outcomes, nil
}

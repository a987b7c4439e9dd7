package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/bivex/billing-bridge/internal/domain/entity"
	domainErrors "github.com/bivex/billing-bridge/internal/domain/errors"
	"github.com/bivex/billing-bridge/internal/domain/platform"
)

type ReconcileStatus string

const (
	// OutcomeFinished: the transaction was settled with the store and
	// recorded in the ledger.
	OutcomeFinished ReconcileStatus = "finished"
	// OutcomeAlreadyProcessed: idempotent replay, no native call made.
	OutcomeAlreadyProcessed ReconcileStatus = "already_processed"
	// OutcomeAwaitingApproval: the purchase is pending; finishing a
	// pending transaction is invalid on both backends.
	OutcomeAwaitingApproval ReconcileStatus = "awaiting_approval"
	// OutcomeDropped: terminal failure state, surfaced and discarded.
	OutcomeDropped ReconcileStatus = "dropped"
	// OutcomeFinishFailed: the native finish call was rejected; the
	// ledger is untouched so a later recovery pass can retry.
	OutcomeFinishFailed ReconcileStatus = "finish_failed"
)

// ReconcileOutcome reports how a single purchase was settled.
type ReconcileOutcome struct {
	Status   ReconcileStatus
	Purchase entity.Purchase
	Err      error
}

// TransactionReconciler decides and executes the finish call for each
// purchase: acknowledge or consume on Android, finish on iOS, exactly
// once per transaction ID for the lifetime of the session.
type TransactionReconciler struct {
	// mu serializes reconcile invocations so a live event and a
	// recovery replay racing on the same transaction observe the ledger
	// deterministically.
	mu      sync.Mutex
	adapter platform.Adapter
	ledger  *TransactionLedger
	bus     *EventBus
	logger  *zap.Logger
}

// NewTransactionReconciler creates a reconciler
func NewTransactionReconciler(adapter platform.Adapter, ledger *TransactionLedger, bus *EventBus, logger *zap.Logger) *TransactionReconciler {
	return &TransactionReconciler{
		adapter: adapter,
		ledger:  ledger,
		bus:     bus,
		logger:  logger,
	}
}

// Reconcile settles one purchase. The product classification is supplied
// by the caller: consumability is a property of the product, and the
// core hard-codes no product IDs.
func (r *TransactionReconciler) Reconcile(ctx context.Context, req entity.FinishRequest) ReconcileOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	purchase := req.Purchase

	if purchase.IsPending() {
		r.logger.Info("purchase awaiting store approval",
			zap.String("transaction_id", purchase.TransactionID),
			zap.String("product_id", purchase.ProductID))
		return ReconcileOutcome{Status: OutcomeAwaitingApproval, Purchase: purchase}
	}
	if !purchase.IsPurchased() {
		r.logger.Warn("dropping purchase in terminal state",
			zap.String("transaction_id", purchase.TransactionID),
			zap.String("state", purchase.State.String()))
		return ReconcileOutcome{Status: OutcomeDropped, Purchase: purchase}
	}

	if r.ledger.HasProcessed(purchase.TransactionID) {
		r.logger.Debug("transaction already processed",
			zap.String("transaction_id", purchase.TransactionID))
		return ReconcileOutcome{
			Status:   OutcomeAlreadyProcessed,
			Purchase: purchase,
			Err:      domainErrors.ErrAlreadyProcessed,
		}
	}

	if purchase.NeedsNativeFinish() {
		if err := r.dispatchFinish(ctx, purchase, req.IsConsumable); err != nil {
			r.logger.Error("native finish failed",
				zap.String("transaction_id", purchase.TransactionID),
				zap.Error(err))
			r.bus.Publish(BridgeEvent{Kind: EventTransactionFinishFailed, Purchase: &purchase, Err: err})
			return ReconcileOutcome{Status: OutcomeFinishFailed, Purchase: purchase, Err: err}
		}
	} else {
		// Restored Android purchase acknowledged in a previous session:
		// no native call, but the ledger still needs the entry.
		r.logger.Debug("purchase already acknowledged by store",
			zap.String("transaction_id", purchase.TransactionID))
	}

	r.ledger.MarkProcessed(purchase.TransactionID)
	r.logger.Info("transaction finished",
		zap.String("transaction_id", purchase.TransactionID),
		zap.String("product_id", purchase.ProductID),
		zap.Bool("consumable", req.IsConsumable))
	r.bus.Publish(BridgeEvent{Kind: EventTransactionFinished, Purchase: &purchase})
	return ReconcileOutcome{Status: OutcomeFinished, Purchase: purchase}
}

func (r *TransactionReconciler) dispatchFinish(ctx context.Context, purchase entity.Purchase, isConsumable bool) error {
	if purchase.Platform.IsAndroid() {
		if isConsumable {
			if err := r.adapter.Consume(ctx, purchase.PurchaseToken); err != nil {
				return &domainErrors.FinishError{TransactionID: purchase.TransactionID, Op: "consume", Err: err}
			}
			return nil
		}
		if err := r.adapter.Acknowledge(ctx, purchase.PurchaseToken); err != nil {
			return &domainErrors.FinishError{TransactionID: purchase.TransactionID, Op: "acknowledge", Err: err}
		}
		return nil
	}

	if err := r.adapter.FinishTransaction(ctx, purchase.TransactionID); err != nil {
		return &domainErrors.FinishError{TransactionID: purchase.TransactionID, Op: "finish", Err: err}
	}
	return nil
}

package main

import (
	"context"
	"log"
	"strings"

	"go.uber.org/zap"

	"github.com/bivex/billing-bridge/internal/application"
	"github.com/bivex/billing-bridge/internal/domain/platform"
	"github.com/bivex/billing-bridge/internal/domain/service"
	"github.com/bivex/billing-bridge/internal/domain/valueobject"
	"github.com/bivex/billing-bridge/internal/infrastructure/config"
	"github.com/bivex/billing-bridge/internal/infrastructure/logging"
	"github.com/bivex/billing-bridge/internal/infrastructure/platform/simulated"
)

// classify mirrors how an application would map its catalog: coin packs
// are consumable, premium unlocks are not, everything ending in .sub is
// a subscription.
func classify(productID string) valueobject.ProductClass {
	switch {
	case strings.HasPrefix(productID, "coins_"):
		return valueobject.ClassConsumable
	case strings.HasSuffix(productID, ".sub"):
		return valueobject.ClassSubscription
	default:
		return valueobject.ClassNonConsumable
	}
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if cfg.Sentry.Environment == "" {
		cfg.Sentry.Environment = cfg.Environment
	}
	if err := logging.Init(&cfg.Sentry); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.Sync()

	plat, err := valueobject.NewPlatform(cfg.Platform)
	if err != nil {
		logging.Logger.Fatal("Invalid platform", zap.Error(err))
	}

	logging.Logger.Info("Starting billing bridge simulator",
		zap.String("platform", plat.String()),
		zap.String("environment", cfg.Environment),
	)

	// Simulated backend: iOS answers out-of-band, Android in-call.
	adapter := simulated.New(plat, plat.IsIOS())
	coins := int64(990_000)
	premium := int64(4_990_000)
	adapter.SetCatalog(
		simulated.CatalogEntry{
			SKU: "coins_100", Title: "100 Coins", Description: "A pouch of coins",
			DisplayPrice: "$0.99", PriceMicros: &coins, Currency: "USD",
			Kind: valueobject.ProductInApp,
		},
		simulated.CatalogEntry{
			SKU: "premium_unlock", Title: "Premium", Description: "Removes ads",
			DisplayPrice: "$4.99", PriceMicros: &premium, Currency: "USD",
			Kind: valueobject.ProductInApp,
		},
	)

	// A consumable left unfinished by the "previous session".
	if plat.IsAndroid() {
		adapter.SeedOwnedPurchase(platform.RawPurchase{
			Platform:    plat,
			AndroidJSON: `{"orderId":"GPA.0000-SEED","productId":"coins_100","purchaseToken":"seed-token","purchaseState":1,"purchaseTime":1700000000000,"quantity":1}`,
		})
	} else {
		adapter.SeedOwnedPurchase(platform.RawPurchase{
			Platform: plat,
			IOSTransaction: &platform.StoreKitTransaction{
				ID: "1999999999", ProductID: "coins_100",
				PurchaseDateMillis: 1700000000000, Quantity: 1,
				TransactionState: "purchased",
			},
		})
	}

	bridge := application.New(adapter, classify, cfg, logging.WithComponent("bridge"))

	unsubscribe := bridge.Subscribe(func(ev service.BridgeEvent) {
		fields := []zap.Field{zap.String("event", string(ev.Kind))}
		if ev.Purchase != nil {
			fields = append(fields,
				zap.String("transaction_id", ev.Purchase.TransactionID),
				zap.String("product_id", ev.Purchase.ProductID))
		}
		if ev.Err != nil {
			fields = append(fields, zap.Error(ev.Err))
		}
		logging.Info("bridge event", fields...)
	})
	defer unsubscribe()

	ctx := context.Background()

	// Connect; the recovery pass settles the seeded purchase.
	if res, err := bridge.Connect(ctx); err != nil {
		logging.Logger.Fatal("Failed to connect", zap.Error(err))
	} else {
		logging.Info("connected", zap.String("state", res.State.String()))
	}

	batch, err := bridge.FetchProducts(ctx, []string{"coins_100", "premium_unlock"}, valueobject.ProductInApp)
	if err != nil {
		logging.Logger.Fatal("Failed to fetch products", zap.Error(err))
	}
	for _, p := range batch.Products {
		logging.Info("product",
			zap.String("sku", p.ID),
			zap.String("price", p.DisplayPrice))
	}

	purchase, err := bridge.RequestPurchase(ctx, "coins_100")
	if err != nil {
		logging.Logger.Fatal("Purchase failed", zap.Error(err))
	}
	logging.Info("purchase reconciled",
		zap.String("transaction_id", purchase.TransactionID),
		zap.String("state", purchase.State.String()))

	// Replaying the same session changes nothing: the ledger holds.
	outcomes, err := bridge.RecoverPendingPurchases(ctx)
	if err != nil {
		logging.Logger.Fatal("Recovery failed", zap.Error(err))
	}
	for _, o := range outcomes {
		logging.Info("recovery outcome",
			zap.String("status", string(o.Status)),
			zap.String("transaction_id", o.Purchase.TransactionID))
	}

	logging.Info("session summary",
		zap.Int("transactions_finished", bridge.ProcessedCount()))

	bridge.Disconnect(ctx)
}

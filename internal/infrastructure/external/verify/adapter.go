package verify

import (
	"context"
	"fmt"

	"github.com/bivex/billing-bridge/internal/domain/valueobject"
	"github.com/bivex/billing-bridge/internal/infrastructure/config"
)

// Adapter implements the bridge's ReceiptVerifier interface by
// dispatching to the store-specific verifier for the purchase platform.
type Adapter struct {
	apple  *AppleVerifier
	google *GoogleVerifier
}

// NewAdapter creates a verification adapter from IAP configuration
func NewAdapter(cfg *config.IAPConfig) *Adapter {
	return &Adapter{
		apple:  NewAppleVerifier(cfg.AppleSharedSecret, cfg.AppleProduction),
		google: NewGoogleVerifier(cfg.GoogleKeyJSON, cfg.GooglePackageName),
	}
}

// Verify checks a raw receipt with the store that issued it
func (a *Adapter) Verify(ctx context.Context, platform valueobject.Platform, receiptData, productID string) (bool, error) {
	if platform.IsAndroid() {
		return a.google.VerifyReceipt(ctx, receiptData, productID)
	}
	if platform.IsIOS() {
		return a.apple.VerifyReceipt(ctx, receiptData, productID)
	}
	return false, fmt.Errorf("no verifier for platform %q", platform)
}

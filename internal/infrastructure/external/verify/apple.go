package verify

import (
	"context"
	"fmt"

	"github.com/awa/go-iap/appstore"
)

// AppleVerifier verifies App Store receipts through Apple's
// verifyReceipt endpoint.
type AppleVerifier struct {
	sharedSecret string
	environment  appstore.Environment // appstore.Sandbox or appstore.Production
	client       *appstore.Client
}

// NewAppleVerifier creates a new Apple verifier
func NewAppleVerifier(sharedSecret string, isProduction bool) *AppleVerifier {
	env := appstore.Sandbox
	if isProduction {
		env = appstore.Production
	}

	return &AppleVerifier{
		sharedSecret: sharedSecret,
		environment:  env,
		client:       appstore.New(),
	}
}

// VerifyReceipt verifies an App Store receipt and reports whether it is
// valid for the given product.
func (v *AppleVerifier) VerifyReceipt(ctx context.Context, receiptData, productID string) (bool, error) {
	req := appstore.IAPRequest{
		ReceiptData: receiptData,
		Password:    v.sharedSecret,
	}

	resp := &appstore.IAPResponse{}
	if err := v.client.Verify(ctx, req, resp); err != nil {
		return false, fmt.Errorf("failed to verify receipt: %w", err)
	}

	if err := appstore.HandleError(resp.Status); err != nil {
		return false, nil
	}

	if productID == "" {
		return true, nil
	}
	for _, info := range resp.Receipt.InApp {
		if info.ProductID == productID {
			return true, nil
		}
	}
	for _, info := range resp.LatestReceiptInfo {
		if info.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

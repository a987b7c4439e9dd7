package verify

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/option"
)

// GoogleVerifier verifies Play Store purchases through the Google Play
// Developer API.
type GoogleVerifier struct {
	serviceAccountJSON string
	packageName        string
}

// NewGoogleVerifier creates a new Google verifier
func NewGoogleVerifier(serviceAccountJSON, packageName string) *GoogleVerifier {
	return &GoogleVerifier{
		serviceAccountJSON: serviceAccountJSON,
		packageName:        packageName,
	}
}

// googleReceipt is the serialized receipt handed over by the Android
// billing layer.
type googleReceipt struct {
	PackageName   string `json:"packageName"`
	ProductID     string `json:"productId"`
	PurchaseToken string `json:"purchaseToken"`
	Subscription  bool   `json:"autoRenewing"`
}

// VerifyReceipt verifies a Play Store purchase token and reports whether
// the payment was received.
func (v *GoogleVerifier) VerifyReceipt(ctx context.Context, receiptData, productID string) (bool, error) {
	conf, err := google.CredentialsFromJSON(
		ctx,
		[]byte(v.serviceAccountJSON),
		androidpublisher.AndroidpublisherScope,
	)
	if err != nil {
		return false, fmt.Errorf("failed to parse service account credentials: %w", err)
	}

	service, err := androidpublisher.NewService(ctx, option.WithTokenSource(conf.TokenSource))
	if err != nil {
		return false, fmt.Errorf("failed to create Android Publisher service: %w", err)
	}

	var receipt googleReceipt
	if err := json.Unmarshal([]byte(receiptData), &receipt); err != nil {
		return false, fmt.Errorf("failed to parse receipt data: %w", err)
	}
	if receipt.PackageName == "" {
		receipt.PackageName = v.packageName
	}
	if productID == "" {
		productID = receipt.ProductID
	}

	if receipt.Subscription {
		sub, err := service.Purchases.Subscriptions.Get(
			receipt.PackageName,
			productID,
			receipt.PurchaseToken,
		).Context(ctx).Do()
		if err != nil {
			return false, fmt.Errorf("failed to verify Play subscription: %w", err)
		}
		// 1 = payment received
		return sub.PaymentState != nil && *sub.PaymentState == 1, nil
	}

	product, err := service.Purchases.Products.Get(
		receipt.PackageName,
		productID,
		receipt.PurchaseToken,
	).Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("failed to verify Play purchase: %w", err)
	}
	// 0 = purchased, 1 = cancelled, 2 = pending
	return product.PurchaseState == 0, nil
}

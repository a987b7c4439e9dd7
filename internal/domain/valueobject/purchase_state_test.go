package valueobject_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bivex/billing-bridge/internal/domain/valueobject"
)

func TestPurchaseStateFromAndroid(t *testing.T) {
	assert.Equal(t, valueobject.PurchasePurchased, valueobject.PurchaseStateFromAndroid(1))
	assert.Equal(t, valueobject.PurchasePending, valueobject.PurchaseStateFromAndroid(2))
	assert.Equal(t, valueobject.PurchaseUnknown, valueobject.PurchaseStateFromAndroid(0))
	assert.Equal(t, valueobject.PurchaseUnknown, valueobject.PurchaseStateFromAndroid(7))
}

func TestPurchaseStatePredicates(t *testing.T) {
	assert.True(t, valueobject.PurchasePurchased.IsPurchased())
	assert.True(t, valueobject.PurchasePending.IsPending())
	assert.True(t, valueobject.PurchaseFailed.IsTerminalFailure())
	assert.True(t, valueobject.PurchaseUnknown.IsTerminalFailure())
	assert.False(t, valueobject.PurchasePending.IsTerminalFailure())
}

func TestNewPurchaseState(t *testing.T) {
	state, err := valueobject.NewPurchaseState("purchased")
	assert.NoError(t, err)
	assert.Equal(t, valueobject.PurchasePurchased, state)

	_, err = valueobject.NewPurchaseState("refunded")
	assert.ErrorIs(t, err, valueobject.ErrInvalidPurchaseState)
}

func TestPlatformStore(t *testing.T) {
	assert.Equal(t, "play_store", valueobject.PlatformAndroid.Store())
	assert.Equal(t, "app_store", valueobject.PlatformIOS.Store())
	assert.True(t, valueobject.PlatformAndroid.IsAndroid())
	assert.True(t, valueobject.PlatformIOS.IsIOS())
}

package platform

type EventKind string

const (
	EventPurchaseUpdated EventKind = "purchase_updated"
	EventPurchaseError   EventKind = "purchase_error"
	EventProductsFetched EventKind = "products_fetched"
	EventConnected       EventKind = "connected"
	EventDisconnected    EventKind = "disconnected"
)

// Event is a single delivery on the adapter's shared, unordered event
// channel. Token is set when the event answers a pending request.
type Event struct {
	Kind     EventKind
	Token    Token
	Purchase *RawPurchase
	Products *RawProductBatch
	Err      error
}

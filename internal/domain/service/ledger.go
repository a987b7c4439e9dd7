package service

import (
	"sync"
	"time"
)

// TransactionLedger is the session-scoped idempotence guard: at most one
// successful native finish call is issued per transaction ID for the
// lifetime of the process. Entries are never evicted; the native store
// is the durable source of truth across restarts.
type TransactionLedger struct {
	mu        sync.Mutex
	processed map[string]time.Time
}

// NewTransactionLedger creates an empty ledger
func NewTransactionLedger() *TransactionLedger {
	return &TransactionLedger{
		processed: make(map[string]time.Time),
	}
}

// HasProcessed returns true if the transaction was finished this session
func (l *TransactionLedger) HasProcessed(transactionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.processed[transactionID]
	return ok
}

// MarkProcessed records that the transaction has been finished
func (l *TransactionLedger) MarkProcessed(transactionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.processed[transactionID]; !ok {
		l.processed[transactionID] = time.Now()
	}
}

// ProcessedAt returns when the transaction was finished, if it was
func (l *TransactionLedger) ProcessedAt(transactionID string) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	at, ok := l.processed[transactionID]
	return at, ok
}

// ProcessedCount returns the number of transactions finished this session
func (l *TransactionLedger) ProcessedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.processed)
}

package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bivex/billing-bridge/internal/domain/entity"
	domainErrors "github.com/bivex/billing-bridge/internal/domain/errors"
	"github.com/bivex/billing-bridge/internal/domain/platform"
)

type RequestKind string

const (
	RequestFetchProducts RequestKind = "fetch_products"
	RequestPurchase      RequestKind = "purchase"
)

// RequestResult is the eventual outcome of a correlated request. Exactly
// one of Batch/Purchase is set on success, depending on the request kind.
type RequestResult struct {
	Batch    *entity.ProductBatch
	Purchase *entity.Purchase
	Err      error
}

// StartFunc issues the native call behind a logical request. It returns
// either an already-resolved result (synchronous platform) or a token
// under which the real result will arrive on the event channel.
type StartFunc func() (*RequestResult, platform.Token, error)

type pendingRequest struct {
	id     string
	kind   RequestKind
	token  platform.Token
	result chan RequestResult
	timer  *time.Timer
}

// RequestCorrelator matches asynchronous native responses back to the
// logical call that triggered them. At most one request per kind may be
// outstanding; a colliding call is rejected with
// ErrRequestAlreadyInFlight rather than queued or silently replacing
// the first waiter.
type RequestCorrelator struct {
	mu      sync.Mutex
	timeout time.Duration
	byKind  map[RequestKind]*pendingRequest
	byToken map[platform.Token]*pendingRequest
	logger  *zap.Logger
}

// NewRequestCorrelator creates a correlator with the given response window
func NewRequestCorrelator(timeout time.Duration, logger *zap.Logger) *RequestCorrelator {
	return &RequestCorrelator{
		timeout: timeout,
		byKind:  make(map[RequestKind]*pendingRequest),
		byToken: make(map[platform.Token]*pendingRequest),
		logger:  logger,
	}
}

// Issue runs a logical request. The returned channel always yields
// exactly one RequestResult: immediately for a synchronous platform,
// on event arrival or timeout for an asynchronous one.
func (c *RequestCorrelator) Issue(kind RequestKind, start StartFunc) (<-chan RequestResult, error) {
	c.mu.Lock()
	if _, busy := c.byKind[kind]; busy {
		c.mu.Unlock()
		return nil, domainErrors.ErrRequestAlreadyInFlight
	}
	pending := &pendingRequest{
		id:     uuid.NewString(),
		kind:   kind,
		result: make(chan RequestResult, 1),
	}
	c.byKind[kind] = pending
	c.mu.Unlock()

	resolved, token, err := start()
	if err != nil {
		c.remove(pending)
		return nil, err
	}

	if resolved != nil {
		// Synchronous platform: no correlation token is created.
		c.remove(pending)
		pending.result <- *resolved
		return pending.result, nil
	}

	c.mu.Lock()
	pending.token = token
	c.byToken[token] = pending
	pending.timer = time.AfterFunc(c.timeout, func() {
		if c.resolve(pending, RequestResult{Err: domainErrors.ErrRequestTimeout}) {
			c.logger.Warn("request timed out",
				zap.String("kind", string(kind)),
				zap.String("correlation_id", pending.id),
				zap.String("token", string(token)))
		}
	})
	c.mu.Unlock()

	c.logger.Debug("request pending",
		zap.String("kind", string(kind)),
		zap.String("correlation_id", pending.id),
		zap.String("token", string(token)))

	return pending.result, nil
}

// ResolveToken completes the request waiting on the given token.
// Returns false if nothing is waiting, e.g. the request already timed out.
func (c *RequestCorrelator) ResolveToken(token platform.Token, res RequestResult) bool {
	c.mu.Lock()
	pending, ok := c.byToken[token]
	c.mu.Unlock()
	if !ok {
		return false
	}
	return c.resolve(pending, res)
}

// ResolveKind completes the outstanding request of the given kind, for
// backends whose events carry no token.
func (c *RequestCorrelator) ResolveKind(kind RequestKind, res RequestResult) bool {
	c.mu.Lock()
	pending, ok := c.byKind[kind]
	c.mu.Unlock()
	if !ok || pending.token == "" && pending.timer == nil {
		// Still inside Issue's synchronous window; nothing to resolve.
		return false
	}
	return c.resolve(pending, res)
}

// FailAll resolves every outstanding request with the given error. Used
// when the connection drops and no event can arrive anymore.
func (c *RequestCorrelator) FailAll(err error) {
	c.mu.Lock()
	pendings := make([]*pendingRequest, 0, len(c.byKind))
	for _, p := range c.byKind {
		pendings = append(pendings, p)
	}
	c.mu.Unlock()

	for _, p := range pendings {
		c.resolve(p, RequestResult{Err: err})
	}
}

// InFlight returns true if a request of the given kind is outstanding
func (c *RequestCorrelator) InFlight(kind RequestKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.byKind[kind]
	return ok
}

func (c *RequestCorrelator) resolve(pending *pendingRequest, res RequestResult) bool {
	c.mu.Lock()
	current, ok := c.byKind[pending.kind]
	if !ok || current.id != pending.id {
		c.mu.Unlock()
		return false
	}
	delete(c.byKind, pending.kind)
	if pending.token != "" {
		delete(c.byToken, pending.token)
	}
	if pending.timer != nil {
		pending.timer.Stop()
	}
	c.mu.Unlock()

	pending.result <- res
	return true
}

func (c *RequestCorrelator) remove(pending *pendingRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.byKind[pending.kind]; ok && current.id == pending.id {
		delete(c.byKind, pending.kind)
	}
}

package payments

import (
	"context"
	"errors"
	"sync"

	"github.com/mahdibari/mosi-project-sub000/internal/modules/orders"
)

// fakeStore is an in-memory OrderStore with the same compare-and-swap
// semantics as the real one.
type fakeStore struct {
	mu     sync.Mutex
	orders map[string]*orders.Order

	failReads bool
	// markPaidHook runs before MarkPaid applies; lets tests simulate a
	// concurrent winner.
	markPaidHook func()
}

func newFakeStore(os ...orders.Order) *fakeStore {
	f := &fakeStore{orders: map[string]*orders.Order{}}
	for i := range os {
		o := os[i]
		f.orders[o.ID] = &o
	}
	return f
}

func (f *fakeStore) GetByID(_ context.Context, id string) (orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return orders.Order{}, errors.New("store down")
	}
	o, ok := f.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return *o, nil
}

func (f *fakeStore) GetBySessionID(_ context.Context, sessionID string) (orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return orders.Order{}, errors.New("store down")
	}
	for _, o := range f.orders {
		if o.GatewaySessionID != nil && *o.GatewaySessionID == sessionID {
			return *o, nil
		}
	}
	return orders.Order{}, orders.ErrNotFound
}

func (f *fakeStore) MarkPaid(_ context.Context, orderID, transID string) (bool, error) {
	if f.markPaidHook != nil {
		f.markPaidHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok || o.Status != orders.StatusPending {
		return false, nil
	}
	o.Status = orders.StatusPaid
	o.PaymentStatus = orders.PaymentSuccess
	o.GatewayTransactionID = &transID
	return true, nil
}

func (f *fakeStore) MarkFailed(_ context.Context, orderID, transID, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok || o.Status != orders.StatusPending {
		return false, nil
	}
	o.Status = orders.StatusFailed
	o.PaymentStatus = orders.PaymentFailed
	o.FailReason = &reason
	if transID != "" {
		o.GatewayTransactionID = &transID
	}
	return true, nil
}

func (f *fakeStore) get(id string) orders.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.orders[id]
}

// fakeGateway scripts Verify responses and counts calls.
type fakeGateway struct {
	mu          sync.Mutex
	verifyCalls int

	result VerifyResult
	err    error
	// resultFor overrides per session id when set.
	resultFor map[string]VerifyResult
}

func (g *fakeGateway) Initiate(context.Context, InitiateRequest) (int64, error) {
	return 0, errors.New("not used")
}

func (g *fakeGateway) Verify(_ context.Context, sessionID, _ string) (VerifyResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++
	if g.err != nil {
		return VerifyResult{}, g.err
	}
	if g.resultFor != nil {
		if r, ok := g.resultFor[sessionID]; ok {
			return r, nil
		}
	}
	return g.result, nil
}

func (g *fakeGateway) RedirectURL(int64) string { return "https://pay.example.com/gateway/0" }

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.verifyCalls
}

type fakeClearer struct {
	mu     sync.Mutex
	clears int
	err    error
}

func (c *fakeClearer) ClearCart(context.Context, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clears++
	return c.err
}

func (c *fakeClearer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clears
}

func strPtr(s string) *string { return &s }

func pendingOrder(id, sessionID string, amount int64) orders.Order {
	return orders.Order{
		ID:               id,
		Status:           orders.StatusPending,
		PaymentStatus:    orders.PaymentNone,
		TotalAmount:      amount,
		GatewaySessionID: strPtr(sessionID),
	}
}

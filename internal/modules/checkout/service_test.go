package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahdibari/mosi-project-sub000/internal/modules/orders"
	"github.com/mahdibari/mosi-project-sub000/internal/modules/payments"
)

type fakeStore struct {
	mu     sync.Mutex
	orders map[string]*orders.Order
	items  map[string][]orders.OrderItem

	failCreate bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{orders: map[string]*orders.Order{}, items: map[string][]orders.OrderItem{}}
}

func (f *fakeStore) Create(_ context.Context, o *orders.Order, items []orders.OrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return errors.New("store down")
	}
	cp := *o
	f.orders[o.ID] = &cp
	f.items[o.ID] = items
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return *o, nil
}

func (f *fakeStore) AssignSession(_ context.Context, orderID, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok || o.Status != orders.StatusPending || o.GatewaySessionID != nil {
		return orders.ErrNotPending
	}
	o.GatewaySessionID = &sessionID
	return nil
}

func (f *fakeStore) ClearSession(_ context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[orderID]; ok && o.Status == orders.StatusPending {
		o.GatewaySessionID = nil
	}
	return nil
}

func (f *fakeStore) Cancel(_ context.Context, orderID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok || o.Status != orders.StatusPending {
		return false, nil
	}
	o.Status = orders.StatusCancelled
	return true, nil
}

func (f *fakeStore) only() orders.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		return *o
	}
	return orders.Order{}
}

type fakeGateway struct {
	mu            sync.Mutex
	initiateCalls int
	sessionID     int64
	err           error
	lastReq       payments.InitiateRequest
}

func (g *fakeGateway) Initiate(_ context.Context, req payments.InitiateRequest) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initiateCalls++
	g.lastReq = req
	if g.err != nil {
		return 0, g.err
	}
	return g.sessionID, nil
}

func (g *fakeGateway) Verify(context.Context, string, string) (payments.VerifyResult, error) {
	return payments.VerifyResult{}, errors.New("not used")
}

func (g *fakeGateway) RedirectURL(id int64) string {
	return "https://pay.example.com/gateway/555"
}

func validInput() CheckoutInput {
	return CheckoutInput{
		Cart: CartSnapshot{Lines: []CartLine{
			{ProductID: "p-1", Quantity: 2, UnitPrice: 100000},
		}},
		Address: Address{
			FullName:   "Mahdi Bari",
			Line1:      "12 Azadi St",
			City:       "Tehran",
			PostalCode: "1234567890",
			Phone:      "09121234567",
		},
	}
}

func TestInitiateCreatesOrderAndRedirects(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{sessionID: 555}
	svc := NewService(store, gw, Config{RialPerToman: 10, ReturnURL: "https://shop.example.com/payment/callback"}, nil)

	res, err := svc.Initiate(context.Background(), validInput())
	require.NoError(t, err)
	assert.NotEmpty(t, res.OrderID)
	assert.Equal(t, "https://pay.example.com/gateway/555", res.RedirectURL)

	ord := store.only()
	assert.Equal(t, orders.StatusPending, ord.Status)
	assert.Equal(t, int64(200000), ord.TotalAmount, "total is the snapshot sum")
	require.NotNil(t, ord.GatewaySessionID)
	assert.Equal(t, "555", *ord.GatewaySessionID)

	// Conversion to the gateway minor unit happens at the call boundary.
	assert.Equal(t, int64(2000000), gw.lastReq.Amount)
	assert.Equal(t, res.OrderID, gw.lastReq.CorrelationID)
	assert.Equal(t, "https://shop.example.com/payment/callback", gw.lastReq.ReturnURL)
}

func TestInitiateTotalIgnoresLaterPriceChanges(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{sessionID: 1}
	svc := NewService(store, gw, Config{}, nil)

	in := validInput()
	_, err := svc.Initiate(context.Background(), in)
	require.NoError(t, err)

	// Mutating the snapshot afterwards must not affect the stored total.
	in.Cart.Lines[0].UnitPrice = 999999
	assert.Equal(t, int64(200000), store.only().TotalAmount)
}

func TestInitiateValidation(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{sessionID: 1}
	svc := NewService(store, gw, Config{}, nil)

	cases := []struct {
		name   string
		mutate func(*CheckoutInput)
		field  string
	}{
		{"empty cart", func(in *CheckoutInput) { in.Cart.Lines = nil }, "cart"},
		{"zero qty", func(in *CheckoutInput) { in.Cart.Lines[0].Quantity = 0 }, "cart"},
		{"zero price", func(in *CheckoutInput) { in.Cart.Lines[0].UnitPrice = 0 }, "cart"},
		{"bad phone", func(in *CheckoutInput) { in.Address.Phone = "12345" }, "phone"},
		{"landline phone", func(in *CheckoutInput) { in.Address.Phone = "02112345678" }, "phone"},
		{"short postal", func(in *CheckoutInput) { in.Address.PostalCode = "12345" }, "postal_code"},
		{"alpha postal", func(in *CheckoutInput) { in.Address.PostalCode = "12345abcde" }, "postal_code"},
		{"no address line", func(in *CheckoutInput) { in.Address.Line1 = " " }, "line1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := svc.Initiate(context.Background(), in)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}

	assert.Equal(t, 0, gw.initiateCalls, "invalid input never reaches the gateway")
}

func TestInitiatePersistenceFailureAbortsBeforeGateway(t *testing.T) {
	store := newFakeStore()
	store.failCreate = true
	gw := &fakeGateway{sessionID: 1}
	svc := NewService(store, gw, Config{}, nil)

	_, err := svc.Initiate(context.Background(), validInput())
	require.Error(t, err)
	assert.Equal(t, 0, gw.initiateCalls, "no orphaned gateway sessions")
}

func TestInitiateGatewayFailureLeavesOrderResumable(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{err: &payments.GatewayError{Reason: payments.ReasonUnreachable}}
	svc := NewService(store, gw, Config{}, nil)

	_, err := svc.Initiate(context.Background(), validInput())
	var ge *payments.GatewayError
	require.ErrorAs(t, err, &ge)

	ord := store.only()
	assert.Equal(t, orders.StatusPending, ord.Status)
	assert.Nil(t, ord.GatewaySessionID)

	// Resume against the same order: a second order must not appear.
	gw.err = nil
	gw.sessionID = 777
	res, err := svc.Initiate(context.Background(), CheckoutInput{OrderID: ord.ID})
	require.NoError(t, err)
	assert.Equal(t, ord.ID, res.OrderID)
	assert.Len(t, store.orders, 1)
	require.NotNil(t, store.only().GatewaySessionID)
	assert.Equal(t, "777", *store.only().GatewaySessionID)
}

func TestInitiateNotIdempotentWithoutOrderID(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{sessionID: 1}
	svc := NewService(store, gw, Config{}, nil)

	// fakeGateway returns the same session id; AssignSession will reject
	// the second order. Use distinct ids per call.
	gw.sessionID = 100
	_, err := svc.Initiate(context.Background(), validInput())
	require.NoError(t, err)
	gw.sessionID = 101
	_, err = svc.Initiate(context.Background(), validInput())
	require.NoError(t, err)

	assert.Len(t, store.orders, 2, "two calls, two orders")
}

func TestResumeTerminalOrderRejected(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{sessionID: 1}
	svc := NewService(store, gw, Config{}, nil)

	res, err := svc.Initiate(context.Background(), validInput())
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(context.Background(), res.OrderID))

	_, err = svc.Initiate(context.Background(), CheckoutInput{OrderID: res.OrderID})
	assert.ErrorIs(t, err, orders.ErrNotPending)
}

func TestCancel(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{sessionID: 1}
	svc := NewService(store, gw, Config{}, nil)

	res, err := svc.Initiate(context.Background(), validInput())
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), res.OrderID))
	assert.Equal(t, orders.StatusCancelled, store.only().Status)

	// Terminal states are final.
	assert.ErrorIs(t, svc.Cancel(context.Background(), res.OrderID), orders.ErrNotPending)
}

func TestCancelUnknownOrder(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &fakeGateway{}, Config{}, nil)

	// An id that was never created reports not-found, not a state conflict.
	err := svc.Cancel(context.Background(), "no-such-order")
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

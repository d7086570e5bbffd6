package checkout

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mahdibari/mosi-project-sub000/internal/modules/orders"
	"github.com/mahdibari/mosi-project-sub000/internal/modules/payments"
)

// Local mobile numbers: 09 followed by nine digits. Postal codes: exactly
// ten digits.
var (
	phoneRe  = regexp.MustCompile(`^09\d{9}$`)
	postalRe = regexp.MustCompile(`^\d{10}$`)
)

// CartLine is one snapshot line. UnitPrice is the post-discount price
// captured at snapshot time, in the store currency unit (toman).
type CartLine struct {
	ProductID string
	Quantity  int
	UnitPrice int64
}

type CartSnapshot struct {
	Lines []CartLine
}

// Total sums the snapshot. The result is frozen onto the order; later
// catalog price changes cannot reach an in-flight order.
func (c CartSnapshot) Total() int64 {
	var sum int64
	for _, ln := range c.Lines {
		sum += ln.UnitPrice * int64(ln.Quantity)
	}
	return sum
}

type Address struct {
	FullName   string `json:"full_name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
}

type CheckoutInput struct {
	Cart    CartSnapshot
	Address Address

	// OrderID resumes initiation against an existing pending order instead
	// of creating a duplicate for the same cart.
	OrderID string
}

type CheckoutResult struct {
	OrderID     string
	RedirectURL string
}

// OrderStore is the slice of the order store the orchestrator needs.
type OrderStore interface {
	Create(ctx context.Context, o *orders.Order, items []orders.OrderItem) error
	GetByID(ctx context.Context, id string) (orders.Order, error)
	AssignSession(ctx context.Context, orderID, sessionID string) error
	ClearSession(ctx context.Context, orderID string) error
	Cancel(ctx context.Context, orderID string) (bool, error)
}

type Config struct {
	// RialPerToman converts the stored order total into the gateway's
	// minor unit at the initiate call site. Policy constant.
	RialPerToman int64

	// ReturnURL is the absolute callback URL the gateway redirects the
	// browser to.
	ReturnURL string
}

// Service builds an Order from a cart snapshot, persists it, requests a
// payment session and returns the hosted redirect target. Not idempotent:
// without OrderID every call creates a new order.
type Service struct {
	store   OrderStore
	gateway payments.Gateway
	cfg     Config
	logger  *slog.Logger
}

func NewService(store OrderStore, gw payments.Gateway, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RialPerToman < 1 {
		cfg.RialPerToman = 10
	}
	return &Service{store: store, gateway: gw, cfg: cfg, logger: logger}
}

func (s *Service) Initiate(ctx context.Context, in CheckoutInput) (CheckoutResult, error) {
	ord, err := s.resumeOrCreate(ctx, in)
	if err != nil {
		return CheckoutResult{}, err
	}

	// Amount conversion toman → rial happens here, at the boundary; the
	// gateway client only ever sees its own minor unit.
	sessionID, err := s.gateway.Initiate(ctx, payments.InitiateRequest{
		Amount:        ord.TotalAmount * s.cfg.RialPerToman,
		CorrelationID: ord.ID,
		ReturnURL:     s.cfg.ReturnURL,
	})
	if err != nil {
		// The order stays pending with no session; the caller may resume
		// against the same order id instead of creating a duplicate.
		payments.GatewayRequestsTotal.WithLabelValues("initiate", "error").Inc()
		s.logger.WarnContext(ctx, "gateway initiate failed", "order_id", ord.ID, "err", err)
		return CheckoutResult{}, err
	}
	payments.GatewayRequestsTotal.WithLabelValues("initiate", "ok").Inc()

	sid := strconv.FormatInt(sessionID, 10)
	if err := s.store.AssignSession(ctx, ord.ID, sid); err != nil {
		return CheckoutResult{}, err
	}

	s.logger.InfoContext(ctx, "checkout initiated",
		"order_id", ord.ID, "session_id", sid, "amount", ord.TotalAmount)

	// AssignSession committed before the redirect URL leaves the server,
	// so the callback lookup by session id observes the write.
	return CheckoutResult{
		OrderID:     ord.ID,
		RedirectURL: s.gateway.RedirectURL(sessionID),
	}, nil
}

// Cancel is the explicit user abort: pending → cancelled.
func (s *Service) Cancel(ctx context.Context, orderID string) error {
	won, err := s.store.Cancel(ctx, orderID)
	if err != nil {
		return err
	}
	if !won {
		// Zero rows means either a lost transition race or an id that never
		// existed; the read settles which.
		if _, gerr := s.store.GetByID(ctx, orderID); gerr != nil {
			return gerr
		}
		return orders.ErrNotPending
	}
	s.logger.InfoContext(ctx, "order cancelled", "order_id", orderID)
	return nil
}

func (s *Service) resumeOrCreate(ctx context.Context, in CheckoutInput) (orders.Order, error) {
	if in.OrderID != "" {
		return s.resume(ctx, in.OrderID)
	}

	if err := validate(in); err != nil {
		return orders.Order{}, err
	}

	addrJSON, err := json.Marshal(in.Address)
	if err != nil {
		return orders.Order{}, err
	}

	ord := orders.Order{
		ID:                  uuid.NewString(),
		Status:              orders.StatusPending,
		PaymentStatus:       orders.PaymentNone,
		TotalAmount:         in.Cart.Total(),
		ShippingAddressJSON: addrJSON,
	}

	items := make([]orders.OrderItem, len(in.Cart.Lines))
	for i, ln := range in.Cart.Lines {
		items[i] = orders.OrderItem{
			ID:        uuid.NewString(),
			ProductID: ln.ProductID,
			Quantity:  ln.Quantity,
			UnitPrice: ln.UnitPrice,
			LineTotal: ln.UnitPrice * int64(ln.Quantity),
		}
	}

	// Persistence failures abort here, before any gateway call; no
	// orphaned gateway sessions.
	if err := s.store.Create(ctx, &ord, items); err != nil {
		return orders.Order{}, err
	}
	return ord, nil
}

func (s *Service) resume(ctx context.Context, orderID string) (orders.Order, error) {
	ord, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return orders.Order{}, err
	}
	if ord.Status != orders.StatusPending {
		return orders.Order{}, orders.ErrNotPending
	}
	// A dead session from the failed attempt must not linger; the gateway
	// allows one active session per order.
	if ord.GatewaySessionID != nil {
		if err := s.store.ClearSession(ctx, ord.ID); err != nil {
			return orders.Order{}, err
		}
	}
	return ord, nil
}

func validate(in CheckoutInput) error {
	if len(in.Cart.Lines) == 0 {
		return Invalid("cart", "cart is empty")
	}
	for _, ln := range in.Cart.Lines {
		if ln.ProductID == "" {
			return Invalid("cart", "line without product id")
		}
		if ln.Quantity < 1 {
			return Invalid("cart", "non-positive quantity")
		}
		if ln.UnitPrice <= 0 {
			return Invalid("cart", "non-positive unit price")
		}
	}
	if !phoneRe.MatchString(strings.TrimSpace(in.Address.Phone)) {
		return Invalid("phone", "must be a local mobile number (09xxxxxxxxx)")
	}
	if !postalRe.MatchString(strings.TrimSpace(in.Address.PostalCode)) {
		return Invalid("postal_code", "must be a 10-digit postal code")
	}
	if strings.TrimSpace(in.Address.Line1) == "" {
		return Invalid("line1", "address line is required")
	}
	return nil
}

package payments

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/mahdibari/mosi-project-sub000/internal/modules/orders"
)

// Reconciliation failure reasons kept on the order for observability. The
// user only ever sees a generic message.
const (
	FailReasonInvalidCallback     = "invalid_callback"
	FailReasonVerifyFailed        = "verify_failed"
	FailReasonCorrelationMismatch = "correlation_mismatch"
)

// OrderStore is the slice of the order store the reconciler needs. All
// writes are compare-and-swap against status = pending; no in-process lock
// is held across any of these calls.
type OrderStore interface {
	GetByID(ctx context.Context, id string) (orders.Order, error)
	GetBySessionID(ctx context.Context, sessionID string) (orders.Order, error)
	MarkPaid(ctx context.Context, orderID, transID string) (won bool, err error)
	MarkFailed(ctx context.Context, orderID, transID, reason string) (won bool, err error)
}

// CartClearer is the side-effect hook fired exactly once per order, on the
// paid transition only.
type CartClearer interface {
	ClearCart(ctx context.Context, orderID string) error
}

// Auditor records processed callbacks. Best effort; may be nil.
type Auditor interface {
	Record(ctx context.Context, sessionID, transID, orderID, outcome, reason string, payload map[string]string)
}

type Outcome struct {
	OrderID string
	Status  string // terminal order status
	Reason  string // failure reason code, empty on paid

	// AlreadyFinal: the order was terminal before this call; the gateway
	// was not contacted and nothing was written.
	AlreadyFinal bool
}

// Reconciler turns the gateway's redirect callback into a durable terminal
// order state. Callbacks are untrusted and replayable; every path here ends
// in either "terminal state written" or "nothing changed, retryable".
type Reconciler struct {
	store   OrderStore
	gateway Gateway
	cart    CartClearer
	audit   Auditor
	logger  *slog.Logger
}

func NewReconciler(store OrderStore, gw Gateway, cart CartClearer, audit Auditor, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, gateway: gw, cart: cart, audit: audit, logger: logger}
}

func (r *Reconciler) Reconcile(ctx context.Context, sessionID, transID string) (Outcome, error) {
	start := time.Now()
	defer func() {
		ReconcileLatency.Observe(time.Since(start).Seconds())
	}()

	sessionID = strings.TrimSpace(sessionID)
	transID = strings.TrimSpace(transID)

	// Without a session id there is no order to act on. Never treat an
	// empty callback as anything but invalid.
	if sessionID == "" || !allDigits(sessionID) {
		ReconcileOutcomesTotal.WithLabelValues("invalid_callback").Inc()
		return Outcome{}, ErrInvalidCallback
	}

	ord, err := r.store.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			// Integrity event: tampering, or a callback racing the
			// initiate commit. Nothing is written either way.
			r.logger.ErrorContext(ctx, "callback for unknown gateway session",
				"session_id", sessionID, "trans_id", transID)
			ReconcileOutcomesTotal.WithLabelValues("unknown_order").Inc()
			return Outcome{}, ErrUnknownOrder
		}
		return Outcome{}, err
	}

	// Idempotency guard: a redirect may be delivered more than once
	// (refresh, back button). Terminal orders are returned as-is, without
	// a second verify call.
	if ord.Terminal() {
		return r.finalOutcome(ord), nil
	}

	// Missing transaction id: the gateway never handled this attempt.
	// Fail the order without contacting the provider.
	if transID == "" {
		return r.fail(ctx, ord, "", FailReasonInvalidCallback)
	}

	res, err := r.gateway.Verify(ctx, sessionID, transID)
	if err != nil {
		if ge, ok := AsGatewayError(err); ok {
			switch ge.Reason {
			case ReasonDuplicate:
				// Someone verified this transaction already. If their
				// terminal write is visible, hand it back; otherwise the
				// caller retries once the winner commits.
				return r.afterLostRace(ctx, ord.ID)
			case ReasonUnreachable:
				// No state change; the browser redirect can be replayed.
				GatewayRequestsTotal.WithLabelValues("verify", "unreachable").Inc()
				return Outcome{}, err
			}
		}
		return Outcome{}, err
	}

	if !res.OK {
		GatewayRequestsTotal.WithLabelValues("verify", "failed").Inc()
		return r.fail(ctx, ord, transID, FailReasonVerifyFailed)
	}
	GatewayRequestsTotal.WithLabelValues("verify", "ok").Inc()

	// A successful verify proves some payment; the echoed correlation id
	// must prove it was for this order.
	if res.CorrelationID != ord.ID {
		r.logger.ErrorContext(ctx, "verify correlation mismatch",
			"order_id", ord.ID, "session_id", sessionID, "echoed", res.CorrelationID)
		return r.fail(ctx, ord, transID, FailReasonCorrelationMismatch)
	}

	won, err := r.store.MarkPaid(ctx, ord.ID, transID)
	if err != nil {
		return Outcome{}, err
	}
	if !won {
		return r.afterLostRace(ctx, ord.ID)
	}

	// Side effects only on the won transition, so they run at most once
	// per order.
	r.clearCart(ctx, ord.ID)
	r.record(ctx, sessionID, transID, ord.ID, orders.StatusPaid, "")
	ReconcileOutcomesTotal.WithLabelValues("paid").Inc()

	r.logger.InfoContext(ctx, "order paid",
		"order_id", ord.ID, "session_id", sessionID, "trans_id", transID, "amount", ord.TotalAmount)

	return Outcome{OrderID: ord.ID, Status: orders.StatusPaid}, nil
}

func (r *Reconciler) fail(ctx context.Context, ord orders.Order, transID, reason string) (Outcome, error) {
	won, err := r.store.MarkFailed(ctx, ord.ID, transID, reason)
	if err != nil {
		return Outcome{}, err
	}
	if !won {
		return r.afterLostRace(ctx, ord.ID)
	}

	r.record(ctx, sessionOf(ord), transID, ord.ID, orders.StatusFailed, reason)
	ReconcileOutcomesTotal.WithLabelValues("failed").Inc()

	r.logger.WarnContext(ctx, "order payment failed",
		"order_id", ord.ID, "reason", reason)

	return Outcome{OrderID: ord.ID, Status: orders.StatusFailed, Reason: reason}, nil
}

// afterLostRace re-reads the order after losing a conditional write (or
// hitting a duplicate verify). Terminal means the winner finished; still
// pending means its write is not yet visible and the caller retries.
func (r *Reconciler) afterLostRace(ctx context.Context, orderID string) (Outcome, error) {
	ord, err := r.store.GetByID(ctx, orderID)
	if err != nil {
		return Outcome{}, err
	}
	if ord.Terminal() {
		return r.finalOutcome(ord), nil
	}
	return Outcome{}, ErrReconcileRace
}

func (r *Reconciler) finalOutcome(ord orders.Order) Outcome {
	reason := ""
	if ord.FailReason != nil {
		reason = *ord.FailReason
	}
	ReconcileOutcomesTotal.WithLabelValues("already_final").Inc()
	return Outcome{OrderID: ord.ID, Status: ord.Status, Reason: reason, AlreadyFinal: true}
}

func (r *Reconciler) clearCart(ctx context.Context, orderID string) {
	if r.cart == nil {
		return
	}
	if err := r.cart.ClearCart(ctx, orderID); err != nil {
		// The order is paid regardless; a stale cart is a nuisance, not
		// a correctness problem.
		r.logger.WarnContext(ctx, "cart clear failed", "order_id", orderID, "err", err)
		return
	}
	CartClearsTotal.Inc()
}

func (r *Reconciler) record(ctx context.Context, sessionID, transID, orderID, outcome, reason string) {
	if r.audit == nil {
		return
	}
	r.audit.Record(ctx, sessionID, transID, orderID, outcome, reason, map[string]string{
		"id_get":   sessionID,
		"trans_id": transID,
	})
}

func sessionOf(ord orders.Order) string {
	if ord.GatewaySessionID != nil {
		return *ord.GatewaySessionID
	}
	return ""
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/mahdibari/mosi-project-sub000/internal/http/cartcookie"
	"github.com/mahdibari/mosi-project-sub000/internal/http/middleware"
	"github.com/mahdibari/mosi-project-sub000/internal/modules/orders"
	"github.com/mahdibari/mosi-project-sub000/internal/modules/payments"
	"github.com/mahdibari/mosi-project-sub000/internal/shared/apperr"
)

type CallbackHandler struct {
	Logger  *slog.Logger
	CartCK  *cartcookie.Codec
	Store   payments.OrderStore
	Gateway payments.Gateway
	Audit   payments.Auditor
}

func NewCallbackHandler(logger *slog.Logger, ck *cartcookie.Codec, store payments.OrderStore, gw payments.Gateway, audit payments.Auditor) *CallbackHandler {
	return &CallbackHandler{Logger: logger, CartCK: ck, Store: store, Gateway: gw, Audit: audit}
}

// cookieClearer binds the cart-clear side effect to this request's
// response: clearing the cart means deleting the signed cookie.
type cookieClearer struct {
	c     *gin.Context
	codec *cartcookie.Codec
}

func (cc cookieClearer) ClearCart(_ context.Context, _ string) error {
	cc.codec.Clear(cc.c)
	return nil
}

// GET /payment/callback?trans_id=...&id_get=...
// The gateway redirects the user's browser here. Untrusted and replayable;
// reconciliation decides, this handler only translates the outcome into a
// redirect. Gateway internals never reach the result URL.
func (h *CallbackHandler) Get(c *gin.Context) {
	sessionID := c.Query("id_get")
	transID := c.Query("trans_id")

	rec := payments.NewReconciler(h.Store, h.Gateway, cookieClearer{c: c, codec: h.CartCK}, h.Audit, h.Logger)

	out, err := rec.Reconcile(c.Request.Context(), sessionID, transID)
	if err != nil {
		h.failCallback(c, err)
		return
	}

	switch out.Status {
	case orders.StatusPaid:
		h.redirectResult(c, out.OrderID, "success", "")
	case orders.StatusCancelled:
		h.redirectResult(c, out.OrderID, "failed", "cancelled")
	default:
		h.redirectResult(c, out.OrderID, "failed", out.Reason)
	}
}

func (h *CallbackHandler) failCallback(c *gin.Context, err error) {
	switch {
	case errors.Is(err, payments.ErrInvalidCallback):
		h.redirectResult(c, "", "failed", payments.FailReasonInvalidCallback)
	case errors.Is(err, payments.ErrUnknownOrder):
		h.redirectResult(c, "", "failed", "")
	case errors.Is(err, payments.ErrReconcileRace):
		middleware.Fail(c, apperr.UnavailableErr("Payment is being confirmed. Please refresh.", err))
	default:
		if ge, ok := payments.AsGatewayError(err); ok && ge.Retryable() {
			middleware.Fail(c, apperr.UnavailableErr("Payment provider is unavailable. Please refresh.", err))
			return
		}
		// Store trouble and anything else: nothing was written, the
		// redirect may be replayed.
		middleware.Fail(c, apperr.UnavailableErr("Could not confirm the payment. Please refresh.", err))
	}
}

func (h *CallbackHandler) redirectResult(c *gin.Context, orderID, status, reason string) {
	q := url.Values{}
	if orderID != "" {
		q.Set("order", orderID)
	}
	q.Set("status", status)
	if reason != "" {
		q.Set("reason", reason)
	}
	c.Redirect(http.StatusFound, "/payment/result?"+q.Encode())
}

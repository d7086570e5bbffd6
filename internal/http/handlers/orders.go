package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mahdibari/mosi-project-sub000/internal/http/middleware"
	"github.com/mahdibari/mosi-project-sub000/internal/modules/checkout"
	"github.com/mahdibari/mosi-project-sub000/internal/modules/orders"
	"github.com/mahdibari/mosi-project-sub000/internal/shared/apperr"
)

type OrdersHandler struct {
	Logger   *slog.Logger
	Store    *orders.Store
	Checkout *checkout.Service
}

func NewOrdersHandler(logger *slog.Logger, store *orders.Store, svc *checkout.Service) *OrdersHandler {
	return &OrdersHandler{Logger: logger, Store: store, Checkout: svc}
}

type orderItemJSON struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	LineTotal int64  `json:"line_total"`
}

type orderJSON struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	TotalAmount   int64           `json:"total_amount"`
	Items         []orderItemJSON `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
}

// GET /api/orders/:id
func (h *OrdersHandler) Get(c *gin.Context) {
	ord, items, err := h.Store.GetWithItems(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			middleware.Fail(c, apperr.NotFoundErr("Order not found."))
			return
		}
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	out := orderJSON{
		ID:            ord.ID,
		Status:        ord.Status,
		PaymentStatus: ord.PaymentStatus,
		TotalAmount:   ord.TotalAmount,
		CreatedAt:     ord.CreatedAt,
		PaidAt:        ord.PaidAt,
	}
	for _, it := range items {
		out.Items = append(out.Items, orderItemJSON{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: it.LineTotal,
		})
	}
	c.JSON(http.StatusOK, out)
}

// POST /api/orders/:id/cancel
// Explicit user abort; only a pending order can be cancelled.
func (h *OrdersHandler) Cancel(c *gin.Context) {
	err := h.Checkout.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, orders.ErrNotPending) {
			middleware.Fail(c, apperr.ConflictErr("Order is no longer pending."))
			return
		}
		if errors.Is(err, orders.ErrNotFound) {
			middleware.Fail(c, apperr.NotFoundErr("Order not found."))
			return
		}
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": orders.StatusCancelled})
}

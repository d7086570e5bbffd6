package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mahdibari/mosi-project-sub000/internal/http/cartcookie"
	"github.com/mahdibari/mosi-project-sub000/internal/http/middleware"
	"github.com/mahdibari/mosi-project-sub000/internal/http/validation"
	"github.com/mahdibari/mosi-project-sub000/internal/modules/checkout"
	"github.com/mahdibari/mosi-project-sub000/internal/modules/orders"
	"github.com/mahdibari/mosi-project-sub000/internal/modules/payments"
	"github.com/mahdibari/mosi-project-sub000/internal/shared/apperr"
)

type CheckoutHandler struct {
	Logger   *slog.Logger
	CartCK   *cartcookie.Codec
	Checkout *checkout.Service
}

func NewCheckoutHandler(logger *slog.Logger, ck *cartcookie.Codec, svc *checkout.Service) *CheckoutHandler {
	return &CheckoutHandler{Logger: logger, CartCK: ck, Checkout: svc}
}

type checkoutLine struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
	UnitPrice int64  `json:"unit_price" binding:"required,gt=0"`
}

type addressInput struct {
	FullName   string `json:"full_name" binding:"required,min=3,max=100"`
	Line1      string `json:"line1" binding:"required,min=5,max=255"`
	Line2      string `json:"line2" binding:"omitempty,max=255"`
	City       string `json:"city" binding:"required,min=2,max=100"`
	PostalCode string `json:"postal_code" binding:"required,postalcode"`
	Phone      string `json:"phone" binding:"required,irmobile"`
}

type checkoutInput struct {
	Cart    []checkoutLine `json:"cart" binding:"omitempty,dive"`
	Address addressInput   `json:"address" binding:"required"`

	// OrderID resumes a pending order after a failed gateway initiate
	// instead of creating a duplicate.
	OrderID string `json:"order_id" binding:"omitempty,uuid"`
}

// POST /api/checkout
// Cart lines come from the body or, when absent, from the signed cart
// cookie. Success hands back the gateway's hosted redirect URL.
func (h *CheckoutHandler) Post(c *gin.Context) {
	var in checkoutInput
	if err := c.ShouldBindJSON(&in); err != nil {
		errs := validation.FromBindError(err, &in)
		middleware.Fail(c, apperr.InvalidErr("Checkout input is invalid.", errs))
		return
	}

	snapshot := checkout.CartSnapshot{}
	for _, ln := range in.Cart {
		snapshot.Lines = append(snapshot.Lines, checkout.CartLine{
			ProductID: ln.ProductID,
			Quantity:  ln.Quantity,
			UnitPrice: ln.UnitPrice,
		})
	}
	if len(snapshot.Lines) == 0 {
		if ck, ok := h.CartCK.Get(c); ok {
			for _, ln := range ck.Lines {
				snapshot.Lines = append(snapshot.Lines, checkout.CartLine{
					ProductID: ln.ProductID,
					Quantity:  ln.Qty,
					UnitPrice: ln.UnitPrice,
				})
			}
		}
	}

	res, err := h.Checkout.Initiate(c.Request.Context(), checkout.CheckoutInput{
		Cart: snapshot,
		Address: checkout.Address{
			FullName:   in.Address.FullName,
			Line1:      in.Address.Line1,
			Line2:      in.Address.Line2,
			City:       in.Address.City,
			PostalCode: in.Address.PostalCode,
			Phone:      in.Address.Phone,
		},
		OrderID: in.OrderID,
	})
	if err != nil {
		h.failCheckout(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id":     res.OrderID,
		"redirect_url": res.RedirectURL,
	})
}

func (h *CheckoutHandler) failCheckout(c *gin.Context, err error) {
	var ve *checkout.ValidationError
	if errors.As(err, &ve) {
		middleware.Fail(c, apperr.InvalidErr("Checkout input is invalid.", map[string]string{ve.Field: ve.Msg}))
		return
	}
	if errors.Is(err, orders.ErrNotFound) {
		middleware.Fail(c, apperr.NotFoundErr("Order not found."))
		return
	}
	if errors.Is(err, orders.ErrNotPending) {
		middleware.Fail(c, apperr.ConflictErr("Order is no longer payable."))
		return
	}
	if ge, ok := payments.AsGatewayError(err); ok {
		if ge.Retryable() {
			middleware.Fail(c, apperr.UnavailableErr("Payment provider is unavailable. Please try again.", err))
			return
		}
		middleware.Fail(c, apperr.BadGatewayErr("Payment provider rejected the request.", err))
		return
	}
	middleware.Fail(c, apperr.Wrap(err))
}

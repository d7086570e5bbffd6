package handlers

import (
	"fmt"
	"html"
	"net/http"

	"github.com/gin-gonic/gin"
)

// GET /payment/result?order=...&status=success|failed
// Minimal result page; the storefront's real page layer owns the styling.
func PaymentResult(c *gin.Context) {
	status := c.Query("status")
	orderID := c.Query("order")

	title := "Payment failed"
	msg := "Your payment could not be completed. If you were charged, it will be reconciled shortly."
	if status == "success" {
		title = "Payment successful"
		msg = "Thank you. Your order has been paid."
	}

	body := fmt.Sprintf("<html><body><h1>%s</h1><p>%s</p>", title, msg)
	if orderID != "" {
		body += fmt.Sprintf("<p>Order: %s</p>", html.EscapeString(orderID))
	}
	body += "</body></html>"

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, body)
}

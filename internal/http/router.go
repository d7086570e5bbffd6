package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/mahdibari/mosi-project-sub000/internal/config"
	"github.com/mahdibari/mosi-project-sub000/internal/http/cartcookie"
	"github.com/mahdibari/mosi-project-sub000/internal/http/handlers"
	"github.com/mahdibari/mosi-project-sub000/internal/http/middleware"
	"github.com/mahdibari/mosi-project-sub000/internal/http/validation"
	"github.com/mahdibari/mosi-project-sub000/internal/modules/checkout"
	"github.com/mahdibari/mosi-project-sub000/internal/modules/orders"
	"github.com/mahdibari/mosi-project-sub000/internal/modules/payments"
)

func NewRouter(logger *slog.Logger, db *gorm.DB, cfg config.Config) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	validation.Register()

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.ErrorHandler(logger))

	store := orders.NewStore(db)
	gateway := payments.NewHTTPGateway(payments.GatewayConfig{
		APIKey:      cfg.Gateway.APIKey,
		InitiateURL: cfg.Gateway.InitiateURL,
		VerifyURL:   cfg.Gateway.VerifyURL,
		RedirectURL: cfg.Gateway.RedirectURL,
		Timeout:     cfg.Gateway.Timeout,
	})
	audit := payments.NewEventLog(db, logger)
	cartCK := cartcookie.New([]byte(cfg.Cart.CookieSecret), cfg.Cart.CookieName, cfg.Cart.Secure)

	checkoutSvc := checkout.NewService(store, gateway, checkout.Config{
		RialPerToman: cfg.Payment.RialPerToman,
		ReturnURL:    cfg.Server.BaseURL + "/payment/callback",
	}, logger)

	checkoutH := handlers.NewCheckoutHandler(logger, cartCK, checkoutSvc)
	callbackH := handlers.NewCallbackHandler(logger, cartCK, store, gateway, audit)
	ordersH := handlers.NewOrdersHandler(logger, store, checkoutSvc)

	r.POST("/api/checkout", checkoutH.Post)
	r.GET("/payment/callback", callbackH.Get)
	r.GET("/payment/result", handlers.PaymentResult)
	r.GET("/api/orders/:id", ordersH.Get)
	r.POST("/api/orders/:id/cancel", ordersH.Cancel)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	return r
}

package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront-checkout-service/internal/middleware"
)

type RouterConfig struct {
	Logger      *slog.Logger
	Auth        middleware.TokenValidator
	CORSOrigins []string
	// Ready indica si responde el storage obligatorio; nil equivale a listo.
	Ready func(ctx context.Context) error
	// Optional son dependencias sin las que el servicio sigue funcionando;
	// una falla se informa en "degraded" sin sacar la instancia de rotación.
	Optional map[string]func(ctx context.Context) error
}

type Handlers struct {
	Cart     *CartController
	Checkout *CheckoutController
	Orders   *OrderController
}

func NewRouter(cfg RouterConfig, h Handlers) *gin.Engine {
	// los cuerpos con campos desconocidos se rechazan antes de cualquier handler
	binding.EnableDecoderDisallowUnknownFields = true

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(cfg.Logger), middleware.Metrics())
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.CORSOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
			AllowHeaders:  []string{"Authorization", "Content-Type", idempotencyHeader, "X-Request-Id"},
			ExposeHeaders: []string{"X-Request-Id"},
			MaxAge:        12 * time.Hour,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if cfg.Ready != nil {
			if err := cfg.Ready(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": err.Error()})
				return
			}
		}

		degraded := map[string]string{}
		for name, check := range cfg.Optional {
			if err := check(ctx); err != nil {
				degraded[name] = err.Error()
			}
		}
		if len(degraded) > 0 {
			c.JSON(http.StatusOK, gin.H{"ok": true, "degraded": degraded})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Rutas protegidas (requieren token)
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware(cfg.Auth))

	auth.GET("/cart", h.Cart.GetCart)
	auth.POST("/cart/items", h.Cart.AddItem)
	auth.PATCH("/cart/items/:productId", h.Cart.UpdateQuantity)
	auth.DELETE("/cart/items/:productId", h.Cart.RemoveItem)

	auth.POST("/checkout/orders", h.Checkout.CreateOrder)
	auth.POST("/checkout/orders/:orderId/payment-intent", h.Checkout.RetryPayment)
	auth.POST("/checkout/orders/:orderId/capture", h.Checkout.CaptureOrder)

	auth.GET("/orders/mine", h.Orders.GetMyOrders)
	auth.GET("/orders/:orderId", h.Orders.GetOrder)

	// Rutas admin
	admin := auth.Group("/admin")
	admin.Use(middleware.AdminOnly())
	admin.GET("/orders", h.Orders.GetAllOrders)
	admin.PATCH("/orders/:orderId/status", h.Orders.UpdateStatus)

	return r
}

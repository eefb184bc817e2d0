package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler contains HTTP handlers
type Handler struct {
	carts      *service.CartService
	checkout   *service.CheckoutService
	orders     *service.OrderService
	reconciler *service.Reconciler
	gateway    payment.Gateway
	identity   auth.Provider
	logger     *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	carts *service.CartService,
	checkout *service.CheckoutService,
	orders *service.OrderService,
	reconciler *service.Reconciler,
	gateway payment.Gateway,
	identity auth.Provider,
) *Handler {
	return &Handler{
		carts:      carts,
		checkout:   checkout,
		orders:     orders,
		reconciler: reconciler,
		gateway:    gateway,
		identity:   identity,
		logger:     util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")

	// The webhook authenticates by signature, not by caller identity.
	v1.POST("/webhooks/stripe", h.stripeWebhook)

	authed := v1.Group("", authRequired(h.identity))
	{
		cart := authed.Group("/cart")
		{
			cart.GET("", h.getCart)
			cart.POST("/items", h.addCartItem)
			cart.PUT("/items/:product_id", h.updateCartItem)
			cart.DELETE("/items/:product_id", h.removeCartItem)
			cart.DELETE("", h.clearCart)
			cart.GET("/validate", h.validateCart)
			cart.POST("/transfer", h.transferCart)
		}

		checkout := authed.Group("/checkout")
		{
			checkout.POST("/payment-intent", h.createPaymentIntent)
			checkout.GET("/payment-status/:intent_id", h.paymentStatus)
			checkout.POST("/cancel-payment/:intent_id", h.cancelPayment)
		}

		orders := authed.Group("/orders")
		{
			orders.GET("", h.listOrders)
			orders.GET("/:id", h.getOrder)
			orders.GET("/number/:number", h.getOrderByNumber)
		}

		admin := authed.Group("/admin", adminRequired())
		{
			admin.GET("/orders", h.adminListOrders)
			admin.PUT("/orders/:id/status", h.adminUpdateOrderStatus)
			admin.GET("/orders/summary", h.adminOrderSummary)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type addItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

type transferCartRequest struct {
	FromUserID int64 `json:"from_user_id" binding:"required"`
}

type statusUpdateRequest struct {
	Status     string `json:"status" binding:"required"`
	AdminNotes string `json:"admin_notes"`
}

// getCart returns the current user's cart with totals
func (h *Handler) getCart(c *gin.Context) {
	view, err := h.carts.GetCart(c.Request.Context(), currentIdentity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// addCartItem adds a product to the cart, merging quantities
func (h *Handler) addCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	view, err := h.carts.AddItem(c.Request.Context(), currentIdentity(c).UserID, req.ProductID, req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// updateCartItem overwrites a line's quantity
func (h *Handler) updateCartItem(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("product_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	view, err := h.carts.UpdateItem(c.Request.Context(), currentIdentity(c).UserID, productID, req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// removeCartItem deletes a line from the cart
func (h *Handler) removeCartItem(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("product_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	view, err := h.carts.RemoveItem(c.Request.Context(), currentIdentity(c).UserID, productID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// clearCart empties the cart
func (h *Handler) clearCart(c *gin.Context) {
	if err := h.carts.Clear(c.Request.Context(), currentIdentity(c).UserID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}

// validateCart re-checks every line against current stock
func (h *Handler) validateCart(c *gin.Context) {
	issues, err := h.carts.ValidateStock(c.Request.Context(), currentIdentity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": len(issues) == 0, "issues": issues})
}

// transferCart merges a guest cart into the current user's cart
func (h *Handler) transferCart(c *gin.Context) {
	var req transferCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	transferred, err := h.carts.TransferCart(c.Request.Context(), req.FromUserID, currentIdentity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transferred": transferred})
}

// createPaymentIntent runs checkout: validates the cart, creates the payment
// intent and persists the pending order
func (h *Handler) createPaymentIntent(c *gin.Context) {
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	resp, err := h.checkout.CreatePaymentIntent(c.Request.Context(), currentIdentity(c).UserID, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// paymentStatus proxies the processor's intent status
func (h *Handler) paymentStatus(c *gin.Context) {
	intent, err := h.checkout.PaymentStatus(c.Request.Context(), c.Param("intent_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, intent)
}

// cancelPayment cancels an intent at the processor and locally
func (h *Handler) cancelPayment(c *gin.Context) {
	intent, err := h.checkout.CancelPayment(c.Request.Context(), currentIdentity(c).UserID, c.Param("intent_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":           "Payment canceled",
		"payment_intent_id": intent.ID,
		"status":            intent.Status,
	})
}

// stripeWebhook receives processor callbacks. The signature is verified
// before any of the payload is trusted. Unknown event types and unknown
// intents answer 200 so the processor stops retrying them; verification
// failures answer 400 and processing failures 5xx so its retry policy
// applies.
func (h *Handler) stripeWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable payload"})
		return
	}

	event, err := h.gateway.VerifyWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("Webhook verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Webhook verification failed"})
		return
	}

	if err := h.reconciler.HandleEvent(c.Request.Context(), event); err != nil {
		if errors.Is(err, models.ErrConflict) {
			// Another delivery for this intent is in flight; have the
			// processor retry, the settled gate will answer it then.
			c.JSON(http.StatusConflict, gin.H{"error": "Delivery in progress"})
			return
		}
		h.logger.Error("Webhook processing failed",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// listOrders returns one page of the current user's orders
func (h *Handler) listOrders(c *gin.Context) {
	page, limit := pageParams(c)
	orders, total, err := h.orders.ListUserOrders(c.Request.Context(), currentIdentity(c).UserID, page, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "total": total, "page": page, "limit": limit})
}

// getOrder returns one of the current user's orders by id
func (h *Handler) getOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	detail, err := h.orders.GetOrder(c.Request.Context(), orderID, currentIdentity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// getOrderByNumber returns one of the current user's orders by order number
func (h *Handler) getOrderByNumber(c *gin.Context) {
	detail, err := h.orders.GetOrderByNumber(c.Request.Context(), c.Param("number"), currentIdentity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// adminListOrders returns one page of all orders
func (h *Handler) adminListOrders(c *gin.Context) {
	page, limit := pageParams(c)
	orders, total, err := h.orders.ListAllOrders(c.Request.Context(), page, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "total": total, "page": page, "limit": limit})
}

// adminUpdateOrderStatus applies an admin status transition
func (h *Handler) adminUpdateOrderStatus(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req statusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), orderID, models.OrderStatus(req.Status), req.AdminNotes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// adminOrderSummary returns the rolling-window dashboard aggregate
func (h *Handler) adminOrderSummary(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid day window"})
		return
	}

	summary, err := h.orders.Summary(c.Request.Context(), days)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// respondError maps domain errors to client responses. Business failures get
// a stable, user-safe message; everything unexpected is logged in full and
// answered opaquely.
func (h *Handler) respondError(c *gin.Context, err error) {
	var stockErr *models.InsufficientStockError
	var validationErr *service.StockValidationError

	switch {
	case errors.As(err, &stockErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Insufficient stock",
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Some items are out of stock",
			"issues": validationErr.Issues,
		})
	case errors.Is(err, models.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
	case errors.Is(err, models.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found"})
	case errors.Is(err, models.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Conflicting request"})
	case errors.Is(err, models.ErrPaymentGateway):
		h.logger.Error("Payment gateway failure", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment service unavailable"})
	default:
		h.logger.Error("Unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return page, limit
}

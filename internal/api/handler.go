package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"payment-service/internal/redisclient"
	"payment-service/internal/service"
	"payment-service/internal/store"
	"payment-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	coordinator *service.Coordinator
	store       *store.Store
	cache       *redisclient.Client
}

// NewHandler creates a new HTTP handler. cache may be nil.
func NewHandler(coordinator *service.Coordinator, st *store.Store, cache *redisclient.Client) *Handler {
	return &Handler{
		coordinator: coordinator,
		store:       st,
		cache:       cache,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/live", h.livenessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/payments", h.createCharge)
		v1.POST("/payments/:id/refunds", h.createRefund)
		v1.GET("/payments", h.listPayments)
		v1.GET("/payments/:id", h.getPayment)
		v1.GET("/payments/:id/receipt", h.getReceipt)
		v1.GET("/stats", h.getStats)
	}
}

// createCharge handles charge creation
func (h *Handler) createCharge(c *gin.Context) {
	var req service.ChargeRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}
	req.ClientKey = c.ClientIP()

	out := h.coordinator.CreateCharge(c.Request.Context(), &req)
	c.Data(out.StatusCode, "application/json", out.Body)
}

// createRefund handles refund creation
func (h *Handler) createRefund(c *gin.Context) {
	paymentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment ID"})
		return
	}

	var req service.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}
	req.PaymentID = paymentID
	req.ClientKey = c.ClientIP()

	out := h.coordinator.CreateRefund(c.Request.Context(), &req)
	c.Data(out.StatusCode, "application/json", out.Body)
}

// listPayments handles filtered payment listing
func (h *Handler) listPayments(c *gin.Context) {
	tripID, _ := strconv.ParseInt(c.Query("trip_id"), 10, 64)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	filter := store.PaymentFilter{
		TripID: tripID,
		Status: c.Query("status"),
		Method: c.Query("method"),
		Limit:  limit,
		Offset: offset,
	}

	payments, err := h.store.ListPayments(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list payments"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payments": payments,
		"count":    len(payments),
	})
}

// getPayment handles get payment by ID
func (h *Handler) getPayment(c *gin.Context) {
	paymentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment ID"})
		return
	}

	payment, err := h.store.GetPaymentByID(c.Request.Context(), paymentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payment"})
		return
	}
	if payment == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
		return
	}

	c.JSON(http.StatusOK, payment)
}

// getReceipt generates (idempotently) and returns a receipt for a payment
func (h *Handler) getReceipt(c *gin.Context) {
	paymentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment ID"})
		return
	}

	payment, err := h.store.GetPaymentByID(c.Request.Context(), paymentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payment"})
		return
	}
	if payment == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
		return
	}

	receiptNumber := "RCP-" + payment.Reference
	data, err := json.Marshal(map[string]interface{}{
		"receipt_number": receiptNumber,
		"payment_id":     payment.PaymentID,
		"trip_id":        payment.TripID,
		"amount":         payment.Amount,
		"method":         payment.Method,
		"status":         payment.Status,
		"reference":      payment.Reference,
		"created_at":     payment.CreatedAt,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build receipt"})
		return
	}

	receipt, err := h.store.UpsertReceipt(c.Request.Context(), paymentID, receiptNumber, data)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate receipt"})
		return
	}

	c.JSON(http.StatusOK, receipt)
}

// getStats returns aggregate ledger statistics
func (h *Handler) getStats(c *gin.Context) {
	stats, err := h.store.GetPaymentStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payments_by_status":     stats.ByStatus,
		"payments_by_method":     stats.ByMethod,
		"average_payment_amount": stats.AvgAmount,
		"total_revenue":          stats.TotalRevenue,
		"timestamp":              time.Now().UTC().Format(time.RFC3339),
	})
}

// healthCheck reports service and dependency health
func (h *Handler) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	health := gin.H{
		"service": "payment-service",
		"status":  "UP",
		"time":    time.Now().Unix(),
	}

	if err := h.store.Ping(ctx); err != nil {
		health["database_status"] = "DOWN"
		health["status"] = "DEGRADED"
		status = http.StatusServiceUnavailable
	} else {
		health["database_status"] = "UP"
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			health["redis_status"] = "DOWN"
		} else {
			health["redis_status"] = "UP"
		}
	}

	c.JSON(status, health)
}

// readinessCheck handles readiness probe requests
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}

// livenessCheck handles liveness probe requests
func (h *Handler) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alive": true})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

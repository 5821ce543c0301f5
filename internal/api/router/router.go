package router

import (
	"context"
	"net/http"
	"time"

	"github.com/cuongbtq/payment-gateway/internal/api/handler"
	"github.com/cuongbtq/payment-gateway/internal/metrics"
	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(PrometheusMiddleware())
	r.Use(CORSMiddleware())

	r.GET("/health", healthHandler(deps))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	paymentHandler := handler.NewPaymentHandler(deps)
	refundHandler := handler.NewRefundHandler(deps)
	webhookHandler := handler.NewWebhookHandler(deps)

	v1 := r.Group("/api/v1")
	{
		// GET /api/v1/test/jobs/status - Worker liveness placeholder, unauthenticated
		v1.GET("/test/jobs/status", handler.JobStatus)

		authed := v1.Group("", AuthMiddleware(deps.Store, deps.Logger))

		payments := authed.Group("/payments")
		{
			// POST /api/v1/payments - Create a payment
			payments.POST("", paymentHandler.CreatePayment)

			// GET /api/v1/payments/:payment_id - Get payment details
			payments.GET("/:payment_id", paymentHandler.GetPayment)

			// POST /api/v1/payments/:payment_id/capture - Capture a successful payment
			payments.POST("/:payment_id/capture", paymentHandler.CapturePayment)

			// POST /api/v1/payments/:payment_id/refunds - Refund part of a payment
			payments.POST("/:payment_id/refunds", refundHandler.CreateRefund)
		}

		// GET /api/v1/refunds/:refund_id - Get refund details
		authed.GET("/refunds/:refund_id", refundHandler.GetRefund)

		webhooks := authed.Group("/webhooks")
		{
			// GET /api/v1/webhooks - List delivery logs
			webhooks.GET("", webhookHandler.ListWebhooks)

			// POST /api/v1/webhooks/:webhook_id/retry - Redeliver a webhook
			webhooks.POST("/:webhook_id/retry", webhookHandler.RetryWebhook)
		}
	}

	return r
}

func healthHandler(deps *handler.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		database := "up"

		if deps.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
			defer cancel()

			if err := deps.Health.HealthCheck(ctx); err != nil {
				status, code, database = "unhealthy", http.StatusServiceUnavailable, "down"
			}
		}

		c.JSON(code, gin.H{
			"status":   status,
			"service":  deps.ServiceName,
			"database": database,
		})
	}
}

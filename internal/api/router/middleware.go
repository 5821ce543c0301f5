package router

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cuongbtq/payment-gateway/internal/api/dto"
	"github.com/cuongbtq/payment-gateway/internal/api/handler"
	"github.com/cuongbtq/payment-gateway/internal/domain"
	"github.com/cuongbtq/payment-gateway/internal/metrics"
	"github.com/gin-gonic/gin"
)

const (
	apiKeyHeader    = "X-Api-Key"
	apiSecretHeader = "X-Api-Secret"
)

// MerchantAuthenticator resolves a merchant from its API credentials
type MerchantAuthenticator interface {
	GetMerchantByCredentials(ctx context.Context, apiKey, apiSecret string) (*domain.Merchant, error)
}

// AuthMiddleware rejects requests without valid merchant credentials and
// stores the merchant id under handler.MerchantIDKey
func AuthMiddleware(auth MerchantAuthenticator, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(apiKeyHeader)
		apiSecret := c.GetHeader(apiSecretHeader)

		if apiKey == "" || apiSecret == "" {
			abortUnauthorized(c)
			return
		}

		merchant, err := auth.GetMerchantByCredentials(c.Request.Context(), apiKey, apiSecret)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrUnauthorized) {
				logger.Error("Failed to authenticate merchant", slog.Any("error", err))
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					dto.NewErrorResponse(dto.CodeInternal, "Internal server error"))
				return
			}
			abortUnauthorized(c)
			return
		}

		c.Set(handler.MerchantIDKey, merchant.ID)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponse(dto.CodeAuthentication, "Invalid API credentials"))
}

// LoggerMiddleware logs HTTP requests with slog
func LoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// Process request
		c.Next()

		latency := time.Since(start)

		logger.Info("HTTP Request",
			slog.Int("status", c.Writer.Status()),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.String("ip", c.ClientIP()),
			slog.String("merchant_id", c.GetString(handler.MerchantIDKey)),
			slog.Duration("latency", latency),
			slog.Int("body_size", c.Writer.Size()),
		)

		for _, e := range c.Errors {
			logger.Error("Request error",
				slog.String("error", e.Error()),
				slog.Uint64("type", uint64(e.Type)),
			)
		}
	}
}

// PrometheusMiddleware records request counts and latencies per route
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		metrics.HTTPRequests.WithLabelValues(strconv.Itoa(c.Writer.Status()), c.Request.Method, route).Inc()
		metrics.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// CORSMiddleware handles Cross-Origin Resource Sharing
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, Idempotency-Key, X-Api-Key, X-Api-Secret")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

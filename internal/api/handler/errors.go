package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/payment-gateway/internal/api/dto"
	"github.com/cuongbtq/payment-gateway/internal/domain"
	"github.com/gin-gonic/gin"
)

// respondError maps a domain error onto the API error body
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	var (
		validationErr *domain.ValidationError
		conflictErr   *domain.StateConflictError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.CodeBadRequest, validationErr.Error()))
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(conflictErr.Code, conflictErr.Description))
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(dto.CodeNotFound, notFoundDescription(c)))
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, dto.NewErrorResponse(dto.CodeAuthentication, "Invalid API credentials"))
	default:
		logger.Error("Request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("merchant_id", merchantID(c)),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(dto.CodeInternal, "Internal server error"))
	}
}

func notFoundDescription(c *gin.Context) string {
	switch {
	case c.Param("payment_id") != "":
		return "Payment not found"
	case c.Param("refund_id") != "":
		return "Refund not found"
	case c.Param("webhook_id") != "":
		return "Webhook not found"
	}
	return "Resource not found"
}

// bindError reports a request that failed gin binding
func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.CodeBadRequest, err.Error()))
}

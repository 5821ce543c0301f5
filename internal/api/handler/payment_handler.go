package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cuongbtq/payment-gateway/internal/api/dto"
	"github.com/cuongbtq/payment-gateway/internal/domain"
	"github.com/gin-gonic/gin"
)

// PaymentHandler handles payment-related HTTP requests
type PaymentHandler struct {
	*Dependencies
}

// NewPaymentHandler creates a new PaymentHandler instance
func NewPaymentHandler(deps *Dependencies) *PaymentHandler {
	return &PaymentHandler{Dependencies: deps}
}

// CreatePayment handles POST /api/v1/payments
// A request repeating a live Idempotency-Key gets the first response back verbatim.
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	ctx := c.Request.Context()
	merchant := merchantID(c)

	var req dto.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Logger.Debug("Invalid payment request", slog.String("error", err.Error()))
		bindError(c, err)
		return
	}

	key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	if key != "" {
		cached, hit, err := h.Idempotency.Lookup(ctx, key, merchant)
		if err != nil {
			respondError(c, h.Logger, err)
			return
		}
		if hit {
			h.Logger.Info("Replaying idempotent payment response",
				slog.String("merchant_id", merchant),
				slog.String("idempotency_key", key),
			)
			c.Data(http.StatusCreated, gin.MIMEJSON+"; charset=utf-8", cached)
			return
		}
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	now := h.now()
	payment := &domain.Payment{
		ID:         newID("pay_"),
		MerchantID: merchant,
		OrderID:    req.OrderID,
		Amount:     req.Amount,
		Currency:   currency,
		Method:     strings.ToLower(req.Method),
		Status:     domain.PaymentStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := h.Store.CreatePayment(ctx, payment); err != nil {
		respondError(c, h.Logger, fmt.Errorf("failed to create payment: %w", err))
		return
	}

	body, err := json.Marshal(dto.NewPaymentResponse(payment))
	if err != nil {
		respondError(c, h.Logger, fmt.Errorf("failed to encode payment: %w", err))
		return
	}

	h.Producer.EnqueueJob(ctx, domain.JobTypeProcessPayment, []byte(payment.ID))

	if key != "" {
		if err := h.Idempotency.Store(ctx, key, merchant, body); err != nil {
			h.Logger.Error("Failed to cache idempotent response",
				slog.String("payment_id", payment.ID),
				slog.Any("error", err),
			)
		}
	}

	h.Logger.Info("Payment created",
		slog.String("payment_id", payment.ID),
		slog.String("merchant_id", merchant),
		slog.Int64("amount", payment.Amount),
		slog.String("method", payment.Method),
	)

	c.Data(http.StatusCreated, gin.MIMEJSON+"; charset=utf-8", body)
}

// GetPayment handles GET /api/v1/payments/:payment_id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.Store.GetPaymentForMerchant(c.Request.Context(), c.Param("payment_id"), merchantID(c))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewPaymentResponse(payment))
}

// CapturePayment handles POST /api/v1/payments/:payment_id/capture
func (h *PaymentHandler) CapturePayment(c *gin.Context) {
	ctx := c.Request.Context()

	payment, err := h.Store.GetPaymentForMerchant(ctx, c.Param("payment_id"), merchantID(c))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}

	if payment.Status != domain.PaymentStatusSuccess {
		respondError(c, h.Logger, domain.NewStateConflictError("Payment not in capturable state"))
		return
	}

	if err := h.Store.CapturePayment(ctx, payment.ID, h.now()); err != nil {
		respondError(c, h.Logger, fmt.Errorf("failed to capture payment: %w", err))
		return
	}

	c.JSON(http.StatusOK, dto.CaptureResponse{
		ID:       payment.ID,
		Status:   payment.Status,
		Captured: true,
	})
}

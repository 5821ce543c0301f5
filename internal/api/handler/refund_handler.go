package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/payment-gateway/internal/api/dto"
	"github.com/cuongbtq/payment-gateway/internal/domain"
	"github.com/gin-gonic/gin"
)

// RefundHandler handles refund-related HTTP requests
type RefundHandler struct {
	*Dependencies
}

// NewRefundHandler creates a new RefundHandler instance
func NewRefundHandler(deps *Dependencies) *RefundHandler {
	return &RefundHandler{Dependencies: deps}
}

// CreateRefund handles POST /api/v1/payments/:payment_id/refunds
//
// The balance check and the insert are separate queries, so two concurrent
// refunds can each pass the check and together exceed the payment amount.
func (h *RefundHandler) CreateRefund(c *gin.Context) {
	ctx := c.Request.Context()
	merchant := merchantID(c)

	var req dto.CreateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	payment, err := h.Store.GetPaymentForMerchant(ctx, c.Param("payment_id"), merchant)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}

	if payment.Status != domain.PaymentStatusSuccess {
		respondError(c, h.Logger, domain.NewStateConflictError("Payment must be successful"))
		return
	}

	refunded, err := h.Store.SumRefunded(ctx, payment.ID)
	if err != nil {
		respondError(c, h.Logger, fmt.Errorf("failed to sum refunds: %w", err))
		return
	}

	if req.Amount+refunded > payment.Amount {
		respondError(c, h.Logger, domain.NewStateConflictError("Refund amount exceeds available amount"))
		return
	}

	refund := &domain.Refund{
		ID:         newID("rfnd_"),
		PaymentID:  payment.ID,
		MerchantID: merchant,
		Amount:     req.Amount,
		Reason:     req.Reason,
		Status:     domain.RefundStatusPending,
		CreatedAt:  h.now(),
	}

	if err := h.Store.CreateRefund(ctx, refund); err != nil {
		respondError(c, h.Logger, fmt.Errorf("failed to create refund: %w", err))
		return
	}

	h.Producer.EnqueueJob(ctx, domain.JobTypeProcessRefund, []byte(refund.ID))

	h.Logger.Info("Refund created",
		slog.String("refund_id", refund.ID),
		slog.String("payment_id", payment.ID),
		slog.Int64("amount", refund.Amount),
		slog.Int64("already_refunded", refunded),
	)

	c.JSON(http.StatusCreated, dto.NewRefundResponse(refund))
}

// GetRefund handles GET /api/v1/refunds/:refund_id
func (h *RefundHandler) GetRefund(c *gin.Context) {
	refund, err := h.Store.GetRefundForMerchant(c.Request.Context(), c.Param("refund_id"), merchantID(c))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewRefundResponse(refund))
}

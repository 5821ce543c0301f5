package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cuongbtq/payment-gateway/internal/clock"
	"github.com/cuongbtq/payment-gateway/internal/domain"
	"github.com/cuongbtq/payment-gateway/internal/processor"
)

// PaymentHandler settles a pending payment through the processor
type PaymentHandler struct {
	store     Store
	processor processor.Processor
	enqueuer  Enqueuer
	clock     clock.Clock
	logger    *slog.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(store Store, proc processor.Processor, enq Enqueuer, clk clock.Clock, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		store:     store,
		processor: proc,
		enqueuer:  enq,
		clock:     clk,
		logger:    logger,
	}
}

// Handle processes a PROCESS_PAYMENT job whose payload is the payment id
func (h *PaymentHandler) Handle(ctx context.Context, payload []byte) error {
	paymentID := strings.TrimSpace(string(payload))
	if paymentID == "" {
		return fmt.Errorf("%w: empty payment id", domain.ErrInvalidPayload)
	}

	payment, err := h.store.GetPayment(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("failed to load payment: %w", err)
	}

	if payment.Status != domain.PaymentStatusPending {
		h.logger.Warn("Payment already settled, skipping",
			slog.String("payment_id", paymentID),
			slog.String("status", payment.Status),
		)
		return nil
	}

	result, err := h.processor.Attempt(ctx, payment.Method)
	if err != nil {
		return fmt.Errorf("processor attempt failed: %w", err)
	}

	if err := wait(ctx, result.Latency); err != nil {
		return fmt.Errorf("payment processing interrupted: %w", err)
	}

	status, event := domain.PaymentStatusFailed, domain.EventPaymentFailed
	if result.Outcome == processor.OutcomeSuccess {
		status, event = domain.PaymentStatusSuccess, domain.EventPaymentSuccess
	}

	if err := h.store.UpdatePaymentStatus(ctx, paymentID, status, h.clock.Now()); err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	h.logger.Info("Payment processed",
		slog.String("payment_id", paymentID),
		slog.String("method", payment.Method),
		slog.String("status", status),
		slog.Duration("latency", result.Latency),
	)

	return EnqueueWebhook(ctx, h.enqueuer, payment.MerchantID, event, domain.WebhookData{PaymentID: paymentID})
}

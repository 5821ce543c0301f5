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

// RefundHandler settles a pending refund
type RefundHandler struct {
	store     Store
	processor processor.Processor
	enqueuer  Enqueuer
	clock     clock.Clock
	logger    *slog.Logger
}

func NewRefundHandler(store Store, proc processor.Processor, enq Enqueuer, clk clock.Clock, logger *slog.Logger) *RefundHandler {
	return &RefundHandler{
		store:     store,
		processor: proc,
		enqueuer:  enq,
		clock:     clk,
		logger:    logger,
	}
}

// Handle processes a PROCESS_REFUND job whose payload is the refund id
func (h *RefundHandler) Handle(ctx context.Context, payload []byte) error {
	refundID := strings.TrimSpace(string(payload))
	if refundID == "" {
		return fmt.Errorf("%w: empty refund id", domain.ErrInvalidPayload)
	}

	refund, err := h.store.GetRefund(ctx, refundID)
	if err != nil {
		return fmt.Errorf("failed to load refund: %w", err)
	}

	if refund.Status != domain.RefundStatusPending {
		h.logger.Warn("Refund already settled, skipping",
			slog.String("refund_id", refundID),
			slog.String("status", refund.Status),
		)
		return nil
	}

	delay, err := h.processor.Settle(ctx)
	if err != nil {
		return fmt.Errorf("refund settlement failed: %w", err)
	}

	if err := wait(ctx, delay); err != nil {
		return fmt.Errorf("refund processing interrupted: %w", err)
	}

	if err := h.store.MarkRefundProcessed(ctx, refundID, h.clock.Now()); err != nil {
		return fmt.Errorf("failed to mark refund processed: %w", err)
	}

	h.logger.Info("Refund processed",
		slog.String("refund_id", refundID),
		slog.String("payment_id", refund.PaymentID),
		slog.Int64("amount", refund.Amount),
	)

	return EnqueueWebhook(ctx, h.enqueuer, refund.MerchantID, domain.EventRefundProcessed, domain.WebhookData{RefundID: refundID})
}

package dto

import (
	"time"

	"github.com/cuongbtq/payment-gateway/internal/domain"
)

// CreateRefundRequest represents the request body for refunding a payment
type CreateRefundRequest struct {
	Amount int64  `json:"amount" binding:"required,gt=0"`
	Reason string `json:"reason" binding:"max=1000"`
}

type RefundResponse struct {
	ID          string  `json:"id"`
	PaymentID   string  `json:"payment_id"`
	Amount      int64   `json:"amount"`
	Reason      string  `json:"reason"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	ProcessedAt *string `json:"processed_at"`
}

func NewRefundResponse(r *domain.Refund) RefundResponse {
	resp := RefundResponse{
		ID:        r.ID,
		PaymentID: r.PaymentID,
		Amount:    r.Amount,
		Reason:    r.Reason,
		Status:    r.Status,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
	}
	if r.ProcessedAt.Valid {
		processed := r.ProcessedAt.Time.Format(time.RFC3339)
		resp.ProcessedAt = &processed
	}
	return resp
}

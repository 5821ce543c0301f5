package dto

import (
	"time"

	"github.com/cuongbtq/payment-gateway/internal/domain"
)

// CreatePaymentRequest represents the request body for creating a payment
type CreatePaymentRequest struct {
	Amount   int64  `json:"amount" binding:"required,gt=0"`
	Currency string `json:"currency" binding:"omitempty,len=3"`
	Method   string `json:"method" binding:"required,oneof=card upi"`
	OrderID  string `json:"order_id" binding:"required,max=255"`
}

// PaymentResponse is returned by create and get payment. Its encoding is
// what the idempotency cache replays.
type PaymentResponse struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Method    string `json:"method"`
	Status    string `json:"status"`
	Captured  bool   `json:"captured"`
	CreatedAt string `json:"created_at"`
}

type CaptureResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Captured bool   `json:"captured"`
}

func NewPaymentResponse(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:        p.ID,
		OrderID:   p.OrderID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Method:    p.Method,
		Status:    p.Status,
		Captured:  p.Captured,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

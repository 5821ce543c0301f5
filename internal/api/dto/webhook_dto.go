package dto

import (
	"time"

	"github.com/cuongbtq/payment-gateway/internal/domain"
	"github.com/samber/lo"
)

const (
	DefaultWebhookPageSize = 10
	MaxWebhookPageSize     = 100
)

// ListWebhooksRequest represents query parameters for listing delivery logs
type ListWebhooksRequest struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset" binding:"min=0"`
}

type WebhookLogDTO struct {
	ID            string  `json:"id"`
	Event         string  `json:"event"`
	Status        string  `json:"status"`
	Attempts      int     `json:"attempts"`
	ResponseCode  *int32  `json:"response_code"`
	LastAttemptAt *string `json:"last_attempt_at"`
	NextRetryAt   *string `json:"next_retry_at"`
	CreatedAt     string  `json:"created_at"`
}

type ListWebhooksResponse struct {
	Data   []WebhookLogDTO `json:"data"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type RetryWebhookResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func NewWebhookLogDTO(l domain.WebhookLog) WebhookLogDTO {
	out := WebhookLogDTO{
		ID:        l.ID,
		Event:     l.Event,
		Status:    l.Status,
		Attempts:  l.Attempts,
		CreatedAt: l.CreatedAt.Format(time.RFC3339),
	}
	if l.ResponseCode.Valid {
		out.ResponseCode = lo.ToPtr(l.ResponseCode.Int32)
	}
	if l.LastAttemptAt.Valid {
		out.LastAttemptAt = lo.ToPtr(l.LastAttemptAt.Time.Format(time.RFC3339))
	}
	if l.NextRetryAt.Valid {
		out.NextRetryAt = lo.ToPtr(l.NextRetryAt.Time.Format(time.RFC3339))
	}
	return out
}

func NewListWebhooksResponse(logs []domain.WebhookLog, limit, offset int) ListWebhooksResponse {
	return ListWebhooksResponse{
		Data:   lo.Map(logs, func(l domain.WebhookLog, _ int) WebhookLogDTO { return NewWebhookLogDTO(l) }),
		Limit:  limit,
		Offset: offset,
	}
}

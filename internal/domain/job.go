package domain

import "encoding/json"

// Job is a unit of work carried by the queue
type Job struct {
	Type    string
	Payload []byte
}

// JobMessage is the wire envelope published to the queue
type JobMessage struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// WebhookPayload is the JSON body POSTed to the merchant
type WebhookPayload struct {
	MerchantID string      `json:"merchant_id"`
	Event      string      `json:"event"`
	Data       WebhookData `json:"data"`
}

type WebhookData struct {
	PaymentID string `json:"payment_id,omitempty"`
	RefundID  string `json:"refund_id,omitempty"`
}

// WebhookJob is the DELIVER_WEBHOOK job payload. LogID is empty on the first
// delivery and set when the job is requeued for an existing log.
type WebhookJob struct {
	LogID   string          `json:"log_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

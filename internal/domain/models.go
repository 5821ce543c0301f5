package domain

import (
	"database/sql"
	"time"
)

// Merchant holds API credentials and webhook configuration
type Merchant struct {
	ID            string         `db:"id"`
	Name          string         `db:"name"`
	Email         string         `db:"email"`
	APIKey        string         `db:"api_key"`
	APISecret     string         `db:"api_secret"`
	WebhookURL    sql.NullString `db:"webhook_url"`
	WebhookSecret sql.NullString `db:"webhook_secret"`
	CreatedAt     time.Time      `db:"created_at"`
}

type Payment struct {
	ID         string    `db:"id"`
	MerchantID string    `db:"merchant_id"`
	OrderID    string    `db:"order_id"`
	Amount     int64     `db:"amount"`
	Currency   string    `db:"currency"`
	Method     string    `db:"method"`
	Status     string    `db:"status"`
	Captured   bool      `db:"captured"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

type Refund struct {
	ID          string       `db:"id"`
	PaymentID   string       `db:"payment_id"`
	MerchantID  string       `db:"merchant_id"`
	Amount      int64        `db:"amount"`
	Reason      string       `db:"reason"`
	Status      string       `db:"status"`
	CreatedAt   time.Time    `db:"created_at"`
	ProcessedAt sql.NullTime `db:"processed_at"`
}

// WebhookLog is a single logical webhook delivery; every attempt updates it in place
type WebhookLog struct {
	ID            string         `db:"id"`
	MerchantID    string         `db:"merchant_id"`
	Event         string         `db:"event"`
	Payload       []byte         `db:"payload"`
	Status        string         `db:"status"`
	Attempts      int            `db:"attempts"`
	LastAttemptAt sql.NullTime   `db:"last_attempt_at"`
	NextRetryAt   sql.NullTime   `db:"next_retry_at"`
	ResponseCode  sql.NullInt32  `db:"response_code"`
	ResponseBody  sql.NullString `db:"response_body"`
	CreatedAt     time.Time      `db:"created_at"`
}

// IsTerminal reports whether the log reached success or failed
func (l *WebhookLog) IsTerminal() bool {
	return l.Status == WebhookStatusSuccess || l.Status == WebhookStatusFailed
}

// IdempotencyRecord caches the response of a payment creation request
type IdempotencyRecord struct {
	Key        string    `db:"key"`
	MerchantID string    `db:"merchant_id"`
	Response   []byte    `db:"response"`
	ExpiresAt  time.Time `db:"expires_at"`
	CreatedAt  time.Time `db:"created_at"`
}

// WebhookAttempt is the outcome of one delivery attempt, applied to a WebhookLog
type WebhookAttempt struct {
	LogID        string
	// PrevAttempts is the attempt count the log held when delivery started.
	// The attempt applies only while the log is pending at that count.
	PrevAttempts int
	Status       string
	Attempts     int
	AttemptedAt  time.Time
	NextRetryAt  *time.Time
	ResponseCode int
	ResponseBody string
}

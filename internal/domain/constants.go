package domain

import "time"

// Job types routed by the dispatcher
const (
	JobTypeProcessPayment = "PROCESS_PAYMENT"
	JobTypeProcessRefund  = "PROCESS_REFUND"
	JobTypeDeliverWebhook = "DELIVER_WEBHOOK"
)

// Payment status constants
const (
	PaymentStatusPending = "pending"
	PaymentStatusSuccess = "success"
	PaymentStatusFailed  = "failed"
)

// Refund status constants
const (
	RefundStatusPending   = "pending"
	RefundStatusProcessed = "processed"
	RefundStatusFailed    = "failed"
)

// Webhook delivery log status constants
const (
	WebhookStatusPending = "pending"
	WebhookStatusSuccess = "success"
	WebhookStatusFailed  = "failed"
)

// Webhook events
const (
	EventPaymentSuccess  = "payment.success"
	EventPaymentFailed   = "payment.failed"
	EventRefundProcessed = "refund.processed"
)

// Payment methods accepted by the API
const (
	MethodCard = "card"
	MethodUPI  = "upi"
)

const (
	// DefaultCurrency is used when a payment request omits the currency
	DefaultCurrency = "INR"

	// IdempotencyTTL is how long a cached payment response stays valid
	IdempotencyTTL = 24 * time.Hour

	// MaxWebhookAttempts is the attempt count at which a delivery is dead-lettered
	MaxWebhookAttempts = 5

	// WebhookRetryDelay is the delay before a failed delivery becomes eligible for retry
	WebhookRetryDelay = 60 * time.Second

	// WebhookRequeueLease pushes nextRetryAt forward when the poller requeues a log
	WebhookRequeueLease = time.Hour
)

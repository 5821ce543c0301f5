// Package processor decides payment outcomes and refund settlement delays.
package processor

import (
	"context"
	"time"
)

// Outcome of a payment attempt
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Result is returned by Processor.Attempt. Latency is how long the caller
// should wait before applying the outcome.
type Result struct {
	Outcome Outcome
	Latency time.Duration
}

// Processor abstracts the payment network
type Processor interface {
	Attempt(ctx context.Context, method string) (Result, error)
	Settle(ctx context.Context) (time.Duration, error)
}

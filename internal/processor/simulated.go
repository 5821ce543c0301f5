package processor

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/cuongbtq/payment-gateway/internal/domain"
)

// SimulatedConfig controls the simulated payment network
type SimulatedConfig struct {
	UPISuccessRate     float64
	DefaultSuccessRate float64
	PaymentLatencyMin  time.Duration
	PaymentLatencyMax  time.Duration
	RefundDelayMin     time.Duration
	RefundDelayMax     time.Duration
}

// DefaultSimulatedConfig mirrors a slow real network
func DefaultSimulatedConfig() SimulatedConfig {
	return SimulatedConfig{
		UPISuccessRate:     0.90,
		DefaultSuccessRate: 0.95,
		PaymentLatencyMin:  5 * time.Second,
		PaymentLatencyMax:  10 * time.Second,
		RefundDelayMin:     3 * time.Second,
		RefundDelayMax:     5 * time.Second,
	}
}

// TestModeSimulatedConfig keeps the success rates and shortens every delay
func TestModeSimulatedConfig() SimulatedConfig {
	cfg := DefaultSimulatedConfig()
	cfg.PaymentLatencyMin = 50 * time.Millisecond
	cfg.PaymentLatencyMax = 100 * time.Millisecond
	cfg.RefundDelayMin = 30 * time.Millisecond
	cfg.RefundDelayMax = 50 * time.Millisecond
	return cfg
}

// Simulated draws outcomes and latencies from a random source
type Simulated struct {
	config SimulatedConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated creates a simulated processor. A nil rng uses a randomly seeded source.
func NewSimulated(config SimulatedConfig, rng *rand.Rand) *Simulated {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Simulated{config: config, rng: rng}
}

func (s *Simulated) Attempt(_ context.Context, method string) (Result, error) {
	rate := s.config.DefaultSuccessRate
	if strings.EqualFold(method, domain.MethodUPI) {
		rate = s.config.UPISuccessRate
	}

	s.mu.Lock()
	roll := s.rng.Float64()
	latency := s.uniform(s.config.PaymentLatencyMin, s.config.PaymentLatencyMax)
	s.mu.Unlock()

	outcome := OutcomeFailure
	if roll < rate {
		outcome = OutcomeSuccess
	}

	return Result{Outcome: outcome, Latency: latency}, nil
}

func (s *Simulated) Settle(_ context.Context) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uniform(s.config.RefundDelayMin, s.config.RefundDelayMax), nil
}

// uniform returns a duration in [lo, hi); callers hold s.mu
func (s *Simulated) uniform(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(s.rng.Int64N(int64(hi-lo)))
}

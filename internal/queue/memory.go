package queue

import (
	"context"
	"sync"

	"github.com/cuongbtq/payment-gateway/internal/domain"
)

// Memory is an unbounded in-process FIFO queue
type Memory struct {
	mu     sync.Mutex
	jobs   []domain.Job
	signal chan struct{}
}

// NewMemory creates an empty in-memory queue
func NewMemory() *Memory {
	return &Memory{signal: make(chan struct{}, 1)}
}

// Enqueue appends the job; it never blocks
func (m *Memory) Enqueue(_ context.Context, job domain.Job) error {
	m.mu.Lock()
	m.jobs = append(m.jobs, job)
	m.mu.Unlock()

	m.notify()
	return nil
}

// Dequeue removes and returns the head job, blocking until one is available
func (m *Memory) Dequeue(ctx context.Context) (domain.Job, error) {
	for {
		m.mu.Lock()
		if len(m.jobs) > 0 {
			job := m.jobs[0]
			m.jobs[0] = domain.Job{}
			m.jobs = m.jobs[1:]
			remaining := len(m.jobs)
			m.mu.Unlock()

			// wake another waiting consumer
			if remaining > 0 {
				m.notify()
			}
			return job, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return domain.Job{}, ctx.Err()
		case <-m.signal:
		}
	}
}

// Len returns the number of queued jobs
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

func (m *Memory) notify() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

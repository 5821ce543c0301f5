package handlers

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/payment-gateway/internal/clock"
	"github.com/cuongbtq/payment-gateway/internal/domain"
	"github.com/cuongbtq/payment-gateway/internal/processor"
	"github.com/cuongbtq/payment-gateway/internal/storage/inmemory"
	"github.com/cuongbtq/payment-gateway/internal/webhook"
)

var testNow = time.Date(2024, 5, 10, 8, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingEnqueuer struct {
	mu   sync.Mutex
	jobs []domain.Job
}

func (r *recordingEnqueuer) EnqueueJob(_ context.Context, jobType string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, domain.Job{Type: jobType, Payload: payload})
}

func (r *recordingEnqueuer) Jobs() []domain.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Job(nil), r.jobs...)
}

type stubProcessor struct {
	result processor.Result
	settle time.Duration
	err    error
}

func (s *stubProcessor) Attempt(context.Context, string) (processor.Result, error) {
	return s.result, s.err
}

func (s *stubProcessor) Settle(context.Context) (time.Duration, error) {
	return s.settle, s.err
}

type transportCall struct {
	url     string
	headers map[string]string
	body    []byte
}

// scriptedTransport replays responses in order, repeating the last one
type scriptedTransport struct {
	mu        sync.Mutex
	responses []webhook.Response
	err       error
	calls     []transportCall
}

func (s *scriptedTransport) Post(_ context.Context, url string, headers map[string]string, body []byte) (webhook.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, transportCall{url: url, headers: headers, body: body})
	if s.err != nil {
		return webhook.Response{}, s.err
	}
	i := min(len(s.calls)-1, len(s.responses)-1)
	return s.responses[i], nil
}

func (s *scriptedTransport) Calls() []transportCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transportCall(nil), s.calls...)
}

var errNetwork = errors.New("dial tcp 10.0.0.1:443: i/o timeout")

func newMerchant(id, url string) domain.Merchant {
	return domain.Merchant{
		ID:            id,
		Name:          "Test Merchant",
		APIKey:        "key_" + id,
		APISecret:     "secret_" + id,
		WebhookURL:    sql.NullString{String: url, Valid: url != ""},
		WebhookSecret: sql.NullString{String: "whsec_" + id, Valid: true},
		CreatedAt:     testNow,
	}
}

type fixture struct {
	store     *inmemory.Store
	enqueuer  *recordingEnqueuer
	clock     *clock.Fake
	transport *scriptedTransport
}

func newFixture() *fixture {
	return &fixture{
		store:     inmemory.NewStore(),
		enqueuer:  &recordingEnqueuer{},
		clock:     clock.NewFake(testNow),
		transport: &scriptedTransport{responses: []webhook.Response{{StatusCode: 200, Body: "ok"}}},
	}
}

func (f *fixture) webhookHandler() *WebhookHandler {
	return NewWebhookHandler(f.store, webhook.NewSender(f.transport), f.clock, discardLogger())
}

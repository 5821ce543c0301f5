package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPConfig points the processor at an external payment network
type HTTPConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTP calls an external payment network. The network call itself carries
// the latency, so results report zero latency.
type HTTP struct {
	config HTTPConfig
	client *http.Client
}

type attemptRequest struct {
	Method string `json:"method"`
}

type attemptResponse struct {
	Status string `json:"status"`
}

type settleResponse struct {
	DelayMS int64 `json:"delay_ms"`
}

// NewHTTP creates an HTTP processor
func NewHTTP(config HTTPConfig) *HTTP {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTP{
		config: config,
		client: &http.Client{Timeout: timeout},
	}
}

func (h *HTTP) Attempt(ctx context.Context, method string) (Result, error) {
	body, err := json.Marshal(attemptRequest{Method: method})
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode attempt request: %w", err)
	}

	var resp attemptResponse
	if err := h.post(ctx, "/attempt", body, &resp); err != nil {
		return Result{}, err
	}

	outcome := OutcomeFailure
	if resp.Status == string(OutcomeSuccess) {
		outcome = OutcomeSuccess
	}
	return Result{Outcome: outcome}, nil
}

func (h *HTTP) Settle(ctx context.Context) (time.Duration, error) {
	var resp settleResponse
	if err := h.post(ctx, "/settle", []byte("{}"), &resp); err != nil {
		return 0, err
	}
	return time.Duration(resp.DelayMS) * time.Millisecond, nil
}

func (h *HTTP) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build processor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.config.APIKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("processor request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("processor returned status %d: %s", resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode processor response: %w", err)
	}
	return nil
}

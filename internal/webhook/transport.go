package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// maxResponseBody bounds how much of a merchant response is kept
const maxResponseBody = 64 << 10

// Response is the merchant's reply to a webhook POST
type Response struct {
	StatusCode int
	Body       string
}

// Transport posts a body to a URL. A non-nil error means no HTTP response was received.
type Transport interface {
	Post(ctx context.Context, url string, headers map[string]string, body []byte) (Response, error)
}

// TransportConfig holds outbound HTTP timeouts
type TransportConfig struct {
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// HTTPTransport is a Transport over net/http
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates a transport with a bounded connect timeout
func NewHTTPTransport(config TransportConfig) *HTTPTransport {
	connectTimeout := config.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}

	dialer := &net.Dialer{Timeout: connectTimeout}
	return &HTTPTransport{
		client: &http.Client{
			Timeout: config.RequestTimeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         dialer.DialContext,
				TLSHandshakeTimeout: connectTimeout,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (t *HTTPTransport) Post(ctx context.Context, url string, headers map[string]string, body []byte) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to build webhook request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Response{}, fmt.Errorf("failed to read webhook response: %w", err)
	}

	return Response{StatusCode: resp.StatusCode, Body: string(respBody)}, nil
}

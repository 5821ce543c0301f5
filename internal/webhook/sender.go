package webhook

import (
	"context"
	"net/http"
)

// Sender signs payloads and posts them through a Transport
type Sender struct {
	transport Transport
}

// NewSender creates a new Sender
func NewSender(transport Transport) *Sender {
	return &Sender{transport: transport}
}

// Send posts the raw payload to url. Transport failures are reported as a
// synthetic 500 response, so Send never returns an error.
func (s *Sender) Send(ctx context.Context, url, secret string, payload []byte) Response {
	headers := map[string]string{
		"Content-Type":  "application/json",
		SignatureHeader: Sign(secret, payload),
	}

	resp, err := s.transport.Post(ctx, url, headers, payload)
	if err != nil {
		return Response{
			StatusCode: http.StatusInternalServerError,
			Body:       "Network Error: " + err.Error(),
		}
	}
	return resp
}

// Succeeded reports whether the merchant acknowledged the webhook
func (r Response) Succeeded() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

package processor

import (
	"context"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTP_Attempt(t *testing.T) {
	tests := []struct {
		name        string
		mock        func()
		wantOutcome Outcome
		wantErr     string
	}{
		{
			name: "success",
			mock: func() {
				gock.New("http://processor.local").
					Post("/attempt").
					MatchHeader("Authorization", "Bearer secret").
					JSON(map[string]string{"method": "card"}).
					Reply(200).
					JSON(map[string]string{"status": "success"})
			},
			wantOutcome: OutcomeSuccess,
		},
		{
			name: "declined",
			mock: func() {
				gock.New("http://processor.local").
					Post("/attempt").
					Reply(200).
					JSON(map[string]string{"status": "declined"})
			},
			wantOutcome: OutcomeFailure,
		},
		{
			name: "server error",
			mock: func() {
				gock.New("http://processor.local").
					Post("/attempt").
					Reply(503).
					BodyString("unavailable")
			},
			wantErr: "processor returned status 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()
			tt.mock()

			p := NewHTTP(HTTPConfig{BaseURL: "http://processor.local", APIKey: "secret"})
			gock.InterceptClient(p.client)

			res, err := p.Attempt(context.Background(), "card")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantOutcome, res.Outcome)
				assert.Zero(t, res.Latency)
			}
			assert.True(t, gock.IsDone())
		})
	}
}

func TestHTTP_Settle(t *testing.T) {
	defer gock.Off()
	gock.New("http://processor.local").
		Post("/settle").
		Reply(200).
		JSON(map[string]int{"delay_ms": 1500})

	p := NewHTTP(HTTPConfig{BaseURL: "http://processor.local"})
	gock.InterceptClient(p.client)

	delay, err := p.Settle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, delay)
	assert.True(t, gock.IsDone())
}

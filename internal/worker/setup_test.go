package worker

import (
	"testing"

	"github.com/cuongbtq/payment-gateway/internal/config"
	"github.com/cuongbtq/payment-gateway/internal/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProcessor(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ProcessorConfig
		want    any
		wantErr bool
	}{
		{name: "simulated", cfg: config.ProcessorConfig{Type: config.ProcessorSimulated}, want: &processor.Simulated{}},
		{name: "simulated test mode", cfg: config.ProcessorConfig{Type: config.ProcessorSimulated, TestMode: true}, want: &processor.Simulated{}},
		{name: "empty defaults to simulated", cfg: config.ProcessorConfig{}, want: &processor.Simulated{}},
		{
			name: "http",
			cfg:  config.ProcessorConfig{Type: config.ProcessorHTTP, HTTP: config.HTTPProcessorConfig{BaseURL: "http://processor.local"}},
			want: &processor.HTTP{},
		},
		{name: "unknown", cfg: config.ProcessorConfig{Type: "stripe"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc, err := NewProcessor(&tt.cfg)

			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, proc)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, proc)
		})
	}
}

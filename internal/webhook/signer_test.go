package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign_KnownVector(t *testing.T) {
	sig := Sign("key", []byte("The quick brown fox jumps over the lazy dog"))
	assert.Equal(t, "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8", sig)
}

func TestSign_Verify(t *testing.T) {
	payload := []byte(`{"merchant_id":"m1","event":"payment.success","data":{"payment_id":"pay_0123456789abcdef"}}`)

	tests := []struct {
		name      string
		secret    string
		payload   []byte
		signature string
		want      bool
	}{
		{name: "matching", secret: "whsec", payload: payload, signature: Sign("whsec", payload), want: true},
		{name: "wrong secret", secret: "other", payload: payload, signature: Sign("whsec", payload), want: false},
		{name: "tampered payload", secret: "whsec", payload: append([]byte(nil), append(payload, ' ')...), signature: Sign("whsec", payload), want: false},
		{name: "not hex", secret: "whsec", payload: payload, signature: "zz", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Verify(tt.secret, tt.payload, tt.signature))
		})
	}
}

func TestSign_IsDeterministicAndLowercaseHex(t *testing.T) {
	a := Sign("s", []byte("{}"))
	b := Sign("s", []byte("{}"))
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.Regexp(t, "^[0-9a-f]+$", a)
}

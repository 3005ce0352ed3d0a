package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyRazorpayWebhookSignature(t *testing.T) {
	payload := []byte(`{"event":"subscription.activated"}`)
	secret := "whsec"
	validSig := SignRazorpayPayload(payload, secret)

	if !VerifyRazorpayWebhookSignature(payload, validSig, secret) {
		t.Fatalf("expected signature to validate")
	}
	assert.True(t, VerifyRazorpayWebhookSignature(payload, " "+validSig+" ", secret))

	flipped := append([]byte{}, payload...)
	flipped[len(flipped)-2] ^= 0x01
	assert.False(t, VerifyRazorpayWebhookSignature(flipped, validSig, secret), "single byte flip must fail")

	assert.False(t, VerifyRazorpayWebhookSignature(payload, validSig, "other"))
	assert.False(t, VerifyRazorpayWebhookSignature(payload, "deadbeef", secret))
	assert.False(t, VerifyRazorpayWebhookSignature(payload, "not-hex", secret))
	assert.False(t, VerifyRazorpayWebhookSignature(payload, "", secret))
	assert.False(t, VerifyRazorpayWebhookSignature(payload, validSig, ""))
	assert.False(t, VerifyRazorpayWebhookSignature(nil, SignRazorpayPayload(nil, secret), secret))
}

package twilio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyAcceptsMatchingSignature(t *testing.T) {
	secret := "s3cr3t"
	url := "https://x/webhook"
	params := map[string]string{"CallSid": "CA1", "CallStatus": "completed"}

	sig := ComputeSignature(secret, url, params)
	assert.True(t, Verify(secret, sig, url, params))
}

func TestVerifyRejectsSingleCharacterMutations(t *testing.T) {
	secret := "s3cr3t"
	url := "https://x/webhook"
	params := map[string]string{"CallSid": "CA1", "CallStatus": "completed"}

	sig := ComputeSignature(secret, url, params)
	require.NotEmpty(t, sig)

	for i := 0; i < len(sig); i++ {
		mutated := []byte(sig)
		mutated[i] ^= 0x01
		assert.False(t, Verify(secret, string(mutated), url, params), "mutation at %d verified", i)
	}
}

func TestVerifyRejectsTamperedParams(t *testing.T) {
	secret := "s3cr3t"
	url := "https://x/webhook"
	params := map[string]string{"CallSid": "CA1", "CallStatus": "completed"}
	sig := ComputeSignature(secret, url, params)

	tampered := map[string]string{"CallSid": "CA2", "CallStatus": "completed"}
	assert.False(t, Verify(secret, sig, url, tampered))

	added := map[string]string{"CallSid": "CA1", "CallStatus": "completed", "Digits": "1"}
	assert.False(t, Verify(secret, sig, url, added))

	assert.False(t, Verify(secret, sig, "https://x/other", params))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	url := "https://x/webhook"
	params := map[string]string{"CallSid": "CA1"}
	sig := ComputeSignature("s3cr3t", url, params)
	assert.False(t, Verify("other", sig, url, params))
}

func TestVerifyFailsClosed(t *testing.T) {
	params := map[string]string{"CallSid": "CA1"}
	sig := ComputeSignature("s3cr3t", "https://x/webhook", params)

	assert.False(t, Verify("", sig, "https://x/webhook", params), "missing secret")
	assert.False(t, Verify("s3cr3t", "", "https://x/webhook", params), "missing signature")
}

func TestComputeSignatureSortsParams(t *testing.T) {
	secret := "s3cr3t"
	url := "https://x/webhook"
	a := ComputeSignature(secret, url, map[string]string{"B": "2", "A": "1"})
	b := ComputeSignature(secret, url, map[string]string{"A": "1", "B": "2"})
	assert.Equal(t, a, b)
}

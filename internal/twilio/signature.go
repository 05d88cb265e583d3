package twilio

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"sort"
	"strings"
)

// SignatureHeader is the header carrying the provider's request signature.
const SignatureHeader = "X-Twilio-Signature"

// ComputeSignature returns the expected signature for a webhook request:
// HMAC-SHA1 over the full URL with the sorted form parameters appended as
// key+value pairs, base64 encoded.
func ComputeSignature(authToken, url string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(url)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params[k])
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks an inbound webhook signature against the shared auth token.
// Fails closed: a missing token or signature never verifies. The comparison
// is constant-time.
func Verify(authToken, signature, url string, params map[string]string) bool {
	if authToken == "" || signature == "" {
		return false
	}
	expected := ComputeSignature(authToken, url, params)
	return hmac.Equal([]byte(expected), []byte(signature))
}

package signature

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
)

// Verifier checks webhook payload signatures. The provider signs the raw
// request body with HMAC-SHA512 and sends the base64 digest in a header.
type Verifier struct {
	secret []byte
}

// NewVerifier creates new Verifier instance
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign returns the base64-encoded HMAC-SHA512 digest of payload.
func (v *Verifier) Sign(payload []byte) string {
	mac := hmac.New(sha512.New, v.secret)
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches payload. Comparison is constant
// time. Any mismatch, including an empty secret or signature, fails closed.
func (v *Verifier) Verify(payload []byte, signature string) bool {
	if len(v.secret) == 0 || signature == "" {
		return false
	}

	mac := hmac.New(sha512.New, v.secret)
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

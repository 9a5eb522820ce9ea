package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"xraymed-saas/internal/domain/ports/adapter"
)

var _ adapter.SignatureVerifier = (*HMACVerifier)(nil)

// HMACVerifier checks payment confirmation signatures. The expected signature
// is the hex HMAC-SHA256 of "{paymentID}|{handle}" under the shared key
// secret, matching what the gateway sends back to the client after checkout.
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

func (v *HMACVerifier) Verify(paymentID, handle, signature string) bool {
	if paymentID == "" || handle == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(paymentID + "|" + handle))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

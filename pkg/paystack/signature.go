package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA512 of the raw webhook body.
const SignatureHeader = "X-Paystack-Signature"

// Sign returns the signature Paystack would send for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature fails closed: an empty secret, empty signature or any
// mismatch is rejected. The comparison is constant time.
func VerifySignature(body []byte, signature, secret string) bool {
	signature = strings.ToLower(strings.TrimSpace(signature))
	if signature == "" || secret == "" {
		return false
	}
	expected := Sign(body, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

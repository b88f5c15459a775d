package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	SignatureHeader = "X-Hub-Signature-256"
	EventHeader     = "X-GitHub-Event"
	DeliveryHeader  = "X-GitHub-Delivery"

	signaturePrefix = "sha256="
)

// Sign returns the header value a sender would attach to body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against the HMAC-SHA256 of body in constant
// time.
func VerifySignature(secret, body []byte, header string) error {
	if len(secret) == 0 {
		return ErrSignatureVerification.Msg("webhook secret is not configured")
	}
	if header == "" {
		return ErrSignatureVerification.Msg("missing signature header")
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return ErrSignatureVerification.Msg("unsupported signature format")
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return ErrSignatureVerification.Msg("malformed signature")
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrSignatureVerification
	}
	return nil
}

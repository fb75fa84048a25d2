package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer computes HMAC-SHA256 signatures for webhook payloads.
type Signer struct{}

// NewSigner returns a new Signer.
func NewSigner() *Signer {
	return &Signer{}
}

// Sign generates the HMAC-SHA256 signature for the given canonical payload.
// Returns a versioned signature in the format "v1=<hex>".
func (s *Signer) Sign(canonical []byte, secret string) string {
	return Sign(canonical, secret)
}

// Sign generates the HMAC-SHA256 signature for the given canonical payload.
// Returns a versioned signature in the format "v1=<hex>".
func Sign(canonical []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(canonical)
	return "v1=" + hex.EncodeToString(mac.Sum(nil))
}

package signature

import "crypto/hmac"

// Verify checks whether the given digest matches the expected HMAC-SHA256
// signature for the canonical payload and secret. The comparison is constant
// time. A malformed or mismatched digest yields false; Verify never fails on
// attacker-controlled input.
func (s *Signer) Verify(canonical []byte, digest, secret string) bool {
	return Verify(canonical, digest, secret)
}

// Verify checks whether the given digest matches the expected HMAC-SHA256
// signature for the canonical payload and secret. The comparison is constant
// time. A malformed or mismatched digest yields false; Verify never fails on
// attacker-controlled input.
func Verify(canonical []byte, digest, secret string) bool {
	expected := Sign(canonical, secret)
	return hmac.Equal([]byte(expected), []byte(digest))
}

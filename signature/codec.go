// Package signature provides payload canonicalization and HMAC-SHA256
// webhook signing and verification.
//
// The same codec is used on both sides of the system: ingestion verifies the
// caller's digest, and the dispatch sender signs the outbound payload. Both
// operate on the canonical form, so semantically identical payloads always
// produce the same digest regardless of construction order.
package signature

import (
	"encoding/json"
	"errors"
)

// ErrNotCanonicalizable is returned when a payload cannot be serialized.
var ErrNotCanonicalizable = errors.New("signature: payload cannot be canonicalized")

// Canonicalize serializes a payload into its canonical byte form:
// JSON with lexicographically ordered keys and no incidental whitespace.
// Nested objects are ordered recursively.
func Canonicalize(payload map[string]any) ([]byte, error) {
	if payload == nil {
		return nil, ErrNotCanonicalizable
	}

	// encoding/json emits map keys in sorted order and compact output,
	// which is exactly the canonical form the codec requires.
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Join(ErrNotCanonicalizable, err)
	}

	return b, nil
}

package signature_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/hookline/hookline/signature"
)

func TestCanonicalizeKeyOrderIrrelevant(t *testing.T) {
	a := map[string]any{
		"zebra":  1,
		"apple":  "x",
		"nested": map[string]any{"b": 2, "a": 1},
	}
	b := map[string]any{
		"nested": map[string]any{"a": 1, "b": 2},
		"apple":  "x",
		"zebra":  1,
	}

	ca, err := signature.Canonicalize(a)
	if err != nil {
		t.Fatal(err)
	}
	cb, err := signature.Canonicalize(b)
	if err != nil {
		t.Fatal(err)
	}

	if string(ca) != string(cb) {
		t.Errorf("canonical forms differ: %s vs %s", ca, cb)
	}
}

func TestCanonicalizeCompact(t *testing.T) {
	c, err := signature.Canonicalize(map[string]any{"b": 2, "a": 1})
	if err != nil {
		t.Fatal(err)
	}
	if string(c) != `{"a":1,"b":2}` {
		t.Errorf("Canonicalize() = %s, want sorted compact JSON", c)
	}
}

func TestCanonicalizeNilPayload(t *testing.T) {
	if _, err := signature.Canonicalize(nil); err == nil {
		t.Error("Canonicalize(nil) should fail")
	}
}

func TestCanonicalizeUnserializable(t *testing.T) {
	if _, err := signature.Canonicalize(map[string]any{"ch": make(chan int)}); err == nil {
		t.Error("Canonicalize() should fail for unserializable values")
	}
}

func TestSignKnownVector(t *testing.T) {
	signer := signature.NewSigner()
	canonical := []byte(`{"event":"test"}`)
	secret := "whsec_testsecret123"

	got := signer.Sign(canonical, secret)

	// Compute expected HMAC-SHA256 independently.
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(canonical)
	expected := "v1=" + hex.EncodeToString(mac.Sum(nil))

	if got != expected {
		t.Errorf("Sign() = %q, want %q", got, expected)
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	canonical, err := signature.Canonicalize(map[string]any{"order_id": "ord_01h2x", "amount": 9900})
	if err != nil {
		t.Fatal(err)
	}
	secret := "whsec_roundtripsecret"

	sig := signature.Sign(canonical, secret)
	if !signature.Verify(canonical, sig, secret) {
		t.Error("Verify() returned false for valid signature")
	}
}

func TestVerifyTamperedPayload(t *testing.T) {
	secret := "whsec_tampersecret"
	sig := signature.Sign([]byte(`{"original":true}`), secret)

	if signature.Verify([]byte(`{"original":false}`), sig, secret) {
		t.Error("Verify() returned true for tampered payload")
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	canonical := []byte(`{"data":"value"}`)
	sig := signature.Sign(canonical, "whsec_correct")

	if signature.Verify(canonical, sig, "whsec_wrong") {
		t.Error("Verify() returned true for wrong secret")
	}
}

func TestVerifyMalformedDigest(t *testing.T) {
	canonical := []byte(`{"data":"value"}`)

	for _, malformed := range []string{"", "v1=", "garbage", "v1=nothex", "v2=deadbeef"} {
		if signature.Verify(canonical, malformed, "whsec_secret") {
			t.Errorf("Verify() returned true for malformed digest %q", malformed)
		}
	}
}

func TestSignatureFormat(t *testing.T) {
	sig := signature.Sign([]byte("test"), "secret")

	if len(sig) < 3 || sig[:3] != "v1=" {
		t.Errorf("signature should start with 'v1=', got %q", sig)
	}

	// v1= prefix (3) + 64 hex chars (SHA256 = 32 bytes = 64 hex)
	if len(sig) != 67 {
		t.Errorf("expected signature length 67, got %d", len(sig))
	}
}

func TestGenerateSecret(t *testing.T) {
	s1 := signature.GenerateSecret()
	s2 := signature.GenerateSecret()

	if len(s1) != 70 || s1[:6] != "whsec_" {
		t.Errorf("unexpected secret format: %q", s1)
	}
	if s1 == s2 {
		t.Error("GenerateSecret() returned identical secrets")
	}
}

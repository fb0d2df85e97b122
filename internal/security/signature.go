package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/hireloop/hireloop/internal/core"
)

// VerifySignature checks a provider webhook signature of the form
// "sha256=<hex>" against the HMAC-SHA256 of the exact raw request bytes.
// Every failure mode wraps ErrSignatureInvalid so callers match one sentinel.
//
// The raw body must be captured before any JSON parsing: re-serializing a
// parsed payload changes whitespace and key order and produces false
// negatives. Comparison is constant-time.
func VerifySignature(rawBody []byte, header string, secret []byte) error {
	if len(secret) == 0 {
		return fmt.Errorf("no webhook secret configured: %w", core.ErrSignatureInvalid)
	}
	if header == "" {
		return fmt.Errorf("missing signature header: %w", core.ErrSignatureInvalid)
	}

	hexSig := strings.TrimPrefix(header, "sha256=")
	if hexSig == header {
		return fmt.Errorf("unknown signature scheme: %w", core.ErrSignatureInvalid)
	}
	got, err := hex.DecodeString(hexSig)
	if err != nil {
		return fmt.Errorf("malformed signature hex: %w", core.ErrSignatureInvalid)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(rawBody)
	want := mac.Sum(nil)

	if !hmac.Equal(got, want) {
		return fmt.Errorf("signature mismatch: %w", core.ErrSignatureInvalid)
	}
	return nil
}

// Sign computes the signature header value for a payload. Used by tests and
// by local tooling that replays webhook fixtures.
func Sign(rawBody []byte, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(rawBody)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

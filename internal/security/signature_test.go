package security

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/hireloop/internal/core"
)

var testSecret = []byte("webhook-test-secret")

func TestVerifySignatureRoundTrip(t *testing.T) {
	body := []byte(`{"events":[{"type":"message","message_id":"wamid-1"}]}`)
	header := Sign(body, testSecret)

	assert.NoError(t, VerifySignature(body, header, testSecret))
}

func TestVerifySignatureRejectsTampering(t *testing.T) {
	body := []byte(`{"events":[{"type":"message","message_id":"wamid-1"}]}`)
	header := Sign(body, testSecret)

	tampered := append([]byte(nil), body...)
	tampered[10] ^= 0x01

	err := VerifySignature(tampered, header, testSecret)
	require.Error(t, err, "single flipped byte must fail")
	assert.ErrorIs(t, err, core.ErrSignatureInvalid)
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	body := []byte(`{"ok":true}`)
	header := Sign(body, []byte("other-secret"))

	assert.ErrorIs(t, VerifySignature(body, header, testSecret), core.ErrSignatureInvalid)
}

func TestVerifySignatureMalformedHeader(t *testing.T) {
	body := []byte(`{"ok":true}`)

	assert.ErrorIs(t, VerifySignature(body, "", testSecret), core.ErrSignatureInvalid)
	assert.ErrorIs(t, VerifySignature(body, "md5=abcdef", testSecret), core.ErrSignatureInvalid, "unknown scheme")
	assert.ErrorIs(t, VerifySignature(body, "sha256=not-hex", testSecret), core.ErrSignatureInvalid)
	assert.ErrorIs(t, VerifySignature(body, Sign(body, testSecret), nil), core.ErrSignatureInvalid, "no secret configured")
}

// Re-serializing a parsed payload changes whitespace and key order; the
// verifier must only ever see the exact raw bytes.
func TestVerifySignatureSensitiveToReserialization(t *testing.T) {
	raw := []byte(`{"b": 2, "a": 1}`)
	header := Sign(raw, testSecret)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(raw, &parsed))
	reserialized, err := json.Marshal(parsed)
	require.NoError(t, err)

	require.NotEqual(t, raw, reserialized)
	assert.NoError(t, VerifySignature(raw, header, testSecret))
	assert.ErrorIs(t, VerifySignature(reserialized, header, testSecret), core.ErrSignatureInvalid)
}

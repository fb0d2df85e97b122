package rtc

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIssuer(t *testing.T, ttl time.Duration) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer("api-key", "api-secret-api-secret", ttl)
	require.NoError(t, err)
	return issuer
}

func TestIssueCredential(t *testing.T) {
	issuer := testIssuer(t, time.Hour)

	cred, err := issuer.Issue("itv-room-1", "Jane")
	require.NoError(t, err)

	assert.Equal(t, "itv-room-1", cred.Room)
	assert.Equal(t, "Jane", cred.Identity)
	assert.WithinDuration(t, time.Now().Add(time.Hour), cred.ExpiresAt, 5*time.Second)

	grants, identity, err := issuer.Verify(cred.Token)
	require.NoError(t, err)
	assert.Equal(t, "itv-room-1", grants.Room)
	assert.Equal(t, "Jane", identity)
	assert.True(t, grants.Join)
	assert.True(t, grants.Publish)
	assert.True(t, grants.Subscribe)
}

func TestIssueRequiresRoomAndIdentity(t *testing.T) {
	issuer := testIssuer(t, time.Hour)

	_, err := issuer.Issue("", "Jane")
	assert.Error(t, err)
	_, err = issuer.Issue("itv-room-1", "")
	assert.Error(t, err)
}

func TestNewTokenIssuerRequiresKeys(t *testing.T) {
	_, err := NewTokenIssuer("", "secret", time.Hour)
	assert.Error(t, err)
	_, err = NewTokenIssuer("key", "", time.Hour)
	assert.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	issuer := testIssuer(t, time.Hour)

	cred, err := issuer.IssueWithTTL("itv-room-1", "Jane", -time.Minute)
	require.NoError(t, err)

	_, _, err = issuer.Verify(cred.Token)
	assert.Error(t, err, "expired credential must not verify")
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	issuer := testIssuer(t, time.Hour)
	other, err := NewTokenIssuer("api-key", "a-different-secret", time.Hour)
	require.NoError(t, err)

	cred, err := other.Issue("itv-room-1", "Jane")
	require.NoError(t, err)

	_, _, err = issuer.Verify(cred.Token)
	assert.Error(t, err)
}

func TestVerifyRejectsUnsignedToken(t *testing.T) {
	issuer := testIssuer(t, time.Hour)

	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "Jane"})
	unsigned, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, _, err = issuer.Verify(unsigned)
	assert.Error(t, err, "alg=none must be rejected")
}

func TestRefreshExtendsExpiry(t *testing.T) {
	issuer := testIssuer(t, time.Hour)

	first, err := issuer.Issue("itv-room-1", "Jane")
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond) // exp has second granularity

	second, err := issuer.Refresh("itv-room-1", "Jane")
	require.NoError(t, err)

	assert.True(t, second.ExpiresAt.After(first.ExpiresAt))
	assert.Equal(t, first.Room, second.Room)
	assert.Equal(t, first.Identity, second.Identity)
}

func TestNearExpiry(t *testing.T) {
	cred := &Credential{ExpiresAt: time.Now().Add(2 * time.Minute)}

	assert.True(t, cred.NearExpiry(5*time.Minute))
	assert.False(t, cred.NearExpiry(time.Minute))
}

package token

import (
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/eventpass/internal/credential/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClaims(now time.Time) domain.TokenClaims {
	return domain.TokenClaims{
		RegistrationID: 11,
		EventID:        22,
		UserID:         33,
		OrgID:          44,
		Nonce:          "01JAR3M9X5T2Q8N4K7VZ6B1C0D",
		IssuedAt:       now,
	}
}

func TestSignAndVerify(t *testing.T) {
	signer, err := NewSigner("super-secret")
	require.NoError(t, err)
	now := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

	tok, err := signer.Sign(testClaims(now))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(tok, "."))

	got, err := signer.Verify(tok, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(11), got.RegistrationID.Int64())
	assert.Equal(t, int64(44), got.OrgID.Int64())
	assert.Equal(t, now, got.IssuedAt)
	assert.Nil(t, got.ExpiresAt)
}

func TestVerifyRejectsTampering(t *testing.T) {
	signer, err := NewSigner("super-secret")
	require.NoError(t, err)
	other, err := NewSigner("other-secret")
	require.NoError(t, err)
	now := time.Now()

	tok, err := signer.Sign(testClaims(now))
	require.NoError(t, err)

	_, err = other.Verify(tok, now)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	body, sig, _ := strings.Cut(tok, ".")
	forged, err := signer.Sign(domain.TokenClaims{RegistrationID: 12, OrgID: 44, Nonce: "x", IssuedAt: now})
	require.NoError(t, err)
	forgedBody, _, _ := strings.Cut(forged, ".")

	for _, candidate := range []string{"", "abc", body, body + ".", forgedBody + "." + sig, "." + sig} {
		_, err := signer.Verify(candidate, now)
		assert.ErrorIs(t, err, domain.ErrInvalidToken, candidate)
	}
}

func TestVerifyEnforcesExpiry(t *testing.T) {
	signer, err := NewSigner("super-secret")
	require.NoError(t, err)
	now := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	expires := now.Add(24 * time.Hour)
	c := testClaims(now)
	c.ExpiresAt = &expires

	tok, err := signer.Sign(c)
	require.NoError(t, err)

	_, err = signer.Verify(tok, now.Add(23*time.Hour))
	require.NoError(t, err)
	_, err = signer.Verify(tok, expires)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestNewSignerRequiresSecret(t *testing.T) {
	_, err := NewSigner("  ")
	assert.ErrorIs(t, err, domain.ErrMissingSecret)
}

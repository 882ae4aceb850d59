// Package token encodes QR credential claims as
// base64url(json) "." base64url(hmac-sha256).
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventpass/internal/credential/domain"
	"golang.org/x/crypto/hkdf"
)

const keyInfo = "eventpass/qr-credential/v1"

type claims struct {
	RegistrationID snowflake.ID `json:"rid"`
	EventID        snowflake.ID `json:"eid"`
	UserID         snowflake.ID `json:"uid"`
	OrgID          snowflake.ID `json:"oid"`
	Nonce          string       `json:"n"`
	IssuedAt       int64        `json:"iat"`
	ExpiresAt      int64        `json:"exp,omitempty"`
}

type Signer struct {
	key []byte
}

// NewSigner derives the signing key from the configured secret so the raw
// secret never keys the MAC directly.
func NewSigner(secret string) (*Signer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, domain.ErrMissingSecret
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, err
	}
	return &Signer{key: key}, nil
}

func (s *Signer) Sign(c domain.TokenClaims) (string, error) {
	payload := claims{
		RegistrationID: c.RegistrationID,
		EventID:        c.EventID,
		UserID:         c.UserID,
		OrgID:          c.OrgID,
		Nonce:          c.Nonce,
		IssuedAt:       c.IssuedAt.Unix(),
	}
	if c.ExpiresAt != nil {
		payload.ExpiresAt = c.ExpiresAt.Unix()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	body := base64.RawURLEncoding.EncodeToString(raw)
	return body + "." + base64.RawURLEncoding.EncodeToString(s.mac(body)), nil
}

// Verify checks the signature before looking at the payload, then expiry.
// Only an authentic token can report ErrTokenExpired.
func (s *Signer) Verify(token string, now time.Time) (domain.TokenClaims, error) {
	body, sig, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || body == "" || sig == "" {
		return domain.TokenClaims{}, domain.ErrInvalidToken
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil || !hmac.Equal(got, s.mac(body)) {
		return domain.TokenClaims{}, domain.ErrInvalidToken
	}

	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return domain.TokenClaims{}, domain.ErrInvalidToken
	}
	var payload claims
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.TokenClaims{}, domain.ErrInvalidToken
	}
	if payload.RegistrationID == 0 || payload.OrgID == 0 || payload.Nonce == "" {
		return domain.TokenClaims{}, domain.ErrInvalidToken
	}

	out := domain.TokenClaims{
		RegistrationID: payload.RegistrationID,
		EventID:        payload.EventID,
		UserID:         payload.UserID,
		OrgID:          payload.OrgID,
		Nonce:          payload.Nonce,
		IssuedAt:       time.Unix(payload.IssuedAt, 0).UTC(),
	}
	if payload.ExpiresAt != 0 {
		expiresAt := time.Unix(payload.ExpiresAt, 0).UTC()
		if !now.Before(expiresAt) {
			return domain.TokenClaims{}, domain.ErrTokenExpired
		}
		out.ExpiresAt = &expiresAt
	}
	return out, nil
}

func (s *Signer) mac(body string) []byte {
	m := hmac.New(sha256.New, s.key)
	_, _ = m.Write([]byte(body))
	return m.Sum(nil)
}

package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	Issue(ctx context.Context, registrationID snowflake.ID) (Credential, error)
	Decode(ctx context.Context, token string) (TokenClaims, error)
	Revoke(ctx context.Context, registrationID snowflake.ID) error
	RevokeTx(ctx context.Context, tx *gorm.DB, orgID, registrationID snowflake.ID) error
}

var (
	ErrInvalidOrganization      = errors.New("invalid_organization")
	ErrRegistrationNotConfirmed = errors.New("registration_not_confirmed")
	ErrInvalidToken             = errors.New("invalid_token")
	ErrTokenRevoked             = errors.New("token_revoked")
	ErrTokenExpired             = errors.New("token_expired")
	ErrMissingSecret            = errors.New("qr_token_secret_missing")
)

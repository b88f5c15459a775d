// Package auth validates the bearer tokens issued by the identity service and
// exposes the caller to handlers through atlascommon.UserContext. It does not
// make authorization decisions beyond the admin flag.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/tansive/atlas/internal/atlassrv/atlascommon"
	"github.com/tansive/atlas/internal/atlassrv/config"
	"github.com/tansive/atlas/internal/common/apperrors"
	"github.com/tansive/atlas/internal/common/uuid"
)

// Claims carried by an atlas bearer token.
type Claims struct {
	Admin bool `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator signs and verifies HS256 tokens with a shared key.
type Authenticator struct {
	key    []byte
	issuer string
	skew   time.Duration
	now    func() time.Time
}

func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	return &Authenticator{
		key:    []byte(cfg.SigningKey),
		issuer: cfg.Issuer,
		skew:   cfg.GetClockSkew(),
		now:    time.Now,
	}
}

// CreateToken mints a token for userID that expires after ttl.
func (a *Authenticator) CreateToken(userID uuid.UUID, admin bool, ttl time.Duration) (string, time.Time, apperrors.Error) {
	now := a.now()
	expiry := now.Add(ttl)
	claims := Claims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
			ID:        uuid.UUID7().String(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.key)
	if err != nil {
		return "", time.Time{}, ErrTokenGeneration.Err(err)
	}
	return signed, expiry, nil
}

// ValidateToken verifies tokenString and returns the caller it identifies.
func (a *Authenticator) ValidateToken(ctx context.Context, tokenString string) (*atlascommon.UserContext, apperrors.Error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(a.skew),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.key, nil
	}, opts...)
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Msg("failed to parse token")
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrInvalidToken.Msg("token has expired")
		}
		return nil, ErrUnableToParseToken.Err(err)
	}
	if !token.Valid {
		return nil, ErrUnableToParseToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken.Msg("subject is not a user id")
	}
	return &atlascommon.UserContext{UserID: userID, Admin: claims.Admin}, nil
}

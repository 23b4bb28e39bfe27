package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rocketscienceinc/connect4-backend/internal/apperror"
)

const defaultTokenTTL = 24 * time.Hour

var errMissingSigningSecret = errors.New("signing secret must be provided")

type AuthService interface {
	GenerateToken(userID string) (string, time.Time, error)
	ValidateToken(token string) (string, error)
	NewAnonymousUser() (userID, token string, expiresAt time.Time, err error)
}

type AuthConfig struct {
	SecretKey string
	Issuer    string
	TokenTTL  time.Duration
	Clock     func() time.Time
}

type authServiceImpl struct {
	secretKey []byte
	issuer    string
	tokenTTL  time.Duration
	clock     func() time.Time
}

func NewAuthService(conf AuthConfig) AuthService {
	ttl := conf.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	clock := conf.Clock
	if clock == nil {
		clock = time.Now
	}

	return &authServiceImpl{
		secretKey: []byte(conf.SecretKey),
		issuer:    conf.Issuer,
		tokenTTL:  ttl,
		clock:     clock,
	}
}

// GenerateToken - HS256 token whose subject is the opaque user id.
func (that *authServiceImpl) GenerateToken(userID string) (string, time.Time, error) {
	if len(that.secretKey) == 0 {
		return "", time.Time{}, errMissingSigningSecret
	}

	now := that.clock().UTC()
	expiresAt := now.Add(that.tokenTTL)

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    that.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(that.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateToken - returns the caller id, or ErrUnauthenticated for anything that does not verify.
func (that *authServiceImpl) ValidateToken(token string) (string, error) {
	if token == "" {
		return "", apperror.ErrUnauthenticated
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", token.Method.Alg())
			}
			return that.secretKey, nil
		},
		jwt.WithIssuer(that.issuer),
		jwt.WithTimeFunc(that.clock),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperror.ErrUnauthenticated, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: empty subject", apperror.ErrUnauthenticated)
	}

	return claims.Subject, nil
}

// NewAnonymousUser - signs in a caller with no account under a fresh id.
func (that *authServiceImpl) NewAnonymousUser() (string, string, time.Time, error) {
	userID := uuid.NewString()

	token, expiresAt, err := that.GenerateToken(userID)
	if err != nil {
		return "", "", time.Time{}, err
	}

	return userID, token, expiresAt, nil
}

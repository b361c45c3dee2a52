package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// RegisteredClaims are the RFC 7519 registered claims. Embed it in custom claims.
type RegisteredClaims = gojwt.RegisteredClaims

// Claims is implemented by every claims type accepted by Generate and Parse.
type Claims = gojwt.Claims

// NewNumericDate converts t to a JWT NumericDate with second precision.
func NewNumericDate(t time.Time) *gojwt.NumericDate {
	return gojwt.NewNumericDate(t)
}

// Service handles token generation and validation using HMAC-SHA256.
type Service struct {
	signingKey []byte
	now        func() time.Time
	leeway     time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithTimeFunc overrides the clock used to validate temporal claims.
func WithTimeFunc(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLeeway allows some clock skew when validating exp and nbf.
func WithLeeway(d time.Duration) Option {
	return func(s *Service) {
		s.leeway = d
	}
}

// New creates a Service with the provided signing key.
func New(signingKey []byte, opts ...Option) (*Service, error) {
	if len(signingKey) == 0 {
		return nil, ErrMissingSigningKey
	}

	s := &Service{
		signingKey: signingKey,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewFromString is New for string keys.
func NewFromString(signingKey string, opts ...Option) (*Service, error) {
	return New([]byte(signingKey), opts...)
}

// Generate signs claims and returns the compact token string.
func (s *Service) Generate(claims Claims) (string, error) {
	if claims == nil {
		return "", ErrMissingClaims
	}

	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Parse verifies the token signature and temporal claims and decodes it into claims.
// Tokens without an exp claim are rejected.
func (s *Service) Parse(tokenString string, claims Claims) error {
	if claims == nil {
		return ErrMissingClaims
	}
	if tokenString == "" {
		return ErrMissingToken
	}

	_, err := gojwt.ParseWithClaims(tokenString, claims,
		func(*gojwt.Token) (any, error) { return s.signingKey, nil },
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithTimeFunc(s.now),
		gojwt.WithLeeway(s.leeway),
		gojwt.WithExpirationRequired(),
		gojwt.WithIssuedAt(),
	)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, gojwt.ErrTokenExpired):
		return errors.Join(ErrExpiredToken, err)
	case errors.Is(err, gojwt.ErrTokenSignatureInvalid):
		return errors.Join(ErrInvalidSignature, err)
	default:
		return errors.Join(ErrInvalidToken, err)
	}
}

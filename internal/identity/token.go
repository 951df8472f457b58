// Package identity validates and mints the HMAC bearer tokens used on
// the API surface and on the proxy-to-upstream leg.
package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Config holds the token settings.
type Config struct {
	// Enabled turns bearer auth on for the API surface. The token
	// service itself works regardless, so a proxy deployment can mint
	// upstream credentials with auth disabled locally.
	Enabled bool `yaml:"enabled"`
	// Secret is the shared HMAC signing key.
	Secret string `yaml:"secret"`
	// Issuer is stamped into and required from every token.
	Issuer string `yaml:"issuer"`
	// TokenTTL bounds the lifetime of minted tokens.
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// ApplyDefaults fills in missing values with defaults.
func (c *Config) ApplyDefaults() {
	if c.Issuer == "" {
		c.Issuer = "catsync"
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = 24 * time.Hour
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Enabled && c.Secret == "" {
		return fmt.Errorf("identity secret is required when auth is enabled")
	}
	return nil
}

// Claims is the token payload.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// TokenService signs and validates tokens with a shared secret.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenService creates a token service from the config.
func NewTokenService(cfg Config) (*TokenService, error) {
	cfg.ApplyDefaults()
	if cfg.Secret == "" {
		return nil, errors.New("signing secret cannot be empty")
	}
	return &TokenService{secret: []byte(cfg.Secret), issuer: cfg.Issuer, ttl: cfg.TokenTTL}, nil
}

// GenerateServiceToken mints a token for service-to-service calls, such
// as the proxy's upstream credential.
func (s *TokenService) GenerateServiceToken(serviceName string) (string, error) {
	now := time.Now()
	claims := Claims{
		Roles: []string{"service:" + serviceName},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "service:" + serviceName,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses and verifies a token string.
func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/veracore/veracore/internal/domain"
	"github.com/veracore/veracore/internal/ports"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Service issues and validates HMAC-signed JWTs carrying the caller's
// principal and capability claims.
type Service struct {
	secret []byte
	ttl    time.Duration
}

// NewService builds a token service from a shared HMAC secret.
func NewService(secret string, ttl time.Duration) (*Service, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	return &Service{secret: []byte(secret), ttl: ttl}, nil
}

// Issue signs a token with principal and capability claims.
func (s *Service) Issue(claims ports.TokenClaims) (string, error) {
	caps := make([]string, len(claims.Capabilities))
	for i, c := range claims.Capabilities {
		caps[i] = string(c)
	}
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"principal":    string(claims.Principal),
		"capabilities": caps,
		"iat":          now.Unix(),
		"exp":          now.Add(s.ttl).Unix(),
	})
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token, returning its claims.
func (s *Service) Validate(tokenString string) (*ports.TokenClaims, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !t.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	principal, _ := mapClaims["principal"].(string)
	if principal == "" {
		return nil, ErrInvalidToken
	}
	claims := &ports.TokenClaims{Principal: domain.Principal(principal)}
	if rawCaps, ok := mapClaims["capabilities"].([]interface{}); ok {
		for _, rc := range rawCaps {
			if c, ok := rc.(string); ok {
				claims.Capabilities = append(claims.Capabilities, domain.Capability(c))
			}
		}
	}
	return claims, nil
}

package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// BcryptService hashes and verifies operator secrets.
type BcryptService struct {
	cost int
}

// NewBcryptService builds a service with the given cost, defaulting to
// bcrypt's standard cost when zero.
func NewBcryptService(cost int) *BcryptService {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptService{cost: cost}
}

// Hash returns the bcrypt hash of a secret.
func (s *BcryptService) Hash(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("secret cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether secret matches the stored hash.
func (s *BcryptService) Verify(secret, hash string) (bool, error) {
	if hash == "" || secret == "" {
		return false, fmt.Errorf("secret and hash cannot be empty")
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if err != nil {
		if err == bcrypt.ErrMismatchedHashAndPassword {
			return false, nil
		}
		return false, fmt.Errorf("failed to compare secret: %w", err)
	}
	return true, nil
}

package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrEmptyPassword is returned when hashing an empty password.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrPasswordTooLong is returned for passwords bcrypt would truncate.
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
	// ErrInvalidHashFormat is returned when a stored hash cannot be parsed.
	ErrInvalidHashFormat = errors.New("invalid password hash format")
)

const maxPasswordBytes = 72

// PasswordHasher hashes and verifies passwords with bcrypt at a fixed cost.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a hasher using cost, clamped to bcrypt's valid
// range. A zero cost selects bcrypt.DefaultCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	switch {
	case cost == 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &PasswordHasher{cost: cost}
}

// Cost returns the work factor used for new hashes.
func (h *PasswordHasher) Cost() int {
	return h.cost
}

// Hash returns a salted bcrypt hash of plaintext.
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	if len(plaintext) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches hash. A mismatch is not an error;
// only a hash that cannot be parsed is.
func (h *PasswordHasher) Verify(plaintext, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %v", ErrInvalidHashFormat, err)
}

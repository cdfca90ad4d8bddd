package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is the shortest password accepted on register and reset
	MinPasswordLength = 6
	// BCryptCost is the cost factor for bcrypt hashing
	BCryptCost = 10
	// ResetCodeLength is the number of digits in a password reset code
	ResetCodeLength = 6
)

// ValidatePassword checks minimal password requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// HashPassword hashes a plaintext password using bcrypt
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BCryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword compares a candidate password with its hash
func VerifyPassword(hash, candidate string) bool {
	if strings.TrimSpace(hash) == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}

// GenerateResetCode returns a random zero-padded numeric code.
func GenerateResetCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < ResetCodeLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate reset code: %w", err)
	}
	return fmt.Sprintf("%0*d", ResetCodeLength, n.Int64()), nil
}

// GenerateResetToken returns a random v4 UUID for the emailed reset link.
func GenerateResetToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	return id.String(), nil
}

// HashResetSecret returns the hex SHA-256 of a reset code or token. Only
// the hash is persisted.
func HashResetSecret(secret string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(secret)))
	return hex.EncodeToString(sum[:])
}

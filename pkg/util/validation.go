package util

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	// MaxEmailLength is the maximum length of an email address
	MaxEmailLength = 254
	// MaxNameLength is the maximum length of a display name
	MaxNameLength = 100
)

// validate applies the same "email" rule request binding uses.
var validate = validator.New()

// NormalizeEmail trims and lower-cases an address and checks its format.
func NormalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(strings.ToLower(raw))
	if email == "" {
		return "", fmt.Errorf("email is required")
	}
	if len(email) > MaxEmailLength {
		return "", fmt.Errorf("email exceeds maximum length")
	}
	if err := validate.Var(email, "required,email"); err != nil {
		return "", fmt.Errorf("invalid email format")
	}
	return email, nil
}

// NormalizeName trims a display name, deriving one from the email local part
// when empty.
func NormalizeName(name, email string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		local, _, _ := strings.Cut(email, "@")
		name = local
	}
	if name == "" {
		return "", fmt.Errorf("name is required")
	}
	if len(name) > MaxNameLength {
		return "", fmt.Errorf("name exceeds maximum length")
	}
	return name, nil
}

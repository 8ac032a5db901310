// Package validation provides input validation utilities
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	usernameRegex = regexp.MustCompile(`^[\w.@+-]+$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9\-]+(\.[a-zA-Z0-9\-]+)*\.[a-zA-Z]{2,}$`)
	allDigits     = regexp.MustCompile(`^[0-9]+$`)
)

var commonPasswords = map[string]struct{}{
	"password":   {},
	"password1":  {},
	"12345678":   {},
	"123456789":  {},
	"qwertyuiop": {},
	"iloveyou":   {},
	"sunshine1":  {},
	"football":   {},
	"baseball":   {},
	"11111111":   {},
}

// ValidatePassword checks length and rejects numeric-only or well-known passwords.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}
	if n > 128 {
		return fmt.Errorf("password must not exceed 128 characters")
	}
	if allDigits.MatchString(password) {
		return fmt.Errorf("password cannot be entirely numeric")
	}
	if _, common := commonPasswords[strings.ToLower(password)]; common {
		return fmt.Errorf("password is too common")
	}
	return nil
}

// ValidateUsername checks if a username meets requirements
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if utf8.RuneCountInString(username) > 150 {
		return fmt.Errorf("username must not exceed 150 characters")
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username may contain only letters, digits and @/./+/-/_")
	}
	// "me" collides with the /users/me/ route.
	if strings.EqualFold(username, "me") {
		return fmt.Errorf("username \"me\" is reserved")
	}
	return nil
}

// ValidateEmail checks basic email format
func ValidateEmail(email string) error {
	if len(email) > 254 {
		return fmt.Errorf("email must not exceed 254 characters")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

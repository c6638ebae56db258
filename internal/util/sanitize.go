package util

import (
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"aakar-gateway/internal/model"
	"aakar-gateway/pkg/apierror"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,20}$`)
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// NormalizeFullName drops control and invisible characters and collapses
// runs of whitespace into a single space.
func NormalizeFullName(name string) string {
	builder := strings.Builder{}
	builder.Grow(len(name))

	for _, char := range name {
		if unicode.IsControl(char) && !unicode.IsSpace(char) {
			continue
		}
		if isInvisibleUnicode(char) {
			continue
		}
		builder.WriteRune(char)
	}

	return strings.Join(strings.Fields(builder.String()), " ")
}

// NormalizeIdentifier is the canonical form used for username and email
// comparison.
func NormalizeIdentifier(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// ValidateUsername expects an already normalized username.
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return validationError("Username must be 3-20 characters: letters, numbers or underscore", "username")
	}
	return nil
}

// ValidateEmail expects an already normalized email.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return validationError("Please provide a valid email address", "email")
	}
	return nil
}

func validationError(message string, field string) error {
	return apierror.Wrap(model.ErrValidation, "VALIDATION_ERROR", message, field, http.StatusBadRequest)
}

// isInvisibleUnicode returns true for zero-width, formatting, and other
// invisible Unicode characters.
func isInvisibleUnicode(r rune) bool {
	switch r {
	case
		'\u200B', // Zero-Width Space
		'\u200C', // Zero-Width Non-Joiner
		'\u200D', // Zero-Width Joiner
		'\u2060', // Word Joiner
		'\uFEFF': // Zero-Width No-Break Space / BOM
		return true
	}

	return unicode.Is(unicode.Cf, r)
}

package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

var (
	// ErrInvalidInput indicates the input failed validation
	ErrInvalidInput = errors.New("invalid input")

	// Installation ids are alphanumeric with dots, hyphens and underscores, 1-64 chars
	installationIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,63}$`)
)

// SanitizeString removes potentially dangerous characters and trims whitespace
func SanitizeString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters except newline and tab
	var builder strings.Builder
	for _, r := range input {
		if !unicode.IsControl(r) || r == '\n' || r == '\t' {
			builder.WriteRune(r)
		}
	}

	return builder.String()
}

// ValidateInstallationID checks an id used to key profiles, alerts and
// subscriptions. Ids end up in file names, so path separators are refused.
func ValidateInstallationID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: installation id cannot be empty", ErrInvalidInput)
	}
	if SanitizeString(id) != id {
		return fmt.Errorf("%w: installation id contains whitespace or control characters", ErrInvalidInput)
	}
	if len(id) > 64 {
		return fmt.Errorf("%w: installation id must not exceed 64 characters", ErrInvalidInput)
	}
	if !installationIDRegex.MatchString(id) {
		return fmt.Errorf("%w: installation id must start with alphanumeric and contain only letters, numbers, dots, hyphens, and underscores", ErrInvalidInput)
	}
	return nil
}

// ValidateAlertID checks that id is a UUID as minted for every alert.
func ValidateAlertID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: alert id must be a UUID", ErrInvalidInput)
	}
	return nil
}

// ValidateForecastHours checks a requested forecast horizon.
func ValidateForecastHours(hours, max int) error {
	if hours < 1 {
		return fmt.Errorf("%w: hours must be at least 1", ErrInvalidInput)
	}
	if hours > max {
		return fmt.Errorf("%w: hours cannot exceed %d", ErrInvalidInput, max)
	}
	return nil
}

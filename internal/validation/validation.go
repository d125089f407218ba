package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// MaxNameLength bounds city and country inputs (in runes).
const MaxNameLength = 100

// ErrFieldEmpty is returned when a field is empty or whitespace-only after trim.
var ErrFieldEmpty = errors.New("field is required")

// ErrFieldTooLong is returned when a field exceeds the maximum length.
var ErrFieldTooLong = errors.New("field too long")

// ErrFieldInvalidChars is returned when a field contains disallowed characters.
var ErrFieldInvalidChars = errors.New("field contains invalid characters")

// ErrCoordinatesOutOfRange is returned when lat/lon fall outside their valid ranges.
var ErrCoordinatesOutOfRange = errors.New("coordinates out of range")

// FieldError carries the field name alongside the validation sentinel so the
// HTTP layer can produce field-specific 400 messages.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	switch {
	case errors.Is(e.Err, ErrFieldEmpty):
		return e.Field + " cannot be empty or only whitespace"
	case errors.Is(e.Err, ErrFieldTooLong):
		return fmt.Sprintf("%s exceeds maximum length of %d characters", e.Field, MaxNameLength)
	case errors.Is(e.Err, ErrFieldInvalidChars):
		return e.Field + " contains invalid characters"
	}
	return e.Field + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error { return e.Err }

// ValidateName trims the input and enforces the length bound and allowed
// character classes for city/country names: letters (including international
// scripts), spaces, hyphens, apostrophes, periods, and commas. Returns the
// trimmed string or a FieldError suitable for a 400 response.
func ValidateName(field, input string) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", &FieldError{Field: field, Err: ErrFieldEmpty}
	}
	if len(r) > MaxNameLength {
		return "", &FieldError{Field: field, Err: ErrFieldTooLong}
	}
	for _, c := range r {
		if !isAllowedNameRune(c) {
			return "", &FieldError{Field: field, Err: ErrFieldInvalidChars}
		}
	}
	return s, nil
}

// isAllowedNameRune returns true for letters (Unicode), space, hyphen,
// apostrophe, period, and comma. Digits and shell/markup metacharacters
// (semicolons, backticks, angle brackets) are rejected.
func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '\'', '.':
		return true
	}
	return false
}

// ValidateCoordinates checks lat in [-90, 90] and lon in [-180, 180].
func ValidateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude must be between -90 and 90", ErrCoordinatesOutOfRange)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("%w: longitude must be between -180 and 180", ErrCoordinatesOutOfRange)
	}
	return nil
}

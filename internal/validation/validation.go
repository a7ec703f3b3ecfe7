package validation

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"weekly-rewards-api/internal/calendar"
)

const maxUserIDLength = 128

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// ValidateUserID accepts any non-empty opaque identifier of bounded length.
func ValidateUserID(id string) error {
	if id == "" {
		return &ValidationError{
			Field:   "userId",
			Message: "is required",
		}
	}

	if len(id) > maxUserIDLength {
		return &ValidationError{
			Field:   "userId",
			Message: fmt.Sprintf("cannot exceed %d characters", maxUserIDLength),
		}
	}

	return nil
}

// ParseInstant parses a date or date-time parameter into local midnight of
// its calendar date.
func ParseInstant(cal calendar.Calendar, value, fieldName string) (time.Time, error) {
	if value == "" {
		return time.Time{}, &ValidationError{
			Field:   fieldName,
			Message: "is required",
		}
	}

	t, err := cal.Parse(SanitizeString(value))
	if err != nil {
		return time.Time{}, &ValidationError{
			Field:   fieldName,
			Message: "must be a date in YYYY-MM-DD or YYYY-MM-DDTHH:MM:SSZ format",
		}
	}

	return t, nil
}

package validation

import (
	"errors"
	"strings"
	"testing"
	"time"

	"weekly-rewards-api/internal/calendar"
)

func TestSanitizeString(t *testing.T) {
	got := SanitizeString("  user\x00-1\n ")
	if got != "user-1" {
		t.Errorf("Expected 'user-1', got %q", got)
	}
}

func TestValidateUserID(t *testing.T) {
	if err := ValidateUserID("1"); err != nil {
		t.Errorf("Expected '1' to be valid, got %v", err)
	}

	var verr *ValidationError
	if err := ValidateUserID(""); !errors.As(err, &verr) || verr.Field != "userId" {
		t.Errorf("Expected userId validation error, got %v", err)
	}

	if err := ValidateUserID(strings.Repeat("x", maxUserIDLength+1)); err == nil {
		t.Error("Expected error for overlong id")
	}
}

func TestParseInstant(t *testing.T) {
	cal := calendar.New(time.UTC)

	got, err := ParseInstant(cal, " 2020-03-19T12:00:00Z ", "at")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(time.Date(2020, 3, 19, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected midnight of 2020-03-19, got %v", got)
	}

	for _, in := range []string{"", "yesterday", "19/03/2020"} {
		_, err := ParseInstant(cal, in, "at")
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%q: expected ValidationError, got %v", in, err)
			continue
		}
		if verr.Field != "at" {
			t.Errorf("%q: expected field 'at', got %q", in, verr.Field)
		}
	}
}

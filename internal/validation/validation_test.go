package validation

import (
	"errors"
	"strings"
	"testing"
)

// TestValidateName covers trimming, length bounds, and character classes.
func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"simple city", "Seattle", "Seattle", nil},
		{"trims whitespace", "  Seattle  ", "Seattle", nil},
		{"empty", "", "", ErrFieldEmpty},
		{"whitespace only", "   ", "", ErrFieldEmpty},
		{"too long", strings.Repeat("a", 101), "", ErrFieldTooLong},
		{"at max length", strings.Repeat("a", 100), strings.Repeat("a", 100), nil},
		{"international letters", "São Paulo", "São Paulo", nil},
		{"cyrillic", "Москва", "Москва", nil},
		{"cjk", "北京", "北京", nil},
		{"hyphenated", "Stratford-upon-Avon", "Stratford-upon-Avon", nil},
		{"apostrophe", "Martha's Vineyard", "Martha's Vineyard", nil},
		{"period", "St. Louis", "St. Louis", nil},
		{"comma", "Washington, D.C.", "Washington, D.C.", nil},
		{"digits rejected", "Area 51", "", ErrFieldInvalidChars},
		{"semicolon rejected", "Seattle; DROP TABLE", "", ErrFieldInvalidChars},
		{"angle brackets rejected", "<script>", "", ErrFieldInvalidChars},
		{"backtick rejected", "Seattle`", "", ErrFieldInvalidChars},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateName("city", tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ValidateName() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateName() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ValidateName() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestFieldError_Message verifies field-specific 400 messages.
func TestFieldError_Message(t *testing.T) {
	_, err := ValidateName("country", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "country") {
		t.Errorf("error %q should name the field", err.Error())
	}

	var fe *FieldError
	if !errors.As(err, &fe) {
		t.Fatalf("error %T is not a *FieldError", err)
	}
	if fe.Field != "country" {
		t.Errorf("Field = %q, want country", fe.Field)
	}
}

// TestValidateCoordinates covers the boundary values of both ranges.
func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		wantErr  bool
	}{
		{"valid", 47.6062, -122.3321, false},
		{"lat min", -90, 0, false},
		{"lat max", 90, 0, false},
		{"lon min", 0, -180, false},
		{"lon max", 0, 180, false},
		{"lat too low", -90.1, 0, true},
		{"lat too high", 91, 0, true},
		{"lon too low", 0, -181, true},
		{"lon too high", 0, 180.5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoordinates(tt.lat, tt.lon)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCoordinates(%v, %v) error = %v, wantErr %v", tt.lat, tt.lon, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrCoordinatesOutOfRange) {
				t.Errorf("error should wrap ErrCoordinatesOutOfRange, got %v", err)
			}
		})
	}
}

package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/username/zynbudget/backend/src/logger"
)

// ErrValidationFailed is the sentinel wrapped by every validator in this
// package; handlers map it to a 400 response.
var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	DefaultMaxStringLength = 255
	MaxISINLength          = 12
	MaxCurrencyCodeLength  = 3
	MaxReferenceLength     = 100
	MaxNotesLength         = 2048
	MaxBioLength           = 1024
)

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidateStringRegex checks if a string matches a given regex pattern.
func ValidateStringRegex(s string, pattern *regexp.Regexp, fieldName, formatDescription string) error {
	if !pattern.MatchString(s) {
		return fmt.Errorf("%w: %s ('%s') is not in the expected format (%s)", ErrValidationFailed, fieldName, s, formatDescription)
	}
	return nil
}

// ValidateDecimalString parses a monetary or percentage value. Values travel
// as strings end to end so nothing is ever coerced through a binary float.
func ValidateDecimalString(s, fieldName string, allowNegative bool) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return decimal.Zero, nil
	}
	val, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s ('%s') is not a valid decimal number", ErrValidationFailed, fieldName, s)
	}
	if !allowNegative && val.IsNegative() {
		logger.L.Warn("negative value not allowed for field", "field", fieldName, "value", val)
		return decimal.Zero, fmt.Errorf("%w: %s cannot be negative", ErrValidationFailed, fieldName)
	}
	return val, nil
}

// ValidatePercentageString parses a percentage and bounds it to [0, 100].
func ValidatePercentageString(s, fieldName string) (decimal.Decimal, error) {
	val, err := ValidateDecimalString(s, fieldName, false)
	if err != nil {
		return decimal.Zero, err
	}
	if val.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("%w: %s must be between 0 and 100, got %s", ErrValidationFailed, fieldName, val)
	}
	return val, nil
}

// ValidateDateString checks if a string is a valid date in "YYYY-MM-DD" format.
func ValidateDateString(s, fieldName string) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	if err := ValidateStringNotEmpty(trimmed, fieldName); err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse("2006-01-02", trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s ('%s') is not a valid date (expected YYYY-MM-DD)", ErrValidationFailed, fieldName, s)
	}
	if t.Format("2006-01-02") != trimmed {
		return time.Time{}, fmt.Errorf("%w: %s ('%s') is an invalid calendar date", ErrValidationFailed, fieldName, s)
	}
	return t, nil
}

var (
	isinRegex         = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)
	currencyCodeRegex = regexp.MustCompile(`^[A-Z]{3}$`)
	phoneRegex        = regexp.MustCompile(`^\+?1?\d{9,15}$`)
	referenceRegex    = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	emailRegex        = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// ValidateISIN checks if a string is a plausible ISIN format. Empty is
// allowed because the identifier is optional on funds.
func ValidateISIN(s string) error {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	if err := ValidateStringMaxLength(trimmed, MaxISINLength, "ISIN"); err != nil {
		return err
	}
	return ValidateStringRegex(trimmed, isinRegex, "ISIN", "2 letters, 9 alphanumeric, 1 digit")
}

// ValidateCurrencyCode checks if currency code is 3 uppercase letters.
func ValidateCurrencyCode(s string) error {
	trimmed := strings.ToUpper(strings.TrimSpace(s))
	if trimmed == "" {
		return nil
	}
	if !currencyCodeRegex.MatchString(trimmed) {
		return fmt.Errorf("%w: currency code ('%s') is not in the expected format (3 uppercase letters)", ErrValidationFailed, s)
	}
	return nil
}

// ValidatePhoneNumber checks E.164-style phone numbers; empty is allowed.
func ValidatePhoneNumber(s string) error {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return ValidateStringRegex(trimmed, phoneRegex, "phone number", "+ prefix and 9 to 15 digits")
}

// ValidateEmail performs a light syntactic check on an email address.
func ValidateEmail(s string) error {
	trimmed := strings.TrimSpace(s)
	if err := ValidateStringNotEmpty(trimmed, "email"); err != nil {
		return err
	}
	if err := ValidateStringMaxLength(trimmed, DefaultMaxStringLength, "email"); err != nil {
		return err
	}
	return ValidateStringRegex(trimmed, emailRegex, "email", "name@domain.tld")
}

// ValidateReference checks format and length for an external reference number.
// Empty is allowed; references are optional.
func ValidateReference(s string) error {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	if err := ValidateStringMaxLength(trimmed, MaxReferenceLength, "reference"); err != nil {
		return err
	}
	return ValidateStringRegex(trimmed, referenceRegex, "reference", "alphanumeric with hyphens/underscores")
}

package validation

import (
	"errors"
	"testing"
)

func TestValidateDecimalString(t *testing.T) {
	val, err := ValidateDecimalString("150.25", "amount", false)
	if err != nil {
		t.Fatalf("valid decimal: %v", err)
	}
	if val.String() != "150.25" {
		t.Errorf("parsed = %s, want 150.25", val)
	}

	// Empty is treated as zero for optional fields.
	val, err = ValidateDecimalString("  ", "amount", false)
	if err != nil {
		t.Fatalf("empty decimal: %v", err)
	}
	if !val.IsZero() {
		t.Errorf("empty parsed = %s, want 0", val)
	}

	if _, err := ValidateDecimalString("12.3.4", "amount", false); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("malformed decimal: got %v, want ErrValidationFailed", err)
	}
	if _, err := ValidateDecimalString("-5", "amount", false); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("negative when disallowed: got %v, want ErrValidationFailed", err)
	}
	if _, err := ValidateDecimalString("-5", "gain", true); err != nil {
		t.Errorf("negative when allowed: %v", err)
	}
}

func TestValidatePercentageString(t *testing.T) {
	if _, err := ValidatePercentageString("42.86", "rate"); err != nil {
		t.Errorf("valid percentage: %v", err)
	}
	if _, err := ValidatePercentageString("100", "rate"); err != nil {
		t.Errorf("boundary percentage: %v", err)
	}
	if _, err := ValidatePercentageString("100.01", "rate"); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("over 100: got %v, want ErrValidationFailed", err)
	}
	if _, err := ValidatePercentageString("-1", "rate"); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("negative: got %v, want ErrValidationFailed", err)
	}
}

func TestValidateDateString(t *testing.T) {
	d, err := ValidateDateString("2026-02-28", "balance date")
	if err != nil {
		t.Fatalf("valid date: %v", err)
	}
	if d.Format("2006-01-02") != "2026-02-28" {
		t.Errorf("parsed = %s", d)
	}

	for _, bad := range []string{"", "28-02-2026", "2026-13-01", "2026-02-30", "yesterday"} {
		if _, err := ValidateDateString(bad, "balance date"); !errors.Is(err, ErrValidationFailed) {
			t.Errorf("%q: got %v, want ErrValidationFailed", bad, err)
		}
	}
}

func TestValidatePhoneNumber(t *testing.T) {
	for _, ok := range []string{"", "+2348012345678", "08012345678", "+15551234567"} {
		if err := ValidatePhoneNumber(ok); err != nil {
			t.Errorf("%q should be valid: %v", ok, err)
		}
	}
	for _, bad := range []string{"12345", "phone", "+12 345 678"} {
		if err := ValidatePhoneNumber(bad); !errors.Is(err, ErrValidationFailed) {
			t.Errorf("%q: got %v, want ErrValidationFailed", bad, err)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	if err := ValidateEmail("ada@example.com"); err != nil {
		t.Errorf("valid email: %v", err)
	}
	for _, bad := range []string{"", "not-an-email", "a@b", "@example.com"} {
		if err := ValidateEmail(bad); !errors.Is(err, ErrValidationFailed) {
			t.Errorf("%q: got %v, want ErrValidationFailed", bad, err)
		}
	}
}

func TestValidateCurrencyCodeAndISIN(t *testing.T) {
	if err := ValidateCurrencyCode("ngn"); err != nil {
		t.Errorf("lowercase code should normalize: %v", err)
	}
	if err := ValidateCurrencyCode("EURO"); err == nil {
		t.Error("4-letter code should be rejected")
	}
	if err := ValidateISIN("US0378331005"); err != nil {
		t.Errorf("valid ISIN: %v", err)
	}
	if err := ValidateISIN("XX123"); err == nil {
		t.Error("short ISIN should be rejected")
	}
}

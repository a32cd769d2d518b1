package models

import (
	"encoding/json"
	"testing"
)

func TestNewAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"0", "0", false},
		{"150.25", "150.25", false},
		{"-20.10", "-20.1", false},
		{"0.000001", "0.000001", false},
		{"abc", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := NewAmount(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NewAmount(%q): expected error, got %s", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NewAmount(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("NewAmount(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestAmountScanValueRoundTrip(t *testing.T) {
	// Values must survive a write/read cycle without drifting.
	for _, s := range []string{"0", "1234567890.123456789", "-0.01", "42.86"} {
		orig := MustAmount(s)

		v, err := orig.Value()
		if err != nil {
			t.Fatalf("Value(%s): %v", s, err)
		}

		var back Amount
		if err := back.Scan(v); err != nil {
			t.Fatalf("Scan(%v): %v", v, err)
		}
		if !back.Equal(orig.Decimal) {
			t.Errorf("round trip %s: got %s", s, back)
		}
	}
}

func TestAmountScanSourceTypes(t *testing.T) {
	var a Amount
	if err := a.Scan([]byte("10.50")); err != nil {
		t.Fatalf("Scan []byte: %v", err)
	}
	if a.String() != "10.5" {
		t.Errorf("Scan []byte = %s, want 10.5", a)
	}

	if err := a.Scan(int64(7)); err != nil {
		t.Fatalf("Scan int64: %v", err)
	}
	if a.String() != "7" {
		t.Errorf("Scan int64 = %s, want 7", a)
	}

	if err := a.Scan(nil); err != nil {
		t.Fatalf("Scan nil: %v", err)
	}
	if !a.IsZero() {
		t.Errorf("Scan nil = %s, want 0", a)
	}
}

func TestAmountJSON(t *testing.T) {
	a := MustAmount("150.25")
	b, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `"150.25"` {
		t.Errorf("Marshal = %s, want \"150.25\"", b)
	}

	// Whole numbers render with two decimal places; extra precision survives.
	for in, want := range map[string]string{
		"14":       `"14.00"`,
		"0":        `"0.00"`,
		"10.5":     `"10.50"`,
		"0.000001": `"0.000001"`,
	} {
		got, err := json.Marshal(MustAmount(in))
		if err != nil {
			t.Fatalf("Marshal(%s): %v", in, err)
		}
		if string(got) != want {
			t.Errorf("Marshal(%s) = %s, want %s", in, got, want)
		}
	}

	var back Amount
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !back.Equal(a.Decimal) {
		t.Errorf("Unmarshal = %s, want %s", back, a)
	}

	// Bare JSON numbers are accepted too.
	if err := json.Unmarshal([]byte(`99.99`), &back); err != nil {
		t.Fatalf("Unmarshal bare number: %v", err)
	}
	if back.String() != "99.99" {
		t.Errorf("Unmarshal bare number = %s, want 99.99", back)
	}
}

func TestAddAmounts(t *testing.T) {
	got := AddAmounts(MustAmount("0.1"), MustAmount("0.2"), MustAmount("0.3"))
	if got.String() != "0.6" {
		t.Errorf("AddAmounts = %s, want 0.6", got)
	}

	if !AddAmounts().IsZero() {
		t.Error("AddAmounts() with no args should be zero")
	}
}

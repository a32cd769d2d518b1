package validation

import "testing"

func TestSanitizeText(t *testing.T) {
	if got := SanitizeText(`<script>alert(1)</script>Growth fund`); got != "Growth fund" {
		t.Errorf("SanitizeText = %q", got)
	}
	if got := SanitizeText("plain notes"); got != "plain notes" {
		t.Errorf("SanitizeText should pass plain text through, got %q", got)
	}
}

func TestSanitizeForFormulaInjection(t *testing.T) {
	tests := []struct{ in, want string }{
		{"=SUM(A1:A2)", "'=SUM(A1:A2)"},
		{"+234800", "'+234800"},
		{"@cmd", "'@cmd"},
		{"normal text", "normal text"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SanitizeForFormulaInjection(tt.in); got != tt.want {
			t.Errorf("SanitizeForFormulaInjection(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStripUnprintable(t *testing.T) {
	if got := StripUnprintable("a\x00b\tc\n"); got != "ab\tc\n" {
		t.Errorf("StripUnprintable = %q", got)
	}
}
